package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sess(id, class, room, trainer, day, start, end string) Session {
	return Session{ID: id, Term: "2025-T1", ClassID: class, Room: room, TrainerID: trainer, Day: day, Start: start, End: end}
}

func TestDetectClashes(t *testing.T) {
	tests := []struct {
		name     string
		sessions []Session
		want     []Clash
	}{
		{name: "no sessions", want: []Clash{}},
		{
			name: "touching sessions do not clash",
			sessions: []Session{
				sess("a", "c1", "r1", "t1", "monday", "08:00", "10:00"),
				sess("b", "c1", "r1", "t1", "monday", "10:00", "11:00"),
			},
			want: []Clash{},
		},
		{
			name: "different days do not clash",
			sessions: []Session{
				sess("a", "c1", "r1", "t1", "monday", "08:00", "10:00"),
				sess("b", "c1", "r1", "t1", "tuesday", "08:00", "10:00"),
			},
			want: []Clash{},
		},
		{
			name: "room clash only",
			sessions: []Session{
				sess("a", "c1", "r1", "t1", "monday", "08:00", "10:00"),
				sess("b", "c2", "r1", "t2", "monday", "09:00", "11:00"),
			},
			want: []Clash{
				{
					Kind: KindRoom, Resource: "r1", Day: "monday", Start: "09:00", End: "10:00",
					First:  sess("a", "c1", "r1", "t1", "monday", "08:00", "10:00"),
					Second: sess("b", "c2", "r1", "t2", "monday", "09:00", "11:00"),
				},
			},
		},
		{
			name: "empty room is ignored",
			sessions: []Session{
				sess("a", "c1", "", "t1", "monday", "08:00", "10:00"),
				sess("b", "c2", "", "t2", "monday", "09:00", "11:00"),
			},
			want: []Clash{},
		},
		{
			name: "nested session clashes on every shared resource",
			sessions: []Session{
				sess("b", "c1", "r2", "t1", "friday", "09:00", "09:30"),
				sess("a", "c1", "r1", "t1", "friday", "08:00", "12:00"),
			},
			want: []Clash{
				{
					Kind: KindClass, Resource: "c1", Day: "friday", Start: "09:00", End: "09:30",
					First:  sess("a", "c1", "r1", "t1", "friday", "08:00", "12:00"),
					Second: sess("b", "c1", "r2", "t1", "friday", "09:00", "09:30"),
				},
				{
					Kind: KindTrainer, Resource: "t1", Day: "friday", Start: "09:00", End: "09:30",
					First:  sess("a", "c1", "r1", "t1", "friday", "08:00", "12:00"),
					Second: sess("b", "c1", "r2", "t1", "friday", "09:00", "09:30"),
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectClashes(tt.sessions))
		})
	}
}

func TestDetectClashesOrdering(t *testing.T) {
	sessions := []Session{
		sess("d", "c2", "r9", "t2", "tuesday", "08:00", "09:00"),
		sess("e", "c3", "r9", "t3", "tuesday", "08:30", "09:30"),
		sess("a", "c1", "r1", "t1", "monday", "10:00", "12:00"),
		sess("b", "c2", "r2", "t1", "monday", "11:00", "12:00"),
		sess("c", "c3", "r3", "t1", "monday", "11:30", "13:00"),
	}
	clashes := DetectClashes(sessions)
	require.Len(t, clashes, 4)

	// monday trainer clashes: a-b, a-c, b-c; then tuesday room clash d-e
	assert.Equal(t, "monday", clashes[0].Day)
	assert.Equal(t, "11:00", clashes[0].Start)
	assert.Equal(t, [2]string{"a", "b"}, [2]string{clashes[0].First.ID, clashes[0].Second.ID})
	assert.Equal(t, "11:30", clashes[1].Start)
	assert.Equal(t, "12:00", clashes[1].End)
	assert.Equal(t, "11:30", clashes[2].Start)
	assert.Equal(t, "tuesday", clashes[3].Day)
	assert.Equal(t, KindRoom, clashes[3].Kind)
}

func TestClashesWith(t *testing.T) {
	existing := []Session{
		sess("a", "c1", "r1", "t1", "monday", "08:00", "10:00"),
		sess("b", "c2", "r2", "t2", "monday", "08:00", "10:00"),
		sess("c", "c3", "r3", "t3", "monday", "09:00", "10:00"), // clashes with nothing below
	}

	candidate := sess("new", "c9", "r2", "t9", "monday", "09:30", "10:30")
	clashes := ClashesWith(candidate, existing)
	require.Len(t, clashes, 1)
	assert.Equal(t, KindRoom, clashes[0].Kind)
	assert.Equal(t, "b", clashes[0].First.ID)

	// an updated session never clashes with its stored self
	moved := existing[0]
	moved.Start = "08:30"
	assert.Empty(t, ClashesWith(moved, existing))

	// existing clashes between other sessions are not reported
	assert.Empty(t, ClashesWith(sess("x", "c8", "r8", "t8", "monday", "09:00", "10:00"), existing))
}

func TestFreeSlots(t *testing.T) {
	sessions := []Session{
		sess("a", "c1", "r1", "t1", "monday", "08:00", "09:00"),
		sess("b", "c1", "r2", "t2", "monday", "08:30", "10:00"), // overlaps a
		sess("c", "c1", "r1", "t1", "monday", "11:00", "11:45"),
		sess("d", "c1", "r1", "t1", "tuesday", "07:00", "18:00"), // other day
		sess("e", "c2", "r1", "t1", "monday", "16:30", "19:00"),  // other class, past window end
	}

	tests := []struct {
		name      string
		kind      string
		id        string
		minLength int
		want      []Slot
	}{
		{
			name: "class", kind: KindClass, id: "c1",
			want: []Slot{
				{Day: "monday", Start: "07:00", End: "08:00"},
				{Day: "monday", Start: "10:00", End: "11:00"},
				{Day: "monday", Start: "11:45", End: "18:00"},
			},
		},
		{
			name: "class with min length", kind: KindClass, id: "c1", minLength: 61,
			want: []Slot{{Day: "monday", Start: "11:45", End: "18:00"}},
		},
		{
			name: "room clipped at window end", kind: KindRoom, id: "r1",
			want: []Slot{
				{Day: "monday", Start: "07:00", End: "08:00"},
				{Day: "monday", Start: "09:00", End: "11:00"},
				{Day: "monday", Start: "11:45", End: "16:30"},
			},
		},
		{
			name: "unknown resource is free all day", kind: KindTrainer, id: "nobody",
			want: []Slot{{Day: "monday", Start: "07:00", End: "18:00"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FreeSlots(sessions, tt.kind, tt.id, "monday", "07:00", "18:00", tt.minLength)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, FreeSlots(sessions, KindClass, "c1", "monday", "18:00", "07:00", 0))
}

func TestTrainerLoads(t *testing.T) {
	loads := TrainerLoads([]Session{
		sess("a", "c1", "r1", "t1", "monday", "08:00", "09:30"),
		sess("b", "c1", "r1", "t2", "monday", "10:00", "11:00"),
		sess("c", "c1", "r1", "t1", "tuesday", "08:00", "09:00"),
		sess("d", "c1", "r1", "", "tuesday", "10:00", "11:00"),
	})
	assert.Equal(t, []TrainerLoad{
		{TrainerID: "t1", Sessions: 2, Hours: 2.5},
		{TrainerID: "t2", Sessions: 1, Hours: 1},
	}, loads)
}

func TestMinutes(t *testing.T) {
	assert.Equal(t, 0, minutes("00:00"))
	assert.Equal(t, 23*60+59, minutes("23:59"))
	assert.Equal(t, -1, minutes("24:00"))
	assert.Equal(t, -1, minutes("7:00"))
	assert.Equal(t, "09:05", formatHHMM(545))
}
