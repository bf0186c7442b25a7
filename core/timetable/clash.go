package timetable

import (
	"fmt"
	"sort"
	"strconv"
)

var clashKinds = []string{KindClass, KindRoom, KindTrainer}

// minutes converts a valid HH:MM into minutes since midnight. Invalid input yields -1.
func minutes(hhmm string) int {
	if !validHHMM(hhmm) {
		return -1
	}
	h, _ := strconv.Atoi(hhmm[:2])
	m, _ := strconv.Atoi(hhmm[3:])
	return h*60 + m
}

func validHHMM(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return false
	}
	m, err := strconv.Atoi(s[3:])
	return err == nil && m >= 0 && m <= 59
}

func formatHHMM(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

type groupKey struct {
	day      string
	resource string
}

// DetectClashes returns every pair of sessions sharing a class, room or trainer at
// overlapping times on the same day. Sessions touching end to start do not clash.
// The result is sorted by day, overlap start, kind, then session IDs.
func DetectClashes(sessions []Session) []Clash {
	clashes := make([]Clash, 0)
	for _, kind := range clashKinds {
		groups := make(map[groupKey][]Session)
		for _, s := range sessions {
			res := s.resource(kind)
			if res == "" {
				continue
			}
			key := groupKey{day: s.Day, resource: res}
			groups[key] = append(groups[key], s)
		}
		for key, group := range groups {
			clashes = append(clashes, sweep(kind, key.resource, group)...)
		}
	}
	sortClashes(clashes)
	return clashes
}

// sweep finds the overlapping pairs of a group of sessions sharing one resource on one day.
func sweep(kind, resource string, group []Session) []Clash {
	sorted := make([]Session, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].startMin() != sorted[j].startMin() {
			return sorted[i].startMin() < sorted[j].startMin()
		}
		if sorted[i].endMin() != sorted[j].endMin() {
			return sorted[i].endMin() < sorted[j].endMin()
		}
		return sorted[i].ID < sorted[j].ID
	})

	var clashes []Clash
	active := make([]Session, 0, len(sorted))
	for _, s := range sorted {
		start := s.startMin()

		// drop the sessions ending at or before this start
		kept := active[:0]
		for _, a := range active {
			if a.endMin() > start {
				kept = append(kept, a)
			}
		}
		active = kept

		for _, a := range active {
			end := a.endMin()
			if s.endMin() < end {
				end = s.endMin()
			}
			clashes = append(clashes, Clash{
				Kind:     kind,
				Resource: resource,
				Day:      s.Day,
				Start:    formatHHMM(start),
				End:      formatHHMM(end),
				First:    a,
				Second:   s,
			})
		}
		active = append(active, s)
	}
	return clashes
}

func sortClashes(clashes []Clash) {
	sort.Slice(clashes, func(i, j int) bool {
		ci, cj := clashes[i], clashes[j]
		if ci.Day != cj.Day {
			return dayIndex[ci.Day] < dayIndex[cj.Day]
		}
		if ci.Start != cj.Start {
			return ci.Start < cj.Start
		}
		if ci.Kind != cj.Kind {
			return ci.Kind < cj.Kind
		}
		if ci.First.ID != cj.First.ID {
			return ci.First.ID < cj.First.ID
		}
		return ci.Second.ID < cj.Second.ID
	})
}

// ClashesWith returns the clashes between candidate and the other sessions.
// Sessions with the candidate's ID are ignored.
func ClashesWith(candidate Session, others []Session) []Clash {
	group := make([]Session, 0, len(others)+1)
	group = append(group, candidate)
	for _, o := range others {
		if o.ID == candidate.ID || o.Day != candidate.Day || o.Term != candidate.Term {
			continue
		}
		group = append(group, o)
	}

	var clashes []Clash
	for _, c := range DetectClashes(group) {
		if c.First.ID == candidate.ID || c.Second.ID == candidate.ID {
			clashes = append(clashes, c)
		}
	}
	return clashes
}

// FreeSlots returns the gaps of at least minLength minutes between the busy intervals
// of a resource inside [from, to).
func FreeSlots(sessions []Session, kind, resource, day, from, to string, minLength int) []Slot {
	winStart, winEnd := minutes(from), minutes(to)
	slots := make([]Slot, 0)
	if winStart < 0 || winEnd <= winStart {
		return slots
	}

	type interval struct{ start, end int }
	busy := make([]interval, 0)
	for _, s := range sessions {
		if s.Day != day || s.resource(kind) != resource {
			continue
		}
		start, end := s.startMin(), s.endMin()
		if start < winStart {
			start = winStart
		}
		if end > winEnd {
			end = winEnd
		}
		if start < end {
			busy = append(busy, interval{start, end})
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].start < busy[j].start })

	cursor := winStart
	addGap := func(end int) {
		if end-cursor > 0 && end-cursor >= minLength {
			slots = append(slots, Slot{Day: day, Start: formatHHMM(cursor), End: formatHHMM(end)})
		}
	}
	for _, b := range busy {
		if b.start > cursor {
			addGap(b.start)
		}
		if b.end > cursor {
			cursor = b.end
		}
	}
	addGap(winEnd)
	return slots
}

// TrainerLoads sums the weekly sessions and hours per trainer, busiest first.
func TrainerLoads(sessions []Session) []TrainerLoad {
	byTrainer := make(map[string]*TrainerLoad)
	for _, s := range sessions {
		if s.TrainerID == "" {
			continue
		}
		load, ok := byTrainer[s.TrainerID]
		if !ok {
			load = &TrainerLoad{TrainerID: s.TrainerID}
			byTrainer[s.TrainerID] = load
		}
		load.Sessions++
		load.Hours += s.Duration().Hours()
	}

	loads := make([]TrainerLoad, 0, len(byTrainer))
	for _, l := range byTrainer {
		loads = append(loads, *l)
	}
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].Hours != loads[j].Hours {
			return loads[i].Hours > loads[j].Hours
		}
		return loads[i].TrainerID < loads[j].TrainerID
	})
	return loads
}
