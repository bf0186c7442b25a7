package assessment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(f float64) *float64 { return &f }

func mark(assessmentID, studentID string, s *float64) Mark {
	return Mark{AssessmentID: assessmentID, StudentID: studentID, Score: s}
}

var (
	day1 = time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	cat1 = Assessment{ID: "a1", Title: "CAT 1", Kind: KindCAT, MaxScore: 30, Weight: 30, Date: day1}
	exam = Assessment{ID: "a2", Title: "End term", Kind: KindExam, MaxScore: 100, Weight: 70, Date: day2}

	students = []Student{
		{ID: "s1", AdmissionNo: "ADM-1", Name: "Wanjiru"},
		{ID: "s2", AdmissionNo: "ADM-2", Name: "achieng"},
		{ID: "s3", AdmissionNo: "ADM-3", Name: "Kamau"},
		{ID: "s4", AdmissionNo: "ADM-4", Name: "Otieno"},
	}
)

func TestBuildMarksheet(t *testing.T) {
	marks := []Mark{
		mark("a1", "s1", score(30)), mark("a2", "s1", score(50)), // 30 + 35 = 65
		mark("a1", "s2", score(15)), mark("a2", "s2", score(70)), // 15 + 49 = 64
		mark("a1", "s3", score(30)), mark("a2", "s3", score(50)), // 65
		mark("a1", "s4", nil),
		mark("a1", "unknown", score(10)),
	}
	// columns are given out of order
	ms := BuildMarksheet("c1", "u1", students, []Assessment{exam, cat1}, marks, DefaultScale)

	assert.Equal(t, "c1", ms.ClassID)
	assert.Equal(t, "u1", ms.UnitID)
	assert.Equal(t, 100.0, ms.TotalWeight)
	require.Len(t, ms.Assessments, 2)
	assert.Equal(t, "a1", ms.Assessments[0].ID)
	assert.Equal(t, "a2", ms.Assessments[1].ID)

	require.Len(t, ms.Rows, 4)
	names := make([]string, 0, len(ms.Rows))
	for _, r := range ms.Rows {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"achieng", "Kamau", "Otieno", "Wanjiru"}, names)

	byID := make(map[string]MarksheetRow)
	for _, r := range ms.Rows {
		byID[r.StudentID] = r
	}

	tests := []struct {
		student string
		total   float64
		pct     float64
		grade   string
		missing int
		rank    int
	}{
		{student: "s1", total: 65, pct: 65, grade: "ME", rank: 1},
		{student: "s3", total: 65, pct: 65, grade: "ME", rank: 1},
		{student: "s2", total: 64, pct: 64, grade: "ME", rank: 3},
		{student: "s4", total: 0, pct: 0, grade: "", missing: 2, rank: 4},
	}
	for _, tc := range tests {
		t.Run(tc.student, func(t *testing.T) {
			row := byID[tc.student]
			assert.Equal(t, tc.total, row.Total)
			assert.Equal(t, tc.pct, row.Percentage)
			assert.Equal(t, tc.grade, row.Grade)
			assert.Equal(t, tc.missing, row.Missing)
			assert.Equal(t, tc.rank, row.Rank)
			assert.Len(t, row.Scores, 2)
		})
	}

	require.Len(t, ms.Columns, 2)
	catStats := ms.Columns[0]
	assert.Equal(t, "a1", catStats.AssessmentID)
	assert.Equal(t, 3, catStats.Count)
	require.NotNil(t, catStats.Mean)
	assert.Equal(t, 25.0, *catStats.Mean)
	assert.Equal(t, 15.0, *catStats.Min)
	assert.Equal(t, 30.0, *catStats.Max)

	examStats := ms.Columns[1]
	assert.Equal(t, 3, examStats.Count)
	assert.Equal(t, 56.67, *examStats.Mean)
}

func TestBuildMarksheet_partialMarks(t *testing.T) {
	// a missing mark counts as zero against the full weight
	marks := []Mark{mark("a1", "s1", score(30))}
	ms := BuildMarksheet("c1", "u1", students[:1], []Assessment{cat1, exam}, marks, DefaultScale)

	require.Len(t, ms.Rows, 1)
	row := ms.Rows[0]
	assert.Equal(t, 30.0, row.Total)
	assert.Equal(t, 30.0, row.Percentage)
	assert.Equal(t, "BE", row.Grade)
	assert.Equal(t, 1, row.Missing)
	assert.Nil(t, row.Scores[1])
}

func TestBuildMarksheet_empty(t *testing.T) {
	ms := BuildMarksheet("c1", "u1", nil, nil, nil, DefaultScale)
	assert.Empty(t, ms.Rows)
	assert.Empty(t, ms.Columns)
	assert.Zero(t, ms.TotalWeight)

	ms = BuildMarksheet("c1", "u1", students[:2], []Assessment{cat1}, nil, DefaultScale)
	require.Len(t, ms.Rows, 2)
	for _, r := range ms.Rows {
		assert.Equal(t, 1, r.Rank)
		assert.Empty(t, r.Grade)
	}
	assert.Nil(t, ms.Columns[0].Mean)
	assert.Zero(t, ms.Columns[0].Count)
}

func TestGradingScale_Grade(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{pct: 100, want: "EE"},
		{pct: 80, want: "EE"},
		{pct: 79.99, want: "ME"},
		{pct: 60, want: "ME"},
		{pct: 40, want: "AE"},
		{pct: 39.99, want: "BE"},
		{pct: 0, want: "BE"},
		{pct: -1, want: "BE"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, DefaultScale.Grade(tc.pct).Grade, "pct=%v", tc.pct)
	}
}

func TestUnitPercentage(t *testing.T) {
	pct, ok := unitPercentage([]Assessment{cat1, exam}, map[string]float64{"a1": 15, "a2": 100})
	assert.True(t, ok)
	assert.Equal(t, 85.0, pct)

	pct, ok = unitPercentage([]Assessment{cat1, exam}, map[string]float64{})
	assert.False(t, ok)
	assert.Zero(t, pct)
}

func TestEvidencePath(t *testing.T) {
	assert.Equal(t, "poe/s1/e1/report.pdf", EvidencePath("s1", "e1", "report.pdf"))
	assert.Equal(t, "poe/s1/e1/passwd", EvidencePath("s1", "e1", "../../etc/passwd"))
	assert.Equal(t, "poe/s1/e1/evil.pdf", EvidencePath("s1", "e1", `C:\temp\evil.pdf`))
	assert.Equal(t, "poe/s1/e1/file", EvidencePath("s1", "e1", ""))
}
