package assessment

import (
	"sort"
	"strings"
	"time"
)

// Marksheet is the students × assessments grid of a unit.
type Marksheet struct {
	ClassID     string         `json:"class_id"`
	UnitID      string         `json:"unit_id"`
	Assessments []Assessment   `json:"assessments"`
	Rows        []MarksheetRow `json:"rows"`
	Columns     []ColumnStats  `json:"columns"`
	TotalWeight float64        `json:"total_weight"`
	GeneratedAt time.Time      `json:"generated_at"`
}

type MarksheetRow struct {
	StudentID   string     `json:"student_id"`
	AdmissionNo string     `json:"admission_no"`
	Name        string     `json:"name"`
	Scores      []*float64 `json:"scores"` // aligned with Marksheet.Assessments
	Total       float64    `json:"total"`  // weighted, out of TotalWeight
	Percentage  float64    `json:"percentage"`
	Grade       string     `json:"grade"` // empty until the student has a mark
	Missing     int        `json:"missing"`
	Rank        int        `json:"rank"`
}

type ColumnStats struct {
	AssessmentID string   `json:"assessment_id"`
	Count        int      `json:"count"`
	Mean         *float64 `json:"mean"`
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
}

// Student is a marksheet row header.
type Student struct {
	ID          string
	AdmissionNo string
	Name        string
}

// BuildMarksheet aggregates marks into a Marksheet.
// Rows are sorted by name, columns by date then title. Ranks use competition
// ranking on the percentage; students without any mark share the last rank.
func BuildMarksheet(classID, unitID string, students []Student, assessments []Assessment, marks []Mark, scale GradingScale) Marksheet {
	cols := make([]Assessment, len(assessments))
	copy(cols, assessments)
	sortAssessments(cols)

	colIdx := make(map[string]int, len(cols))
	var totalWeight float64
	for i, a := range cols {
		colIdx[a.ID] = i
		totalWeight += a.Weight
	}

	byStudent := make(map[string][]*float64, len(students))
	for _, s := range students {
		byStudent[s.ID] = make([]*float64, len(cols))
	}
	for _, m := range marks {
		scores, ok := byStudent[m.StudentID]
		i, known := colIdx[m.AssessmentID]
		if !ok || !known || m.Score == nil {
			continue
		}
		score := *m.Score
		scores[i] = &score
	}

	rows := make([]MarksheetRow, 0, len(students))
	for _, s := range students {
		row := MarksheetRow{StudentID: s.ID, AdmissionNo: s.AdmissionNo, Name: s.Name, Scores: byStudent[s.ID]}
		var marked int
		for i, score := range row.Scores {
			if score == nil {
				row.Missing++
				continue
			}
			marked++
			row.Total += *score / cols[i].MaxScore * cols[i].Weight
		}
		row.Total = round2(row.Total)
		if totalWeight > 0 {
			row.Percentage = round2(row.Total / totalWeight * 100)
		}
		if marked > 0 {
			row.Grade = scale.Grade(row.Percentage).Grade
		}
		rows = append(rows, row)
	}

	rankRows(rows)
	sort.SliceStable(rows, func(i, j int) bool {
		ni, nj := strings.ToLower(rows[i].Name), strings.ToLower(rows[j].Name)
		if ni != nj {
			return ni < nj
		}
		return rows[i].AdmissionNo < rows[j].AdmissionNo
	})

	return Marksheet{
		ClassID:     classID,
		UnitID:      unitID,
		Assessments: cols,
		Rows:        rows,
		Columns:     columnStats(cols, rows),
		TotalWeight: totalWeight,
		GeneratedAt: time.Now().UTC(),
	}
}

func sortAssessments(as []Assessment) {
	sort.SliceStable(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date) {
			return as[i].Date.Before(as[j].Date)
		}
		if as[i].Title != as[j].Title {
			return as[i].Title < as[j].Title
		}
		return as[i].ID < as[j].ID
	})
}

// rankRows sets competition ranks (1, 1, 3) by percentage.
func rankRows(rows []MarksheetRow) {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	graded := func(r MarksheetRow) bool { return r.Grade != "" }
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rows[order[a]], rows[order[b]]
		if graded(ra) != graded(rb) {
			return graded(ra)
		}
		return ra.Percentage > rb.Percentage
	})

	for pos, idx := range order {
		if pos > 0 {
			prev := rows[order[pos-1]]
			cur := rows[idx]
			if graded(prev) == graded(cur) && (!graded(cur) || prev.Percentage == cur.Percentage) {
				rows[idx].Rank = prev.Rank
				continue
			}
		}
		rows[idx].Rank = pos + 1
	}
}

func columnStats(cols []Assessment, rows []MarksheetRow) []ColumnStats {
	stats := make([]ColumnStats, 0, len(cols))
	for i, a := range cols {
		st := ColumnStats{AssessmentID: a.ID}
		var sum, lo, hi float64
		for _, r := range rows {
			score := r.Scores[i]
			if score == nil {
				continue
			}
			if st.Count == 0 || *score < lo {
				lo = *score
			}
			if st.Count == 0 || *score > hi {
				hi = *score
			}
			sum += *score
			st.Count++
		}
		if st.Count > 0 {
			mean := round2(sum / float64(st.Count))
			st.Mean, st.Min, st.Max = &mean, &lo, &hi
		}
		stats = append(stats, st)
	}
	return stats
}

// unitPercentage is the weighted percentage of one student's scores over assessments.
// ok is false when the student has no mark.
func unitPercentage(assessments []Assessment, scores map[string]float64) (pct float64, ok bool) {
	var total, weights float64
	for _, a := range assessments {
		weights += a.Weight
		if score, marked := scores[a.ID]; marked {
			total += score / a.MaxScore * a.Weight
			ok = true
		}
	}
	if weights == 0 {
		return 0, ok
	}
	return round2(total / weights * 100), ok
}
