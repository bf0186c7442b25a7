package assessment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/user"
)

// recordConcurrency bounds the units fetched at once for an academic record.
const recordConcurrency = 4

type (
	AcademicRecord struct {
		StudentID   string        `json:"student_id"`
		Name        string        `json:"name"`
		Classes     []ClassRecord `json:"classes"`
		Terms       []TermMean    `json:"terms"`
		OverallMean *float64      `json:"overall_mean"`
		Grade       string        `json:"grade"`
		GeneratedAt time.Time     `json:"generated_at"`
	}

	ClassRecord struct {
		ClassID     string       `json:"class_id"`
		ClassName   string       `json:"class_name"`
		ClassCode   string       `json:"class_code"`
		AdmissionNo string       `json:"admission_no"`
		Units       []UnitRecord `json:"units"`
	}

	UnitRecord struct {
		UnitID      string             `json:"unit_id"`
		Code        string             `json:"code"`
		Name        string             `json:"name"`
		Assessments []AssessmentResult `json:"assessments"`
		Percentage  *float64           `json:"percentage"` // nil until a mark exists
		Grade       string             `json:"grade"`
	}

	AssessmentResult struct {
		AssessmentID string    `json:"assessment_id"`
		Title        string    `json:"title"`
		Kind         string    `json:"kind"`
		Term         string    `json:"term"`
		Date         time.Time `json:"date"`
		MaxScore     float64   `json:"max_score"`
		Weight       float64   `json:"weight"`
		Score        *float64  `json:"score"`
	}

	// TermMean is the mean of the unit percentages of a term.
	TermMean struct {
		Term  string  `json:"term"`
		Units int     `json:"units"`
		Mean  float64 `json:"mean"`
		Grade string  `json:"grade"`
	}
)

// canViewRecord: the student, admins and trainers of one of the student's classes.
func (svc *service) canViewRecord(ctx context.Context, actor user.User, enrolments []school.Enrolment, studentID string) (bool, error) {
	if actor.ID == studentID || actor.IsAdmin() {
		return true, nil
	}
	if !actor.IsTrainer() {
		return false, nil
	}
	for _, e := range enrolments {
		ok, err := svc.schoolSvc.CanViewClassList(ctx, actor, e.ClassID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (svc *service) AcademicRecord(ctx context.Context, actor user.User, studentID string) (AcademicRecord, error) {
	student, err := svc.usrSvc.GetByID(ctx, studentID)
	if err != nil {
		return AcademicRecord{}, err
	}
	enrolments, err := svc.schoolSvc.StudentEnrolments(ctx, studentID)
	if err != nil {
		return AcademicRecord{}, errors.Wrap(err, "querying enrolments")
	}
	ok, err := svc.canViewRecord(ctx, actor, enrolments, studentID)
	if err != nil {
		return AcademicRecord{}, err
	}
	if !ok {
		return AcademicRecord{}, core.NewPermissionError("you cannot view this academic record")
	}
	publishedOnly := !actor.IsAdmin() && !actor.IsTrainer()

	rec := AcademicRecord{
		StudentID:   student.ID,
		Name:        student.Name,
		Classes:     make([]ClassRecord, 0, len(enrolments)),
		GeneratedAt: time.Now().UTC(),
	}
	// term -> unit percentages
	termPcts := make(map[string][]float64)
	var overall []float64

	for _, e := range enrolments {
		class, err := svc.schoolSvc.GetClass(ctx, e.ClassID)
		if err != nil {
			return AcademicRecord{}, errors.Wrap(err, "finding class")
		}
		units, err := svc.schoolSvc.QueryUnits(ctx, &school.UnitFilter{ClassID: class.ID})
		if err != nil {
			return AcademicRecord{}, errors.Wrap(err, "querying units")
		}

		cr := ClassRecord{
			ClassID:     class.ID,
			ClassName:   class.Name,
			ClassCode:   class.Code,
			AdmissionNo: e.AdmissionNo,
			Units:       make([]UnitRecord, len(units)),
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(recordConcurrency)
		for i, unit := range units {
			i, unit := i, unit
			g.Go(func() error {
				ur, byTerm, err := svc.unitRecord(gctx, unit, studentID, publishedOnly)
				if err != nil {
					return err
				}
				cr.Units[i] = ur

				mu.Lock()
				defer mu.Unlock()
				for term, pct := range byTerm {
					termPcts[term] = append(termPcts[term], pct)
				}
				if ur.Percentage != nil {
					overall = append(overall, *ur.Percentage)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return AcademicRecord{}, err
		}

		sort.SliceStable(cr.Units, func(i, j int) bool { return cr.Units[i].Code < cr.Units[j].Code })
		rec.Classes = append(rec.Classes, cr)
	}

	rec.Terms = make([]TermMean, 0, len(termPcts))
	for term, pcts := range termPcts {
		m := mean(pcts)
		rec.Terms = append(rec.Terms, TermMean{Term: term, Units: len(pcts), Mean: *m, Grade: svc.scale.Grade(*m).Grade})
	}
	sort.Slice(rec.Terms, func(i, j int) bool { return rec.Terms[i].Term < rec.Terms[j].Term })

	if rec.OverallMean = mean(overall); rec.OverallMean != nil {
		rec.Grade = svc.scale.Grade(*rec.OverallMean).Grade
	}
	return rec, nil
}

// unitRecord returns the record of one unit and its percentage per term.
func (svc *service) unitRecord(ctx context.Context, unit school.Unit, studentID string, publishedOnly bool) (UnitRecord, map[string]float64, error) {
	filter := &QueryFilter{UnitID: unit.ID}
	if publishedOnly {
		published := true
		filter.Published = &published
	}
	assessments, err := svc.repo.QueryAssessments(ctx, filter)
	if err != nil {
		return UnitRecord{}, nil, errors.Wrap(err, "querying assessments")
	}
	sortAssessments(assessments)

	ur := UnitRecord{
		UnitID:      unit.ID,
		Code:        unit.Code,
		Name:        unit.Name,
		Assessments: make([]AssessmentResult, 0, len(assessments)),
	}
	if len(assessments) == 0 {
		return ur, nil, nil
	}

	ids := make([]string, 0, len(assessments))
	for _, a := range assessments {
		ids = append(ids, a.ID)
	}
	marks, err := svc.repo.QueryMarks(ctx, MarkFilter{AssessmentIDs: ids, StudentID: studentID})
	if err != nil {
		return UnitRecord{}, nil, errors.Wrap(err, "querying marks")
	}
	scores := make(map[string]float64, len(marks))
	for _, m := range marks {
		if m.Score != nil {
			scores[m.AssessmentID] = *m.Score
		}
	}

	byTerm := make(map[string][]Assessment)
	for _, a := range assessments {
		res := AssessmentResult{
			AssessmentID: a.ID,
			Title:        a.Title,
			Kind:         a.Kind,
			Term:         a.Term,
			Date:         a.Date,
			MaxScore:     a.MaxScore,
			Weight:       a.Weight,
		}
		if score, ok := scores[a.ID]; ok {
			res.Score = &score
		}
		ur.Assessments = append(ur.Assessments, res)
		byTerm[a.Term] = append(byTerm[a.Term], a)
	}

	if pct, ok := unitPercentage(assessments, scores); ok {
		ur.Percentage = &pct
		ur.Grade = svc.scale.Grade(pct).Grade
	}
	termPct := make(map[string]float64, len(byTerm))
	for term, as := range byTerm {
		if pct, ok := unitPercentage(as, scores); ok {
			termPct[term] = pct
		}
	}
	return ur, termPct, nil
}
