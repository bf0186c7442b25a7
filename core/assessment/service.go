package assessment

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("assessment not found")
	ErrEvidenceNotFound  = core.NewNotFoundError("evidence not found")
	ErrWeightExceeded    = errors.New("the weights of a unit's assessments cannot exceed 100")
	ErrScoreOutOfRange   = errors.New("score must be between 0 and the assessment max score")
	ErrNotEnrolled       = errors.New("student is not enrolled in the class")
	ErrDuplicateStudent  = errors.New("student appears more than once")
	ErrMaxScoreTooLow    = errors.New("max score is lower than recorded marks")
	ErrEvidenceTooLarge  = fmt.Errorf("evidence files cannot exceed %d MiB", MaxEvidenceSize>>20)
	ErrEvidenceReviewed  = errors.New("evidence has already been reviewed")
	ErrAssessmentNotUnit = errors.New("assessment does not belong to the unit")

	errNotUnitTrainer = "only the trainer of the unit may do this"
)

type (
	Repository interface {
		CreateAssessment(ctx context.Context, a Assessment, exec ...core.DBExecutor) (Assessment, error)
		QueryAssessments(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Assessment, error)
		GetAssessment(ctx context.Context, id string, exec ...core.DBExecutor) (Assessment, error)
		UpdateAssessment(ctx context.Context, a Assessment, exec ...core.DBExecutor) (Assessment, error)
		DeleteAssessment(ctx context.Context, id string, exec ...core.DBExecutor) error

		// UpsertMarks inserts marks or replaces those of the same (assessment, student).
		UpsertMarks(ctx context.Context, marks []Mark, exec ...core.DBExecutor) error
		QueryMarks(ctx context.Context, filter MarkFilter, exec ...core.DBExecutor) ([]Mark, error)

		// CreateEvidence keeps a preset Evidence.ID.
		CreateEvidence(ctx context.Context, ev Evidence, exec ...core.DBExecutor) (Evidence, error)
		QueryEvidence(ctx context.Context, filter *EvidenceFilter, exec ...core.DBExecutor) ([]Evidence, error)
		GetEvidence(ctx context.Context, id string, exec ...core.DBExecutor) (Evidence, error)
		UpdateEvidence(ctx context.Context, ev Evidence, exec ...core.DBExecutor) (Evidence, error)
	}

	// MarksheetCache holds built marksheets until a mark, an assessment or the roster of their class changes.
	// Get returns a version to pass to Set; Set drops the marksheet when an invalidation happened since.
	MarksheetCache interface {
		Get(classID, unitID string) (Marksheet, uint64, bool)
		Set(ms Marksheet, version uint64) bool
		Invalidate(classID, unitID string)
	}

	// BlobStore stores evidence files.
	BlobStore interface {
		Put(ctx context.Context, path, contentType string, r io.Reader) (int64, error)
		Open(ctx context.Context, path string) (io.ReadCloser, error)
		Delete(ctx context.Context, path string) error
	}

	Service interface {
		Create(ctx context.Context, actor user.User, na NewAssessment) (Assessment, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter) ([]Assessment, error)
		Get(ctx context.Context, id string) (Assessment, error)
		Update(ctx context.Context, actor user.User, a Assessment, ua UpdateAssessment) (Assessment, error)
		Delete(ctx context.Context, actor user.User, a Assessment) error
		RecordMarks(ctx context.Context, actor user.User, a Assessment, rm RecordMarks) ([]Mark, error)
		Marks(ctx context.Context, a Assessment) ([]Mark, error)

		Marksheet(ctx context.Context, actor user.User, classID, unitID string) (Marksheet, error)
		AcademicRecord(ctx context.Context, actor user.User, studentID string) (AcademicRecord, error)
		GradingScale() GradingScale

		SubmitEvidence(ctx context.Context, actor user.User, ne NewEvidence, file File) (Evidence, error)
		QueryEvidence(ctx context.Context, actor user.User, filter *EvidenceFilter) ([]Evidence, error)
		GetEvidence(ctx context.Context, id string) (Evidence, error)
		VerifyEvidence(ctx context.Context, actor user.User, ev Evidence, v Verification) (Evidence, error)
		OpenEvidence(ctx context.Context, actor user.User, ev Evidence) (io.ReadCloser, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		schoolSvc school.Service
		usrSvc    user.Service
		cache     MarksheetCache
		blobs     BlobStore
		scale     GradingScale
		logger    core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

// NewService returns an assessment Service. db may be nil for in-memory repositories.
func NewService(
	db core.DB,
	repo Repository,
	schoolSvc school.Service,
	usrSvc user.Service,
	cache MarksheetCache,
	blobs BlobStore,
	logger core.Logger,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(schoolSvc, "schoolSvc"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(cache, "cache"),
		vala.IsNotNil(blobs, "blobs"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		db:        db,
		repo:      repo,
		schoolSvc: schoolSvc,
		usrSvc:    usrSvc,
		cache:     cache,
		blobs:     blobs,
		scale:     DefaultScale,
		logger:    logger,
	}
}

func (svc *service) GradingScale() GradingScale { return svc.scale }

// teachableUnit returns the unit actor may manage assessments of.
func (svc *service) teachableUnit(ctx context.Context, actor user.User, unitID string) (school.Unit, error) {
	unit, err := svc.schoolSvc.GetUnit(ctx, unitID)
	if err != nil {
		return school.Unit{}, err
	}
	if !svc.schoolSvc.CanTeach(actor, unit) {
		return school.Unit{}, core.NewPermissionError(errNotUnitTrainer)
	}
	return unit, nil
}

// checkWeights fails when the unit's weights would exceed 100 with a weighing weight.
func (svc *service) checkWeights(ctx context.Context, a Assessment, exec core.DBExecutor) error {
	others, err := svc.repo.QueryAssessments(ctx, &QueryFilter{UnitID: a.UnitID}, exec)
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	total := a.Weight
	for _, o := range others {
		if o.ID != a.ID {
			total += o.Weight
		}
	}
	if total > 100+1e-9 {
		return core.NewValidationError(ErrWeightExceeded, core.FieldError{
			Field: "weight",
			Error: fmt.Sprintf("%s (would be %g)", ErrWeightExceeded.Error(), total),
		})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, actor user.User, na NewAssessment) (Assessment, error) {
	unit, err := svc.teachableUnit(ctx, actor, na.UnitID)
	if err != nil {
		if core.IsNotFound(err) {
			return Assessment{}, core.NewValidationError(err, core.FieldError{Field: "unit_id", Error: err.Error()})
		}
		return Assessment{}, err
	}

	now := time.Now().UTC()
	a := Assessment{
		UnitID:    unit.ID,
		ClassID:   unit.ClassID,
		Title:     na.Title,
		Kind:      na.Kind,
		MaxScore:  na.MaxScore,
		Weight:    na.Weight,
		Term:      na.Term,
		Date:      na.Date.UTC(),
		Published: na.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var created Assessment
	err = core.RunInSerializableTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if err := svc.checkWeights(ctx, a, exec); err != nil {
			return err
		}
		var err error
		created, err = svc.repo.CreateAssessment(ctx, a, exec)
		return err
	})
	if err != nil {
		return Assessment{}, err
	}
	a = created
	svc.cache.Invalidate(a.ClassID, a.UnitID)
	return a, nil
}

// Query lists assessments; students only see published assessments of the classes they attend.
func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter) ([]Assessment, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !actor.IsAdmin() && !actor.IsTrainer() {
		enrolments, err := svc.schoolSvc.StudentEnrolments(ctx, actor.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying enrolments")
		}
		published := true
		filter.Published = &published

		var assessments []Assessment
		for _, e := range enrolments {
			if filter.ClassID != "" && filter.ClassID != e.ClassID {
				continue
			}
			f := *filter
			f.ClassID = e.ClassID
			as, err := svc.repo.QueryAssessments(ctx, &f)
			if err != nil {
				return nil, errors.Wrap(err, "querying assessments")
			}
			assessments = append(assessments, as...)
		}
		return assessments, nil
	}
	return svc.repo.QueryAssessments(ctx, filter)
}

func (svc *service) Get(ctx context.Context, id string) (Assessment, error) {
	return svc.repo.GetAssessment(ctx, id)
}

func (svc *service) Update(ctx context.Context, actor user.User, a Assessment, ua UpdateAssessment) (Assessment, error) {
	if _, err := svc.teachableUnit(ctx, actor, a.UnitID); err != nil {
		return Assessment{}, err
	}
	ua.apply(&a)
	a.UpdatedAt = time.Now().UTC()

	var updated Assessment
	err := core.RunInSerializableTx(ctx, svc.db, func(exec core.DBExecutor) error {
		if err := svc.checkWeights(ctx, a, exec); err != nil {
			return err
		}
		if ua.MaxScore != 0 {
			marks, err := svc.repo.QueryMarks(ctx, MarkFilter{AssessmentIDs: []string{a.ID}}, exec)
			if err != nil {
				return errors.Wrap(err, "querying marks")
			}
			for _, m := range marks {
				if m.Score != nil && *m.Score > a.MaxScore {
					return core.NewValidationError(ErrMaxScoreTooLow, core.FieldError{Field: "max_score", Error: ErrMaxScoreTooLow.Error()})
				}
			}
		}
		var err error
		updated, err = svc.repo.UpdateAssessment(ctx, a, exec)
		return err
	})
	if err != nil {
		return Assessment{}, err
	}
	a = updated
	svc.cache.Invalidate(a.ClassID, a.UnitID)
	return a, nil
}

func (svc *service) Delete(ctx context.Context, actor user.User, a Assessment) error {
	if _, err := svc.teachableUnit(ctx, actor, a.UnitID); err != nil {
		return err
	}
	if err := svc.repo.DeleteAssessment(ctx, a.ID); err != nil {
		return err
	}
	svc.cache.Invalidate(a.ClassID, a.UnitID)
	return nil
}

func (svc *service) RecordMarks(ctx context.Context, actor user.User, a Assessment, rm RecordMarks) ([]Mark, error) {
	if _, err := svc.teachableUnit(ctx, actor, a.UnitID); err != nil {
		return nil, err
	}

	roster, err := svc.schoolSvc.ClassList(ctx, a.ClassID)
	if err != nil {
		return nil, errors.Wrap(err, "getting class list")
	}
	enrolled := make(map[string]bool, len(roster))
	for _, e := range roster {
		enrolled[e.StudentID] = true
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(rm.Marks))
	marks := make([]Mark, 0, len(rm.Marks))
	var fldErrs []core.FieldError
	for i, entry := range rm.Marks {
		fld := fmt.Sprintf("marks[%d]", i)
		switch {
		case seen[entry.StudentID]:
			fldErrs = append(fldErrs, core.FieldError{Field: fld + ".student_id", Error: ErrDuplicateStudent.Error()})
		case !enrolled[entry.StudentID]:
			fldErrs = append(fldErrs, core.FieldError{Field: fld + ".student_id", Error: ErrNotEnrolled.Error()})
		case entry.Score != nil && (*entry.Score < 0 || *entry.Score > a.MaxScore):
			fldErrs = append(fldErrs, core.FieldError{Field: fld + ".score", Error: ErrScoreOutOfRange.Error()})
		}
		seen[entry.StudentID] = true
		marks = append(marks, Mark{
			AssessmentID: a.ID,
			StudentID:    entry.StudentID,
			Score:        entry.Score,
			Remarks:      entry.Remarks,
			RecordedBy:   actor.ID,
			UpdatedAt:    now,
		})
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	err = core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		return svc.repo.UpsertMarks(ctx, marks, exec)
	})
	if err != nil {
		return nil, errors.Wrap(err, "saving marks")
	}
	svc.cache.Invalidate(a.ClassID, a.UnitID)
	return marks, nil
}

func (svc *service) Marks(ctx context.Context, a Assessment) ([]Mark, error) {
	return svc.repo.QueryMarks(ctx, MarkFilter{AssessmentIDs: []string{a.ID}})
}

// Marksheet builds, or reads from the cache, the marksheet of a unit of a class.
func (svc *service) Marksheet(ctx context.Context, actor user.User, classID, unitID string) (Marksheet, error) {
	unit, err := svc.schoolSvc.GetUnit(ctx, unitID)
	if err != nil {
		return Marksheet{}, err
	}
	if unit.ClassID != classID {
		return Marksheet{}, school.ErrUnitNotFound
	}
	canView, err := svc.schoolSvc.CanViewClassList(ctx, actor, classID)
	if err != nil {
		return Marksheet{}, err
	}
	if !canView {
		return Marksheet{}, core.NewPermissionError("you cannot view this marksheet")
	}

	cached, version, ok := svc.cache.Get(classID, unitID)
	if ok {
		return cached, nil
	}

	roster, err := svc.schoolSvc.ClassList(ctx, classID)
	if err != nil {
		return Marksheet{}, errors.Wrap(err, "getting class list")
	}
	students := make([]Student, 0, len(roster))
	for _, e := range roster {
		students = append(students, Student{ID: e.StudentID, AdmissionNo: e.AdmissionNo, Name: e.Name})
	}

	assessments, err := svc.repo.QueryAssessments(ctx, &QueryFilter{UnitID: unitID, ClassID: classID})
	if err != nil {
		return Marksheet{}, errors.Wrap(err, "querying assessments")
	}
	var marks []Mark
	if len(assessments) > 0 {
		ids := make([]string, 0, len(assessments))
		for _, a := range assessments {
			ids = append(ids, a.ID)
		}
		marks, err = svc.repo.QueryMarks(ctx, MarkFilter{AssessmentIDs: ids})
		if err != nil {
			return Marksheet{}, errors.Wrap(err, "querying marks")
		}
	}

	ms := BuildMarksheet(classID, unitID, students, assessments, marks, svc.scale)
	svc.cache.Set(ms, version)
	return ms, nil
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := math.Round(sum/float64(len(values))*100) / 100
	return &m
}
