package boiledrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assessment"
)

const (
	assessmentColumns = `id, unit_id, class_id, title, kind, max_score, weight, term, date, published, created_at, updated_at`
	markColumns       = `assessment_id, student_id, score, remarks, recorded_by, updated_at`
	evidenceColumns   = `id, student_id, unit_id, assessment_id, title, description, file_name, content_type, size,
		storage_path, status, feedback, verified_by, submitted_at, verified_at`
)

type assessmentRow struct {
	ID        string    `boil:"id"`
	UnitID    string    `boil:"unit_id"`
	ClassID   string    `boil:"class_id"`
	Title     string    `boil:"title"`
	Kind      string    `boil:"kind"`
	MaxScore  float64   `boil:"max_score"`
	Weight    float64   `boil:"weight"`
	Term      string    `boil:"term"`
	Date      time.Time `boil:"date"`
	Published bool      `boil:"published"`
	CreatedAt time.Time `boil:"created_at"`
	UpdatedAt time.Time `boil:"updated_at"`
}

type markRow struct {
	AssessmentID string       `boil:"assessment_id"`
	StudentID    string       `boil:"student_id"`
	Score        null.Float64 `boil:"score"`
	Remarks      string       `boil:"remarks"`
	RecordedBy   string       `boil:"recorded_by"`
	UpdatedAt    time.Time    `boil:"updated_at"`
}

func (r markRow) unboil() assessment.Mark {
	return assessment.Mark{
		AssessmentID: r.AssessmentID,
		StudentID:    r.StudentID,
		Score:        r.Score.Ptr(),
		Remarks:      r.Remarks,
		RecordedBy:   r.RecordedBy,
		UpdatedAt:    r.UpdatedAt,
	}
}

type evidenceRow struct {
	ID           string      `boil:"id"`
	StudentID    string      `boil:"student_id"`
	UnitID       string      `boil:"unit_id"`
	AssessmentID null.String `boil:"assessment_id"`
	Title        string      `boil:"title"`
	Description  string      `boil:"description"`
	FileName     string      `boil:"file_name"`
	ContentType  string      `boil:"content_type"`
	Size         int64       `boil:"size"`
	StoragePath  string      `boil:"storage_path"`
	Status       string      `boil:"status"`
	Feedback     string      `boil:"feedback"`
	VerifiedBy   null.String `boil:"verified_by"`
	SubmittedAt  time.Time   `boil:"submitted_at"`
	VerifiedAt   null.Time   `boil:"verified_at"`
}

func (r evidenceRow) unboil() assessment.Evidence {
	return assessment.Evidence{
		ID:           r.ID,
		StudentID:    r.StudentID,
		UnitID:       r.UnitID,
		AssessmentID: r.AssessmentID.String,
		Title:        r.Title,
		Description:  r.Description,
		FileName:     r.FileName,
		ContentType:  r.ContentType,
		Size:         r.Size,
		StoragePath:  r.StoragePath,
		Status:       r.Status,
		Feedback:     r.Feedback,
		VerifiedBy:   r.VerifiedBy.String,
		SubmittedAt:  r.SubmittedAt,
		VerifiedAt:   r.VerifiedAt.Ptr(),
	}
}

type assessmentRepository struct {
	repository
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(exec core.DBExecutor) assessment.Repository {
	return &assessmentRepository{repository{exec: exec}}
}

func (repo assessmentRepository) CreateAssessment(ctx context.Context, a assessment.Assessment, exec ...core.DBExecutor) (assessment.Assessment, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := repo.execute(ctx, exec,
		`INSERT INTO assessment (`+assessmentColumns+`) VALUES (`+placeholders(12)+`)`,
		a.ID, a.UnitID, a.ClassID, a.Title, a.Kind, a.MaxScore, a.Weight, a.Term, a.Date.UTC(), a.Published,
		a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return assessment.Assessment{}, trapErr(err, nil, "inserting assessment")
	}
	return a, nil
}

func (repo assessmentRepository) QueryAssessments(ctx context.Context, filter *assessment.QueryFilter, exec ...core.DBExecutor) ([]assessment.Assessment, error) {
	var w where
	if filter != nil {
		for _, id := range []string{filter.UnitID, filter.ClassID} {
			if id != "" && !isUUID(id) {
				return []assessment.Assessment{}, nil
			}
		}
		if filter.UnitID != "" {
			w.add("unit_id = ?", filter.UnitID)
		}
		if filter.ClassID != "" {
			w.add("class_id = ?", filter.ClassID)
		}
		if filter.Term != "" {
			w.add("term = ?", filter.Term)
		}
		if filter.Kind != "" {
			w.add("kind = ?", filter.Kind)
		}
		if filter.Published != nil {
			w.add("published = ?", *filter.Published)
		}
		if filter.UnitIDs != nil {
			ids := uuids(filter.UnitIDs)
			if len(ids) == 0 {
				return []assessment.Assessment{}, nil
			}
			w.add("unit_id IN (?)", ids)
		}
	}

	var rows []assessmentRow
	q := `SELECT ` + assessmentColumns + ` FROM assessment` + w.String() + ` ORDER BY date, title, id`
	if err := repo.bind(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting assessments")
	}
	as := make([]assessment.Assessment, 0, len(rows))
	for _, r := range rows {
		as = append(as, assessment.Assessment(r))
	}
	return as, nil
}

func (repo assessmentRepository) GetAssessment(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Assessment, error) {
	if !isUUID(id) {
		return assessment.Assessment{}, assessment.ErrNotFound
	}
	var row assessmentRow
	if err := repo.bind(ctx, exec, &row, `SELECT `+assessmentColumns+` FROM assessment WHERE id = ?`, id); err != nil {
		return assessment.Assessment{}, trapErr(err, assessment.ErrNotFound, "selecting assessment")
	}
	return assessment.Assessment(row), nil
}

func (repo assessmentRepository) UpdateAssessment(ctx context.Context, a assessment.Assessment, exec ...core.DBExecutor) (assessment.Assessment, error) {
	res, err := repo.execute(ctx, exec,
		`UPDATE assessment SET title = ?, kind = ?, max_score = ?, weight = ?, term = ?, date = ?, published = ?, updated_at = ?
		WHERE id = ?`,
		a.Title, a.Kind, a.MaxScore, a.Weight, a.Term, a.Date.UTC(), a.Published, a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return assessment.Assessment{}, trapErr(err, nil, "updating assessment")
	}
	if err := checkAffected(res, assessment.ErrNotFound); err != nil {
		return assessment.Assessment{}, err
	}
	return a, nil
}

// DeleteAssessment drops the assessment marks with it (ON DELETE CASCADE).
func (repo assessmentRepository) DeleteAssessment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return assessment.ErrNotFound
	}
	res, err := repo.execute(ctx, exec, `DELETE FROM assessment WHERE id = ?`, id)
	if err != nil {
		return trapErr(err, nil, "deleting assessment")
	}
	return checkAffected(res, assessment.ErrNotFound)
}

func (repo assessmentRepository) UpsertMarks(ctx context.Context, marks []assessment.Mark, exec ...core.DBExecutor) error {
	if len(marks) == 0 {
		return nil
	}
	values := make([]string, 0, len(marks))
	args := make([]interface{}, 0, len(marks)*6)
	for _, m := range marks {
		values = append(values, "("+placeholders(6)+")")
		args = append(args, m.AssessmentID, m.StudentID, null.Float64FromPtr(m.Score), m.Remarks, m.RecordedBy, m.UpdatedAt.UTC())
	}
	q := `INSERT INTO mark (` + markColumns + `) VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (assessment_id, student_id) DO UPDATE SET
			score = EXCLUDED.score, remarks = EXCLUDED.remarks,
			recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at`
	if _, err := repo.execute(ctx, exec, q, args...); err != nil {
		return trapErr(err, nil, "upserting marks")
	}
	return nil
}

func (repo assessmentRepository) QueryMarks(ctx context.Context, filter assessment.MarkFilter, exec ...core.DBExecutor) ([]assessment.Mark, error) {
	var w where
	if filter.AssessmentIDs != nil {
		ids := uuids(filter.AssessmentIDs)
		if len(ids) == 0 {
			return []assessment.Mark{}, nil
		}
		w.add("assessment_id IN (?)", ids)
	}
	if filter.StudentID != "" {
		if !isUUID(filter.StudentID) {
			return []assessment.Mark{}, nil
		}
		w.add("student_id = ?", filter.StudentID)
	}

	var rows []markRow
	q := `SELECT ` + markColumns + ` FROM mark` + w.String() + ` ORDER BY assessment_id, student_id`
	if err := repo.bind(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting marks")
	}
	marks := make([]assessment.Mark, 0, len(rows))
	for _, r := range rows {
		marks = append(marks, r.unboil())
	}
	return marks, nil
}

func (repo assessmentRepository) CreateEvidence(ctx context.Context, ev assessment.Evidence, exec ...core.DBExecutor) (assessment.Evidence, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err := repo.execute(ctx, exec,
		`INSERT INTO evidence (`+evidenceColumns+`) VALUES (`+placeholders(15)+`)`,
		ev.ID, ev.StudentID, ev.UnitID, nullString(ev.AssessmentID), ev.Title, ev.Description, ev.FileName,
		ev.ContentType, ev.Size, ev.StoragePath, ev.Status, ev.Feedback, nullString(ev.VerifiedBy),
		ev.SubmittedAt.UTC(), nullTime(ev.VerifiedAt))
	if err != nil {
		return assessment.Evidence{}, trapErr(err, nil, "inserting evidence")
	}
	return ev, nil
}

func (repo assessmentRepository) QueryEvidence(ctx context.Context, filter *assessment.EvidenceFilter, exec ...core.DBExecutor) ([]assessment.Evidence, error) {
	var w where
	if filter != nil {
		for _, id := range []string{filter.StudentID, filter.UnitID, filter.AssessmentID} {
			if id != "" && !isUUID(id) {
				return []assessment.Evidence{}, nil
			}
		}
		if filter.StudentID != "" {
			w.add("student_id = ?", filter.StudentID)
		}
		if filter.UnitID != "" {
			w.add("unit_id = ?", filter.UnitID)
		}
		if filter.AssessmentID != "" {
			w.add("assessment_id = ?", filter.AssessmentID)
		}
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
		if filter.UnitIDs != nil {
			ids := uuids(filter.UnitIDs)
			if len(ids) == 0 {
				return []assessment.Evidence{}, nil
			}
			w.add("unit_id IN (?)", ids)
		}
	}

	var rows []evidenceRow
	q := `SELECT ` + evidenceColumns + ` FROM evidence` + w.String() + ` ORDER BY submitted_at DESC, id`
	if err := repo.bind(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting evidence")
	}
	evs := make([]assessment.Evidence, 0, len(rows))
	for _, r := range rows {
		evs = append(evs, r.unboil())
	}
	return evs, nil
}

func (repo assessmentRepository) GetEvidence(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Evidence, error) {
	if !isUUID(id) {
		return assessment.Evidence{}, assessment.ErrEvidenceNotFound
	}
	var row evidenceRow
	if err := repo.bind(ctx, exec, &row, `SELECT `+evidenceColumns+` FROM evidence WHERE id = ?`, id); err != nil {
		return assessment.Evidence{}, trapErr(err, assessment.ErrEvidenceNotFound, "selecting evidence")
	}
	return row.unboil(), nil
}

func (repo assessmentRepository) UpdateEvidence(ctx context.Context, ev assessment.Evidence, exec ...core.DBExecutor) (assessment.Evidence, error) {
	res, err := repo.execute(ctx, exec,
		`UPDATE evidence SET title = ?, description = ?, status = ?, feedback = ?, verified_by = ?, verified_at = ? WHERE id = ?`,
		ev.Title, ev.Description, ev.Status, ev.Feedback, nullString(ev.VerifiedBy), nullTime(ev.VerifiedAt), ev.ID)
	if err != nil {
		return assessment.Evidence{}, trapErr(err, nil, "updating evidence")
	}
	if err := checkAffected(res, assessment.ErrEvidenceNotFound); err != nil {
		return assessment.Evidence{}, err
	}
	return ev, nil
}
