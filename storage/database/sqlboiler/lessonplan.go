package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/lessonplan"
)

const lessonPlanColumns = `id, unit_id, trainer_id, title, topic, week, date, duration, objectives, activities, resources,
	assessment_method, notes, status, reviewer_id, review_comment, submitted_at, reviewed_at, created_at, updated_at`

type lessonPlanRow struct {
	ID               string      `boil:"id"`
	UnitID           string      `boil:"unit_id"`
	TrainerID        string      `boil:"trainer_id"`
	Title            string      `boil:"title"`
	Topic            string      `boil:"topic"`
	Week             int         `boil:"week"`
	Date             null.Time   `boil:"date"`
	Duration         int         `boil:"duration"`
	Objectives       string      `boil:"objectives"`
	Activities       string      `boil:"activities"`
	Resources        string      `boil:"resources"`
	AssessmentMethod string      `boil:"assessment_method"`
	Notes            string      `boil:"notes"`
	Status           string      `boil:"status"`
	ReviewerID       null.String `boil:"reviewer_id"`
	ReviewComment    string      `boil:"review_comment"`
	SubmittedAt      null.Time   `boil:"submitted_at"`
	ReviewedAt       null.Time   `boil:"reviewed_at"`
	CreatedAt        time.Time   `boil:"created_at"`
	UpdatedAt        time.Time   `boil:"updated_at"`
}

func nullTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func (r lessonPlanRow) unboil() lessonplan.LessonPlan {
	return lessonplan.LessonPlan{
		ID:               r.ID,
		UnitID:           r.UnitID,
		TrainerID:        r.TrainerID,
		Title:            r.Title,
		Topic:            r.Topic,
		Week:             r.Week,
		Date:             r.Date.Ptr(),
		Duration:         r.Duration,
		Objectives:       r.Objectives,
		Activities:       r.Activities,
		Resources:        r.Resources,
		AssessmentMethod: r.AssessmentMethod,
		Notes:            r.Notes,
		Status:           r.Status,
		ReviewerID:       r.ReviewerID.String,
		ReviewComment:    r.ReviewComment,
		SubmittedAt:      r.SubmittedAt.Ptr(),
		ReviewedAt:       r.ReviewedAt.Ptr(),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type lessonPlanRepository struct {
	repository
}

var _ lessonplan.Repository = (*lessonPlanRepository)(nil) // interface compliance check

func NewLessonPlanRepository(exec core.DBExecutor) lessonplan.Repository {
	return &lessonPlanRepository{repository{exec: exec}}
}

func (repo lessonPlanRepository) CreateLessonPlan(ctx context.Context, lp lessonplan.LessonPlan, exec ...core.DBExecutor) (lessonplan.LessonPlan, error) {
	if lp.ID == "" {
		lp.ID = uuid.New().String()
	}
	_, err := repo.execute(ctx, exec,
		`INSERT INTO lesson_plan (`+lessonPlanColumns+`) VALUES (`+placeholders(20)+`)`,
		lp.ID, lp.UnitID, lp.TrainerID, lp.Title, lp.Topic, lp.Week, nullTime(lp.Date), lp.Duration,
		lp.Objectives, lp.Activities, lp.Resources, lp.AssessmentMethod, lp.Notes, lp.Status,
		nullString(lp.ReviewerID), lp.ReviewComment, nullTime(lp.SubmittedAt), nullTime(lp.ReviewedAt),
		lp.CreatedAt.UTC(), lp.UpdatedAt.UTC())
	if err != nil {
		return lessonplan.LessonPlan{}, trapErr(err, nil, "inserting lesson plan")
	}
	return lp, nil
}

func (repo lessonPlanRepository) QueryLessonPlans(ctx context.Context, filter *lessonplan.QueryFilter, exec ...core.DBExecutor) ([]lessonplan.LessonPlan, error) {
	var w where
	if filter != nil {
		for _, id := range []string{filter.UnitID, filter.TrainerID} {
			if id != "" && !isUUID(id) {
				return []lessonplan.LessonPlan{}, nil
			}
		}
		if filter.UnitID != "" {
			w.add("unit_id = ?", filter.UnitID)
		}
		if filter.TrainerID != "" {
			w.add("trainer_id = ?", filter.TrainerID)
		}
		if filter.Status != "" {
			w.add("status = ?", filter.Status)
		}
		if filter.Week != 0 {
			w.add("week = ?", filter.Week)
		}
	}

	var rows []lessonPlanRow
	q := `SELECT ` + lessonPlanColumns + ` FROM lesson_plan` + w.String() + ` ORDER BY week, created_at, id`
	if err := repo.bind(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting lesson plans")
	}
	plans := make([]lessonplan.LessonPlan, 0, len(rows))
	for _, r := range rows {
		plans = append(plans, r.unboil())
	}
	return plans, nil
}

func (repo lessonPlanRepository) GetLessonPlan(ctx context.Context, id string, exec ...core.DBExecutor) (lessonplan.LessonPlan, error) {
	if !isUUID(id) {
		return lessonplan.LessonPlan{}, lessonplan.ErrNotFound
	}
	var row lessonPlanRow
	if err := repo.bind(ctx, exec, &row, `SELECT `+lessonPlanColumns+` FROM lesson_plan WHERE id = ?`, id); err != nil {
		return lessonplan.LessonPlan{}, trapErr(err, lessonplan.ErrNotFound, "selecting lesson plan")
	}
	return row.unboil(), nil
}

func (repo lessonPlanRepository) UpdateLessonPlan(ctx context.Context, lp lessonplan.LessonPlan, exec ...core.DBExecutor) (lessonplan.LessonPlan, error) {
	res, err := repo.execute(ctx, exec,
		`UPDATE lesson_plan SET title = ?, topic = ?, week = ?, date = ?, duration = ?, objectives = ?, activities = ?,
			resources = ?, assessment_method = ?, notes = ?, status = ?, reviewer_id = ?, review_comment = ?,
			submitted_at = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ?`,
		lp.Title, lp.Topic, lp.Week, nullTime(lp.Date), lp.Duration, lp.Objectives, lp.Activities,
		lp.Resources, lp.AssessmentMethod, lp.Notes, lp.Status, nullString(lp.ReviewerID), lp.ReviewComment,
		nullTime(lp.SubmittedAt), nullTime(lp.ReviewedAt), lp.UpdatedAt.UTC(), lp.ID)
	if err != nil {
		return lessonplan.LessonPlan{}, trapErr(err, nil, "updating lesson plan")
	}
	if err := checkAffected(res, lessonplan.ErrNotFound); err != nil {
		return lessonplan.LessonPlan{}, err
	}
	return lp, nil
}

func (repo lessonPlanRepository) DeleteLessonPlan(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !isUUID(id) {
		return lessonplan.ErrNotFound
	}
	res, err := repo.execute(ctx, exec, `DELETE FROM lesson_plan WHERE id = ?`, id)
	if err != nil {
		return trapErr(err, nil, "deleting lesson plan")
	}
	return checkAffected(res, lessonplan.ErrNotFound)
}
