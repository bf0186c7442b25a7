package lessonplan

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/user"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("lesson plan not found")
	ErrNotEditable   = errors.New("only draft or rejected lesson plans can be changed")
	ErrNotSubmitted  = errors.New("only submitted lesson plans can be reviewed")
	ErrNotDraft      = errors.New("only draft lesson plans can be deleted")
	errNotUnitTeach  = "only the trainer of the unit may write its lesson plans"
	errNotPlanOwner  = "only the owner of the lesson plan may change it"
	errSelfReviewing = "trainers cannot review their own lesson plans"
)

type (
	Repository interface {
		CreateLessonPlan(ctx context.Context, lp LessonPlan, exec ...core.DBExecutor) (LessonPlan, error)
		QueryLessonPlans(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]LessonPlan, error)
		GetLessonPlan(ctx context.Context, id string, exec ...core.DBExecutor) (LessonPlan, error)
		UpdateLessonPlan(ctx context.Context, lp LessonPlan, exec ...core.DBExecutor) (LessonPlan, error)
		DeleteLessonPlan(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, actor user.User, np NewLessonPlan) (LessonPlan, error)
		Query(ctx context.Context, filter *QueryFilter) ([]LessonPlan, error)
		Get(ctx context.Context, id string) (LessonPlan, error)
		Update(ctx context.Context, actor user.User, lp LessonPlan, up UpdateLessonPlan) (LessonPlan, error)
		Submit(ctx context.Context, actor user.User, lp LessonPlan) (LessonPlan, error)
		Review(ctx context.Context, actor user.User, lp LessonPlan, review Review) (LessonPlan, error)
		Delete(ctx context.Context, actor user.User, lp LessonPlan) error
		// AttachNotes stores generated lesson notes on an editable plan.
		AttachNotes(ctx context.Context, actor user.User, lp LessonPlan, notes string) (LessonPlan, error)
		// CanView reports whether actor may read lp.
		CanView(actor user.User, lp LessonPlan) bool
	}

	service struct {
		repo      Repository
		schoolSvc school.Service
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, schoolSvc school.Service) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(schoolSvc, "schoolSvc"),
	).CheckAndPanic()

	return &service{repo: repo, schoolSvc: schoolSvc}
}

func (svc *service) Create(ctx context.Context, actor user.User, np NewLessonPlan) (LessonPlan, error) {
	unit, err := svc.schoolSvc.GetUnit(ctx, np.UnitID)
	if err != nil {
		if core.IsNotFound(err) {
			return LessonPlan{}, core.NewValidationError(err, core.FieldError{Field: "unit_id", Error: err.Error()})
		}
		return LessonPlan{}, errors.Wrap(err, "finding unit")
	}
	if !actor.IsTrainer() || unit.TrainerID != actor.ID {
		return LessonPlan{}, core.NewPermissionError(errNotUnitTeach)
	}

	now := time.Now().UTC()
	return svc.repo.CreateLessonPlan(ctx, LessonPlan{
		UnitID:           unit.ID,
		TrainerID:        actor.ID,
		Title:            np.Title,
		Topic:            np.Topic,
		Week:             np.Week,
		Date:             np.Date,
		Duration:         np.Duration,
		Objectives:       np.Objectives,
		Activities:       np.Activities,
		Resources:        np.Resources,
		AssessmentMethod: np.AssessmentMethod,
		Notes:            np.Notes,
		Status:           StatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]LessonPlan, error) {
	return svc.repo.QueryLessonPlans(ctx, filter)
}

func (svc *service) Get(ctx context.Context, id string) (LessonPlan, error) {
	return svc.repo.GetLessonPlan(ctx, id)
}

func (svc *service) checkOwnerAndEditable(actor user.User, lp LessonPlan) error {
	if lp.TrainerID != actor.ID {
		return core.NewPermissionError(errNotPlanOwner)
	}
	if !lp.IsEditable() {
		return core.NewValidationError(ErrNotEditable)
	}
	return nil
}

func (svc *service) Update(ctx context.Context, actor user.User, lp LessonPlan, up UpdateLessonPlan) (LessonPlan, error) {
	if err := svc.checkOwnerAndEditable(actor, lp); err != nil {
		return LessonPlan{}, err
	}
	up.apply(&lp)
	lp.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLessonPlan(ctx, lp)
}

func (svc *service) Submit(ctx context.Context, actor user.User, lp LessonPlan) (LessonPlan, error) {
	if err := svc.checkOwnerAndEditable(actor, lp); err != nil {
		return LessonPlan{}, err
	}
	now := time.Now().UTC()
	lp.Status = StatusSubmitted
	lp.SubmittedAt = &now
	lp.UpdatedAt = now
	return svc.repo.UpdateLessonPlan(ctx, lp)
}

func (svc *service) Review(ctx context.Context, actor user.User, lp LessonPlan, review Review) (LessonPlan, error) {
	if !actor.IsAdmin() {
		return LessonPlan{}, core.NewPermissionError("only admins may review lesson plans")
	}
	if lp.TrainerID == actor.ID {
		return LessonPlan{}, core.NewPermissionError(errSelfReviewing)
	}
	if lp.Status != StatusSubmitted {
		return LessonPlan{}, core.NewValidationError(ErrNotSubmitted)
	}
	now := time.Now().UTC()
	lp.Status = review.Decision
	lp.ReviewerID = actor.ID
	lp.ReviewComment = review.Comment
	lp.ReviewedAt = &now
	lp.UpdatedAt = now
	return svc.repo.UpdateLessonPlan(ctx, lp)
}

func (svc *service) Delete(ctx context.Context, actor user.User, lp LessonPlan) error {
	if lp.TrainerID != actor.ID {
		return core.NewPermissionError(errNotPlanOwner)
	}
	if lp.Status != StatusDraft {
		return core.NewValidationError(ErrNotDraft)
	}
	return svc.repo.DeleteLessonPlan(ctx, lp.ID)
}

func (svc *service) AttachNotes(ctx context.Context, actor user.User, lp LessonPlan, notes string) (LessonPlan, error) {
	if err := svc.checkOwnerAndEditable(actor, lp); err != nil {
		return LessonPlan{}, err
	}
	lp.Notes = notes
	lp.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateLessonPlan(ctx, lp)
}

func (svc *service) CanView(actor user.User, lp LessonPlan) bool {
	return actor.IsAdmin() || lp.TrainerID == actor.ID
}
