package lessonplan

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/teachhub/backend/core"
)

// Statuses
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

var (
	planStatusTag  = "plan_status"
	planStatusText = "must be one of draft, submitted, approved or rejected"

	reviewDecisionTag  = "review_decision"
	reviewDecisionText = "must be one of approved or rejected"

	rejectCommentTag  = "reject_comment"
	rejectCommentText = "a comment is required when rejecting a lesson plan"
)

// InitValidators registers the lesson plan validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, planStatusTag, planStatusText, StatusDraft, StatusSubmitted, StatusApproved, StatusRejected)
	core.RegisterOneOf(validate, translator, reviewDecisionTag, reviewDecisionText, StatusApproved, StatusRejected)
	validate.RegisterStructValidation(reviewStructValidation, Review{})
	core.RegisterCustomTranslation(validate, translator, rejectCommentTag, rejectCommentText)
}

type LessonPlan struct {
	ID               string     `json:"id"`
	UnitID           string     `json:"unit_id"`
	TrainerID        string     `json:"trainer_id"`
	Title            string     `json:"title"`
	Topic            string     `json:"topic"`
	Week             int        `json:"week"`
	Date             *time.Time `json:"date"`
	Duration         int        `json:"duration"` // minutes
	Objectives       string     `json:"objectives"`
	Activities       string     `json:"activities"`
	Resources        string     `json:"resources"`
	AssessmentMethod string     `json:"assessment_method"`
	Notes            string     `json:"notes"`
	Status           string     `json:"status"`
	ReviewerID       string     `json:"reviewer_id"`
	ReviewComment    string     `json:"review_comment"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	ReviewedAt       *time.Time `json:"reviewed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsEditable reports whether the owner may still change the plan.
func (lp LessonPlan) IsEditable() bool {
	return lp.Status == StatusDraft || lp.Status == StatusRejected
}

type NewLessonPlan struct {
	UnitID           string     `json:"unit_id" validate:"required,uuid"`
	Title            string     `json:"title" validate:"required,max=200"`
	Topic            string     `json:"topic" validate:"required,max=200"`
	Week             int        `json:"week" validate:"min=0,max=60"`
	Date             *time.Time `json:"date"`
	Duration         int        `json:"duration" validate:"required,min=1,max=600"`
	Objectives       string     `json:"objectives"`
	Activities       string     `json:"activities"`
	Resources        string     `json:"resources"`
	AssessmentMethod string     `json:"assessment_method"`
	Notes            string     `json:"notes"`
}

func (np *NewLessonPlan) Validate(validate *validator.Validate) error {
	np.UnitID = core.CleanString(np.UnitID)
	np.Title = core.CleanString(np.Title)
	np.Topic = core.CleanString(np.Topic)
	return validate.Struct(np)
}

type UpdateLessonPlan struct {
	Title            string     `json:"title" validate:"max=200"`
	Topic            string     `json:"topic" validate:"max=200"`
	Week             *int       `json:"week" validate:"omitempty,min=0,max=60"`
	Date             *time.Time `json:"date"`
	Duration         int        `json:"duration" validate:"omitempty,min=1,max=600"`
	Objectives       *string    `json:"objectives"`
	Activities       *string    `json:"activities"`
	Resources        *string    `json:"resources"`
	AssessmentMethod *string    `json:"assessment_method"`
	Notes            *string    `json:"notes"`
}

func (up *UpdateLessonPlan) Validate(validate *validator.Validate) error {
	up.Title = core.CleanString(up.Title)
	up.Topic = core.CleanString(up.Topic)
	return validate.Struct(up)
}

// apply copies the provided fields onto lp.
func (up UpdateLessonPlan) apply(lp *LessonPlan) {
	if up.Title != "" {
		lp.Title = up.Title
	}
	if up.Topic != "" {
		lp.Topic = up.Topic
	}
	if up.Week != nil {
		lp.Week = *up.Week
	}
	if up.Date != nil {
		lp.Date = up.Date
	}
	if up.Duration != 0 {
		lp.Duration = up.Duration
	}
	if up.Objectives != nil {
		lp.Objectives = *up.Objectives
	}
	if up.Activities != nil {
		lp.Activities = *up.Activities
	}
	if up.Resources != nil {
		lp.Resources = *up.Resources
	}
	if up.AssessmentMethod != nil {
		lp.AssessmentMethod = *up.AssessmentMethod
	}
	if up.Notes != nil {
		lp.Notes = *up.Notes
	}
}

type Review struct {
	Decision string `json:"decision" validate:"required,review_decision"`
	Comment  string `json:"comment" validate:"max=2000"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Decision = core.CleanString(r.Decision, true /* lower */)
	r.Comment = core.CleanString(r.Comment)
	return validate.Struct(r)
}

func reviewStructValidation(sl validator.StructLevel) {
	r := sl.Current().Interface().(Review)
	if r.Decision == StatusRejected && r.Comment == "" {
		sl.ReportError(r.Comment, "comment", "Comment", rejectCommentTag, "")
	}
}

type QueryFilter struct {
	UnitID    string `query:"unit"`
	TrainerID string `query:"trainer"`
	Status    string `query:"status"`
	Week      int    `query:"week"`
}

func (qf *QueryFilter) Clean() {
	qf.UnitID = core.CleanString(qf.UnitID)
	qf.TrainerID = core.CleanString(qf.TrainerID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
