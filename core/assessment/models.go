package assessment

import (
	"io"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/teachhub/backend/core"
)

// Assessment kinds
const (
	KindCAT        = "cat"
	KindAssignment = "assignment"
	KindPractical  = "practical"
	KindExam       = "exam"
)

// Evidence statuses
const (
	EvidenceSubmitted = "submitted"
	EvidenceVerified  = "verified"
	EvidenceRejected  = "rejected"
)

// MaxEvidenceSize is the largest accepted evidence file, in bytes.
const MaxEvidenceSize = 10 << 20

var (
	Kinds = []string{KindCAT, KindAssignment, KindPractical, KindExam}

	assessmentKindTag  = "assessment_kind"
	assessmentKindText = "must be one of cat, assignment, practical or exam"

	verificationTag  = "evidence_decision"
	verificationText = "must be one of verified or rejected"

	feedbackTag  = "reject_feedback"
	feedbackText = "feedback is required when rejecting evidence"
)

// InitValidators registers the assessment validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, assessmentKindTag, assessmentKindText, Kinds...)
	core.RegisterOneOf(validate, translator, verificationTag, verificationText, EvidenceVerified, EvidenceRejected)
	validate.RegisterStructValidation(verificationStructValidation, Verification{})
	core.RegisterCustomTranslation(validate, translator, feedbackTag, feedbackText)
}

type Assessment struct {
	ID        string    `json:"id"`
	UnitID    string    `json:"unit_id"`
	ClassID   string    `json:"class_id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	MaxScore  float64   `json:"max_score"`
	Weight    float64   `json:"weight"` // percent of the unit total
	Term      string    `json:"term"`
	Date      time.Time `json:"date"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Mark struct {
	AssessmentID string    `json:"assessment_id"`
	StudentID    string    `json:"student_id"`
	Score        *float64  `json:"score"` // nil: not marked
	Remarks      string    `json:"remarks"`
	RecordedBy   string    `json:"recorded_by"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type NewAssessment struct {
	UnitID    string    `json:"unit_id" validate:"required,uuid"`
	Title     string    `json:"title" validate:"required,max=200"`
	Kind      string    `json:"kind" validate:"required,assessment_kind"`
	MaxScore  float64   `json:"max_score" validate:"required,gt=0"`
	Weight    float64   `json:"weight" validate:"required,gt=0,lte=100"`
	Term      string    `json:"term" validate:"required,max=30"`
	Date      time.Time `json:"date" validate:"required"`
	Published bool      `json:"published"`
}

func (na *NewAssessment) Validate(validate *validator.Validate) error {
	na.UnitID = core.CleanString(na.UnitID)
	na.Title = core.CleanString(na.Title)
	na.Kind = core.CleanString(na.Kind, true /* lower */)
	na.Term = core.CleanString(na.Term)
	return validate.Struct(na)
}

type UpdateAssessment struct {
	Title     string     `json:"title" validate:"max=200"`
	Kind      string     `json:"kind" validate:"omitempty,assessment_kind"`
	MaxScore  float64    `json:"max_score" validate:"omitempty,gt=0"`
	Weight    float64    `json:"weight" validate:"omitempty,gt=0,lte=100"`
	Term      string     `json:"term" validate:"max=30"`
	Date      *time.Time `json:"date"`
	Published *bool      `json:"published"`
}

func (ua *UpdateAssessment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Kind = core.CleanString(ua.Kind, true /* lower */)
	ua.Term = core.CleanString(ua.Term)
	return validate.Struct(ua)
}

func (ua UpdateAssessment) apply(a *Assessment) {
	if ua.Title != "" {
		a.Title = ua.Title
	}
	if ua.Kind != "" {
		a.Kind = ua.Kind
	}
	if ua.MaxScore != 0 {
		a.MaxScore = ua.MaxScore
	}
	if ua.Weight != 0 {
		a.Weight = ua.Weight
	}
	if ua.Term != "" {
		a.Term = ua.Term
	}
	if ua.Date != nil {
		a.Date = *ua.Date
	}
	if ua.Published != nil {
		a.Published = *ua.Published
	}
}

// MarkEntry is one line of a RecordMarks batch.
type MarkEntry struct {
	StudentID string   `json:"student_id" validate:"required,uuid"`
	Score     *float64 `json:"score" validate:"omitempty,gte=0"`
	Remarks   string   `json:"remarks" validate:"max=500"`
}

type RecordMarks struct {
	Marks []MarkEntry `json:"marks" validate:"required,min=1,dive"`
}

func (rm *RecordMarks) Validate(validate *validator.Validate) error {
	for i := range rm.Marks {
		rm.Marks[i].StudentID = core.CleanString(rm.Marks[i].StudentID)
		rm.Marks[i].Remarks = core.CleanString(rm.Marks[i].Remarks)
	}
	return validate.Struct(rm)
}

type QueryFilter struct {
	UnitID    string   `query:"unit"`
	ClassID   string   `query:"class"`
	Term      string   `query:"term"`
	Kind      string   `query:"kind"`
	Published *bool    `query:"published"`
	UnitIDs   []string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.UnitID = core.CleanString(qf.UnitID)
	qf.ClassID = core.CleanString(qf.ClassID)
	qf.Term = core.CleanString(qf.Term)
	qf.Kind = core.CleanString(qf.Kind, true /* lower */)
}

type MarkFilter struct {
	AssessmentIDs []string
	StudentID     string
}

// Evidence is an artifact in a student's Portfolio of Evidence.
type Evidence struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"student_id"`
	UnitID       string     `json:"unit_id"`
	AssessmentID string     `json:"assessment_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	FileName     string     `json:"file_name"`
	ContentType  string     `json:"content_type"`
	Size         int64      `json:"size"`
	StoragePath  string     `json:"-"`
	Status       string     `json:"status"`
	Feedback     string     `json:"feedback"`
	VerifiedBy   string     `json:"verified_by"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	VerifiedAt   *time.Time `json:"verified_at"`
}

type NewEvidence struct {
	UnitID       string `json:"unit_id" form:"unit_id" validate:"required,uuid"`
	AssessmentID string `json:"assessment_id" form:"assessment_id" validate:"omitempty,uuid"`
	Title        string `json:"title" form:"title" validate:"required,max=200"`
	Description  string `json:"description" form:"description" validate:"max=2000"`
}

func (ne *NewEvidence) Validate(validate *validator.Validate) error {
	ne.UnitID = core.CleanString(ne.UnitID)
	ne.AssessmentID = core.CleanString(ne.AssessmentID)
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	return validate.Struct(ne)
}

// File is an uploaded evidence file.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

type Verification struct {
	Decision string `json:"decision" validate:"required,evidence_decision"`
	Feedback string `json:"feedback" validate:"max=2000"`
}

func (v *Verification) Validate(validate *validator.Validate) error {
	v.Decision = core.CleanString(v.Decision, true /* lower */)
	v.Feedback = core.CleanString(v.Feedback)
	return validate.Struct(v)
}

func verificationStructValidation(sl validator.StructLevel) {
	v := sl.Current().Interface().(Verification)
	if v.Decision == EvidenceRejected && v.Feedback == "" {
		sl.ReportError(v.Feedback, "feedback", "Feedback", feedbackTag, "")
	}
}

type EvidenceFilter struct {
	StudentID    string   `query:"student"`
	UnitID       string   `query:"unit"`
	AssessmentID string   `query:"assessment"`
	Status       string   `query:"status"`
	UnitIDs      []string `query:"-"`
}

func (ef *EvidenceFilter) Clean() {
	ef.StudentID = core.CleanString(ef.StudentID)
	ef.UnitID = core.CleanString(ef.UnitID)
	ef.AssessmentID = core.CleanString(ef.AssessmentID)
	ef.Status = core.CleanString(ef.Status, true /* lower */)
}
