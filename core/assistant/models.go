package assistant

import (
	"github.com/go-playground/validator/v10"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/timetable"
)

type LessonNotesInput struct {
	LessonPlanID string `json:"lesson_plan_id,omitempty" validate:"omitempty,uuid"`
	Unit         string `json:"unit" validate:"required,max=200"`
	Topic        string `json:"topic" validate:"required,max=200"`
	Subtopic     string `json:"subtopic" validate:"max=200"`
	Level        string `json:"level" validate:"required,max=100"`
	Duration     int    `json:"duration" validate:"min=10,max=480"` // minutes
	Curriculum   string `json:"curriculum" validate:"max=50"`
}

func (in *LessonNotesInput) Validate(validate *validator.Validate) error {
	in.Unit = core.CleanString(in.Unit)
	in.Topic = core.CleanString(in.Topic)
	in.Subtopic = core.CleanString(in.Subtopic)
	in.Level = core.CleanString(in.Level)
	in.Curriculum = core.CleanString(in.Curriculum)
	if in.Curriculum == "" {
		in.Curriculum = "CBC"
	}
	if in.Duration == 0 {
		in.Duration = 40
	}
	return validate.Struct(in)
}

type NoteSection struct {
	Heading string `json:"heading" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type LessonNotes struct {
	Title               string        `json:"title" validate:"required"`
	LearningOutcomes    []string      `json:"learning_outcomes" validate:"required,min=1,dive,required"`
	Introduction        string        `json:"introduction" validate:"required"`
	Sections            []NoteSection `json:"sections" validate:"required,min=1,dive"`
	Activities          []string      `json:"activities" validate:"dive,required"`
	AssessmentQuestions []string      `json:"assessment_questions" validate:"required,min=1,dive,required"`
	Summary             string        `json:"summary" validate:"required"`
}

// Markdown renders the notes for storage on a lesson plan.
func (ln LessonNotes) Markdown() string {
	var b mdBuilder
	b.heading(1, ln.Title)
	b.heading(2, "Learning outcomes")
	b.list(ln.LearningOutcomes)
	b.heading(2, "Introduction")
	b.para(ln.Introduction)
	for _, s := range ln.Sections {
		b.heading(2, s.Heading)
		b.para(s.Content)
	}
	if len(ln.Activities) > 0 {
		b.heading(2, "Activities")
		b.list(ln.Activities)
	}
	b.heading(2, "Assessment")
	b.list(ln.AssessmentQuestions)
	b.heading(2, "Summary")
	b.para(ln.Summary)
	return b.String()
}

type QAInput struct {
	Question string `json:"question" validate:"required,max=2000"`
	Subject  string `json:"subject" validate:"required,max=100"`
	Level    string `json:"level" validate:"required,max=100"`
}

func (in *QAInput) Validate(validate *validator.Validate) error {
	in.Question = core.CleanString(in.Question)
	in.Subject = core.CleanString(in.Subject)
	in.Level = core.CleanString(in.Level)
	return validate.Struct(in)
}

type QAAnswer struct {
	Answer      string   `json:"answer" validate:"required"`
	Explanation string   `json:"explanation" validate:"required"`
	FollowUps   []string `json:"follow_ups" validate:"max=3,dive,required"`
}

type TimetableAnalysisInput struct {
	Term string `json:"term" validate:"required,max=30"`
}

func (in *TimetableAnalysisInput) Validate(validate *validator.Validate) error {
	in.Term = core.CleanString(in.Term)
	return validate.Struct(in)
}

type timetableAdvice struct {
	Summary     string   `json:"summary" validate:"required"`
	Suggestions []string `json:"suggestions" validate:"dive,required"`
}

type TimetableAnalysis struct {
	Term        string                  `json:"term"`
	Sessions    int                     `json:"sessions"`
	Clashes     []timetable.Clash       `json:"clashes"`
	Loads       []timetable.TrainerLoad `json:"loads"`
	Summary     string                  `json:"summary"`
	Suggestions []string                `json:"suggestions"`
}

type PerformanceAnalysisInput struct {
	ClassID string `json:"class_id" validate:"required,uuid"`
	UnitID  string `json:"unit_id" validate:"required,uuid"`
}

func (in *PerformanceAnalysisInput) Validate(validate *validator.Validate) error {
	in.ClassID = core.CleanString(in.ClassID)
	in.UnitID = core.CleanString(in.UnitID)
	return validate.Struct(in)
}

type GradeCount struct {
	Grade string `json:"grade"`
	Count int    `json:"count"`
}

type AssessmentSummary struct {
	Title    string  `json:"title"`
	Kind     string  `json:"kind"`
	MaxScore float64 `json:"max_score"`
	Weight   float64 `json:"weight"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
}

type PerformanceStats struct {
	Class       string              `json:"class"`
	Unit        string              `json:"unit"`
	Students    int                 `json:"students"`
	Graded      int                 `json:"graded"`
	Mean        float64             `json:"mean"` // of graded students' percentages
	Grades      []GradeCount        `json:"grades"`
	Assessments []AssessmentSummary `json:"assessments"`
}

type performanceAdvice struct {
	Summary         string   `json:"summary" validate:"required"`
	Strengths       []string `json:"strengths" validate:"dive,required"`
	Concerns        []string `json:"concerns" validate:"dive,required"`
	Recommendations []string `json:"recommendations" validate:"required,min=1,dive,required"`
}

type PerformanceAnalysis struct {
	ClassID         string           `json:"class_id"`
	UnitID          string           `json:"unit_id"`
	Stats           PerformanceStats `json:"stats"`
	Summary         string           `json:"summary"`
	Strengths       []string         `json:"strengths"`
	Concerns        []string         `json:"concerns"`
	Recommendations []string         `json:"recommendations"`
}

type HistoryQuery struct {
	Flow  string `json:"flow" query:"flow" validate:"omitempty,assistant_flow"`
	Limit int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=100"`
}

func (hq *HistoryQuery) Validate(validate *validator.Validate) error {
	hq.Flow = core.CleanString(hq.Flow, true /* lower */)
	if hq.Limit == 0 {
		hq.Limit = 20
	}
	return validate.Struct(hq)
}
