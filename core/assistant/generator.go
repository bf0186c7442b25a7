package assistant

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/teachhub/backend/core"
)

// Flow names
const (
	FlowLessonNotes         = "lesson_notes"
	FlowAcademicQA          = "academic_qa"
	FlowTimetableAnalysis   = "timetable_analysis"
	FlowPerformanceAnalysis = "performance_analysis"
	FlowIntegrate           = "integrate"
)

var (
	Flows = []string{FlowLessonNotes, FlowAcademicQA, FlowTimetableAnalysis, FlowPerformanceAnalysis, FlowIntegrate}

	// ErrInvalidOutput is returned when the model output does not match the flow's schema.
	ErrInvalidOutput = errors.New("the model returned an invalid output")

	ErrGenerationNotFound = core.NewNotFoundError("generation not found")
)

type (
	Prompt struct {
		System      string
		User        string
		Temperature float32
		JSON        bool // ask for a JSON object
	}

	Completion struct {
		Text             string
		Model            string
		PromptTokens     int
		CompletionTokens int
	}

	// Generator sends a prompt to a generative model.
	Generator interface {
		Generate(ctx context.Context, p Prompt) (Completion, error)
	}

	// Generation is an archived flow run.
	Generation struct {
		ID        string      `json:"id" firestore:"-"`
		Flow      string      `json:"flow" firestore:"flow"`
		UserID    string      `json:"user_id" firestore:"user_id"`
		Input     interface{} `json:"input" firestore:"input"`
		Output    interface{} `json:"output" firestore:"output"`
		Model     string      `json:"model" firestore:"model"`
		CreatedAt time.Time   `json:"created_at" firestore:"created_at"`
	}

	// Archive stores generations.
	Archive interface {
		Save(ctx context.Context, g Generation) (Generation, error)
		Get(ctx context.Context, id string) (Generation, error)
		// History lists a user's generations, newest first. An empty flow matches every flow.
		History(ctx context.Context, userID, flow string, limit int) ([]Generation, error)
	}

	// Metrics records flow runs.
	Metrics interface {
		ObserveFlow(flow, status string, elapsed time.Duration)
		AddTokens(flow string, prompt, completion int)
	}
)

// Flow run statuses
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusError   = "error"
)
