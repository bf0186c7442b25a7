package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/user"
)

type scriptedGenerator struct {
	replies []string
	prompts []Prompt
	err     error
}

func (g *scriptedGenerator) Generate(_ context.Context, p Prompt) (Completion, error) {
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return Completion{}, g.err
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return Completion{Text: reply, Model: "test-model", PromptTokens: 10, CompletionTokens: 5}, nil
}

type memArchive struct {
	mu   sync.Mutex
	gens []Generation
}

func (a *memArchive) Save(_ context.Context, g Generation) (Generation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g.ID = fmt.Sprintf("g%d", len(a.gens)+1)
	a.gens = append(a.gens, g)
	return g, nil
}

func (a *memArchive) Get(_ context.Context, id string) (Generation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.gens {
		if g.ID == id {
			return g, nil
		}
	}
	return Generation{}, ErrGenerationNotFound
}

func (a *memArchive) History(_ context.Context, userID, flow string, limit int) ([]Generation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var res []Generation
	for _, g := range a.gens {
		if g.UserID == userID && (flow == "" || g.Flow == flow) {
			res = append(res, g)
		}
	}
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

type countingMetrics struct {
	statuses map[string]int
	tokens   int
}

func (m *countingMetrics) ObserveFlow(flow, status string, _ time.Duration) {
	m.statuses[flow+":"+status]++
}

func (m *countingMetrics) AddTokens(_ string, prompt, completion int) {
	m.tokens += prompt + completion
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(t *testing.T, gen Generator) (*service, *memArchive, *countingMetrics) {
	t.Helper()
	cat, err := LoadCatalogue()
	require.NoError(t, err)
	archive := new(memArchive)
	metrics := &countingMetrics{statuses: make(map[string]int)}
	return &service{
		prompts:  cat,
		gen:      gen,
		archive:  archive,
		metrics:  metrics,
		validate: validator.New(),
		logger:   nopLogger{},
	}, archive, metrics
}

var (
	trainer = user.User{ID: "t1", Roles: []string{user.RoleTrainer}}
	student = user.User{ID: "s1", Roles: []string{user.RoleStudent}}

	validQA = `{"answer": "8", "explanation": "2^3 = 2*2*2 = 8", "follow_ups": ["What is 2^4?"]}`
)

func TestAcademicQA(t *testing.T) {
	t.Run("valid output", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{"```json\n" + validQA + "\n```"}}
		svc, archive, metrics := newTestService(t, gen)

		in := QAInput{Question: "What is 2^3?", Subject: "Mathematics", Level: "Grade 7"}
		ans, err := svc.AcademicQA(context.Background(), student, in)
		require.NoError(t, err)
		assert.Equal(t, "8", ans.Answer)
		assert.Equal(t, []string{"What is 2^4?"}, ans.FollowUps)

		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0].User, "Question: What is 2^3?")
		assert.Contains(t, gen.prompts[0].User, "Level: Grade 7")
		assert.True(t, gen.prompts[0].JSON)

		require.Len(t, archive.gens, 1)
		assert.Equal(t, FlowAcademicQA, archive.gens[0].Flow)
		assert.Equal(t, "s1", archive.gens[0].UserID)
		assert.Equal(t, "test-model", archive.gens[0].Model)
		assert.Equal(t, 1, metrics.statuses[FlowAcademicQA+":"+StatusOK])
		assert.Equal(t, 15, metrics.tokens)
	})

	t.Run("retries once on invalid output", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{`{"answer": ""}`, validQA}}
		svc, archive, _ := newTestService(t, gen)

		ans, err := svc.AcademicQA(context.Background(), student, QAInput{Question: "q", Subject: "s", Level: "l"})
		require.NoError(t, err)
		assert.Equal(t, "8", ans.Answer)
		require.Len(t, gen.prompts, 2)
		assert.Contains(t, gen.prompts[1].User, "Your previous reply was rejected")
		assert.Len(t, archive.gens, 1)
	})

	t.Run("gives up after two invalid outputs", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{"not json at all"}}
		svc, archive, metrics := newTestService(t, gen)

		_, err := svc.AcademicQA(context.Background(), student, QAInput{Question: "q", Subject: "s", Level: "l"})
		assert.Equal(t, ErrInvalidOutput, err)
		assert.Len(t, gen.prompts, 2)
		assert.Empty(t, archive.gens)
		assert.Equal(t, 1, metrics.statuses[FlowAcademicQA+":"+StatusInvalid])
	})

	t.Run("rejected replies are not merged", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{`{"answer": "42"}`, `{"explanation": "because"}`}}
		svc, archive, _ := newTestService(t, gen)

		ans, err := svc.AcademicQA(context.Background(), student, QAInput{Question: "q", Subject: "s", Level: "l"})
		assert.Equal(t, ErrInvalidOutput, err)
		assert.Empty(t, ans.Answer)
		assert.Len(t, gen.prompts, 2)
		assert.Empty(t, archive.gens)
	})

	t.Run("generator failure", func(t *testing.T) {
		gen := &scriptedGenerator{err: errors.New("quota exceeded")}
		svc, _, metrics := newTestService(t, gen)

		_, err := svc.AcademicQA(context.Background(), student, QAInput{Question: "q", Subject: "s", Level: "l"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.Len(t, gen.prompts, 1)
		assert.Equal(t, 1, metrics.statuses[FlowAcademicQA+":"+StatusError])
	})
}

func TestLessonNotes(t *testing.T) {
	reply := `{
		"title": "Photosynthesis",
		"learning_outcomes": ["By the end of the lesson, the learner should be able to define photosynthesis"],
		"introduction": "Plants make food.",
		"sections": [{"heading": "Definition", "content": "Light to sugar."}],
		"activities": ["Observe a leaf"],
		"assessment_questions": ["What is photosynthesis?"],
		"summary": "Plants use light."
	}`

	t.Run("students cannot generate notes", func(t *testing.T) {
		svc, _, _ := newTestService(t, &scriptedGenerator{replies: []string{reply}})
		_, err := svc.LessonNotes(context.Background(), student, LessonNotesInput{})
		assert.Error(t, err)
	})

	t.Run("trainer", func(t *testing.T) {
		gen := &scriptedGenerator{replies: []string{reply}}
		svc, _, _ := newTestService(t, gen)

		in := LessonNotesInput{Unit: "Biology", Topic: "Photosynthesis", Level: "Grade 8"}
		require.NoError(t, in.Validate(svc.validate))
		assert.Equal(t, "CBC", in.Curriculum)
		assert.Equal(t, 40, in.Duration)

		notes, err := svc.LessonNotes(context.Background(), trainer, in)
		require.NoError(t, err)
		assert.Equal(t, "Photosynthesis", notes.Title)
		assert.NotContains(t, gen.prompts[0].User, "Sub-topic")
		assert.Contains(t, gen.prompts[0].System, "CBC curriculum developer")

		md := notes.Markdown()
		assert.True(t, strings.HasPrefix(md, "# Photosynthesis\n"))
		assert.Contains(t, md, "## Definition\n\nLight to sugar.\n")
		assert.Contains(t, md, "- What is photosynthesis?\n")
	})
}

func TestPerformanceSummary(t *testing.T) {
	mean := 55.0
	ms := assessment.Marksheet{
		Assessments: []assessment.Assessment{{Title: "CAT 1", Kind: assessment.KindCAT, MaxScore: 30, Weight: 30}},
		Columns:     []assessment.ColumnStats{{Count: 2, Mean: &mean}},
		Rows: []assessment.MarksheetRow{
			{Percentage: 85, Grade: "EE"},
			{Percentage: 45, Grade: "AE"},
			{},
		},
	}
	stats := PerformanceSummary(ms, assessment.DefaultScale)
	assert.Equal(t, 3, stats.Students)
	assert.Equal(t, 2, stats.Graded)
	assert.Equal(t, 65.0, stats.Mean)
	assert.Equal(t, []GradeCount{{"EE", 1}, {"ME", 0}, {"AE", 1}, {"BE", 0}}, stats.Grades)
	require.Len(t, stats.Assessments, 1)
	assert.Equal(t, 55.0, stats.Assessments[0].Mean)
	assert.Equal(t, 2, stats.Assessments[0].Count)

	cat, err := LoadCatalogue()
	require.NoError(t, err)
	p, err := cat.Render(FlowPerformanceAnalysis, stats)
	require.NoError(t, err)
	assert.Contains(t, p.User, "- CAT 1 (cat, out of 30, weight 30): 2 marked, mean 55.00")
	assert.Contains(t, p.User, "- EE: 1")
}

func TestIntegrateFlow(t *testing.T) {
	svc, archive, _ := newTestService(t, &scriptedGenerator{})
	seed := int64(3)

	out, err := svc.Integrate(context.Background(), student, IntegrateInput{Expression: "2*x", A: 0, B: 1, Samples: 5000, Seed: &seed})
	require.NoError(t, err)
	assert.InDelta(t, 1, out.Estimate, 0.05)
	require.Len(t, archive.gens, 1)
	assert.Equal(t, integratorModel, archive.gens[0].Model)

	_, err = svc.Integrate(context.Background(), student, IntegrateInput{Expression: "2*", Samples: 10})
	assert.Error(t, err)

	g, err := svc.Generation(context.Background(), student, "g1")
	require.NoError(t, err)
	assert.Equal(t, FlowIntegrate, g.Flow)

	_, err = svc.Generation(context.Background(), trainer, "g1")
	assert.Equal(t, ErrGenerationNotFound, err)
}

func TestLoadCatalogue(t *testing.T) {
	cat, err := LoadCatalogue()
	require.NoError(t, err)
	for _, flow := range []string{FlowLessonNotes, FlowAcademicQA, FlowTimetableAnalysis, FlowPerformanceAnalysis} {
		assert.Contains(t, cat, flow)
	}

	_, err = cat.Render("unknown", nil)
	assert.Error(t, err)

	_, err = LoadCatalogue([]byte("x:\n  user: \"{{.Oops\"\n"))
	assert.Error(t, err)
}
