package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/lessonplan"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/timetable"
	"github.com/teachhub/backend/core/user"
)

const integratorModel = "monte-carlo"

var (
	flowTag  = "assistant_flow"
	flowText = "must be one of lesson_notes, academic_qa, timetable_analysis, performance_analysis or integrate"
)

// InitValidators registers the assistant validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, flowTag, flowText, Flows...)
}

type (
	Service interface {
		LessonNotes(ctx context.Context, actor user.User, in LessonNotesInput) (LessonNotes, error)
		// LessonNotesForPlan generates notes for a lesson plan and attaches them to it.
		LessonNotesForPlan(ctx context.Context, actor user.User, lp lessonplan.LessonPlan) (lessonplan.LessonPlan, LessonNotes, error)
		AcademicQA(ctx context.Context, actor user.User, in QAInput) (QAAnswer, error)
		TimetableAnalysis(ctx context.Context, actor user.User, in TimetableAnalysisInput) (TimetableAnalysis, error)
		PerformanceAnalysis(ctx context.Context, actor user.User, in PerformanceAnalysisInput) (PerformanceAnalysis, error)
		Integrate(ctx context.Context, actor user.User, in IntegrateInput) (IntegrateOutput, error)
		History(ctx context.Context, actor user.User, hq HistoryQuery) ([]Generation, error)
		// Generation returns one of actor's archived generations; admins may read any.
		Generation(ctx context.Context, actor user.User, id string) (Generation, error)
	}

	service struct {
		prompts       Catalogue
		gen           Generator
		archive       Archive
		metrics       Metrics
		validate      *validator.Validate
		schoolSvc     school.Service
		timetableSvc  timetable.Service
		assessmentSvc assessment.Service
		lessonPlanSvc lessonplan.Service
		logger        core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	prompts Catalogue,
	gen Generator,
	archive Archive,
	metrics Metrics,
	validate *validator.Validate,
	schoolSvc school.Service,
	timetableSvc timetable.Service,
	assessmentSvc assessment.Service,
	lessonPlanSvc lessonplan.Service,
	logger core.Logger,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(prompts, "prompts"),
		vala.IsNotNil(gen, "gen"),
		vala.IsNotNil(archive, "archive"),
		vala.IsNotNil(metrics, "metrics"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(schoolSvc, "schoolSvc"),
		vala.IsNotNil(timetableSvc, "timetableSvc"),
		vala.IsNotNil(assessmentSvc, "assessmentSvc"),
		vala.IsNotNil(lessonPlanSvc, "lessonPlanSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		prompts:       prompts,
		gen:           gen,
		archive:       archive,
		metrics:       metrics,
		validate:      validate,
		schoolSvc:     schoolSvc,
		timetableSvc:  timetableSvc,
		assessmentSvc: assessmentSvc,
		lessonPlanSvc: lessonPlanSvc,
		logger:        logger,
	}
}

// extractJSON trims code fences and prose around the outermost JSON object.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

// decode unmarshals & validates a completion into out.
func (svc *service) decode(text string, out interface{}) error {
	if err := json.Unmarshal([]byte(extractJSON(text)), out); err != nil {
		return errors.Wrap(ErrInvalidOutput, err.Error())
	}
	if err := svc.validate.Struct(out); err != nil {
		return errors.Wrap(ErrInvalidOutput, err.Error())
	}
	return nil
}

// run renders the flow's prompt, calls the model and decodes its output into out, a pointer.
// An invalid output is retried once with the problems appended to the prompt.
// Each attempt decodes into a zero value; out is only set by a valid one.
func (svc *service) run(ctx context.Context, flow string, data, out interface{}) (model string, err error) {
	start := time.Now()
	status := StatusOK
	defer func() {
		if err != nil {
			status = StatusError
			if errors.Cause(err) == ErrInvalidOutput {
				status = StatusInvalid
			}
		}
		svc.metrics.ObserveFlow(flow, status, time.Since(start))
	}()

	prompt, err := svc.prompts.Render(flow, data)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < 2; attempt++ {
		var comp Completion
		comp, err = svc.gen.Generate(ctx, prompt)
		if err != nil {
			return "", errors.Wrapf(err, "generating %s", flow)
		}
		svc.metrics.AddTokens(flow, comp.PromptTokens, comp.CompletionTokens)

		attemptOut := reflect.New(reflect.TypeOf(out).Elem())
		if err = svc.decode(comp.Text, attemptOut.Interface()); err == nil {
			reflect.ValueOf(out).Elem().Set(attemptOut.Elem())
			return comp.Model, nil
		}
		svc.logger.Warn(fmt.Sprintf("%s: invalid model output (attempt %d)", flow, attempt+1), err)
		prompt.User += fmt.Sprintf(
			"\n\nYour previous reply was rejected: %s\nReply again with a corrected JSON object only.",
			strings.TrimPrefix(err.Error(), ErrInvalidOutput.Error()+": "),
		)
	}
	return "", ErrInvalidOutput
}

// record archives a successful run; failures are only logged.
func (svc *service) record(ctx context.Context, actor user.User, flow, model string, input, output interface{}) {
	_, err := svc.archive.Save(ctx, Generation{
		Flow:      flow,
		UserID:    actor.ID,
		Input:     input,
		Output:    output,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		svc.logger.Error("archiving "+flow+" generation", err, actor)
	}
}

func (svc *service) LessonNotes(ctx context.Context, actor user.User, in LessonNotesInput) (LessonNotes, error) {
	if !actor.IsTrainer() && !actor.IsAdmin() {
		return LessonNotes{}, core.NewPermissionError("only trainers may generate lesson notes")
	}
	var notes LessonNotes
	model, err := svc.run(ctx, FlowLessonNotes, in, &notes)
	if err != nil {
		return LessonNotes{}, err
	}
	svc.record(ctx, actor, FlowLessonNotes, model, in, notes)
	return notes, nil
}

func (svc *service) LessonNotesForPlan(ctx context.Context, actor user.User, lp lessonplan.LessonPlan) (lessonplan.LessonPlan, LessonNotes, error) {
	if lp.TrainerID != actor.ID {
		return lessonplan.LessonPlan{}, LessonNotes{}, core.NewPermissionError("only the owner of the lesson plan may generate its notes")
	}
	if !lp.IsEditable() {
		return lessonplan.LessonPlan{}, LessonNotes{}, core.NewValidationError(lessonplan.ErrNotEditable)
	}
	unit, err := svc.schoolSvc.GetUnit(ctx, lp.UnitID)
	if err != nil {
		return lessonplan.LessonPlan{}, LessonNotes{}, errors.Wrap(err, "finding unit")
	}
	class, err := svc.schoolSvc.GetClass(ctx, unit.ClassID)
	if err != nil {
		return lessonplan.LessonPlan{}, LessonNotes{}, errors.Wrap(err, "finding class")
	}

	in := LessonNotesInput{
		LessonPlanID: lp.ID,
		Unit:         unit.Name,
		Topic:        lp.Topic,
		Subtopic:     lp.Title,
		Level:        class.Name,
		Duration:     lp.Duration,
	}
	if err := in.Validate(svc.validate); err != nil {
		return lessonplan.LessonPlan{}, LessonNotes{}, err
	}
	notes, err := svc.LessonNotes(ctx, actor, in)
	if err != nil {
		return lessonplan.LessonPlan{}, LessonNotes{}, err
	}
	lp, err = svc.lessonPlanSvc.AttachNotes(ctx, actor, lp, notes.Markdown())
	if err != nil {
		return lessonplan.LessonPlan{}, LessonNotes{}, err
	}
	return lp, notes, nil
}

func (svc *service) AcademicQA(ctx context.Context, actor user.User, in QAInput) (QAAnswer, error) {
	var ans QAAnswer
	model, err := svc.run(ctx, FlowAcademicQA, in, &ans)
	if err != nil {
		return QAAnswer{}, err
	}
	svc.record(ctx, actor, FlowAcademicQA, model, in, ans)
	return ans, nil
}

func (svc *service) TimetableAnalysis(ctx context.Context, actor user.User, in TimetableAnalysisInput) (TimetableAnalysis, error) {
	if !actor.IsAdmin() {
		return TimetableAnalysis{}, core.NewPermissionError("only admins may analyse the timetable")
	}
	sessions, err := svc.timetableSvc.Query(ctx, &timetable.QueryFilter{Term: in.Term})
	if err != nil {
		return TimetableAnalysis{}, errors.Wrap(err, "querying sessions")
	}

	ta := TimetableAnalysis{
		Term:     in.Term,
		Sessions: len(sessions),
		Clashes:  timetable.DetectClashes(sessions),
		Loads:    timetable.TrainerLoads(sessions),
	}
	data := struct {
		Term     string
		Sessions int
		Clashes  []timetable.Clash
		Loads    []timetable.TrainerLoad
	}{ta.Term, ta.Sessions, ta.Clashes, ta.Loads}

	var advice timetableAdvice
	model, err := svc.run(ctx, FlowTimetableAnalysis, data, &advice)
	if err != nil {
		return TimetableAnalysis{}, err
	}
	ta.Summary = advice.Summary
	ta.Suggestions = advice.Suggestions
	svc.record(ctx, actor, FlowTimetableAnalysis, model, in, ta)
	return ta, nil
}

func (svc *service) PerformanceAnalysis(ctx context.Context, actor user.User, in PerformanceAnalysisInput) (PerformanceAnalysis, error) {
	var (
		ms    assessment.Marksheet
		class school.Class
		unit  school.Unit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ms, err = svc.assessmentSvc.Marksheet(gctx, actor, in.ClassID, in.UnitID)
		return
	})
	g.Go(func() (err error) {
		class, err = svc.schoolSvc.GetClass(gctx, in.ClassID)
		return
	})
	g.Go(func() (err error) {
		unit, err = svc.schoolSvc.GetUnit(gctx, in.UnitID)
		return
	})
	if err := g.Wait(); err != nil {
		return PerformanceAnalysis{}, err
	}

	stats := PerformanceSummary(ms, svc.assessmentSvc.GradingScale())
	stats.Class = class.Name
	stats.Unit = unit.Name

	var advice performanceAdvice
	model, err := svc.run(ctx, FlowPerformanceAnalysis, stats, &advice)
	if err != nil {
		return PerformanceAnalysis{}, err
	}
	pa := PerformanceAnalysis{
		ClassID:         in.ClassID,
		UnitID:          in.UnitID,
		Stats:           stats,
		Summary:         advice.Summary,
		Strengths:       advice.Strengths,
		Concerns:        advice.Concerns,
		Recommendations: advice.Recommendations,
	}
	svc.record(ctx, actor, FlowPerformanceAnalysis, model, in, pa)
	return pa, nil
}

// PerformanceSummary condenses a marksheet into the statistics given to the model.
func PerformanceSummary(ms assessment.Marksheet, scale assessment.GradingScale) PerformanceStats {
	stats := PerformanceStats{
		Students:    len(ms.Rows),
		Grades:      make([]GradeCount, 0, len(scale)),
		Assessments: make([]AssessmentSummary, 0, len(ms.Assessments)),
	}
	counts := make(map[string]int, len(scale))
	var sum float64
	for _, r := range ms.Rows {
		if r.Grade == "" {
			continue
		}
		stats.Graded++
		sum += r.Percentage
		counts[r.Grade]++
	}
	if stats.Graded > 0 {
		stats.Mean = roundTo(sum/float64(stats.Graded), 2)
	}
	for _, band := range scale {
		stats.Grades = append(stats.Grades, GradeCount{Grade: band.Grade, Count: counts[band.Grade]})
	}
	for i, a := range ms.Assessments {
		as := AssessmentSummary{Title: a.Title, Kind: a.Kind, MaxScore: a.MaxScore, Weight: a.Weight}
		if i < len(ms.Columns) {
			as.Count = ms.Columns[i].Count
			if ms.Columns[i].Mean != nil {
				as.Mean = *ms.Columns[i].Mean
			}
		}
		stats.Assessments = append(stats.Assessments, as)
	}
	return stats
}

func (svc *service) Integrate(ctx context.Context, actor user.User, in IntegrateInput) (IntegrateOutput, error) {
	start := time.Now()
	f, err := ParseExpr(in.Expression)
	if err != nil {
		svc.metrics.ObserveFlow(FlowIntegrate, StatusInvalid, time.Since(start))
		return IntegrateOutput{}, core.NewValidationError(err, core.FieldError{Field: "expression", Error: err.Error()})
	}
	seed := newSeed()
	if in.Seed != nil {
		seed = *in.Seed
	}
	out, err := Integrate(f, in.A, in.B, in.Samples, seed)
	if err != nil {
		svc.metrics.ObserveFlow(FlowIntegrate, StatusInvalid, time.Since(start))
		return IntegrateOutput{}, core.NewValidationError(err, core.FieldError{Field: "expression", Error: err.Error()})
	}
	svc.metrics.ObserveFlow(FlowIntegrate, StatusOK, time.Since(start))
	svc.record(ctx, actor, FlowIntegrate, integratorModel, in, out)
	return out, nil
}

func (svc *service) History(ctx context.Context, actor user.User, hq HistoryQuery) ([]Generation, error) {
	gens, err := svc.archive.History(ctx, actor.ID, hq.Flow, hq.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	sort.SliceStable(gens, func(i, j int) bool { return gens[i].CreatedAt.After(gens[j].CreatedAt) })
	return gens, nil
}

func (svc *service) Generation(ctx context.Context, actor user.User, id string) (Generation, error) {
	g, err := svc.archive.Get(ctx, id)
	if err != nil {
		return Generation{}, err
	}
	if g.UserID != actor.ID && !actor.IsAdmin() {
		return Generation{}, ErrGenerationNotFound
	}
	return g, nil
}
