package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/assistant"
	"github.com/teachhub/backend/core/user"
	testutil "github.com/teachhub/backend/tests"
)

func Test_assistantApi_flows(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.ke", "", []string{user.RoleAdmin}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.ke", "", []string{user.RoleTrainer}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.ke", "", []string{user.RoleTrainer}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.ke", "", []string{user.RoleStudent}, true)
	class := testutil.CreateClass(t, schoolRepo, "ICT Level 5", "ICT5", 2025, "")
	unit := testutil.CreateUnit(t, schoolRepo, "ICT501", "Networking", class.ID, trainer.ID)
	testutil.Enrol(t, schoolRepo, class.ID, student.ID, "ADM-001")
	insertSession(t, unit, "Lab 1", "monday", "08:00", "10:00")

	adminToken := getToken(t, admin)
	trainerToken := getToken(t, trainer)
	studentToken := getToken(t, student)

	notesBody := []byte(`{"unit":"Networking","topic":"Subnetting","level":"Level 5"}`)
	runHTTPTests(t, http.MethodPost, []httpTest{
		{
			name: "students may not", token: studentToken, body: notesBody, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "only trainers may generate lesson notes"}),
		},
		{
			name: "missing fields", token: trainerToken, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{
				"unit":  "this field is required",
				"topic": "this field is required",
				"level": "this field is required",
			}),
		},
		{name: "duration too short", token: trainerToken, body: []byte(`{"unit":"Networking","topic":"Subnetting","level":"Level 5","duration":5}`), wantCode: http.StatusBadRequest},
		{name: "anonymous", body: notesBody, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
	}, "/api/assistant/lesson-notes")

	before := len(gen.Prompts())
	var notes assistant.LessonNotes
	doRequest(t, http.MethodPost, "/api/assistant/lesson-notes", trainerToken, notesBody, http.StatusOK, &notes)
	assert.NotEmpty(t, notes.Title)
	assert.NotEmpty(t, notes.Sections)
	prompts := gen.Prompts()
	require.Len(t, prompts, before+1)
	prompt := prompts[before].System + prompts[before].User
	assert.Contains(t, prompt, "Subnetting")
	// defaults
	assert.Contains(t, prompt, "40 minutes")
	assert.Contains(t, prompt, "Curriculum: CBC")

	qaBody := []byte(`{"question":"What is a subnet mask?","subject":"Networking","level":"Level 5"}`)
	var answer assistant.QAAnswer
	doRequest(t, http.MethodPost, "/api/assistant/qa", studentToken, qaBody, http.StatusOK, &answer)
	assert.NotEmpty(t, answer.Answer)

	t.Run("invalid output is retried once", func(t *testing.T) {
		gen.Queue("Sure! Here you go.")
		before := len(gen.Prompts())
		doRequest(t, http.MethodPost, "/api/assistant/qa", studentToken, qaBody, http.StatusOK, nil)
		prompts := gen.Prompts()
		require.Len(t, prompts, before+2)
		assert.Contains(t, prompts[before+1].User, "Your previous reply was rejected")
	})

	t.Run("invalid output twice", func(t *testing.T) {
		gen.Queue("not json", `{"answer":""}`)
		req, rec := newAuthRequest(http.MethodPost, "/api/assistant/qa", studentToken, qaBody)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadGateway,
			wantData: marchallObj(t, httpErr{Error: "the model returned an invalid output"}),
		}, rec)
	})

	runHTTPTests(t, http.MethodPost, []httpTest{
		{name: "timetable analysis is for admins", path: "/api/assistant/timetable-analysis", token: trainerToken, body: []byte(`{"term":"2025-T1"}`), wantCode: http.StatusForbidden},
		{
			name: "term required", path: "/api/assistant/timetable-analysis", token: adminToken, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"term": "this field is required"}),
		},
		{
			name: "marksheet access applies", path: "/api/assistant/performance-analysis", token: getToken(t, other),
			body: marchallObj(t, assistant.PerformanceAnalysisInput{ClassID: class.ID, UnitID: unit.ID}), wantCode: http.StatusForbidden,
		},
	})

	var ta assistant.TimetableAnalysis
	doRequest(t, http.MethodPost, "/api/assistant/timetable-analysis", adminToken, []byte(`{"term":"2025-T1"}`), http.StatusOK, &ta)
	assert.Equal(t, 1, ta.Sessions)
	assert.Empty(t, ta.Clashes)
	require.Len(t, ta.Loads, 1)
	assert.NotEmpty(t, ta.Summary)

	var pa assistant.PerformanceAnalysis
	doRequest(t, http.MethodPost, "/api/assistant/performance-analysis", trainerToken,
		marchallObj(t, assistant.PerformanceAnalysisInput{ClassID: class.ID, UnitID: unit.ID}), http.StatusOK, &pa)
	assert.Equal(t, "ICT Level 5", pa.Stats.Class)
	assert.Equal(t, "Networking", pa.Stats.Unit)
	assert.Equal(t, 1, pa.Stats.Students)
	assert.Equal(t, 0, pa.Stats.Graded)
	assert.Len(t, pa.Stats.Grades, len(assessment.DefaultScale))
	assert.NotEmpty(t, pa.Recommendations)
}

func Test_assistantApi_integrate(t *testing.T) {
	resetDB(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.ke", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	var out assistant.IntegrateOutput
	doRequest(t, http.MethodPost, "/api/assistant/integrate", token, []byte(`{"expression":"2*x","a":0,"b":1,"seed":42}`), http.StatusOK, &out)
	assert.InDelta(t, 1.0, out.Estimate, 0.05)
	assert.Equal(t, assistant.DefaultSamples, out.Samples)
	assert.Equal(t, int64(42), out.Seed)
	assert.Less(t, out.Low, out.Estimate)
	assert.Greater(t, out.High, out.Estimate)

	// the seed makes runs reproducible
	var again assistant.IntegrateOutput
	doRequest(t, http.MethodPost, "/api/assistant/integrate", token, []byte(`{"expression":"2 * x","a":0,"b":1,"seed":42}`), http.StatusOK, &again)
	assert.Equal(t, out, again)

	runHTTPTests(t, http.MethodPost, []httpTest{
		{
			name: "expression required", token: token, body: []byte(`{"a":0,"b":1}`), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"expression": "this field is required"}),
		},
		{name: "bad expression", token: token, body: []byte(`{"expression":"2*x +","a":0,"b":1}`), wantCode: http.StatusBadRequest},
		{name: "unknown function", token: token, body: []byte(`{"expression":"foo(x)","a":0,"b":1}`), wantCode: http.StatusBadRequest},
		{name: "too many samples", token: token, body: []byte(`{"expression":"x","a":0,"b":1,"samples":2000000}`), wantCode: http.StatusBadRequest},
	}, "/api/assistant/integrate")
}

func Test_assistantApi_history(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.ke", "", []string{user.RoleAdmin}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.ke", "", []string{user.RoleTrainer}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.ke", "", []string{user.RoleStudent}, true)

	trainerToken := getToken(t, trainer)
	studentToken := getToken(t, student)

	doRequest(t, http.MethodPost, "/api/assistant/lesson-notes", trainerToken, []byte(`{"unit":"Networking","topic":"Routing","level":"Level 5"}`), http.StatusOK, nil)
	doRequest(t, http.MethodPost, "/api/assistant/qa", trainerToken, []byte(`{"question":"What is OSPF?","subject":"Networking","level":"Level 5"}`), http.StatusOK, nil)
	doRequest(t, http.MethodPost, "/api/assistant/integrate", trainerToken, []byte(`{"expression":"x^2","a":0,"b":3,"seed":7}`), http.StatusOK, nil)

	var history []assistant.Generation
	doRequest(t, http.MethodGet, "/api/assistant/history", trainerToken, nil, http.StatusOK, &history)
	require.Len(t, history, 3)
	// newest first
	assert.Equal(t, assistant.FlowIntegrate, history[0].Flow)
	assert.Equal(t, assistant.FlowLessonNotes, history[2].Flow)
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.After(history[i-1].CreatedAt))
	}

	doRequest(t, http.MethodGet, "/api/assistant/history?flow=lesson_notes", trainerToken, nil, http.StatusOK, &history)
	require.Len(t, history, 1)
	notesGen := history[0]
	assert.Equal(t, trainer.ID, notesGen.UserID)
	assert.Equal(t, "echo", notesGen.Model)

	doRequest(t, http.MethodGet, "/api/assistant/history?limit=2", trainerToken, nil, http.StatusOK, &history)
	assert.Len(t, history, 2)

	genPath := "/api/assistant/history/" + notesGen.ID
	runHTTPTests(t, http.MethodGet, []httpTest{
		{name: "others have no history", path: "/api/assistant/history", token: studentToken, wantData: marchallList(t)},
		{
			name: "bad flow", path: "/api/assistant/history?flow=poetry", token: trainerToken, wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"flow": "must be one of lesson_notes, academic_qa, timetable_analysis, performance_analysis or integrate"}),
		},
		{name: "bad limit", path: "/api/assistant/history?limit=500", token: trainerToken, wantCode: http.StatusBadRequest},
		{name: "owner reads", path: genPath, token: trainerToken},
		{name: "admin reads", path: genPath, token: getToken(t, admin)},
		{
			name: "others may not", path: genPath, token: studentToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "generation not found"}),
		},
		{name: "unknown", path: "/api/assistant/history/nope", token: trainerToken, wantCode: http.StatusNotFound},
	})
}
