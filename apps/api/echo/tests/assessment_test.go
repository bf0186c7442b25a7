package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/user"
	testutil "github.com/teachhub/backend/tests"
)

func newAssessmentBody(t *testing.T, unitID, title, kind string, maxScore, weight float64, published bool, date time.Time) []byte {
	return marchallObj(t, assessment.NewAssessment{
		UnitID:    unitID,
		Title:     title,
		Kind:      kind,
		MaxScore:  maxScore,
		Weight:    weight,
		Term:      "2025-T1",
		Date:      date,
		Published: published,
	})
}

func score(f float64) *float64 { return &f }

func Test_assessmentApi_marks(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.ke", "", []string{user.RoleAdmin}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.ke", "", []string{user.RoleTrainer}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.ke", "", []string{user.RoleTrainer}, true)
	alice := testutil.CreateUser(t, usrRepo, "Alice", "alice", "alice@test.ke", "", []string{user.RoleStudent}, true)
	brian := testutil.CreateUser(t, usrRepo, "Brian", "brian", "brian@test.ke", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Out", "out", "out@test.ke", "", []string{user.RoleStudent}, true)
	class := testutil.CreateClass(t, schoolRepo, "ICT Level 5", "ICT5", 2025, "")
	networking := testutil.CreateUnit(t, schoolRepo, "ICT501", "Networking", class.ID, trainer.ID)
	databases := testutil.CreateUnit(t, schoolRepo, "ICT502", "Databases", class.ID, trainer.ID)
	testutil.Enrol(t, schoolRepo, class.ID, alice.ID, "ADM-001")
	testutil.Enrol(t, schoolRepo, class.ID, brian.ID, "ADM-002")

	adminToken := getToken(t, admin)
	trainerToken := getToken(t, trainer)
	aliceToken := getToken(t, alice)

	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	var cat, exam, practical assessment.Assessment
	doRequest(t, http.MethodPost, "/api/assessments", trainerToken,
		newAssessmentBody(t, networking.ID, "CAT 1", "CAT", 30, 30, true, feb), http.StatusCreated, &cat)
	assert.Equal(t, assessment.KindCAT, cat.Kind)
	assert.Equal(t, class.ID, cat.ClassID)

	runHTTPTests(t, http.MethodPost, []httpTest{
		{name: "students may not", token: aliceToken, body: newAssessmentBody(t, networking.ID, "Exam", "exam", 70, 70, true, mar), wantCode: http.StatusForbidden},
		{
			name: "only the unit trainer", token: getToken(t, other), body: newAssessmentBody(t, networking.ID, "Exam", "exam", 70, 70, true, mar),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "only the trainer of the unit may do this"}),
		},
		{
			name: "missing fields", token: trainerToken, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{
				"unit_id":   "this field is required",
				"title":     "this field is required",
				"kind":      "this field is required",
				"max_score": "this field is required",
				"weight":    "this field is required",
				"term":      "this field is required",
				"date":      "this field is required",
			}),
		},
		{
			name: "bad kind", token: trainerToken, body: newAssessmentBody(t, networking.ID, "Quiz", "quiz", 10, 10, true, mar),
			wantCode: http.StatusBadRequest, wantData: fieldErrs(map[string]string{"kind": "must be one of cat, assignment, practical or exam"}),
		},
		{
			name: "weights above 100", token: trainerToken, body: newAssessmentBody(t, networking.ID, "Exam", "exam", 70, 80, true, mar),
			wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"weight": "the weights of a unit's assessments cannot exceed 100 (would be 110)"}),
		},
	}, "/api/assessments")

	doRequest(t, http.MethodPost, "/api/assessments", trainerToken,
		newAssessmentBody(t, networking.ID, "End term", "exam", 70, 70, true, mar), http.StatusCreated, &exam)
	doRequest(t, http.MethodPost, "/api/assessments", trainerToken,
		newAssessmentBody(t, databases.ID, "Schema design", "practical", 50, 50, false, feb), http.StatusCreated, &practical)

	// visibility
	runHTTPTests(t, http.MethodGet, []httpTest{
		{name: "student lists published", path: "/api/assessments", token: aliceToken, wantData: marchallList(t, cat, exam)},
		{name: "staff lists all", path: "/api/assessments", token: trainerToken, wantData: marchallList(t, cat, exam, practical)},
		{name: "filter by unit", path: "/api/assessments?unit=" + databases.ID, token: adminToken, wantData: marchallList(t, practical)},
		{name: "outsider lists nothing", path: "/api/assessments", token: getToken(t, outsider), wantData: marchallList(t)},
		{name: "student retrieves published", path: "/api/assessments/" + cat.ID, token: aliceToken, wantData: marchallObj(t, cat)},
		{name: "student cannot see unpublished", path: "/api/assessments/" + practical.ID, token: aliceToken, wantCode: http.StatusNotFound},
		{name: "outsider cannot see", path: "/api/assessments/" + cat.ID, token: getToken(t, outsider), wantCode: http.StatusNotFound},
		{
			name: "unknown", path: "/api/assessments/nope", token: trainerToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "assessment not found"}),
		},
		{name: "grading scale", path: "/api/grading-scale", token: aliceToken, wantData: marchallObj(t, assessment.DefaultScale)},
	})

	// marks
	marksPath := "/api/assessments/" + cat.ID + "/marks"
	runHTTPTests(t, http.MethodPut, []httpTest{
		{name: "students may not", token: aliceToken, body: []byte(`{"marks":[]}`), wantCode: http.StatusForbidden},
		{
			name: "bad entries", token: trainerToken,
			body: marchallObj(t, assessment.RecordMarks{Marks: []assessment.MarkEntry{
				{StudentID: outsider.ID, Score: score(10)},
				{StudentID: alice.ID, Score: score(40)},
				{StudentID: brian.ID, Score: score(10)},
				{StudentID: brian.ID, Score: score(12)},
			}}),
			wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{
				"marks[0].student_id": "student is not enrolled in the class",
				"marks[1].score":      "score must be between 0 and the assessment max score",
				"marks[3].student_id": "student appears more than once",
			}),
		},
	}, marksPath)

	doRequest(t, http.MethodPut, marksPath, trainerToken, marchallObj(t, assessment.RecordMarks{Marks: []assessment.MarkEntry{
		{StudentID: alice.ID, Score: score(24), Remarks: "Good"},
		{StudentID: brian.ID, Score: score(15)},
	}}), http.StatusOK, nil)
	doRequest(t, http.MethodPut, "/api/assessments/"+exam.ID+"/marks", trainerToken, marchallObj(t, assessment.RecordMarks{Marks: []assessment.MarkEntry{
		{StudentID: alice.ID, Score: score(56)},
		{StudentID: brian.ID},
	}}), http.StatusOK, nil)

	var marks []assessment.Mark
	doRequest(t, http.MethodGet, marksPath, trainerToken, nil, http.StatusOK, &marks)
	require.Len(t, marks, 2)

	// marksheet
	marksheetPath := "/api/marksheets?class=" + class.ID + "&unit=" + networking.ID
	var ms assessment.Marksheet
	doRequest(t, http.MethodGet, marksheetPath, trainerToken, nil, http.StatusOK, &ms)
	assert.Equal(t, float64(100), ms.TotalWeight)
	require.Len(t, ms.Assessments, 2)
	assert.Equal(t, cat.ID, ms.Assessments[0].ID)
	require.Len(t, ms.Rows, 2)

	assert.Equal(t, alice.ID, ms.Rows[0].StudentID)
	assert.Equal(t, float64(80), ms.Rows[0].Total)
	assert.Equal(t, "EE", ms.Rows[0].Grade)
	assert.Equal(t, 1, ms.Rows[0].Rank)
	assert.Equal(t, 0, ms.Rows[0].Missing)

	assert.Equal(t, brian.ID, ms.Rows[1].StudentID)
	assert.Equal(t, float64(15), ms.Rows[1].Percentage)
	assert.Equal(t, "BE", ms.Rows[1].Grade)
	assert.Equal(t, 2, ms.Rows[1].Rank)
	assert.Equal(t, 1, ms.Rows[1].Missing)
	assert.Nil(t, ms.Rows[1].Scores[1])

	runHTTPTests(t, http.MethodGet, []httpTest{
		{name: "students may not", path: marksheetPath, token: aliceToken, wantCode: http.StatusForbidden},
		{name: "other trainer may not", path: marksheetPath, token: getToken(t, other), wantCode: http.StatusForbidden},
		{
			name: "class and unit required", path: "/api/marksheets", token: trainerToken, wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"class": "this field is required", "unit": "this field is required"}),
		},
	})

	// changing an assessment recomputes the cached marksheet
	runHTTPTests(t, http.MethodPut, []httpTest{
		{
			name: "max score below marks", path: "/api/assessments/" + cat.ID, token: trainerToken, body: []byte(`{"max_score":20}`),
			wantCode: http.StatusBadRequest, wantData: fieldErrs(map[string]string{"max_score": "max score is lower than recorded marks"}),
		},
		{name: "weights above 100", path: "/api/assessments/" + cat.ID, token: trainerToken, body: []byte(`{"weight":40}`), wantCode: http.StatusBadRequest},
		{name: "students may not", path: "/api/assessments/" + cat.ID, token: aliceToken, body: []byte(`{"title":"CAT"}`), wantCode: http.StatusForbidden},
	})
	doRequest(t, http.MethodPut, "/api/assessments/"+cat.ID, trainerToken, []byte(`{"max_score":40}`), http.StatusOK, nil)
	doRequest(t, http.MethodGet, marksheetPath, trainerToken, nil, http.StatusOK, &ms)
	// 24/40*30 + 56/70*70
	assert.Equal(t, float64(74), ms.Rows[0].Total)

	// academic record
	recordPath := "/api/students/" + alice.ID + "/academic-record"
	var rec assessment.AcademicRecord
	doRequest(t, http.MethodGet, recordPath, aliceToken, nil, http.StatusOK, &rec)
	assert.Equal(t, "Alice", rec.Name)
	require.Len(t, rec.Classes, 1)
	assert.Equal(t, "ADM-001", rec.Classes[0].AdmissionNo)
	require.Len(t, rec.Classes[0].Units, 2)
	assert.Equal(t, "ICT501", rec.Classes[0].Units[0].Code)
	require.NotNil(t, rec.Classes[0].Units[0].Percentage)
	assert.Equal(t, float64(74), *rec.Classes[0].Units[0].Percentage)
	assert.Equal(t, "ME", rec.Classes[0].Units[0].Grade)
	// the practical is unpublished
	assert.Empty(t, rec.Classes[0].Units[1].Assessments)
	assert.Nil(t, rec.Classes[0].Units[1].Percentage)
	require.NotNil(t, rec.OverallMean)
	assert.Equal(t, float64(74), *rec.OverallMean)
	assert.Equal(t, []assessment.TermMean{{Term: "2025-T1", Units: 1, Mean: 74, Grade: "ME"}}, rec.Terms)

	doRequest(t, http.MethodGet, recordPath, adminToken, nil, http.StatusOK, &rec)
	assert.Len(t, rec.Classes[0].Units[1].Assessments, 1)

	runHTTPTests(t, http.MethodGet, []httpTest{
		{name: "class trainer", path: recordPath, token: trainerToken},
		{
			name: "classmates may not", path: recordPath, token: getToken(t, brian), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you cannot view this academic record"}),
		},
		{name: "unrelated trainer", path: recordPath, token: getToken(t, other), wantCode: http.StatusForbidden},
		{name: "unknown student", path: "/api/students/nope/academic-record", token: adminToken, wantCode: http.StatusNotFound},
	})

	runHTTPTests(t, http.MethodDelete, []httpTest{
		{name: "students may not", path: "/api/assessments/" + cat.ID, token: aliceToken, wantCode: http.StatusForbidden},
		{name: "delete", path: "/api/assessments/" + practical.ID, token: trainerToken, wantCode: http.StatusNoContent},
		{name: "gone", path: "/api/assessments/" + practical.ID, token: trainerToken, wantCode: http.StatusNotFound},
	})
}

// newEvidenceRequest builds a multipart upload; an empty fileName leaves the file out.
func newEvidenceRequest(t *testing.T, token string, fields map[string]string, fileName string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := w.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/evidence", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func Test_assessmentApi_marksheetFollowsEnrolments(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.ke", "", []string{user.RoleAdmin}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.ke", "", []string{user.RoleTrainer}, true)
	alice := testutil.CreateUser(t, usrRepo, "Alice", "alice", "alice@test.ke", "", []string{user.RoleStudent}, true)
	brian := testutil.CreateUser(t, usrRepo, "Brian", "brian", "brian@test.ke", "", []string{user.RoleStudent}, true)
	class := testutil.CreateClass(t, schoolRepo, "ICT Level 5", "ICT5", 2025, "")
	unit := testutil.CreateUnit(t, schoolRepo, "ICT501", "Networking", class.ID, trainer.ID)
	aliceEnrolment := testutil.Enrol(t, schoolRepo, class.ID, alice.ID, "ADM-001")

	adminToken := getToken(t, admin)
	trainerToken := getToken(t, trainer)
	marksheetPath := "/api/marksheets?class=" + class.ID + "&unit=" + unit.ID
	rowNames := func() []string {
		var ms assessment.Marksheet
		doRequest(t, http.MethodGet, marksheetPath, trainerToken, nil, http.StatusOK, &ms)
		names := make([]string, 0, len(ms.Rows))
		for _, row := range ms.Rows {
			names = append(names, row.Name)
		}
		return names
	}

	// cached with Alice only
	assert.Equal(t, []string{"Alice"}, rowNames())

	doRequest(t, http.MethodPost, "/api/classes/"+class.ID+"/enrolments", adminToken,
		marchallObj(t, school.NewEnrolment{StudentID: brian.ID, AdmissionNo: "ADM-002"}), http.StatusCreated, nil)
	assert.Equal(t, []string{"Alice", "Brian"}, rowNames())

	doRequest(t, http.MethodDelete, "/api/enrolments/"+aliceEnrolment.ID, adminToken, nil, http.StatusOK, nil)
	assert.Equal(t, []string{"Brian"}, rowNames())
}

func Test_assessmentApi_evidence(t *testing.T) {
	resetDB(t)

	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.ke", "", []string{user.RoleTrainer}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.ke", "", []string{user.RoleTrainer}, true)
	alice := testutil.CreateUser(t, usrRepo, "Alice", "alice", "alice@test.ke", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, usrRepo, "Out", "out", "out@test.ke", "", []string{user.RoleStudent}, true)
	class := testutil.CreateClass(t, schoolRepo, "ICT Level 5", "ICT5", 2025, "")
	unit := testutil.CreateUnit(t, schoolRepo, "ICT501", "Networking", class.ID, trainer.ID)
	testutil.Enrol(t, schoolRepo, class.ID, alice.ID, "ADM-001")

	trainerToken := getToken(t, trainer)
	otherToken := getToken(t, other)
	aliceToken := getToken(t, alice)
	outsiderToken := getToken(t, outsider)

	content := []byte("%PDF-1.4 cabling report")
	fields := map[string]string{"unit_id": unit.ID, "title": " Cabling report ", "description": "Cat6 runs in Lab 1"}

	uploads := []struct {
		name     string
		token    string
		fields   map[string]string
		fileName string
		wantCode int
		wantData []byte
	}{
		{name: "trainers may not", token: trainerToken, fields: fields, fileName: "report.pdf", wantCode: http.StatusForbidden},
		{name: "not enrolled", token: outsiderToken, fields: fields, fileName: "report.pdf", wantCode: http.StatusForbidden},
		{
			name: "file required", token: aliceToken, fields: fields, wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"file": "this field is required"}),
		},
		{
			name: "title required", token: aliceToken, fields: map[string]string{"unit_id": unit.ID}, fileName: "report.pdf",
			wantCode: http.StatusBadRequest, wantData: fieldErrs(map[string]string{"title": "this field is required"}),
		},
	}
	for _, tt := range uploads {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newEvidenceRequest(t, tt.token, tt.fields, tt.fileName, content)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
		})
	}

	req, rec := newEvidenceRequest(t, aliceToken, fields, "../../report.pdf", content)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ev assessment.Evidence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	assert.Equal(t, "Cabling report", ev.Title)
	assert.Equal(t, "report.pdf", ev.FileName)
	assert.Equal(t, int64(len(content)), ev.Size)
	assert.Equal(t, assessment.EvidenceSubmitted, ev.Status)
	assert.Equal(t, alice.ID, ev.StudentID)

	runHTTPTests(t, http.MethodGet, []httpTest{
		{name: "owner lists", path: "/api/evidence", token: aliceToken, wantData: marchallList(t, ev)},
		{name: "unit trainer lists", path: "/api/evidence", token: trainerToken, wantData: marchallList(t, ev)},
		{name: "other trainer lists nothing", path: "/api/evidence", token: otherToken, wantData: marchallList(t)},
		{name: "other student lists nothing", path: "/api/evidence", token: outsiderToken, wantData: marchallList(t)},
		{name: "other student cannot widen the filter", path: "/api/evidence?student=" + alice.ID, token: outsiderToken, wantData: marchallList(t)},
		{name: "filter by status", path: "/api/evidence?status=verified", token: trainerToken, wantData: marchallList(t)},
		{name: "other trainer cannot download", path: "/api/evidence/" + ev.ID + "/file", token: otherToken, wantCode: http.StatusForbidden},
		{name: "other student cannot download", path: "/api/evidence/" + ev.ID + "/file", token: outsiderToken, wantCode: http.StatusForbidden},
		{
			name: "unknown", path: "/api/evidence/nope/file", token: trainerToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "evidence not found"}),
		},
	})

	for _, token := range []string{aliceToken, trainerToken} {
		req, rec := newAuthRequest(http.MethodGet, "/api/evidence/"+ev.ID+"/file", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, content, rec.Body.Bytes())
		assert.Equal(t, `attachment; filename="report.pdf"`, rec.Header().Get("Content-Disposition"))
	}

	verifyPath := "/api/evidence/" + ev.ID + "/verify"
	runHTTPTests(t, http.MethodPost, []httpTest{
		{name: "students may not", token: aliceToken, body: []byte(`{"decision":"verified"}`), wantCode: http.StatusForbidden},
		{
			name: "reject without feedback", token: trainerToken, body: []byte(`{"decision":"rejected"}`), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"feedback": "feedback is required when rejecting evidence"}),
		},
		{
			name: "bad decision", token: trainerToken, body: []byte(`{"decision":"maybe"}`), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"decision": "must be one of verified or rejected"}),
		},
		{name: "other trainer", token: otherToken, body: []byte(`{"decision":"verified"}`), wantCode: http.StatusForbidden},
	}, verifyPath)

	var verified assessment.Evidence
	doRequest(t, http.MethodPost, verifyPath, trainerToken, []byte(`{"decision":"Verified","feedback":"Neat work"}`), http.StatusOK, &verified)
	assert.Equal(t, assessment.EvidenceVerified, verified.Status)
	assert.Equal(t, trainer.ID, verified.VerifiedBy)
	require.NotNil(t, verified.VerifiedAt)

	runHTTPTests(t, http.MethodPost, []httpTest{
		{
			name: "already reviewed", path: verifyPath, token: trainerToken, body: []byte(`{"decision":"rejected","feedback":"Redo"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "evidence has already been reviewed"}),
		},
	})
}
