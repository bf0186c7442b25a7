package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/teachhub/backend/apps/api/echo"
	"github.com/teachhub/backend/core/finance"
	"github.com/teachhub/backend/core/user"
	testutil "github.com/teachhub/backend/tests"
)

func Test_financeApi(t *testing.T) {
	resetDB(t)

	bursar := testutil.CreateUser(t, usrRepo, "Bursar", "bursar", "bursar@test.ke", "", []string{user.RoleAdminBursar}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.ke", "", []string{user.RoleAdmin}, true)
	trainer := testutil.CreateUser(t, usrRepo, "Trainer", "trainer", "trainer@test.ke", "", []string{user.RoleTrainer}, true)
	alice := testutil.CreateUser(t, usrRepo, "Alice", "alice", "alice@test.ke", "", []string{user.RoleStudent}, true)
	brian := testutil.CreateUser(t, usrRepo, "Brian", "brian", "brian@test.ke", "", []string{user.RoleStudent}, true)
	class := testutil.CreateClass(t, schoolRepo, "ICT Level 5", "ICT5", 2025, "")
	testutil.Enrol(t, schoolRepo, class.ID, alice.ID, "ADM-001")
	testutil.Enrol(t, schoolRepo, class.ID, brian.ID, "ADM-002")

	bursarToken := getToken(t, bursar)
	aliceToken := getToken(t, alice)
	due := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	feeBody := marchallObj(t, finance.NewFeeStructure{
		ClassID: class.ID,
		Term:    "2025-T1",
		Items:   []finance.FeeItem{{Name: "Tuition", Amount: 2500000}, {Name: "Lab", Amount: 500000}},
		DueDate: due,
	})

	runHTTPTests(t, http.MethodPost, []httpTest{
		{name: "plain admins may not", token: getToken(t, admin), body: feeBody, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "students may not", token: aliceToken, body: feeBody, wantCode: http.StatusForbidden},
		{name: "anonymous", body: feeBody, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "missing fields", token: bursarToken, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{
				"class_id": "this field is required",
				"term":     "this field is required",
				"items":    "this field is required",
				"due_date": "this field is required",
			}),
		},
		{
			name: "unknown class", token: bursarToken, wantCode: http.StatusBadRequest,
			body: marchallObj(t, finance.NewFeeStructure{
				ClassID: "7d1f38a6-9f6a-4c55-8d57-2b8e4d6c9a10", Term: "2025-T1",
				Items: []finance.FeeItem{{Name: "Tuition", Amount: 100}}, DueDate: due,
			}),
			wantData: fieldErrs(map[string]string{"class_id": "class not found"}),
		},
	}, "/api/finance/fee-structures")

	var fs finance.FeeStructure
	doRequest(t, http.MethodPost, "/api/finance/fee-structures", bursarToken, feeBody, http.StatusCreated, &fs)
	assert.Equal(t, int64(3000000), fs.Total())

	runHTTPTests(t, http.MethodGet, []httpTest{
		{name: "by class", path: "/api/finance/fee-structures?class=" + class.ID, token: bursarToken, wantData: marchallList(t, fs)},
		{name: "other term", path: "/api/finance/fee-structures?term=2025-T2", token: bursarToken, wantData: marchallList(t)},
	})

	applyPath := "/api/finance/fee-structures/" + fs.ID + "/apply"
	runHTTPTests(t, http.MethodPost, []httpTest{
		{name: "apply", path: applyPath, token: bursarToken, wantData: marchallObj(t, echoapi.ApplyFeeStructureResponse{Billed: 2})},
		{name: "apply twice bills nobody", path: applyPath, token: bursarToken, wantData: marchallObj(t, echoapi.ApplyFeeStructureResponse{Billed: 0})},
		{
			name: "unknown structure", path: "/api/finance/fee-structures/nope/apply", token: bursarToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "fee structure not found"}),
		},
	})

	chargeBody := func(studentID string) []byte {
		return marchallObj(t, finance.NewCharge{StudentID: studentID, Term: "2025-T1", Description: "Field trip", Amount: 150000, DueDate: due})
	}
	runHTTPTests(t, http.MethodPost, []httpTest{
		{
			name: "not a student", token: bursarToken, body: chargeBody(trainer.ID), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"student_id": "user is not a student"}),
		},
		{name: "charge", token: bursarToken, body: chargeBody(alice.ID), wantCode: http.StatusCreated},
	}, "/api/finance/charges")

	paymentBody := func(method, ref string) []byte {
		return marchallObj(t, finance.NewPayment{StudentID: alice.ID, Amount: 2000000, Method: method, Reference: ref})
	}
	var payment finance.Payment
	doRequest(t, http.MethodPost, "/api/finance/payments", bursarToken, paymentBody("MPESA", " qwe123 "), http.StatusCreated, &payment)
	assert.Equal(t, "QWE123", payment.Reference)
	assert.Equal(t, finance.MethodMpesa, payment.Method)
	assert.Equal(t, bursar.ID, payment.RecordedBy)

	sent := mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@test.ke", sent[0].To[0].Address)
	assert.Equal(t, "Payment Receipt QWE123", sent[0].Subject)
	data, ok := sent[0].TemplateData.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "KES 20,000.00", data["Amount"])
	assert.Equal(t, "KES 11,500.00", data["Balance"])

	runHTTPTests(t, http.MethodPost, []httpTest{
		{
			name: "duplicate reference", token: bursarToken, body: paymentBody("cash", "QWE123"), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"reference": "a payment with this reference already exists"}),
		},
		{
			name: "bad method", token: bursarToken, body: paymentBody("cheque", "CHQ1"), wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"method": "must be one of cash, mpesa, bank or card"}),
		},
	}, "/api/finance/payments")

	balancePath := func(id string) string { return "/api/finance/students/" + id + "/balance" }
	runHTTPTests(t, http.MethodGet, []httpTest{
		{name: "own balance", path: balancePath(alice.ID), token: aliceToken, wantData: marchallObj(t, echoapi.BalanceResponse{StudentID: alice.ID, Balance: 1150000})},
		{name: "bursar reads", path: balancePath(brian.ID), token: bursarToken, wantData: marchallObj(t, echoapi.BalanceResponse{StudentID: brian.ID, Balance: 3000000})},
		{
			name: "classmates may not", path: balancePath(alice.ID), token: getToken(t, brian), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "you cannot view this student's finances"}),
		},
		{name: "trainers may not", path: balancePath(alice.ID), token: getToken(t, trainer), wantCode: http.StatusForbidden},
		{
			name: "arrears need a class", path: "/api/finance/arrears", token: bursarToken, wantCode: http.StatusBadRequest,
			wantData: fieldErrs(map[string]string{"class": "this field is required"}),
		},
		{name: "arrears are for finance", path: "/api/finance/arrears?class=" + class.ID, token: getToken(t, admin), wantCode: http.StatusForbidden},
		{
			name: "bad statement range", path: "/api/finance/students/" + alice.ID + "/statement?from=2025-03-01&to=2025-02-01", token: aliceToken,
			wantCode: http.StatusBadRequest, wantData: fieldErrs(map[string]string{"to": "must be on or after from"}),
		},
		{name: "bad statement date", path: "/api/finance/students/" + alice.ID + "/statement?from=March", token: aliceToken, wantCode: http.StatusBadRequest},
	})

	var arrears []finance.Arrear
	doRequest(t, http.MethodGet, "/api/finance/arrears?class="+class.ID, bursarToken, nil, http.StatusOK, &arrears)
	assert.Equal(t, []finance.Arrear{
		{StudentID: brian.ID, AdmissionNo: "ADM-002", Name: "Brian", Balance: 3000000},
		{StudentID: alice.ID, AdmissionNo: "ADM-001", Name: "Alice", Balance: 1150000},
	}, arrears)

	var stmt finance.Statement
	doRequest(t, http.MethodGet, "/api/finance/students/"+alice.ID+"/statement", aliceToken, nil, http.StatusOK, &stmt)
	assert.Equal(t, "KES", stmt.Currency)
	assert.Equal(t, int64(0), stmt.OpeningBalance)
	assert.Equal(t, int64(1150000), stmt.ClosingBalance)
	require.Len(t, stmt.Entries, 3)
	assert.Equal(t, finance.EntryCharge, stmt.Entries[0].Kind)
	assert.Equal(t, int64(3000000), stmt.Entries[0].Balance)
	assert.Equal(t, int64(3150000), stmt.Entries[1].Balance)
	assert.Equal(t, finance.EntryPayment, stmt.Entries[2].Kind)
	assert.Equal(t, "Payment MPESA QWE123", stmt.Entries[2].Description)

	// everything happened before a future start
	doRequest(t, http.MethodGet, "/api/finance/students/"+alice.ID+"/statement?from=2999-01-01", bursarToken, nil, http.StatusOK, &stmt)
	assert.Empty(t, stmt.Entries)
	assert.Equal(t, int64(1150000), stmt.OpeningBalance)
	assert.Equal(t, int64(1150000), stmt.ClosingBalance)
}
