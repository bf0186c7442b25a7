package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assessment"
	"github.com/teachhub/backend/core/finance"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/timetable"
	"github.com/teachhub/backend/core/user"
)

// Repositories groups one implementation of every repository.
type Repositories struct {
	User       user.Repository
	School     school.Repository
	Timetable  timetable.Repository
	Assessment assessment.Repository
	Finance    finance.Repository
}

// RunRepositoryTests checks the behaviour every repository implementation shares.
// flush empties the storage between tests.
func RunRepositoryTests(t *testing.T, repos Repositories, flush func()) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repos Repositories)
	}{
		{"DeleteReferencedUser", testDeleteReferencedUser},
		{"ClassCodeUniqueness", testClassCodeUniqueness},
		{"DeleteReferencedClass", testDeleteReferencedClass},
		{"SessionOrdering", testSessionOrdering},
		{"UpsertMarks", testUpsertMarks},
		{"DeleteAssessment", testDeleteAssessment},
		{"Payments", testPayments},
		{"FeeStructures", testFeeStructures},
		{"NotFound", testNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flush()
			tt.fn(t, repos)
		})
	}
}

func trainerAndClass(t *testing.T, repos Repositories) (user.User, school.Class, school.Unit) {
	trainer := CreateUser(t, repos.User, "Grace Wanjiru", "grace", "grace@teachhub.test", "", []string{user.RoleTrainer}, true)
	class := CreateClass(t, repos.School, "Diploma in ICT", "DICT-2024", 2024, trainer.ID)
	unit := CreateUnit(t, repos.School, "ICT101", "Computer Applications", class.ID, trainer.ID)
	return trainer, class, unit
}

func testDeleteReferencedUser(t *testing.T, repos Repositories) {
	ctx := context.Background()
	trainer, _, _ := trainerAndClass(t, repos)
	idle := CreateUser(t, repos.User, "Idle", "idle", "idle@teachhub.test", "", []string{user.RoleStudent}, true)

	_, err := repos.User.DeleteUsersByID(ctx, []string{trainer.ID})
	assert.Equal(t, core.ErrReferenced, errors.Cause(err))

	n, err := repos.User.DeleteUsersByID(ctx, []string{idle.ID, "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testClassCodeUniqueness(t *testing.T, repos Repositories) {
	ctx := context.Background()
	_, class, _ := trainerAndClass(t, repos)

	err := repos.School.CheckClassCodeUniqueness(ctx, "dict-2024", nil)
	assert.Equal(t, school.ErrClassCodeExists, errors.Cause(err))

	err = repos.School.CheckClassCodeUniqueness(ctx, "dict-2024", []string{class.ID})
	assert.NoError(t, err)

	err = repos.School.CheckClassCodeUniqueness(ctx, "DICT-2025", nil)
	assert.NoError(t, err)
}

func testDeleteReferencedClass(t *testing.T, repos Repositories) {
	ctx := context.Background()
	_, class, unit := trainerAndClass(t, repos)

	err := repos.School.DeleteClass(ctx, class.ID)
	assert.Equal(t, core.ErrReferenced, errors.Cause(err))

	require.NoError(t, repos.School.DeleteUnit(ctx, unit.ID))
	require.NoError(t, repos.School.DeleteClass(ctx, class.ID))

	_, err = repos.School.GetClass(ctx, class.ID)
	assert.True(t, core.IsNotFound(err))
}

func testSessionOrdering(t *testing.T, repos Repositories) {
	ctx := context.Background()
	trainer, class, unit := trainerAndClass(t, repos)

	now := time.Now().UTC()
	slots := [][3]string{{"wednesday", "10:00", "11:00"}, {"monday", "14:00", "16:00"}, {"monday", "08:00", "10:00"}}
	for _, s := range slots {
		_, err := repos.Timetable.CreateSession(ctx, timetable.Session{
			Term:      "2024-T1",
			ClassID:   class.ID,
			UnitID:    unit.ID,
			TrainerID: trainer.ID,
			Room:      "Lab 1",
			Day:       s[0],
			Start:     s[1],
			End:       s[2],
			CreatedAt: now,
			UpdatedAt: now,
		})
		require.NoError(t, err)
	}

	sessions, err := repos.Timetable.QuerySessions(ctx, &timetable.QueryFilter{Term: "2024-T1", Room: "lab 1"})
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	got := make([]string, 0, len(sessions))
	for _, s := range sessions {
		got = append(got, s.String())
	}
	assert.Equal(t, []string{"monday 08:00-10:00", "monday 14:00-16:00", "wednesday 10:00-11:00"}, got)

	sessions, err = repos.Timetable.QuerySessions(ctx, &timetable.QueryFilter{ClassIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func createAssessment(t *testing.T, repos Repositories, class school.Class, unit school.Unit, title string) assessment.Assessment {
	now := time.Now().UTC()
	a, err := repos.Assessment.CreateAssessment(context.Background(), assessment.Assessment{
		UnitID:    unit.ID,
		ClassID:   class.ID,
		Title:     title,
		Kind:      assessment.KindCAT,
		MaxScore:  30,
		Weight:    20,
		Term:      "2024-T1",
		Date:      now,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	return a
}

func score(v float64) *float64 { return &v }

func testUpsertMarks(t *testing.T, repos Repositories) {
	ctx := context.Background()
	trainer, class, unit := trainerAndClass(t, repos)
	student := CreateUser(t, repos.User, "Brian Otieno", "brian", "brian@teachhub.test", "", []string{user.RoleStudent}, true)
	cat := createAssessment(t, repos, class, unit, "CAT 1")

	mark := assessment.Mark{
		AssessmentID: cat.ID,
		StudentID:    student.ID,
		Score:        score(12),
		RecordedBy:   trainer.ID,
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repos.Assessment.UpsertMarks(ctx, []assessment.Mark{mark}))

	mark.Score = score(25.5)
	mark.Remarks = "remarked"
	require.NoError(t, repos.Assessment.UpsertMarks(ctx, []assessment.Mark{mark}))

	marks, err := repos.Assessment.QueryMarks(ctx, assessment.MarkFilter{AssessmentIDs: []string{cat.ID}})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	require.NotNil(t, marks[0].Score)
	assert.Equal(t, 25.5, *marks[0].Score)
	assert.Equal(t, "remarked", marks[0].Remarks)

	mark.Score = nil
	require.NoError(t, repos.Assessment.UpsertMarks(ctx, []assessment.Mark{mark}))
	marks, err = repos.Assessment.QueryMarks(ctx, assessment.MarkFilter{StudentID: student.ID})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Nil(t, marks[0].Score)

	marks, err = repos.Assessment.QueryMarks(ctx, assessment.MarkFilter{AssessmentIDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, marks)
}

func testDeleteAssessment(t *testing.T, repos Repositories) {
	ctx := context.Background()
	trainer, class, unit := trainerAndClass(t, repos)
	student := CreateUser(t, repos.User, "Brian Otieno", "brian", "brian@teachhub.test", "", []string{user.RoleStudent}, true)
	cat := createAssessment(t, repos, class, unit, "CAT 1")
	practical := createAssessment(t, repos, class, unit, "Practical 1")

	for _, a := range []assessment.Assessment{cat, practical} {
		err := repos.Assessment.UpsertMarks(ctx, []assessment.Mark{{
			AssessmentID: a.ID, StudentID: student.ID, Score: score(10), RecordedBy: trainer.ID, UpdatedAt: time.Now().UTC(),
		}})
		require.NoError(t, err)
	}
	_, err := repos.Assessment.CreateEvidence(ctx, assessment.Evidence{
		StudentID:    student.ID,
		UnitID:       unit.ID,
		AssessmentID: practical.ID,
		Title:        "Spreadsheet",
		FileName:     "budget.xlsx",
		ContentType:  "application/octet-stream",
		Size:         42,
		StoragePath:  "evidence/budget.xlsx",
		Status:       assessment.EvidenceSubmitted,
		SubmittedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	// evidence blocks the delete
	err = repos.Assessment.DeleteAssessment(ctx, practical.ID)
	assert.Equal(t, core.ErrReferenced, errors.Cause(err))

	// marks go with their assessment
	require.NoError(t, repos.Assessment.DeleteAssessment(ctx, cat.ID))
	marks, err := repos.Assessment.QueryMarks(ctx, assessment.MarkFilter{StudentID: student.ID})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, practical.ID, marks[0].AssessmentID)

	err = repos.Assessment.DeleteAssessment(ctx, cat.ID)
	assert.True(t, core.IsNotFound(err))
}

func testPayments(t *testing.T, repos Repositories) {
	ctx := context.Background()
	bursar := CreateUser(t, repos.User, "Bursar", "bursar", "bursar@teachhub.test", "", []string{user.RoleAdminBursar}, true)
	student := CreateUser(t, repos.User, "Brian Otieno", "brian", "brian@teachhub.test", "", []string{user.RoleStudent}, true)

	now := time.Now().UTC()
	p := finance.Payment{
		StudentID:  student.ID,
		Amount:     150000,
		Method:     finance.MethodMpesa,
		Reference:  "QX12AB34",
		PaidAt:     now,
		RecordedBy: bursar.ID,
		CreatedAt:  now,
	}
	_, err := repos.Finance.CreatePayment(ctx, p)
	require.NoError(t, err)

	_, err = repos.Finance.CreatePayment(ctx, p)
	assert.Equal(t, finance.ErrDuplicateReference, errors.Cause(err))

	payments, err := repos.Finance.QueryPayments(ctx, finance.PaymentFilter{StudentIDs: []string{student.ID}})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(150000), payments[0].Amount)
}

func testFeeStructures(t *testing.T, repos Repositories) {
	ctx := context.Background()
	_, class, _ := trainerAndClass(t, repos)
	student := CreateUser(t, repos.User, "Brian Otieno", "brian", "brian@teachhub.test", "", []string{user.RoleStudent}, true)

	now := time.Now().UTC()
	fs, err := repos.Finance.CreateFeeStructure(ctx, finance.FeeStructure{
		ClassID:   class.ID,
		Term:      "2024-T1",
		Items:     []finance.FeeItem{{Name: "Tuition", Amount: 3500000}, {Name: "Exams", Amount: 250000}},
		DueDate:   now.AddDate(0, 1, 0),
		CreatedAt: now,
	})
	require.NoError(t, err)

	got, err := repos.Finance.GetFeeStructure(ctx, fs.ID)
	require.NoError(t, err)
	assert.Equal(t, fs.Items, got.Items)
	assert.Equal(t, int64(3750000), got.Total())

	_, err = repos.Finance.CreateCharges(ctx, []finance.Charge{{
		StudentID:      student.ID,
		Term:           fs.Term,
		Description:    "Fees 2024-T1",
		Amount:         fs.Total(),
		DueDate:        fs.DueDate,
		FeeStructureID: fs.ID,
		CreatedAt:      now,
	}})
	require.NoError(t, err)

	charges, err := repos.Finance.QueryCharges(ctx, finance.ChargeFilter{FeeStructureID: fs.ID})
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.Equal(t, student.ID, charges[0].StudentID)

	// the class is billed
	err = repos.School.DeleteClass(ctx, class.ID)
	assert.Equal(t, core.ErrReferenced, errors.Cause(err))
}

func testNotFound(t *testing.T, repos Repositories) {
	ctx := context.Background()
	for _, id := range []string{"not-a-uuid", "3f6b2f0e-4f4b-4d8e-9a51-4c3c8f6a2b10"} {
		_, err := repos.School.GetUnit(ctx, id)
		assert.Equal(t, school.ErrUnitNotFound, err)
		_, err = repos.Timetable.GetSession(ctx, id)
		assert.Equal(t, timetable.ErrNotFound, err)
		_, err = repos.Assessment.GetEvidence(ctx, id)
		assert.Equal(t, assessment.ErrEvidenceNotFound, err)
		_, err = repos.Finance.GetFeeStructure(ctx, id)
		assert.Equal(t, finance.ErrFeeStructureNotFound, err)
		_, err = repos.User.GetUser(ctx, user.GetFilter{ID: id})
		assert.Equal(t, user.ErrNotFound, err)
	}
}
