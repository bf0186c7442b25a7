package dummydb_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	dummydb "github.com/teachhub/backend/storage/database/dummy"
	testutil "github.com/teachhub/backend/tests"
)

func TestRepositories(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)

	testutil.RunRepositoryTests(t, testutil.Repositories{
		User:       dummydb.NewUserRepository(db),
		School:     dummydb.NewSchoolRepository(db),
		Timetable:  dummydb.NewTimetableRepository(db),
		Assessment: dummydb.NewAssessmentRepository(db),
		Finance:    dummydb.NewFinanceRepository(db),
	}, db.Flush)
}
