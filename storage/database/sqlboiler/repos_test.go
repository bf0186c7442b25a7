package boiledrepos_test

import (
	"testing"

	boiledrepos "github.com/teachhub/backend/storage/database/sqlboiler"
	testutil "github.com/teachhub/backend/tests"
)

// requires a Postgres server: TEST_DATABASE_HOST=localhost go test ./storage/database/sqlboiler/...
func TestRepositories(t *testing.T) {
	db, flush := testutil.PrepareDB(t)

	testutil.RunRepositoryTests(t, testutil.Repositories{
		User:       boiledrepos.NewUserRepository(db),
		School:     boiledrepos.NewSchoolRepository(db),
		Timetable:  boiledrepos.NewTimetableRepository(db),
		Assessment: boiledrepos.NewAssessmentRepository(db),
		Finance:    boiledrepos.NewFinanceRepository(db),
	}, flush)
}
