package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/school"
	"github.com/teachhub/backend/core/user"
	"github.com/teachhub/backend/storage/database"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo school.Repository, name, code string, year int, trainerID string) school.Class {
	now := time.Now().UTC()
	class, err := repo.CreateClass(context.Background(), school.Class{
		Name:      name,
		Code:      code,
		Year:      year,
		TrainerID: trainerID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createClass() failed: %v", err)
	}
	return class
}

func CreateUnit(t *testing.T, repo school.Repository, code, name, classID, trainerID string) school.Unit {
	now := time.Now().UTC()
	unit, err := repo.CreateUnit(context.Background(), school.Unit{
		Code:      code,
		Name:      name,
		ClassID:   classID,
		TrainerID: trainerID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createUnit() failed: %v", err)
	}
	return unit
}

func Enrol(t *testing.T, repo school.Repository, classID, studentID, admissionNo string) school.Enrolment {
	now := time.Now().UTC()
	e, err := repo.CreateEnrolment(context.Background(), school.Enrolment{
		ClassID:     classID,
		StudentID:   studentID,
		AdmissionNo: admissionNo,
		Status:      school.EnrolmentActive,
		EnrolledAt:  now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("enrol() failed: %v", err)
	}
	return e
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// PrepareDB opens & migrates the test database, skipping the test when TEST_DATABASE_HOST is not set.
// The returned func empties every table.
func PrepareDB(t *testing.T) (*sql.DB, func()) {
	host := os.Getenv("TEST_DATABASE_HOST")
	if host == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}

	conf := core.NewTestConfig()
	conf.Database = core.DatabaseConfig{
		Engine:        "postgres",
		Host:          host,
		Port:          envOr("TEST_DATABASE_PORT", "5432"),
		Name:          "teachhub_test",
		User:          envOr("TEST_DATABASE_USER", "teachhub"),
		Password:      envOr("TEST_DATABASE_PASSWORD", "teachhub"),
		AdminUser:     envOr("TEST_DATABASE_ADMIN_USER", "postgres"),
		AdminPassword: os.Getenv("TEST_DATABASE_ADMIN_PASSWORD"),
		DisableTLS:    true,
	}

	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	flush := func() {
		_, err := db.ExecContext(ctx, `TRUNCATE payment, charge, fee_structure, evidence, mark, assessment,
			lesson_plan, session, enrolment, unit, class, "user" CASCADE`)
		if err != nil {
			t.Fatalf("flushing test database: %v", err)
		}
	}
	flush()
	t.Cleanup(func() { _ = db.Close() })
	return db, flush
}
