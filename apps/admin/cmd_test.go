package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachhub/backend/core/user"
	dummydb "github.com/teachhub/backend/storage/database/dummy"
	testutil "github.com/teachhub/backend/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo = dummydb.NewUserRepository(db)

	// start CLI
	return &commandLine{
		usrRepo: usrRepo,
		out:     new(bytes.Buffer),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		assert.EqualError(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var ran []string
	runMigrationFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	}
	createMigrationFunc = func(db *sql.DB, dir, name, migrationType string) error {
		if migrationType != "sql" && migrationType != "go" {
			return fmt.Errorf("template for %q not found", migrationType)
		}
		ran = append(ran, "create "+name+"."+migrationType)
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: admin migrate create NAME [sql|go]"},
		{name: "create: bad type", args: []string{"migrate", "create", "course", "yaml"}, wantErrStr: "template for \"yaml\" not found"},
		{name: "create", args: []string{"migrate", "create", "course"}},
		{name: "create go", args: []string{"migrate", "create", "backfill", "go"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
	assert.Equal(t, []string{"up", "up-by-one", "up-to", "down", "down-to", "redo", "reset", "status", "version", "fix", "create course.sql", "create backfill.go"}, ran)
}

func Test_commandLine_root(t *testing.T) {
	cli := setup(t)

	assert.Equal(t, errHelp, cli.run([]string{"admin"}))
	assert.Error(t, cli.run([]string{"admin", "lol"}))
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	existing := testutil.CreateUser(t, usrRepo, "Old Name", "bursar", "bursar@test.ke", "old", []string{user.RoleTrainer}, false)

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email missing", args: []string{"adduser", "--username", "awe"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "--username", "awe", "--email", "awe@test.ke"}, wantErr: errHelp},
		{
			name: "unknown role", args: []string{"adduser", "--username", "awe", "--email", "awe@test.ke", "--role", "wizard"},
			extra: "secret", wantErrStr: `unknown role "wizard"`,
		},
		{name: "create", args: []string{"adduser", "--name", "Awe", "--username", " AWE ", "--email", "Awe@Test.ke", "--admin"}, extra: "secret"},
		{name: "update", args: []string{"adduser", "--username", "bursar", "--email", "bursar@test.ke", "--role", "admin:bursar"}, extra: "new"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	ctx := context.Background()
	created, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "awe"})
	require.NoError(t, err)
	assert.Equal(t, "Awe", created.Name)
	assert.Equal(t, "awe@test.ke", created.Email)
	assert.Equal(t, []string{user.RoleAdminOwner}, created.Roles)
	assert.True(t, created.IsActive)
	assert.NoError(t, created.CheckPassword("secret"))

	updated, err := usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, "Old Name", updated.Name)
	assert.Equal(t, []string{user.RoleAdminBursar}, updated.Roles)
	assert.True(t, updated.IsActive)
	assert.NoError(t, updated.CheckPassword("new"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.ke", "mdr", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "--username", "awe"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "--username", usr.Email}, extra: "lmao"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			}
		})
	}
}
