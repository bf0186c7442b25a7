package main

import (
	"errors"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var createMigrationFunc = goose.Create // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) migrate(args []string) error {
	if args[0] != "create" {
		return runMigrationFunc(cli.db, args[0], args[1:]...)
	}

	// new migration files are written to the source tree, not the embedded FS
	if len(args) < 2 {
		return errors.New("create must be of form: admin migrate create NAME [sql|go]")
	}
	migrationType := "sql"
	if len(args) > 2 {
		migrationType = args[2]
	}
	return createMigrationFunc(nil, cli.migrationsDir, args[1], migrationType)
}
