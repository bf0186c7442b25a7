package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/teachhub/backend/core"
	logsvc "github.com/teachhub/backend/services/logger"
	"github.com/teachhub/backend/storage/database"
	boiledrepos "github.com/teachhub/backend/storage/database/sqlboiler"
)

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		db:            db,
		usrRepo:       boiledrepos.NewUserRepository(db),
		migrationsDir: filepath.Join(conf.WorkDir, "fs", "migrations"),
		out:           os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
