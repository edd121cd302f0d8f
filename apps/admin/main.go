package main

import (
	"fmt"
	"log"
	"os"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/store"
	"github.com/swanstudios/studio/core/user"
	emailsvc "github.com/swanstudios/studio/services/email"
	logsvc "github.com/swanstudios/studio/services/logger"
	"github.com/swanstudios/studio/storage/database"
	sqlxrepos "github.com/swanstudios/studio/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	logger.Enable(false)
	defer logger.Sync()

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	// set up services
	tx := database.NewTransactor(db)
	usrRepo := sqlxrepos.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleService(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)

	// start CLI
	cli := commandLine{
		db:       db,
		usrRepo:  usrRepo,
		gamSvc:   gamification.NewService(sqlxrepos.NewGamificationRepository(db), tx, usrSvc, nil, nil, logger),
		storeSvc: store.NewService(sqlxrepos.NewStoreRepository(db), tx, usrSvc, nil, mailSvc, nil, logger, conf),
		logger:   logger,
	}
	if err = cli.run(os.Args[1:]); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
