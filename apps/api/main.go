package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/swanstudios/studio/apps/api/echo"
	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/contact"
	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/store"
	"github.com/swanstudios/studio/core/user"
	emailsvc "github.com/swanstudios/studio/services/email"
	logsvc "github.com/swanstudios/studio/services/logger"
	metricsvc "github.com/swanstudios/studio/services/metrics"
	paymentsvc "github.com/swanstudios/studio/services/payment"
	smssvc "github.com/swanstudios/studio/services/sms"
	"github.com/swanstudios/studio/storage/database"
	dummydb "github.com/swanstudios/studio/storage/database/dummy"
	sqlxrepos "github.com/swanstudios/studio/storage/database/sqlx"
)

// memoryEngine runs the API on the in-memory store, for local demos without postgres.
const memoryEngine = "memory"

type repositories struct {
	db           core.Transactor
	users        user.Repository
	gamification gamification.Repository
	store        store.Repository
	contact      contact.Repository
	close        func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer logger.Sync()

	// set up DB
	repos, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var (
		mailSvc core.EmailService
		smsSvc  core.SMSService
		gateway store.PaymentGateway
	)
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
		smsSvc = smssvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
		smsSvc = smssvc.NewTwilioService(conf, logger)
	}
	if conf.Stripe.SecretKey != "" {
		gateway = paymentsvc.NewStripeGateway(conf, logger)
	} else if conf.Debug {
		gateway = paymentsvc.NewConsoleGateway(conf, logger)
	}
	metrics := metricsvc.NewPrometheus(logger)

	usrSvc := user.NewService(repos.users, mailSvc, conf)
	gamSvc := gamification.NewService(repos.gamification, repos.db, usrSvc, mailSvc, metrics, logger)
	storeSvc := store.NewService(repos.store, repos.db, usrSvc, gateway, mailSvc, metrics, logger, conf)
	contactSvc := contact.NewService(repos.contact, mailSvc, smsSvc, metrics, logger, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	gamification.InitValidators(validate, translator)
	store.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(conf); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Metrics:    metrics,
			Validate:   validate,
			Translator: translator,

			UserSvc:         usrSvc,
			GamificationSvc: gamSvc,
			StoreSvc:        storeSvc,
			ContactSvc:      contactSvc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpRepositories(conf *core.Config) (*repositories, error) {
	if conf.Database.Engine == memoryEngine {
		db := dummydb.Open()
		return &repositories{
			db:           db,
			users:        dummydb.NewUserRepository(db),
			gamification: dummydb.NewGamificationRepository(db),
			store:        dummydb.NewStoreRepository(db),
			contact:      dummydb.NewContactRepository(db),
			close:        func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repositories{
		db:           database.NewTransactor(db),
		users:        sqlxrepos.NewUserRepository(db),
		gamification: sqlxrepos.NewGamificationRepository(db),
		store:        sqlxrepos.NewStoreRepository(db),
		contact:      sqlxrepos.NewContactRepository(db),
		close:        db.Close,
	}, nil
}
