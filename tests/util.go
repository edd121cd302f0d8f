package testutil

import (
	"context"
	"log"
	"net/mail"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/store"
	"github.com/swanstudios/studio/core/user"
	logsvc "github.com/swanstudios/studio/services/logger"
)

const (
	AdminEmail = "admin@swanstudios.test"
	AdminPhone = "+15555550100"
)

var templatesOnce sync.Once

// NewConfig returns the config used by tests, with the email templates parsed.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.Debug = false
	conf.FrontendBaseURL = "http://localhost:5173"
	conf.DefaultFromEmail = mail.Address{Name: "SwanStudios", Address: "noreply@swanstudios.test"}
	conf.AdminEmails = []mail.Address{{Name: "Admin", Address: AdminEmail}}
	conf.AdminPhone = AdminPhone
	conf.RollbarToken = ""
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour

	templatesOnce.Do(func() {
		if err := core.ParseEmailTemplates(conf); err != nil {
			log.Fatalf("testutil.ParseEmailTemplates(): %v", err)
		}
	})
	return conf
}

// NewLogger returns a rollbar logger with reporting disabled, writing to a no-op zap logger.
func NewLogger(conf *core.Config) core.Logger {
	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("testutil.NewZap(): %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with every domain validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	gamification.InitValidators(validate, translator)
	store.InitValidators(validate, translator)
	return validate, translator
}

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
