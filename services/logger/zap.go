package logsvc

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/swanstudios/studio/core"
)

// NewZap builds the local log sink: JSON in production, console elsewhere, silent in tests.
func NewZap(conf *core.Config) (*zap.Logger, error) {
	if conf.TestMode {
		return zap.NewNop(), nil
	}

	var config zap.Config
	if conf.Env == "PROD" || conf.Env == "QA" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}
	if conf.Debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.InitialFields = map[string]interface{}{"env": conf.Env, "build": conf.Build}
	return config.Build(zap.AddCallerSkip(1))
}
