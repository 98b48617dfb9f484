package logging

import "go.uber.org/zap"

// New creates a new zap logger for command line tools, debug output only when verbose
func New(verbose bool) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewExample()
	}
	return logger.Sugar()
}
