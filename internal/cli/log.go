package cli

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the CLI's structured logger. Verbosity follows the
// same -v/-vv convention as the rest of the retrieval pack's CLIs: 0 logs
// warnings and above, 1 adds info, 2 adds debug. JSON mode always logs at
// warn-or-above so stdout stays a clean success/error envelope and
// diagnostic noise goes to stderr only when something needs attention.
func newLogger(verbosity int, jsonMode bool) *zap.SugaredLogger {
	level := zapcore.WarnLevel
	switch {
	case jsonMode:
		level = zapcore.WarnLevel
	case verbosity >= 2:
		level = zapcore.DebugLevel
	case verbosity >= 1:
		level = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "" // replay ticks already carry their own elapsed time

	logger, err := cfg.Build()
	if err != nil {
		// zap's own config building failing is unrecoverable by the usual
		// error-value path; fall back to a no-op logger rather than a panic
		// so a logging misconfiguration never takes down the CLI.
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}
