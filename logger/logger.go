// Package logger builds the zap loggers used by the CLI and the HTTP server.
//
// There is no package-level logger: callers build one with New and pass it
// to the components that log (claims.Engine, api.Handler).
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels for the repeatable -v flag.
const (
	VerbosityInfo  = 0 // no flag: progress and results
	VerbosityDebug = 1 // -v: + per-claim merge decisions
	VerbosityTrace = 2 // -vv: + caller and stack traces on warnings
)

// Options configures New.
type Options struct {
	Verbosity int
	JSON      bool      // structured JSON instead of console output
	Output    io.Writer // defaults to os.Stderr
}

// VerbosityToLevel maps -v counts to zap levels.
func VerbosityToLevel(verbosity int) zapcore.Level {
	if verbosity >= VerbosityDebug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// New builds a logger for the given options.
func New(opts Options) *zap.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var encoder zapcore.Encoder
	if opts.JSON {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), VerbosityToLevel(opts.Verbosity))

	var zapOpts []zap.Option
	if opts.Verbosity >= VerbosityTrace {
		zapOpts = append(zapOpts, zap.AddCaller(), zap.AddStacktrace(zapcore.WarnLevel))
	}
	return zap.New(core, zapOpts...)
}
