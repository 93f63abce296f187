// Package logging wires up the run's structured logger: a console-or-file
// text core for operator-facing messages and a second core writing one
// JSON object per line to the run's events file, backed by a rotating
// lumberjack writer (10 MiB × 5, per spec.md §6's "persisted state"
// requirement). Both cores share the same zap.Logger, the way the teacher
// already uses zap across its agent and HTTP instrumentation.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 10
	maxBackups = 5
)

// Options configures New.
type Options struct {
	LogDir string
	Level  zapcore.Level
	Quiet  bool
}

// New builds the dual-core logger: a human-readable rotating run log and a
// structured JSON events file, both under LogDir.
func New(opts Options) (*zap.Logger, error) {
	runLogPath := filepath.Join(opts.LogDir, "run.log")
	eventsLogPath := filepath.Join(opts.LogDir, "events.jsonl")

	runWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   runLogPath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	})
	eventsWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   eventsLogPath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	})

	textEncoder := zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig())
	jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	level := opts.Level
	if level == 0 {
		level = zapcore.InfoLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(textEncoder, runWriter, level),
		zapcore.NewCore(jsonEncoder, eventsWriter, level),
	}
	if !opts.Quiet {
		cores = append(cores, zapcore.NewCore(textEncoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), level))
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core, zap.AddCaller()), nil
}
