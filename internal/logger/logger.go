// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/rivenmedia/rivenfs/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Custom severities below/above the standard slog range, so that TRACE can
// sit below DEBUG and OFF above ERROR, the same extension gcsfuse applies to
// slog's level space.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(math.MaxInt)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelWarn:  "WARNING",
}

// loggerFactory owns the handler construction state (destination, format,
// severity, rotation policy) so SetLogFormat/InitLogFile can rebuild the
// default logger without losing the others' settings.
type loggerFactory struct {
	file            *os.File
	sysWriter       io.Writer
	format          string
	level           cfg.LogSeverity
	logRotateConfig cfg.LogRotateConfig
}

var defaultLoggerFactory = &loggerFactory{
	file:            nil,
	sysWriter:       os.Stderr,
	format:          "text",
	level:           cfg.INFO,
	logRotateConfig: cfg.DefaultLoggingConfig().LogRotate,
}

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, new(slog.LevelVar), ""))

func init() {
	programLevel := new(slog.LevelVar)
	setLoggingLevel(defaultLoggerFactory.level, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
}

// createJsonOrTextHandler builds a slog.Handler writing to w, renaming the
// "level" attribute to "severity" and the message key to match gcsfuse's
// wire format, with an optional message prefix used by tests to avoid
// colliding with other suites' output.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	jsonFormat := f.format == "json"

	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			level := a.Value.Any().(slog.Level)
			if name, ok := levelNames[level]; ok {
				a.Value = slog.StringValue(name)
			} else {
				a.Value = slog.StringValue(level.String())
			}
			a.Key = "severity"
		case slog.MessageKey:
			a.Key = "message"
			a.Value = slog.StringValue(prefix + a.Value.String())
		case slog.TimeKey:
			t := a.Value.Time()
			if jsonFormat {
				a.Key = "timestamp"
				a.Value = slog.GroupValue(
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())),
				)
			} else {
				a.Value = slog.StringValue(t.Format("02/01/2006 15:04:05.000000"))
			}
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: programLevel, ReplaceAttr: replace}

	if jsonFormat {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func setLoggingLevel(level cfg.LogSeverity, programLevel *slog.LevelVar) {
	switch level {
	case cfg.TRACE:
		programLevel.Set(LevelTrace)
	case cfg.DEBUG:
		programLevel.Set(LevelDebug)
	case cfg.INFO:
		programLevel.Set(LevelInfo)
	case cfg.WARNING:
		programLevel.Set(LevelWarn)
	case cfg.ERROR:
		programLevel.Set(LevelError)
	case cfg.OFF:
		programLevel.Set(LevelOff)
	default:
		programLevel.Set(LevelInfo)
	}
}

// SetLogFormat switches the default logger between "text" and "json" output,
// preserving the current destination and severity.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format

	programLevel := new(slog.LevelVar)
	setLoggingLevel(defaultLoggerFactory.level, programLevel)

	var w io.Writer = os.Stderr
	if defaultLoggerFactory.file != nil {
		w = defaultLoggerFactory.file
	} else if defaultLoggerFactory.sysWriter != nil {
		w = defaultLoggerFactory.sysWriter
	}

	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, programLevel, ""))
}

// InitLogFile opens (creating if necessary) the configured log file and
// wraps it in a lumberjack.Logger for size/backup-count/compress rotation,
// rebuilding the default logger against it. An empty FilePath keeps logging
// on stderr.
func InitLogFile(logConfig cfg.LoggingConfig) error {
	defaultLoggerFactory.logRotateConfig = logConfig.LogRotate
	defaultLoggerFactory.level = logConfig.Severity
	defaultLoggerFactory.format = logConfig.Format

	if logConfig.FilePath == "" {
		defaultLoggerFactory.file = nil
		defaultLoggerFactory.sysWriter = os.Stderr
		SetLogFormat(defaultLoggerFactory.format)
		return nil
	}

	f, err := os.OpenFile(string(logConfig.FilePath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file %q: %w", logConfig.FilePath, err)
	}
	defaultLoggerFactory.file = f
	defaultLoggerFactory.sysWriter = nil

	rotated := &lumberjack.Logger{
		Filename:   string(logConfig.FilePath),
		MaxSize:    logConfig.LogRotate.MaxFileSizeMb,
		MaxBackups: logConfig.LogRotate.BackupFileCount,
		Compress:   logConfig.LogRotate.Compress,
	}

	programLevel := new(slog.LevelVar)
	setLoggingLevel(defaultLoggerFactory.level, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(rotated, programLevel, ""))
	return nil
}

func Tracef(format string, v ...any) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) {
	defaultLogger.Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	defaultLogger.Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	defaultLogger.Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	defaultLogger.Error(fmt.Sprintf(format, v...))
}
