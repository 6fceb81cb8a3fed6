package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig controls how ConfigureLogger builds the process logger.
type LoggerConfig struct {
	// Verbosity is a logrus level name ("debug", "info", "warn", "error").
	Verbosity  string
	ShowColors bool
	// LogFile, when set, receives an uncoloured copy of every line and is
	// rotated by size.
	LogFile string
}

// Logger is a key/value logger on top of logrus. Every method takes a message
// followed by alternating keys and values.
type Logger struct {
	l *logrus.Logger
}

// Global is used by Fatal. ConfigureLogger replaces it.
var Global = New(LoggerConfig{Verbosity: "info", ShowColors: true})

// New builds a Logger writing to stdout.
func New(cfg LoggerConfig) *Logger {
	return NewWithWriter(os.Stdout, cfg)
}

// NewWithWriter builds a Logger writing to w.
func NewWithWriter(w io.Writer, cfg LoggerConfig) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&Formatter{Colors: cfg.ShowColors})

	level, err := logrus.ParseLevel(cfg.Verbosity)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.LogFile != "" {
		l.AddHook(&fileHook{
			w: &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    100, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			},
			formatter: &Formatter{},
		})
	}
	return &Logger{l: l}
}

// ConfigureLogger replaces the global logger and returns it.
func ConfigureLogger(cfg LoggerConfig) *Logger {
	Global = New(cfg)
	return Global
}

// SetExitFunc overrides the function Fatal calls after logging.
func (lg *Logger) SetExitFunc(fn func(int)) {
	lg.l.ExitFunc = fn
}

func (lg *Logger) Debug(msg string, ctx ...interface{}) {
	lg.entry(ctx).Debug(msg)
}

func (lg *Logger) Info(msg string, ctx ...interface{}) {
	lg.entry(ctx).Info(msg)
}

// Success logs at info level but is rendered with the SUCCESS severity.
func (lg *Logger) Success(msg string, ctx ...interface{}) {
	lg.entry(ctx).WithField(successKey, true).Info(msg)
}

func (lg *Logger) Warn(msg string, ctx ...interface{}) {
	lg.entry(ctx).Warn(msg)
}

func (lg *Logger) Error(msg string, ctx ...interface{}) {
	lg.entry(ctx).Error(msg)
}

// Fatal logs and terminates the process with status 1.
func (lg *Logger) Fatal(msg string, ctx ...interface{}) {
	lg.entry(ctx).Fatal(msg)
}

func (lg *Logger) entry(ctx []interface{}) *logrus.Entry {
	return logrus.NewEntry(lg.l).WithFields(fields(ctx))
}

func fields(ctx []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(ctx)/2)
	for i := 0; i < len(ctx); i += 2 {
		key := strings.TrimSpace(fmt.Sprint(ctx[i]))
		if i+1 == len(ctx) {
			f[key] = "MISSING"
			break
		}
		f[key] = ctx[i+1]
	}
	return f
}

// Fatal logs through the global logger and exits.
func Fatal(msg string, ctx ...interface{}) { Global.Fatal(msg, ctx...) }

type fileHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(e *logrus.Entry) error {
	line, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}
