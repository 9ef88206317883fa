package logger

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/go-gost/core/logger"
	"github.com/sirupsen/logrus"
)

const (
	jsonTimestampFormat = "2006-01-02T15:04:05.000Z07:00"
	callerSkip          = 3
)

type Options struct {
	Name   string
	Output io.Writer
	Format logger.LogFormat
	Level  logger.LogLevel
}

type Option func(opts *Options)

func NameOption(name string) Option {
	return func(opts *Options) {
		opts.Name = name
	}
}

func OutputOption(out io.Writer) Option {
	return func(opts *Options) {
		opts.Output = out
	}
}

func FormatOption(format logger.LogFormat) Option {
	return func(opts *Options) {
		opts.Format = format
	}
}

func LevelOption(level logger.LogLevel) Option {
	return func(opts *Options) {
		opts.Level = level
	}
}

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogger creates a logrus backed logger.
// The JSON formatter is used unless the text format is requested,
// unknown levels fall back to info.
func NewLogger(opts ...Option) logger.Logger {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	log := logrus.New()
	if options.Output != nil {
		log.SetOutput(options.Output)
	}
	log.SetFormatter(formatter(options.Format))
	log.SetLevel(level(options.Level))

	l := &logrusLogger{
		entry: logrus.NewEntry(log),
	}
	if options.Name != "" {
		l.entry = l.entry.WithField("logger", options.Name)
	}
	return l
}

func formatter(format logger.LogFormat) logrus.Formatter {
	if format == logger.TextFormat {
		return &logrus.TextFormatter{
			FullTimestamp: true,
		}
	}
	return &logrus.JSONFormatter{
		DisableHTMLEscape: true,
		TimestampFormat:   jsonTimestampFormat,
	}
}

func level(lvl logger.LogLevel) logrus.Level {
	switch lvl {
	case logger.TraceLevel,
		logger.DebugLevel,
		logger.InfoLevel,
		logger.WarnLevel,
		logger.ErrorLevel,
		logger.FatalLevel:
		if v, err := logrus.ParseLevel(string(lvl)); err == nil {
			return v
		}
	}
	return logrus.InfoLevel
}

// WithFields adds new fields to log.
func (l *logrusLogger) WithFields(fields map[string]any) logger.Logger {
	return &logrusLogger{
		entry: l.entry.WithFields(logrus.Fields(fields)),
	}
}

func (l *logrusLogger) Trace(args ...any) {
	l.log(logrus.TraceLevel, args...)
}

func (l *logrusLogger) Tracef(format string, args ...any) {
	l.logf(logrus.TraceLevel, format, args...)
}

func (l *logrusLogger) Debug(args ...any) {
	l.log(logrus.DebugLevel, args...)
}

func (l *logrusLogger) Debugf(format string, args ...any) {
	l.logf(logrus.DebugLevel, format, args...)
}

func (l *logrusLogger) Info(args ...any) {
	l.log(logrus.InfoLevel, args...)
}

func (l *logrusLogger) Infof(format string, args ...any) {
	l.logf(logrus.InfoLevel, format, args...)
}

func (l *logrusLogger) Warn(args ...any) {
	l.log(logrus.WarnLevel, args...)
}

func (l *logrusLogger) Warnf(format string, args ...any) {
	l.logf(logrus.WarnLevel, format, args...)
}

func (l *logrusLogger) Error(args ...any) {
	l.log(logrus.ErrorLevel, args...)
}

func (l *logrusLogger) Errorf(format string, args ...any) {
	l.logf(logrus.ErrorLevel, format, args...)
}

// Fatal logs a message at level Fatal then the process will exit with status set to 1.
func (l *logrusLogger) Fatal(args ...any) {
	l.log(logrus.FatalLevel, args...)
	l.entry.Logger.Exit(1)
}

// Fatalf logs a message at level Fatal then the process will exit with status set to 1.
func (l *logrusLogger) Fatalf(format string, args ...any) {
	l.logf(logrus.FatalLevel, format, args...)
	l.entry.Logger.Exit(1)
}

func (l *logrusLogger) GetLevel() logger.LogLevel {
	return logger.LogLevel(l.entry.Logger.GetLevel().String())
}

func (l *logrusLogger) IsLevelEnabled(lvl logger.LogLevel) bool {
	v, err := logrus.ParseLevel(string(lvl))
	if err != nil {
		return false
	}
	return l.entry.Logger.IsLevelEnabled(v)
}

func (l *logrusLogger) log(lvl logrus.Level, args ...any) {
	if !l.entry.Logger.IsLevelEnabled(lvl) {
		return
	}
	l.withCaller().Log(lvl, args...)
}

func (l *logrusLogger) logf(lvl logrus.Level, format string, args ...any) {
	if !l.entry.Logger.IsLevelEnabled(lvl) {
		return
	}
	l.withCaller().Logf(lvl, format, args...)
}

// withCaller attaches the call site when debug logging is on.
func (l *logrusLogger) withCaller() *logrus.Entry {
	if !l.entry.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return l.entry
	}
	return l.entry.WithField("caller", caller(callerSkip+1))
}

func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file = "<???>"
	} else {
		file = filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file))
	}
	return fmt.Sprintf("%s:%d", file, line)
}
