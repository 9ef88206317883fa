package logger

import "github.com/go-gost/core/logger"

var nop logger.Logger = &nopLogger{}

// Nop returns a logger that discards everything.
func Nop() logger.Logger {
	return nop
}

type nopLogger struct{}

func (l *nopLogger) WithFields(map[string]any) logger.Logger { return l }
func (*nopLogger) Trace(args ...any)                         {}
func (*nopLogger) Tracef(format string, args ...any)         {}
func (*nopLogger) Debug(args ...any)                         {}
func (*nopLogger) Debugf(format string, args ...any)         {}
func (*nopLogger) Info(args ...any)                          {}
func (*nopLogger) Infof(format string, args ...any)          {}
func (*nopLogger) Warn(args ...any)                          {}
func (*nopLogger) Warnf(format string, args ...any)          {}
func (*nopLogger) Error(args ...any)                         {}
func (*nopLogger) Errorf(format string, args ...any)         {}
func (*nopLogger) Fatal(args ...any)                         {}
func (*nopLogger) Fatalf(format string, args ...any)         {}
func (*nopLogger) GetLevel() logger.LogLevel                 { return logger.FatalLevel }
func (*nopLogger) IsLevelEnabled(logger.LogLevel) bool       { return false }
