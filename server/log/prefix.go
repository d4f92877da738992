package log

import (
	"sync/atomic"

	"github.com/cyclopcam/logs"
)

// PrefixLogger writes to the underlying log, but all messages are prefixed with a string of your choice.
// The prefix can be changed while other goroutines are logging.
type PrefixLogger struct {
	Log    logs.Log
	prefix atomic.Pointer[string]
}

// Create a new PrefixLogger
func NewPrefixLogger(log logs.Log, prefix string) *PrefixLogger {
	return NewPrefixLoggerNoSpace(log, prefix+" ")
}

// Create a new PrefixLogger, but don't add a space onto 'prefix'
func NewPrefixLoggerNoSpace(log logs.Log, prefix string) *PrefixLogger {
	l := &PrefixLogger{
		Log: log,
	}
	l.prefix.Store(&prefix)
	return l
}

// SetPrefix replaces the prefix. A space is added, as with NewPrefixLogger.
func (l *PrefixLogger) SetPrefix(prefix string) {
	prefix += " "
	l.prefix.Store(&prefix)
}

func (l *PrefixLogger) Prefix() string {
	return *l.prefix.Load()
}

func (l *PrefixLogger) Close() {
	l.Log.Close()
}

func (l *PrefixLogger) Debugf(format string, a ...interface{}) {
	l.Log.Debugf(l.Prefix()+format, a...)
}

func (l *PrefixLogger) Infof(format string, a ...interface{}) {
	l.Log.Infof(l.Prefix()+format, a...)
}

func (l *PrefixLogger) Warnf(format string, a ...interface{}) {
	l.Log.Warnf(l.Prefix()+format, a...)
}

func (l *PrefixLogger) Errorf(format string, a ...interface{}) {
	l.Log.Errorf(l.Prefix()+format, a...)
}

func (l *PrefixLogger) Criticalf(format string, a ...interface{}) {
	l.Log.Criticalf(l.Prefix()+format, a...)
}
