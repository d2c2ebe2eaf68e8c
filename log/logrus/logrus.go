// Package logrus adapts a *logrus.Entry to sessioncas.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/sessioncas"
)

var _ sessioncas.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l with a component=sessioncas field.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "sessioncas")}
}

func (l Logger) entry(f sessioncas.Fields) *logrus.Entry {
	e := l.E
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	for k, v := range f {
		if k == "err" {
			continue
		}
		e = e.WithField(k, v)
	}
	return e
}

func (l Logger) Debug(msg string, f sessioncas.Fields) {
	if l.E.Logger.IsLevelEnabled(logrus.DebugLevel) {
		l.entry(f).Debug(msg)
	}
}
func (l Logger) Info(msg string, f sessioncas.Fields)  { l.entry(f).Info(msg) }
func (l Logger) Warn(msg string, f sessioncas.Fields)  { l.entry(f).Warn(msg) }
func (l Logger) Error(msg string, f sessioncas.Fields) { l.entry(f).Error(msg) }
