// Package zap adapts a *zap.Logger to sessioncas.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/sessioncas"
)

var _ sessioncas.Logger = Logger{}

// Logger writes store events through L. An "err" field holding an error is logged
// with zap.Error so it lands under zap's standard error key.
type Logger struct{ L *zap.Logger }

// New names l "sessioncas" and wraps it.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("sessioncas")} }

func (z Logger) Debug(msg string, f sessioncas.Fields) {
	if ce := z.L.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(zf(f)...)
	}
}
func (z Logger) Info(msg string, f sessioncas.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f sessioncas.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f sessioncas.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f sessioncas.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys) // stable output for the same event
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
