package sessioncas

import "github.com/unkn0wn-root/sessioncas/internal/util"

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is a tiny leveled logger. Provide an adapter around logging stack.
// If Logger is nil in Options, logging is disabled.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// opFields are the fields every store log line carries. The key is redacted.
func opFields(op, key string, extra Fields) Fields {
	f := Fields{"op": op, "key": util.Redact(key)}
	for k, v := range extra {
		f[k] = v
	}
	return f
}
