package ports

import "context"

// Logger defines a standard interface for logging messages and errors.
// This allows injecting different logging implementations (e.g., standard log, zerolog, zap).
type Logger interface {
	// Debug logs a message at Debug level.
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	// Info logs a message at Info level.
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	// Warn logs a message at Warning level.
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs an error message at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}

// Event is a notable occurrence the core reports to the outside world:
// a rejected open, a degraded price lookup, a close that needs
// reconciliation. Consumers decide what to do with it.
type Event struct {
	Kind   string // e.g. "trade_rejected", "price_degraded", "reconciliation_required"
	Fields map[string]interface{}
}

// EventRecorder receives observability events from the core. Implementations
// must not block; a slow sink must never stall a scan or an open.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev Event)
}
