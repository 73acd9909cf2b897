package ports

import "context"

// Fields carries structured key/value context for a log line.
type Fields = map[string]interface{}

// Logger is the structured logging port shared by the service and its adapters.
// Production wiring uses the zap adapter; tests inject recording mocks.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	// Error logs err alongside msg at Error level.
	Error(ctx context.Context, err error, msg string, fields ...Fields)
}
