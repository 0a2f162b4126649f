package ports

// Logger defines the interface for structured logging across both cores.
//
//go:generate go run go.uber.org/mock/mockgen -source=logger.go -destination=mocks/mock_logger.go -package=mocks
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, err error, args ...any)

	// With returns a Logger that prepends the given key-value pairs to
	// every subsequent record.
	With(args ...any) Logger
}
