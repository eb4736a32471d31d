package core

// Logger logs messages and reports them to the error tracker.
// args are key/value pairs; an error arg is reported with its stacktrace.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
