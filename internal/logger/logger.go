// Package logger defines the structured-logging interface shared by every
// directory-node component, decoupled from the zap adapter that backs it.
package logger

import "fmt"

// Field is a single structured key/value pair.
type Field struct {
	Key string
	Val any
}

// Logger is the minimal structured-logging surface required by the ring,
// registry, router, and server packages.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F builds a Field concisely.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FNode renders a node (such as a ring.Node) as a single structured field
// holding its String() form. It takes a fmt.Stringer rather than ring.Node
// because package ring itself imports logger.
func FNode(key string, n fmt.Stringer) Field {
	return Field{Key: key, Val: n.String()}
}

// NopLogger discards everything; used where no logger has been configured.
type NopLogger struct{}

func (l *NopLogger) Named(name string) Logger          { return l }
func (l *NopLogger) With(fields ...Field) Logger       { return l }
func (l *NopLogger) Debug(msg string, fields ...Field) {}
func (l *NopLogger) Info(msg string, fields ...Field)  {}
func (l *NopLogger) Warn(msg string, fields ...Field)  {}
func (l *NopLogger) Error(msg string, fields ...Field) {}
