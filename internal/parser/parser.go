// Package parser defines the contract every language front-end satisfies
// and a registry that picks a front-end by file extension.
package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/jward/tuindex/internal/ast"
)

// Parser turns one source file into a document.
//
// A syntax error in the input is a hard failure. Implementations must be
// safe for concurrent use; the builder calls ParseFile from many goroutines.
type Parser interface {
	ParseFile(ctx context.Context, path string, flags []string) (*ast.Document, error)
}

// Func adapts a plain function to Parser.
type Func func(ctx context.Context, path string, flags []string) (*ast.Document, error)

func (f Func) ParseFile(ctx context.Context, path string, flags []string) (*ast.Document, error) {
	return f(ctx, path, flags)
}

// ErrorKind separates configuration problems from per-file failures.
type ErrorKind int

const (
	// Unavailable means no parser can run at all for the input: missing
	// grammar, unknown extension, misconfigured front-end.
	Unavailable ErrorKind = iota
	// Execution means the parser ran and failed on this file.
	Execution
)

func (k ErrorKind) String() string {
	if k == Unavailable {
		return "unavailable"
	}
	return "execution"
}

var (
	ErrUnavailable = errors.New("parser unavailable")
	ErrExecution   = errors.New("parse failed")
)

// Error is returned by front-ends for both kinds of failure.
type Error struct {
	Kind ErrorKind
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.sentinel(), msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.sentinel(), e.Path, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind so callers can write
// errors.Is(err, parser.ErrExecution).
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	if e.Kind == Unavailable {
		return ErrUnavailable
	}
	return ErrExecution
}

// NewUnavailable returns an Unavailable error for path.
func NewUnavailable(path, format string, args ...any) *Error {
	return &Error{Kind: Unavailable, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// NewExecution returns an Execution error for path wrapping cause.
func NewExecution(path string, cause error, format string, args ...any) *Error {
	return &Error{Kind: Execution, Path: path, Msg: fmt.Sprintf(format, args...), Err: cause}
}
