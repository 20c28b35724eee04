// Package skerr provides functions that wrap errors with the location they
// were created or wrapped at, so that logged errors point at their source.
package skerr

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// StackTrace identifies a file and line number in the source.
type StackTrace struct {
	File string
	Line int
}

func (st StackTrace) String() string {
	return fmt.Sprintf("%s:%d", st.File, st.Line)
}

// ErrorWithContext is an error that records the call stack at the point it
// was created, plus any context added by Wrapf.
type ErrorWithContext struct {
	// Wrapped is the original error. Never nil.
	Wrapped error
	// CallStack is the call stack at the point the error was first wrapped.
	CallStack []StackTrace
	// Context holds messages added by Wrapf, outermost first.
	Context []string
}

// CallStack returns the call stack of the caller, skipping 'skip' frames
// (0 is the caller of CallStack). At most 'height' frames are returned.
func CallStack(height, skip int) []StackTrace {
	pcs := make([]uintptr, height)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	rv := make([]StackTrace, 0, n)
	for {
		f, more := frames.Next()
		file := f.File
		// Keep the package directory to make the location meaningful.
		if dir := filepath.Base(filepath.Dir(file)); dir != "." {
			file = filepath.Join(dir, filepath.Base(file))
		}
		rv = append(rv, StackTrace{File: file, Line: f.Line})
		if !more {
			break
		}
	}
	return rv
}

// Fmt is equivalent to Wrap(fmt.Errorf(fmtStr, args...)).
func Fmt(fmtStr string, args ...interface{}) error {
	return wrap(fmt.Errorf(fmtStr, args...), 2)
}

// Wrap adds stack trace info to err, if not already present. Returns nil if
// err is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return wrap(err, 2)
}

// Wrapf adds context and stack trace info to err, if not already present. The
// format string and args describe what was happening when err occurred.
// Returns nil if err is nil.
func Wrapf(err error, fmtStr string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	ewc := wrap(err, 2).(*ErrorWithContext)
	ewc.Context = append([]string{fmt.Sprintf(fmtStr, args...)}, ewc.Context...)
	return ewc
}

func wrap(err error, skip int) error {
	if existing, ok := err.(*ErrorWithContext); ok {
		cp := *existing
		cp.Context = append([]string(nil), existing.Context...)
		return &cp
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: CallStack(8, skip),
	}
}

// Unwrap returns the original error if err was wrapped by this package,
// otherwise returns err unchanged.
func Unwrap(err error) error {
	if ewc, ok := err.(*ErrorWithContext); ok {
		return ewc.Wrapped
	}
	return err
}

// Error implements error. The result has the form
// "context2: context1: original. At file.go:12 file.go:34".
func (err *ErrorWithContext) Error() string {
	var b strings.Builder
	for _, c := range err.Context {
		b.WriteString(c)
		b.WriteString(": ")
	}
	b.WriteString(err.Wrapped.Error())
	if len(err.CallStack) > 0 {
		b.WriteString(". At")
		for _, st := range err.CallStack {
			b.WriteString(" ")
			b.WriteString(st.String())
		}
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to see the wrapped error.
func (err *ErrorWithContext) Unwrap() error {
	return err.Wrapped
}
