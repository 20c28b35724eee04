package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.perfhook.dev/infra/go/sklog"
)

// Close wraps an io.Closer and logs an error if one is returned.
func Close(c io.Closer) {
	if err := c.Close(); err != nil {
		// Don't start the stacktrace here, but at the caller's location
		sklog.ErrorfWithDepth(1, "Failed to Close(): %v", err)
	}
}

// Remove removes the specified file and logs an error if one is returned.
func Remove(name string) {
	if err := os.Remove(name); err != nil {
		sklog.ErrorfWithDepth(1, "Failed to Remove(%s): %v", name, err)
	}
}

// AddParams adds the second instance of map[string]string to the first
// instance and returns the result. If a is nil then a new map is created.
func AddParams(a map[string]string, b ...map[string]string) map[string]string {
	ret := a
	if ret == nil {
		ret = make(map[string]string, len(b))
	}
	for _, oneMap := range b {
		for k, v := range oneMap {
			ret[k] = v
		}
	}
	return ret
}

// WithReadFile opens the given file for reading and runs the given function.
func WithReadFile(file string, fn func(f io.Reader) error) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer Close(f)
	return fn(f)
}

// writeTemp writes the contents produced by writeFn into a temporary file in
// the same directory as file and returns the temporary file's name.
func writeTemp(file string, writeFn func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".tmp")
	if err != nil {
		return "", fmt.Errorf("Failed to create temporary file for %s: %s", file, err)
	}
	if err := writeFn(f); err != nil {
		Close(f)
		Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		Remove(f.Name())
		return "", fmt.Errorf("Failed to close temporary file for %s: %s", file, err)
	}
	return f.Name(), nil
}

// WithWriteFile provides an interface for writing to a backing file using a
// temporary intermediate file for more atomicity in case a long-running write
// gets interrupted.
func WithWriteFile(file string, writeFn func(io.Writer) error) error {
	tmp, err := writeTemp(file, writeFn)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, file); err != nil {
		Remove(tmp)
		return fmt.Errorf("Failed to rename temporary file for WithWriteFile: %s", err)
	}
	return nil
}

// WithWriteNewFile is like WithWriteFile but never replaces an existing file.
// If file already exists the returned error satisfies
// errors.Is(err, os.ErrExist) and the existing file is left untouched.
func WithWriteNewFile(file string, writeFn func(io.Writer) error) error {
	tmp, err := writeTemp(file, writeFn)
	if err != nil {
		return err
	}
	defer Remove(tmp)
	if err := os.Link(tmp, file); err != nil {
		if errors.Is(err, os.ErrExist) {
			return err
		}
		return fmt.Errorf("Failed to link temporary file for WithWriteNewFile: %w", err)
	}
	return nil
}
