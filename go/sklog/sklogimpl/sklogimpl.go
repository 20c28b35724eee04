// Package sklogimpl holds the Logger that the sklog functions forward to. It
// is split out of sklog so that Logger implementations can import it without
// creating a cycle.
package sklogimpl

import (
	"fmt"
	"sync"
)

// Severity identifies the sort of log: info, warning etc.
type Severity int

// These constants identify the log levels in order of increasing severity.
const (
	Debug Severity = iota
	Info
	Warning
	Error
	Fatal
)

// AllSeverities is the list of all severities that sklog supports.
var AllSeverities = []Severity{Debug, Info, Warning, Error, Fatal}

func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Logger represents a log destination. All methods must be goroutine safe.
type Logger interface {
	// Log sends a log message. 'depth' is the number of stack frames between
	// the sklog call and the caller of interest. If 'format' is empty the
	// args are formatted with fmt.Sprint, otherwise with fmt.Sprintf.
	Log(depth int, severity Severity, format string, args ...interface{})

	// Flush ensures all buffered messages are written.
	Flush()
}

var (
	mutex  sync.RWMutex
	logger Logger
)

// SetLogger changes the package to use the given Logger.
func SetLogger(l Logger) {
	mutex.Lock()
	defer mutex.Unlock()
	logger = l
}

// Log forwards to the current Logger. Fatal messages are flushed and the
// Logger is expected to exit the process.
func Log(depth int, severity Severity, format string, args ...interface{}) {
	mutex.RLock()
	l := logger
	mutex.RUnlock()
	l.Log(depth+1, severity, format, args...)
	if severity == Fatal {
		l.Flush()
	}
}

// Flush flushes the current Logger.
func Flush() {
	mutex.RLock()
	defer mutex.RUnlock()
	logger.Flush()
}
