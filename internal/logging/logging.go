// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/labstack/gommon/log"
)

const header = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}"}`

// New returns a JSON logger writing to stdout at the given level.
func New(prefix, level string) *log.Logger {
	return NewWithOutput(prefix, level, os.Stdout)
}

// NewWithOutput is New with an explicit writer.
func NewWithOutput(prefix, level string, w io.Writer) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(header)
	l.SetOutput(w)
	l.SetLevel(ParseLevel(level))
	return l
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *log.Logger {
	return NewWithOutput("test", "off", io.Discard)
}

// ParseLevel maps LOG_LEVEL values onto gommon levels. Unknown values fall back to INFO.
func ParseLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error", "fatal":
		return log.ERROR
	case "off", "silent", "none":
		return log.OFF
	default:
		return log.INFO
	}
}
