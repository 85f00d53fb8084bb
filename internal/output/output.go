// Package output renders tasks, queued operations and reports as a table,
// JSON, or one line per record.
package output

import (
	"os"
	"strings"
)

// EnvOutput names the environment variable holding the default format.
const EnvOutput = "HOUSEKEEP_OUTPUT"

// Format represents an output format.
type Format int

const (
	// FormatAuto uses the default format (table).
	FormatAuto Format = iota
	// FormatJSON outputs JSON.
	FormatJSON
	// FormatTable outputs a human-readable table.
	FormatTable
	// FormatCompact outputs one line per task or entry.
	FormatCompact
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatTable:
		return "table"
	case FormatCompact:
		return "compact"
	default:
		return "auto"
	}
}

// ParseFormat maps a format name to a Format. "oneline" is accepted for
// compact.
func ParseFormat(name string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, true
	case "table":
		return FormatTable, true
	case "compact", "oneline":
		return FormatCompact, true
	}
	return FormatAuto, false
}

// Detect picks the format from the flags, then HOUSEKEEP_OUTPUT, then
// falls back to table.
func Detect(jsonFlag, tableFlag, compactFlag bool) Format {
	switch {
	case jsonFlag:
		return FormatJSON
	case compactFlag:
		return FormatCompact
	case tableFlag:
		return FormatTable
	}
	if f, ok := ParseFormat(os.Getenv(EnvOutput)); ok {
		return f
	}
	return FormatTable
}
