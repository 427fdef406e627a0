package entities

import (
	"fmt"
	"strings"
)

// LogLevel is a host log severity. The numeric values match the host API.
type LogLevel int

const (
	// LogError reports a failure the user should act on.
	LogError LogLevel = 1
	// LogWarning reports a recoverable problem.
	LogWarning LogLevel = 2
	// LogNotice is informational output.
	LogNotice LogLevel = 3
	// LogDebug is only shown when the host runs in debug mode.
	LogDebug LogLevel = 4
)

// String returns the lower-case level name.
func (l LogLevel) String() string {
	switch l {
	case LogError:
		return "error"
	case LogWarning:
		return "warning"
	case LogNotice:
		return "notice"
	case LogDebug:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Valid reports whether l is one of the four host levels.
func (l LogLevel) Valid() bool {
	return l >= LogError && l <= LogDebug
}

// ParseLogLevel parses a level name (case-insensitive). "warn" and "info"
// are accepted as aliases for warning and notice.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LogError, nil
	case "warning", "warn":
		return LogWarning, nil
	case "notice", "info":
		return LogNotice, nil
	case "debug":
		return LogDebug, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
