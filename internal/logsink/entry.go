package logsink

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity of an application log record.
type Level string

const (
	LevelError Level = "ERROR"
	LevelWarn  Level = "WARN"
	LevelInfo  Level = "INFO"
	LevelDebug Level = "DEBUG"
)

// ParseLevel accepts any case of a known level.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case LevelError, LevelWarn, LevelInfo, LevelDebug:
		return l, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Metadata keys always present on an entry.
const (
	MetaComponent = "component"
	MetaAction    = "action"
	MetaUserID    = "userId"
	MetaSessionID = "sessionId"

	unknown = "Unknown"
)

// ErrorInfo describes the error attached to a record.
type ErrorInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Entry is one immutable log record.
type Entry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	Error     *ErrorInfo        `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata"`
}

// Filter selects entries for Logs. Zero fields match everything; a
// non-positive Limit means DefaultLimit.
type Filter struct {
	Level     Level     `json:"level,omitempty"`
	Since     time.Time `json:"since,omitempty"`
	Until     time.Time `json:"until,omitempty"`
	Component string    `json:"component,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// DefaultLimit bounds a Logs query without an explicit limit.
const DefaultLimit = 100

func (f Filter) match(e Entry) bool {
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.Component != "" && e.Metadata[MetaComponent] != f.Component {
		return false
	}
	if f.UserID != "" && e.Metadata[MetaUserID] != f.UserID {
		return false
	}
	return true
}

// Export is the downloadable snapshot of the session log.
type Export struct {
	Logs       []Entry   `json:"logs"`
	ExportTime time.Time `json:"exportTime"`
	TotalCount int       `json:"totalCount"`
}

// trim keeps the newest limit entries.
func trim(entries []Entry, limit int) []Entry {
	if limit <= 0 || len(entries) <= limit {
		return entries
	}
	return append([]Entry(nil), entries[len(entries)-limit:]...)
}
