package domain

import "time"

// Record types emitted by the capture layer.
const (
	TypeFatal = "fatal"
	TypeError = "error"
	TypeWarn  = "warn"
	TypeLog   = "log"
	TypeInfo  = "info"
	TypeDebug = "debug"
	TypeTrace = "trace"
)

var typeLevels = map[string]int{
	TypeFatal: 0,
	TypeError: 0,
	TypeWarn:  1,
	TypeLog:   2,
	TypeInfo:  3,
	TypeDebug: 4,
	TypeTrace: 5,
}

// LevelOf returns the numeric severity for a record type. Unknown types map to the "log" level.
func LevelOf(typ string) int {
	if lvl, ok := typeLevels[typ]; ok {
		return lvl
	}
	return typeLevels[TypeLog]
}

// LogRecord is one captured logging call. The JSON shape is shared by the inline
// render snapshot and the event stream, so browser consumers can treat both alike.
type LogRecord struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Level    int       `json:"level"`
	Tag      string    `json:"tag"`
	Date     time.Time `json:"date"`
	Args     []any     `json:"args"`
	Filename string    `json:"filename,omitempty"`
	Stack    string    `json:"stack,omitempty"`
	Source   string    `json:"source,omitempty"`
}

// Message returns the first argument when it is a string.
func (r LogRecord) Message() string {
	if len(r.Args) == 0 {
		return ""
	}
	if s, ok := r.Args[0].(string); ok {
		return s
	}
	return ""
}
