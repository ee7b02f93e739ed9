package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogWriter feeds zerolog JSON output into a Collector's ring buffer. Use it
// as one side of zerolog.MultiLevelWriter next to the console output.
type LogWriter struct {
	collector *Collector
}

func NewLogWriter(c *Collector) *LogWriter {
	return &LogWriter{collector: c}
}

// WriteLevel drops trace output, which is too chatty for the buffer.
func (w *LogWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level == zerolog.TraceLevel {
		return len(p), nil
	}
	return w.Write(p)
}

func (w *LogWriter) Write(p []byte) (int, error) {
	w.collector.AddLog(parseLogLine(p, time.Now()))
	return len(p), nil
}

// parseLogLine turns one zerolog line into a LogEntry. Lines that are not
// JSON objects are kept verbatim at info level.
func parseLogLine(p []byte, now time.Time) LogEntry {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(p, &raw); err != nil {
		return LogEntry{Time: now, Level: "info", Message: strings.TrimSpace(string(p))}
	}

	entry := LogEntry{Time: now, Level: "info"}
	for k, v := range raw {
		switch k {
		case zerolog.LevelFieldName:
			entry.Level = rawString(v)
		case zerolog.MessageFieldName:
			entry.Message = rawString(v)
		case zerolog.TimestampFieldName:
			if t, err := time.Parse(time.RFC3339Nano, rawString(v)); err == nil {
				entry.Time = t
			}
		case "component":
			entry.Component = rawString(v)
		default:
			if entry.Fields == nil {
				entry.Fields = make(map[string]string)
			}
			entry.Fields[k] = rawString(v)
		}
	}
	return entry
}

// rawString unquotes JSON strings and returns other values compacted.
func rawString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}

var _ zerolog.LevelWriter = (*LogWriter)(nil)
