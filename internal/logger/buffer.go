// internal/logger/buffer.go
package logger

import (
	"encoding/json"
	"sync"
	"time"
)

// LogEntry represents a single log entry in the buffer
type LogEntry struct {
	Timestamp time.Time              `json:"time"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"-"`
}

// LogBuffer is a thread-safe ring buffer of recent log entries. It accepts the
// JSON lines written by a zap core.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	wrapped bool
	total   uint64
}

func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = 100
	}
	return &LogBuffer{entries: make([]LogEntry, size)}
}

// Write implements io.Writer for zapcore.AddSync.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	var raw map[string]interface{}
	entry := LogEntry{Timestamp: time.Now(), Message: string(p)}
	if err := json.Unmarshal(p, &raw); err == nil {
		if v, ok := raw["msg"].(string); ok {
			entry.Message = v
		}
		if v, ok := raw["level"].(string); ok {
			entry.Level = v
		}
		if v, ok := raw["time"].(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
				entry.Timestamp = ts
			}
		}
		delete(raw, "msg")
		delete(raw, "level")
		delete(raw, "time")
		entry.Fields = raw
	}
	lb.Add(entry)
	return len(p), nil
}

// Add appends an entry, overwriting the oldest one once full.
func (lb *LogBuffer) Add(entry LogEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries[lb.next] = entry
	lb.next = (lb.next + 1) % len(lb.entries)
	if lb.next == 0 {
		lb.wrapped = true
	}
	lb.total++
}

// Recent returns up to limit most recent entries, oldest first.
func (lb *LogBuffer) Recent(limit int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	count := lb.next
	start := 0
	if lb.wrapped {
		count = len(lb.entries)
		start = lb.next
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}

	out := make([]LogEntry, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, lb.entries[(start+i)%len(lb.entries)])
	}
	return out
}

// Total returns the number of entries ever added.
func (lb *LogBuffer) Total() uint64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.total
}

func (lb *LogBuffer) Sync() error { return nil }
