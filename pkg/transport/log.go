package transport

import (
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/metrics"
)

// Entry is one line written by a Log transport.
type Entry struct {
	Time    time.Time       `json:"time"`
	Path    string          `json:"path"`
	Payload json.RawMessage `json:"payload"`
}

// Log writes every event as a JSON line instead of sending it. It backs
// --dry-run and offline viewing of a local source.
type Log struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewLog returns a transport writing to w.
func NewLog(w io.Writer) *Log {
	return &Log{w: w, now: time.Now}
}

// SendEvent appends one entry. Write errors are logged and dropped.
func (l *Log) SendEvent(path string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		metrics.EventsFailed.Inc()
		debug.Log("transport: encoding %s: %v", path, err)
		return
	}
	line, err := json.Marshal(Entry{Time: l.now(), Path: path, Payload: raw})
	if err != nil {
		metrics.EventsFailed.Inc()
		debug.Log("transport: encoding %s: %v", path, err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(line, '\n')); err != nil {
		metrics.EventsFailed.Inc()
		debug.Log("transport: writing %s: %v", path, err)
		return
	}
	metrics.EventsSent.Inc()
}
