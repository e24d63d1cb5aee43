// Package wsmetrics is a thin, best-effort CSV ledger of connection and
// message counts, modeled on tzrikka-timpani/pkg/metrics: a simple local
// file a host can tail or ship elsewhere, guarded by its own mutex so it
// never competes with the session's output-sink mutex.
package wsmetrics

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/tessera-io/wscore/wsframe"
)

const (
	DefaultConnectionsFile = "wscore_connections.csv"
	DefaultMessagesFile    = "wscore_messages.csv"
)

// Recorder implements wscore.Metrics. A zero Recorder is usable; it logs
// write failures through log (which may be nil, in which case failures are
// silently dropped — metrics are never allowed to affect correctness).
type Recorder struct {
	ConnectionsFile string
	MessagesFile    string
	Log             interface {
		Error(name string, err error, fields map[string]any)
	}

	mu sync.Mutex
}

// Connected records a new session starting.
func (r *Recorder) Connected(sessionID string) {
	r.append(r.connectionsFile(), []string{time.Now().Format(time.RFC3339), sessionID, "connected", ""})
}

// Message records one assembled application message.
func (r *Recorder) Message(sessionID string, op wsframe.Opcode, bytes int) {
	r.append(r.messagesFile(), []string{
		time.Now().Format(time.RFC3339), sessionID, op.String(), strconv.Itoa(bytes),
	})
}

// Disconnected records a session ending, along with the close code sent or
// received.
func (r *Recorder) Disconnected(sessionID string, code wsframe.StatusCode) {
	r.append(r.connectionsFile(), []string{
		time.Now().Format(time.RFC3339), sessionID, "disconnected", strconv.Itoa(int(code)),
	})
}

func (r *Recorder) connectionsFile() string {
	if r.ConnectionsFile != "" {
		return r.ConnectionsFile
	}
	return DefaultConnectionsFile
}

func (r *Recorder) messagesFile() string {
	if r.MessagesFile != "" {
		return r.MessagesFile
	}
	return DefaultMessagesFile
}

func (r *Recorder) append(filename string, record []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logErr("metrics_open_failed", err, filename)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		r.logErr("metrics_write_failed", err, filename)
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		r.logErr("metrics_flush_failed", err, filename)
	}
}

func (r *Recorder) logErr(event string, err error, filename string) {
	if r.Log == nil {
		return
	}
	r.Log.Error(event, err, map[string]any{"file": filename})
}
