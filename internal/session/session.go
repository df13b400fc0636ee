// Package session holds the bot's process-lifetime state: the live runtime
// config, the latest snapshot, a bounded log buffer and the action busy flag.
// One Session is created in main and shared by the engine and the API.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/monitor"
)

const (
	LogLimit        = 200
	DefaultLogLimit = 50
)

// LogEntry is one line block shown on the dashboard.
type LogEntry struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

type Session struct {
	mu       sync.RWMutex
	cfg      config.Runtime
	snapshot *monitor.Snapshot
	logs     []LogEntry
	seq      int64

	busy atomic.Bool
}

func New(cfg config.Runtime) *Session {
	return &Session{cfg: cfg, logs: make([]LogEntry, 0, LogLimit)}
}

// Config returns the live runtime config.
func (s *Session) Config() config.Runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig replaces the live runtime config.
func (s *Session) SetConfig(cfg config.Runtime) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// Snapshot returns a copy of the latest snapshot, if any.
func (s *Session) Snapshot() (monitor.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return monitor.Snapshot{}, false
	}
	snap := *s.snapshot
	snap.Busy = s.busy.Load()
	return snap, true
}

func (s *Session) SetSnapshot(snap monitor.Snapshot) {
	s.mu.Lock()
	s.snapshot = &snap
	s.mu.Unlock()
}

// ClearSnapshot drops the snapshot when monitoring stops.
func (s *Session) ClearSnapshot() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

// AddLog appends to the ring buffer, evicting the oldest past LogLimit.
func (s *Session) AddLog(level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.logs = append(s.logs, LogEntry{Seq: s.seq, Timestamp: time.Now(), Level: level, Message: message})
	if over := len(s.logs) - LogLimit; over > 0 {
		s.logs = append(s.logs[:0], s.logs[over:]...)
	}
}

// Logs returns up to limit newest entries, oldest first. limit is clamped to [1, LogLimit].
func (s *Session) Logs(limit int) []LogEntry {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > LogLimit {
		limit = LogLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.logs) - limit
	if start < 0 {
		start = 0
	}
	out := make([]LogEntry, len(s.logs)-start)
	copy(out, s.logs[start:])
	return out
}

// TryAcquire sets the busy flag; false means another action is running.
func (s *Session) TryAcquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) Release() {
	s.busy.Store(false)
}

func (s *Session) Busy() bool {
	return s.busy.Load()
}
