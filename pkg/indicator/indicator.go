// Package indicator provides fire-and-forget status signaling. Calls are
// advisory and never affect control flow.
package indicator

import (
	"log/slog"
	"sync"
)

// Indicator receives status events from the node.
type Indicator interface {
	StreamActive(active bool)
	ClientAttached(role string)
	ClientDetached(role string)
}

var (
	_ Indicator = Nop{}
	_ Indicator = (*Log)(nil)
	_ Indicator = (*Recorder)(nil)
)

// Nop ignores every event.
type Nop struct{}

func (Nop) StreamActive(bool)     {}
func (Nop) ClientAttached(string) {}
func (Nop) ClientDetached(string) {}

// Log reports events through a logger at debug level.
type Log struct {
	log *slog.Logger
}

// NewLog creates a logging indicator.
func NewLog(l *slog.Logger) *Log {
	return &Log{log: l}
}

func (l *Log) StreamActive(active bool) {
	l.log.Debug("indicator: stream", "active", active)
}

func (l *Log) ClientAttached(role string) {
	l.log.Debug("indicator: client attached", "role", role)
}

func (l *Log) ClientDetached(role string) {
	l.log.Debug("indicator: client detached", "role", role)
}

// Recorder keeps every event in order.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) record(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) StreamActive(active bool) {
	if active {
		r.record("stream:on")
	} else {
		r.record("stream:off")
	}
}

func (r *Recorder) ClientAttached(role string) { r.record("attached:" + role) }
func (r *Recorder) ClientDetached(role string) { r.record("detached:" + role) }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
