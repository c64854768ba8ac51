// Package netstate tracks network availability and gates the connection
// supervisors on it.
package netstate

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Gate is a level-triggered network availability signal.
type Gate struct {
	mu   sync.Mutex
	up   bool
	upCh chan struct{} // closed while up
	lost chan struct{} // closed while down
}

// New creates a gate in the given initial state.
func New(up bool) *Gate {
	g := &Gate{
		upCh: make(chan struct{}),
		lost: make(chan struct{}),
	}
	if up {
		g.up = true
		close(g.upCh)
	} else {
		close(g.lost)
	}
	return g
}

// Up marks the network available.
func (g *Gate) Up() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.up {
		return
	}
	g.up = true
	g.lost = make(chan struct{})
	close(g.upCh)
}

// Down marks the network unavailable. Every channel returned by Lost while
// the network was up is closed.
func (g *Gate) Down() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.up {
		return
	}
	g.up = false
	g.upCh = make(chan struct{})
	close(g.lost)
}

// IsUp reports the current state.
func (g *Gate) IsUp() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.up
}

// Lost returns a channel closed when the network goes down. If it is down
// already the channel is closed.
func (g *Gate) Lost() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lost
}

// Wait blocks until the network is up or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.upCh
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InterfaceUp reports whether the named interface is up and has an address.
func InterfaceUp(name string) bool {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return false
	}
	if iface.Flags&net.FlagUp == 0 {
		return false
	}
	addrs, err := iface.Addrs()
	return err == nil && len(addrs) > 0
}

// Watch polls probe every period and drives g until ctx is done.
func Watch(ctx context.Context, g *Gate, probe func() bool, period time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		up := probe()
		if up != g.IsUp() {
			if up {
				log.Info("network available")
				g.Up()
			} else {
				log.Warn("network unavailable")
				g.Down()
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
