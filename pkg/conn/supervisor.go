// Package conn implements the reconnect state machine shared by the data and
// control listeners. Each role runs its own Supervisor; supervisors share
// nothing but the network gate.
package conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/itohio/iaware/pkg/indicator"
	"github.com/itohio/iaware/pkg/logger"
	"github.com/itohio/iaware/pkg/metrics"
	"github.com/itohio/iaware/pkg/netstate"
)

// State of a supervisor.
type State int32

const (
	AwaitingNetwork State = iota
	CreatingSocket
	Listening
	AwaitingClient
	Connected
)

func (s State) String() string {
	switch s {
	case AwaitingNetwork:
		return "awaiting_network"
	case CreatingSocket:
		return "creating_socket"
	case Listening:
		return "listening"
	case AwaitingClient:
		return "awaiting_client"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// DefaultBackoff is the delay before every retry after a failure.
const DefaultBackoff = time.Second

// ServeFunc handles one accepted client until it fails or ends. The returned
// error is classified to pick the next state. ctx is cancelled when the
// supervisor stops or the network goes down.
type ServeFunc func(ctx context.Context, c net.Conn) error

// ListenFunc creates a bound, listening socket.
type ListenFunc func(ctx context.Context, addr string) (net.Listener, error)

// Listen is the default ListenFunc.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

// Config configures a Supervisor.
type Config struct {
	Role      string
	Addr      string
	Backoff   time.Duration
	Gate      *netstate.Gate
	Listen    ListenFunc
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Indicator indicator.Indicator
	// OnStateChange is called synchronously on every transition.
	OnStateChange func(from, to State)
}

// Supervisor owns one listening socket and at most one client connection.
type Supervisor struct {
	cfg   Config
	serve ServeFunc
	log   *slog.Logger

	state    atomic.Int32
	listener net.Listener

	mu   sync.Mutex
	addr net.Addr

	listens  atomic.Int64
	accepted atomic.Int64
}

// New creates a supervisor that hands each accepted client to serve.
func New(cfg Config, serve ServeFunc) *Supervisor {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Gate == nil {
		cfg.Gate = netstate.New(true)
	}
	if cfg.Listen == nil {
		cfg.Listen = Listen
	}
	if cfg.Indicator == nil {
		cfg.Indicator = indicator.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Component("conn")
	}

	s := &Supervisor{
		cfg:   cfg,
		serve: serve,
		log:   cfg.Logger.With("role", cfg.Role),
	}
	s.state.Store(int32(AwaitingNetwork))
	return s
}

// State returns the current state.
func (s *Supervisor) State() State { return State(s.state.Load()) }

// Role returns the supervisor's role name.
func (s *Supervisor) Role() string { return s.cfg.Role }

// Addr returns the address of the current listener, or nil.
func (s *Supervisor) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Listens returns how many listening sockets have been created.
func (s *Supervisor) Listens() int64 { return s.listens.Load() }

// Accepted returns how many clients have been accepted.
func (s *Supervisor) Accepted() int64 { return s.accepted.Load() }

func (s *Supervisor) transition(to State) {
	from := State(s.state.Swap(int32(to)))
	if from == to {
		return
	}
	s.log.Debug("state change", "from", from, "to", to)
	s.cfg.Metrics.ConnectionState(s.cfg.Role, from.String(), to.String())
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(from, to)
	}
}

// Run drives the state machine until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	s.cfg.Metrics.ConnectionState(s.cfg.Role, "", s.State().String())
	defer s.closeListener()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch s.State() {
		case AwaitingNetwork:
			s.closeListener()
			if err := s.cfg.Gate.Wait(ctx); err != nil {
				return err
			}
			s.transition(CreatingSocket)

		case CreatingSocket:
			s.closeListener()
			if !s.cfg.Gate.IsUp() {
				s.transition(AwaitingNetwork)
				continue
			}
			ln, err := s.cfg.Listen(ctx, s.cfg.Addr)
			if err != nil {
				s.log.Error("failed to create socket", "addr", s.cfg.Addr, "error", err)
				if err := s.sleep(ctx); err != nil {
					return err
				}
				continue
			}
			s.setListener(ln)
			s.listens.Add(1)
			s.transition(Listening)

		case Listening:
			s.log.Info("listening", "addr", s.Addr())
			s.transition(AwaitingClient)

		case AwaitingClient:
			c, err := s.accept(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.closeListener()
				if !s.cfg.Gate.IsUp() {
					s.transition(AwaitingNetwork)
					continue
				}
				s.log.Error("accept failed", "error", err)
				s.transition(CreatingSocket)
				if err := s.sleep(ctx); err != nil {
					return err
				}
				continue
			}
			s.accepted.Add(1)
			s.transition(Connected)
			outcome, err := s.handle(ctx, c)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.next(ctx, outcome, err)

		case Connected:
			// handle always leaves Connected
			s.transition(AwaitingClient)
		}
	}
}

// next applies the outcome of a finished connection.
func (s *Supervisor) next(ctx context.Context, outcome Outcome, err error) {
	switch outcome {
	case AwaitClient:
		s.transition(AwaitingClient)
		if !clean(err) {
			s.sleep(ctx)
		}
	case RecreateSocket:
		s.closeListener()
		s.transition(CreatingSocket)
		s.sleep(ctx)
	case AwaitNetwork:
		s.closeListener()
		s.transition(AwaitingNetwork)
	}
}

// handle serves one client and classifies how it ended.
func (s *Supervisor) handle(ctx context.Context, c net.Conn) (Outcome, error) {
	id := uuid.NewString()
	log := s.log.With("conn_id", id, "remote", c.RemoteAddr().String())
	log.Info("client connected")
	s.cfg.Indicator.ClientAttached(s.cfg.Role)
	defer s.cfg.Indicator.ClientDetached(s.cfg.Role)

	connCtx, cancel := context.WithCancel(WithLogger(ctx, log))
	defer cancel()

	var lost atomic.Bool
	stop := make(chan struct{})
	watcherDone := make(chan struct{})
	netLost := s.cfg.Gate.Lost()
	go func() {
		defer close(watcherDone)
		select {
		case <-netLost:
			lost.Store(true)
			cancel()
			c.Close()
		case <-connCtx.Done():
			c.Close()
		case <-stop:
		}
	}()

	err := s.serve(connCtx, c)
	close(stop)
	<-watcherDone
	c.Close()

	if lost.Load() || !s.cfg.Gate.IsUp() {
		err = errors.Join(ErrNetworkDown, err)
	}

	outcome := Classify(err)
	switch {
	case clean(err):
		log.Info("client disconnected")
	case outcome == AwaitClient:
		log.Warn("client dropped", "error", err)
	default:
		log.Error("connection failed", "error", err, "outcome", outcome)
	}
	return outcome, err
}

// accept waits for a client. The listener is closed if ctx ends or the
// network goes down, which unblocks Accept.
func (s *Supervisor) accept(ctx context.Context) (net.Conn, error) {
	ln := s.currentListener()
	if ln == nil {
		return nil, net.ErrClosed
	}

	stop := make(chan struct{})
	defer close(stop)
	lost := s.cfg.Gate.Lost()
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-lost:
			ln.Close()
		case <-stop:
		}
	}()

	return ln.Accept()
}

func (s *Supervisor) sleep(ctx context.Context) error {
	t := time.NewTimer(s.cfg.Backoff)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) setListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = ln
	s.addr = ln.Addr()
}

func (s *Supervisor) currentListener() net.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}

func (s *Supervisor) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return
	}
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn("failed to close listener", "error", err)
	}
	s.listener = nil
	s.addr = nil
}
