package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/iaware/pkg/indicator"
	"github.com/itohio/iaware/pkg/logger"
	"github.com/itohio/iaware/pkg/netstate"
	"github.com/itohio/iaware/pkg/protocol"
)

func opError(errno syscall.Errno) error {
	return &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", errno)}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, AwaitClient},
		{"clean close", io.EOF, AwaitClient},
		{"wrapped eof", fmt.Errorf("read: %w", io.EOF), AwaitClient},
		{"unexpected eof", io.ErrUnexpectedEOF, AwaitClient},
		{"not connected", opError(syscall.ENOTCONN), AwaitClient},
		{"broken pipe", opError(syscall.EPIPE), AwaitClient},
		{"reset", opError(syscall.ECONNRESET), AwaitClient},
		{"aborted", opError(syscall.ECONNABORTED), AwaitClient},
		{"frame too large", fmt.Errorf("parse: %w", protocol.ErrFrameTooLarge), AwaitClient},
		{"malformed", protocol.ErrMalformed, AwaitClient},
		{"drop client", ErrDropClient, AwaitClient},
		{"network down", ErrNetworkDown, AwaitNetwork},
		{"network down with eof", errors.Join(ErrNetworkDown, io.EOF), AwaitNetwork},
		{"bad descriptor", opError(syscall.EBADF), RecreateSocket},
		{"closed", net.ErrClosed, RecreateSocket},
		{"other", errors.New("boom"), RecreateSocket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "awaiting_network", AwaitingNetwork.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "State(9)", State(9).String())
	assert.Equal(t, "recreate_socket", RecreateSocket.String())
}

// transitions records supervisor state changes.
type transitions struct {
	mu  sync.Mutex
	log []State
}

func (tr *transitions) record(_, to State) {
	tr.mu.Lock()
	tr.log = append(tr.log, to)
	tr.mu.Unlock()
}

func (tr *transitions) snapshot() []State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]State(nil), tr.log...)
}

type harness struct {
	sup    *Supervisor
	tr     *transitions
	gate   *netstate.Gate
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T, cfg Config, serve ServeFunc) *harness {
	t.Helper()
	h := &harness{tr: &transitions{}, done: make(chan error, 1)}
	if cfg.Gate == nil {
		cfg.Gate = netstate.New(true)
	}
	h.gate = cfg.Gate
	cfg.Role = "test"
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	cfg.Backoff = 10 * time.Millisecond
	cfg.Logger = logger.Discard()
	cfg.OnStateChange = h.tr.record
	h.sup = New(cfg, serve)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.sup.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("supervisor did not stop")
		}
	})
	return h
}

func (h *harness) waitState(t *testing.T, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sup.State() == s }, 2*time.Second, time.Millisecond,
		"want %s, have %s", s, h.sup.State())
}

func (h *harness) dial(t *testing.T) net.Conn {
	t.Helper()
	h.waitState(t, AwaitingClient)
	addr := h.sup.Addr()
	require.NotNil(t, addr)
	c, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	return c
}

func TestSupervisor_CleanCloseKeepsListener(t *testing.T) {
	served := make(chan string, 4)
	rec := &indicator.Recorder{}
	h := start(t, Config{Indicator: rec}, func(ctx context.Context, c net.Conn) error {
		buf := make([]byte, 16)
		n, err := c.Read(buf)
		if err != nil {
			return err
		}
		served <- string(buf[:n])
		_, err = c.Read(buf)
		return err
	})

	c1 := h.dial(t)
	addr := h.sup.Addr().String()
	_, err := c1.Write([]byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "one", <-served)
	require.NoError(t, c1.Close())

	h.waitState(t, AwaitingClient)
	require.Eventually(t, func() bool { return h.sup.Accepted() == 1 && h.sup.State() == AwaitingClient }, time.Second, time.Millisecond)

	c2, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer c2.Close()
	_, err = c2.Write([]byte("two"))
	require.NoError(t, err)
	assert.Equal(t, "two", <-served)

	assert.Equal(t, int64(1), h.sup.Listens(), "listener must survive a clean close")
	assert.Equal(t, addr, h.sup.Addr().String())
	h.waitState(t, Connected)

	assert.Equal(t, []State{CreatingSocket, Listening, AwaitingClient, Connected, AwaitingClient, Connected}, h.tr.snapshot())
	assert.Equal(t, []string{"attached:test", "detached:test", "attached:test"}, rec.Events())
}

func TestSupervisor_HardErrorRecreatesSocket(t *testing.T) {
	var calls atomic.Int32
	h := start(t, Config{}, func(ctx context.Context, c net.Conn) error {
		calls.Add(1)
		return errors.New("socket broke")
	})

	c := h.dial(t)
	defer c.Close()

	require.Eventually(t, func() bool { return h.sup.Listens() == 2 }, 2*time.Second, time.Millisecond)
	h.waitState(t, AwaitingClient)
	assert.Equal(t, int32(1), calls.Load())

	log := h.tr.snapshot()
	assert.Contains(t, log[3:], CreatingSocket)
}

func TestSupervisor_ProtocolErrorDropsClient(t *testing.T) {
	h := start(t, Config{}, func(ctx context.Context, c net.Conn) error {
		return fmt.Errorf("parse: %w", protocol.ErrFrameTooLarge)
	})

	c := h.dial(t)
	defer c.Close()

	buf := make([]byte, 1)
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.Read(buf)
	assert.Error(t, err, "server must close the connection")

	h.waitState(t, AwaitingClient)
	assert.Equal(t, int64(1), h.sup.Listens())
}

func TestSupervisor_NetworkDownWhileConnected(t *testing.T) {
	gate := netstate.New(true)
	started := make(chan struct{}, 4)
	h := start(t, Config{Gate: gate}, func(ctx context.Context, c net.Conn) error {
		started <- struct{}{}
		_, err := io.Copy(io.Discard, c)
		return err
	})

	c := h.dial(t)
	defer c.Close()
	<-started

	gate.Down()
	h.waitState(t, AwaitingNetwork)
	assert.Nil(t, h.sup.Addr(), "listener is released while the network is down")

	gate.Up()
	require.Eventually(t, func() bool { return h.sup.Listens() == 2 }, 2*time.Second, time.Millisecond)
	c2 := h.dial(t)
	defer c2.Close()
	<-started
}

func TestSupervisor_NetworkDownWhileAccepting(t *testing.T) {
	gate := netstate.New(false)
	h := start(t, Config{Gate: gate}, func(ctx context.Context, c net.Conn) error { return nil })

	h.waitState(t, AwaitingNetwork)
	assert.Equal(t, int64(0), h.sup.Listens())

	gate.Up()
	h.waitState(t, AwaitingClient)

	gate.Down()
	h.waitState(t, AwaitingNetwork)
	assert.Equal(t, int64(1), h.sup.Listens())
}

func TestSupervisor_ListenRetries(t *testing.T) {
	var attempts atomic.Int32
	listen := func(ctx context.Context, addr string) (net.Listener, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("address in use")
		}
		return Listen(ctx, addr)
	}

	h := start(t, Config{Listen: listen}, func(ctx context.Context, c net.Conn) error { return nil })

	h.waitState(t, AwaitingClient)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, int64(1), h.sup.Listens())
}

func TestSupervisor_CancelStops(t *testing.T) {
	h := start(t, Config{}, func(ctx context.Context, c net.Conn) error {
		<-ctx.Done()
		return ctx.Err()
	})

	c := h.dial(t)
	defer c.Close()
	h.waitState(t, Connected)

	addr := h.sup.Addr().String()
	h.cancel()

	select {
	case err := <-h.done:
		assert.ErrorIs(t, err, context.Canceled)
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err, "listener must be closed")
}

func TestSupervisor_ConnLogger(t *testing.T) {
	got := make(chan bool, 1)
	h := start(t, Config{}, func(ctx context.Context, c net.Conn) error {
		got <- LoggerFrom(ctx, nil) != nil
		return nil
	})

	c := h.dial(t)
	defer c.Close()
	assert.True(t, <-got)
	assert.Nil(t, LoggerFrom(context.Background(), nil))
}
