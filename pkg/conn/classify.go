package conn

import (
	"errors"
	"io"
	"syscall"

	"github.com/itohio/iaware/pkg/protocol"
)

// Outcome is the supervisor's reaction to a failed or finished connection.
type Outcome int

const (
	// AwaitClient keeps the listener and accepts the next client.
	AwaitClient Outcome = iota
	// RecreateSocket closes the listener and creates a new one.
	RecreateSocket
	// AwaitNetwork closes the listener and waits for the network.
	AwaitNetwork
)

func (o Outcome) String() string {
	switch o {
	case AwaitClient:
		return "await_client"
	case RecreateSocket:
		return "recreate_socket"
	case AwaitNetwork:
		return "await_network"
	default:
		return "unknown"
	}
}

var (
	// ErrNetworkDown reports that the network went away under a connection.
	ErrNetworkDown = errors.New("network down")
	// ErrDropClient asks the supervisor to drop the client and keep listening.
	ErrDropClient = errors.New("drop client")
)

// Classify maps the error that ended a connection to an outcome. A clean
// close, a peer-side disconnect or a protocol violation only costs the
// client; anything else is treated as a broken socket.
func Classify(err error) Outcome {
	switch {
	case errors.Is(err, ErrNetworkDown):
		return AwaitNetwork
	case err == nil,
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, ErrDropClient):
		return AwaitClient
	case errors.Is(err, syscall.ENOTCONN),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED):
		return AwaitClient
	case errors.Is(err, protocol.ErrFrameTooLarge),
		errors.Is(err, protocol.ErrMalformed):
		return AwaitClient
	default:
		return RecreateSocket
	}
}

// clean reports whether err is an orderly end of a connection.
func clean(err error) bool {
	return err == nil || (errors.Is(err, io.EOF) && !errors.Is(err, ErrNetworkDown))
}
