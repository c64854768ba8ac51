// Package client talks to a sensor node from the host side: it receives data
// frames and issues control commands.
package client

import (
	"time"

	"github.com/itohio/iaware/pkg/protocol"
)

// DefaultBufferSize is the default size of the frames channel.
const DefaultBufferSize = 64

// Frame is a data frame stamped with its arrival time.
type Frame struct {
	Received time.Time
	protocol.DataFrame
}

// Device is a sensor node (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Frames() <-chan Frame
	Start() error
	Stop() error
	SetSamplingFrequency(hz uint32) error
	SetSendFrequency(deciHz uint8) error
	IsConnected() bool
}

var (
	_ Device = (*TCP)(nil)
	_ Device = (*Mock)(nil)
)
