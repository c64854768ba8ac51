// Package protocol implements the data-plane and control-plane wire formats.
//
// Both planes use a 4-byte big-endian length prefix.
//
//	data:    Length(4) | Group(1) | EffectiveFrequency(4) | Samples(2*N, big-endian)
//	control: Length(4) | Header(1) | Opcode(1) | Argument(0..)
//
// The data-plane length counts everything after the length field: 1 + 4 + 2*N.
package protocol

const (
	LengthFieldSize    = 4
	GroupFieldSize     = 1
	FrequencyFieldSize = 4
	SampleSize         = 2

	// DataHeaderSize is the number of bytes preceding the first sample of a data frame.
	DataHeaderSize = LengthFieldSize + GroupFieldSize + FrequencyFieldSize

	// DefaultMaxPayloadSize bounds a single control frame.
	DefaultMaxPayloadSize = 64 << 10

	DefaultDataPort    = 5000
	DefaultControlPort = 5001
)

// Frame headers
const (
	HeaderCommand byte = 0
	HeaderGroup1  byte = 1
	HeaderGroup2  byte = 2
)

// Opcode identifies a command carried under HeaderCommand.
type Opcode byte

const (
	OpStartStream          Opcode = 0
	OpStopStream           Opcode = 1
	OpSetSamplingFrequency Opcode = 2
	OpSetSendFrequency     Opcode = 3
	OpFirmwareUpload       Opcode = 100
)

func (o Opcode) String() string {
	switch o {
	case OpStartStream:
		return "start_stream"
	case OpStopStream:
		return "stop_stream"
	case OpSetSamplingFrequency:
		return "set_sampling_frequency"
	case OpSetSendFrequency:
		return "set_send_frequency"
	case OpFirmwareUpload:
		return "firmware_upload"
	default:
		return "unknown"
	}
}

// argumentSize returns the number of argument bytes an opcode requires.
func (o Opcode) argumentSize() int {
	switch o {
	case OpSetSamplingFrequency:
		return 4
	case OpSetSendFrequency:
		return 1
	default:
		return 0
	}
}
