package protocol

import (
	"encoding/binary"
	"fmt"
)

// Command is a decoded control-plane payload.
type Command struct {
	Header   byte
	Opcode   Opcode
	Argument []byte
}

// Frequency returns the 4-byte big-endian argument of OpSetSamplingFrequency.
func (c Command) Frequency() uint32 {
	return DecodeUint32(c.Argument)
}

// DeciHz returns the 1-byte argument of OpSetSendFrequency (0.1 Hz units).
func (c Command) DeciHz() uint8 {
	if len(c.Argument) == 0 {
		return 0
	}
	return c.Argument[0]
}

// EncodeUint32 returns v as 4 big-endian bytes.
func EncodeUint32(v uint32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b
}

// DecodeUint32 reads a big-endian uint32 from the first 4 bytes of b.
// Shorter inputs decode to 0.
func DecodeUint32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// DecodeCommand decodes a control payload (the bytes after the length field).
//
// ErrEmptyFrame, ErrUnknownHeader and ErrUnknownOpcode are discardable: the
// frame carries nothing actionable. ErrMalformed means a known opcode arrived
// without its full argument.
func DecodeCommand(payload []byte) (Command, error) {
	if len(payload) == 0 {
		return Command{}, ErrEmptyFrame
	}

	cmd := Command{Header: payload[0]}
	switch cmd.Header {
	case HeaderCommand:
	case HeaderGroup1, HeaderGroup2:
		return cmd, fmt.Errorf("%w: group header %d on control plane", ErrUnknownHeader, cmd.Header)
	default:
		return cmd, fmt.Errorf("%w: %d", ErrUnknownHeader, cmd.Header)
	}

	if len(payload) < 2 {
		return cmd, fmt.Errorf("%w: missing opcode", ErrMalformed)
	}
	cmd.Opcode = Opcode(payload[1])

	switch cmd.Opcode {
	case OpStartStream, OpStopStream, OpSetSamplingFrequency, OpSetSendFrequency, OpFirmwareUpload:
	default:
		return cmd, fmt.Errorf("%w: %d", ErrUnknownOpcode, payload[1])
	}

	arg := payload[2:]
	if need := cmd.Opcode.argumentSize(); len(arg) < need {
		return cmd, fmt.Errorf("%w: %s needs %d argument bytes, got %d", ErrMalformed, cmd.Opcode, need, len(arg))
	}
	if len(arg) > 0 {
		cmd.Argument = append([]byte(nil), arg...)
	}
	return cmd, nil
}

// EncodeCommand returns the full wire frame, length prefix included.
func EncodeCommand(cmd Command) []byte {
	n := 2 + len(cmd.Argument)
	data := make([]byte, LengthFieldSize+n)
	binary.BigEndian.PutUint32(data[:LengthFieldSize], uint32(n))
	data[4] = cmd.Header
	data[5] = byte(cmd.Opcode)
	copy(data[6:], cmd.Argument)
	return data
}

// StartStream builds a START_STREAM frame.
func StartStream() []byte {
	return EncodeCommand(Command{Header: HeaderCommand, Opcode: OpStartStream})
}

// StopStream builds a STOP_STREAM frame.
func StopStream() []byte {
	return EncodeCommand(Command{Header: HeaderCommand, Opcode: OpStopStream})
}

// SetSamplingFrequency builds a SET_SAMPLING_FREQUENCY frame.
func SetSamplingFrequency(hz uint32) []byte {
	arg := EncodeUint32(hz)
	return EncodeCommand(Command{Header: HeaderCommand, Opcode: OpSetSamplingFrequency, Argument: arg[:]})
}

// SetSendFrequency builds a SET_SEND_DATA_FREQUENCY frame; deciHz is in 0.1 Hz units.
func SetSendFrequency(deciHz uint8) []byte {
	return EncodeCommand(Command{Header: HeaderCommand, Opcode: OpSetSendFrequency, Argument: []byte{deciHz}})
}
