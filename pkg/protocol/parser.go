package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParserState is the framing state of a control connection.
type ParserState int

const (
	AwaitingLength ParserState = iota
	FetchingPayload
	Processing
)

func (s ParserState) String() string {
	switch s {
	case AwaitingLength:
		return "awaiting_length"
	case FetchingPayload:
		return "fetching_payload"
	case Processing:
		return "processing"
	default:
		return fmt.Sprintf("ParserState(%d)", int(s))
	}
}

// Parser reassembles length-prefixed frames from arbitrarily chunked input.
// A Parser belongs to a single connection and is not safe for concurrent use.
type Parser struct {
	state      ParserState
	lenBuf     [LengthFieldSize]byte
	lenN       int
	payload    []byte
	payloadN   int
	maxPayload uint32
}

// NewParser creates a parser accepting payloads up to maxPayload bytes.
// Zero selects DefaultMaxPayloadSize.
func NewParser(maxPayload uint32) *Parser {
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayloadSize
	}
	return &Parser{maxPayload: maxPayload}
}

// State returns the current framing state.
func (p *Parser) State() ParserState {
	return p.state
}

// Reset discards any partially received frame.
func (p *Parser) Reset() {
	p.state = AwaitingLength
	p.lenN = 0
	p.payload = nil
	p.payloadN = 0
}

// Feed consumes chunk and calls handle once per completed payload, in order.
// The payload slice is only valid for the duration of the call. An error from
// handle stops parsing and is returned as is; the parser must then be Reset.
func (p *Parser) Feed(chunk []byte, handle func(payload []byte) error) error {
	for len(chunk) > 0 || p.state == Processing {
		switch p.state {
		case AwaitingLength:
			n := copy(p.lenBuf[p.lenN:], chunk)
			p.lenN += n
			chunk = chunk[n:]
			if p.lenN < LengthFieldSize {
				continue
			}

			length := binary.BigEndian.Uint32(p.lenBuf[:])
			if length > p.maxPayload {
				p.Reset()
				return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, p.maxPayload)
			}
			p.payload = make([]byte, length)
			p.payloadN = 0
			p.lenN = 0
			if length == 0 {
				p.state = Processing
			} else {
				p.state = FetchingPayload
			}

		case FetchingPayload:
			n := copy(p.payload[p.payloadN:], chunk)
			p.payloadN += n
			chunk = chunk[n:]
			if p.payloadN == len(p.payload) {
				p.state = Processing
			}

		case Processing:
			payload := p.payload
			p.payload = nil
			p.payloadN = 0
			p.state = AwaitingLength
			if err := handle(payload); err != nil {
				return err
			}
		}
	}
	return nil
}
