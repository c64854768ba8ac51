package protocol

import "errors"

var (
	ErrFrameTooLarge  = errors.New("frame exceeds maximum payload size")
	ErrMalformed      = errors.New("malformed frame")
	ErrEmptyFrame     = errors.New("empty frame")
	ErrUnknownHeader  = errors.New("unknown frame header")
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrShortDataFrame = errors.New("data frame shorter than header")
)
