package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DataFrame is a decoded data-plane frame.
type DataFrame struct {
	Group              byte
	EffectiveFrequency uint32
	Samples            []uint16
}

// DataFrameLength returns the value of the length field for n samples.
func DataFrameLength(n int) uint32 {
	return uint32(GroupFieldSize + FrequencyFieldSize + SampleSize*n)
}

// DataFrameSize returns the total wire size, length field included, for n samples.
func DataFrameSize(n int) int {
	return DataHeaderSize + SampleSize*n
}

// EncodeDataFrame returns the full wire representation of f.
func EncodeDataFrame(f DataFrame) []byte {
	data := make([]byte, DataFrameSize(len(f.Samples)))
	binary.BigEndian.PutUint32(data[0:4], DataFrameLength(len(f.Samples)))
	data[4] = f.Group
	binary.BigEndian.PutUint32(data[5:9], f.EffectiveFrequency)
	for i, s := range f.Samples {
		binary.BigEndian.PutUint16(data[DataHeaderSize+2*i:], s)
	}
	return data
}

// ReadDataFrame reads one data frame from r. buf is reused when large enough;
// maxLength bounds the length field (0 = unbounded).
func ReadDataFrame(r io.Reader, buf []byte, maxLength uint32) (DataFrame, []byte, error) {
	var hdr [LengthFieldSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return DataFrame{}, buf, err
	}

	length := binary.BigEndian.Uint32(hdr[:])
	if length < GroupFieldSize+FrequencyFieldSize {
		return DataFrame{}, buf, fmt.Errorf("%w: length %d", ErrShortDataFrame, length)
	}
	if maxLength > 0 && length > maxLength {
		return DataFrame{}, buf, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, maxLength)
	}
	if (length-GroupFieldSize-FrequencyFieldSize)%SampleSize != 0 {
		return DataFrame{}, buf, fmt.Errorf("%w: odd sample bytes in length %d", ErrMalformed, length)
	}

	if cap(buf) < int(length) {
		buf = make([]byte, length)
	}
	buf = buf[:length]
	if _, err := io.ReadFull(r, buf); err != nil {
		return DataFrame{}, buf, err
	}

	f := DataFrame{
		Group:              buf[0],
		EffectiveFrequency: binary.BigEndian.Uint32(buf[1:5]),
	}
	raw := buf[GroupFieldSize+FrequencyFieldSize:]
	f.Samples = make([]uint16, len(raw)/SampleSize)
	for i := range f.Samples {
		f.Samples[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return f, buf, nil
}
