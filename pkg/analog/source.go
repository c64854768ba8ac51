// Package analog provides the sample sources read by the producer.
package analog

// Source is the analog input consumed by the sample producer. ReadSample is
// called from the sampling deadline loop and must never block.
type Source interface {
	ReadSample() uint16
}

// Func adapts a function to Source.
type Func func() uint16

func (f Func) ReadSample() uint16 { return f() }

// Sequence returns consecutive values starting at start, wrapping at 65535.
// Tests use it to tag samples with their fill order.
func Sequence(start uint16) Source {
	next := start
	return Func(func() uint16 {
		v := next
		next++
		return v
	})
}
