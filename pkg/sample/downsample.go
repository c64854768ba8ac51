package sample

// Downsample decimates src to at most maxPoints elements for display.
// dst is reused when it has enough capacity. When src already fits it is
// copied as is.
func Downsample[T any](dst, src []T, maxPoints int) []T {
	if len(src) <= maxPoints {
		if cap(dst) >= len(src) {
			dst = dst[:len(src)]
		} else {
			dst = make([]T, len(src))
		}
		copy(dst, src)
		return dst
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]T, 0, maxPoints)
	}

	step := float64(len(src)) / float64(maxPoints)
	for i := 0; i < maxPoints; i++ {
		dst = append(dst, src[int(float64(i)*step)])
	}
	return dst
}

// Values extracts sample voltages into dst, reusing its capacity.
func Values(dst []float64, samples []Sample) []float64 {
	dst = dst[:0]
	for _, s := range samples {
		dst = append(dst, s.Value)
	}
	return dst
}
