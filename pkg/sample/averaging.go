package sample

// NewAveragingConverter averages every windowSize consecutive samples into
// one, stamped with the last sample's time. A partial window left when the
// input closes is flushed.
func NewAveragingConverter(windowSize int, bufSize int) func(in <-chan Sample) <-chan Sample {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = 1024
	}

	return func(in <-chan Sample) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			buffer := make([]Sample, 0, windowSize)
			for s := range in {
				buffer = append(buffer, s)
				if len(buffer) < windowSize {
					continue
				}
				out <- average(buffer)
				buffer = buffer[:0]
			}
			if len(buffer) > 0 {
				out <- average(buffer)
			}
		}()

		return out
	}
}

// average returns the mean of samples.
func average(samples []Sample) Sample {
	if len(samples) == 0 {
		return Sample{}
	}

	var sumValue float64
	var sumRaw uint64
	for _, s := range samples {
		sumValue += s.Value
		sumRaw += uint64(s.Raw)
	}

	last := samples[len(samples)-1]
	n := uint64(len(samples))
	return Sample{
		Timestamp: last.Timestamp,
		Raw:       uint16((sumRaw + n/2) / n),
		Value:     sumValue / float64(n),
		Frequency: last.Frequency / uint32(n),
	}
}
