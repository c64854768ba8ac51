package ring

import "time"

// Size derives pool geometry from the sampling frequency (Hz), the send
// frequency (0.1 Hz units) and the worst-case consumer latency the ring must
// absorb. One slot holds one send period of samples; the ring holds
// maxLatency worth of slots.
func Size(samplingHz, sendDeciHz uint32, maxLatency time.Duration) (depth, samplesPerSlot int) {
	if sendDeciHz == 0 {
		sendDeciHz = 1
	}

	samplesPerSlot = int(uint64(samplingHz) * 10 / uint64(sendDeciHz))
	if samplesPerSlot < 1 {
		samplesPerSlot = 1
	}

	depth = int(int64(maxLatency) * int64(sendDeciHz) / int64(10*time.Second))
	if depth < MinDepth {
		depth = MinDepth
	}
	return depth, samplesPerSlot
}
