package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRuntime_Defaults(t *testing.T) {
	r := New(20000, 200)
	assert.False(t, r.StreamEnabled())
	assert.Equal(t, uint32(20000), r.SamplingFrequency())
	assert.Equal(t, uint32(200), r.SendFrequency())
	assert.Equal(t, 50*time.Millisecond, r.SendInterval())
	assert.Equal(t, 50*time.Microsecond, r.TickInterval())
}

func TestRuntime_Setters(t *testing.T) {
	r := New(0, 0)
	assert.Equal(t, time.Duration(0), r.SendInterval())
	assert.Equal(t, time.Duration(0), r.TickInterval())

	assert.False(t, r.SetStreamEnabled(true))
	assert.True(t, r.SetStreamEnabled(true))
	assert.True(t, r.StreamEnabled())

	r.SetSendFrequency(5)
	assert.Equal(t, 2*time.Second, r.SendInterval())

	r.SetSamplingFrequency(1000)
	assert.Equal(t, time.Millisecond, r.TickInterval())
}

func TestRuntime_ConcurrentAccess(t *testing.T) {
	r := New(20000, 200)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			r.SetStreamEnabled(i%2 == 0)
			r.SetSendFrequency(uint32(1 + i%255))
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = r.StreamEnabled()
				assert.NotZero(t, r.SendInterval())
			}
		}()
	}
	wg.Wait()
}
