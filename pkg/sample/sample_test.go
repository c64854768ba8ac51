package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/iaware/pkg/client"
	"github.com/itohio/iaware/pkg/config"
	"github.com/itohio/iaware/pkg/protocol"
)

func TestADCToVoltage(t *testing.T) {
	tests := []struct {
		name string
		adc  uint16
		bits int
		vref float64
		want float64
	}{
		{"zero", 0, 12, 3.3, 0},
		{"full scale", 4095, 12, 3.3, 3.3},
		{"half", 2047, 12, 3.3, 1.65},
		{"different vref", 2047, 12, 5.0, 2.5},
		{"16 bit full scale", 65535, 16, 3.3, 3.3},
		{"invalid bits fall back to 12", 4095, 0, 3.3, 3.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adcToVoltage(tt.adc, tt.vref, adcFullScale(tt.bits))
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestExpand_Timestamps(t *testing.T) {
	now := time.Now()
	f := client.Frame{
		Received: now,
		DataFrame: protocol.DataFrame{
			EffectiveFrequency: 1000,
			Samples:            []uint16{10, 20, 30, 40},
		},
	}

	got := expand(f, 0, 3.3, 4095)
	require.Len(t, got, 4)
	for i, s := range got {
		assert.Equal(t, f.Samples[i], s.Raw)
		assert.Equal(t, uint32(1000), s.Frequency)
		assert.Equal(t, now.Add(-time.Duration(3-i)*time.Millisecond), s.Timestamp)
	}
}

func TestExpand_FallbackFrequency(t *testing.T) {
	now := time.Now()
	f := client.Frame{Received: now, DataFrame: protocol.DataFrame{Samples: []uint16{1, 2}}}

	got := expand(f, 100, 3.3, 4095)
	require.Len(t, got, 2)
	assert.Equal(t, uint32(100), got[0].Frequency)
	assert.Equal(t, now.Add(-10*time.Millisecond), got[0].Timestamp)

	got = expand(f, 0, 3.3, 4095)
	assert.Equal(t, now, got[0].Timestamp, "no frequency means no spacing")

	assert.Nil(t, expand(client.Frame{}, 100, 3.3, 4095))
}

func TestConverter(t *testing.T) {
	cfg := config.Default().Monitor
	convert := NewConverter(&cfg, 20000, 0)

	in := make(chan client.Frame, 2)
	out := convert(in)

	in <- client.Frame{Received: time.Now(), DataFrame: protocol.DataFrame{EffectiveFrequency: 20000, Samples: []uint16{0, 4095}}}
	in <- client.Frame{Received: time.Now(), DataFrame: protocol.DataFrame{EffectiveFrequency: 20000, Samples: []uint16{2047}}}
	close(in)

	var got []Sample
	for s := range out {
		got = append(got, s)
	}
	require.Len(t, got, 3)
	assert.InDelta(t, 0.0, got[0].Value, 1e-9)
	assert.InDelta(t, 3.3, got[1].Value, 1e-9)
	assert.InDelta(t, 1.65, got[2].Value, 0.01)
}

// The output channel must close when the input closes.
func TestConverter_GracefulShutdown(t *testing.T) {
	cfg := config.Default().Monitor
	in := make(chan client.Frame)
	out := NewConverter(&cfg, 1000, 4)(in)

	close(in)
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("output channel did not close")
	}
}
