package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverage(t *testing.T) {
	now := time.Now()
	got := average([]Sample{
		{Timestamp: now, Raw: 1, Value: 1.0, Frequency: 1000},
		{Timestamp: now.Add(time.Millisecond), Raw: 2, Value: 2.0, Frequency: 1000},
		{Timestamp: now.Add(2 * time.Millisecond), Raw: 4, Value: 3.0, Frequency: 1000},
	})

	assert.Equal(t, now.Add(2*time.Millisecond), got.Timestamp)
	assert.Equal(t, uint16(2), got.Raw)
	assert.InDelta(t, 2.0, got.Value, 1e-9)
	assert.Equal(t, uint32(333), got.Frequency)

	assert.Equal(t, Sample{}, average(nil))
}

func TestAveragingConverter(t *testing.T) {
	tests := []struct {
		name   string
		window int
		values []float64
		want   []float64
	}{
		{"window 1 passes through", 1, []float64{1, 2, 3}, []float64{1, 2, 3}},
		{"exact windows", 2, []float64{1, 3, 5, 7}, []float64{2, 6}},
		{"partial window flushed", 3, []float64{3, 3, 3, 9}, []float64{3, 9}},
		{"invalid window", 0, []float64{4, 5}, []float64{4, 5}},
		{"empty", 4, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make(chan Sample, len(tt.values))
			for _, v := range tt.values {
				in <- Sample{Value: v}
			}
			close(in)

			var got []float64
			for s := range NewAveragingConverter(tt.window, 0)(in) {
				got = append(got, s.Value)
			}
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}
}
