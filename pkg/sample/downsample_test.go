package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

func TestDownsample_NoDecimation(t *testing.T) {
	src := seq(3)

	got := Downsample(nil, src, 10)
	assert.Equal(t, src, got)

	dst := make([]int, 0, 10)
	got = Downsample(dst, src, 10)
	assert.Equal(t, src, got)
	assert.Equal(t, cap(dst), cap(got), "dst is reused")

	got[0] = 99
	assert.Equal(t, 0, src[0], "result does not alias src")
}

func TestDownsample_Decimates(t *testing.T) {
	tests := []struct {
		name string
		n    int
		max  int
		want []int
	}{
		{"even step", 100, 10, []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}},
		{"fractional step", 10, 4, []int{0, 2, 5, 7}},
		{"single point", 50, 1, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Downsample(nil, seq(tt.n), tt.max))
		})
	}
}

func TestDownsample_ReusesDestination(t *testing.T) {
	dst := make([]int, 5, 20)
	got := Downsample(dst, seq(100), 10)
	require.Len(t, got, 10)
	assert.Equal(t, 20, cap(got))

	small := make([]int, 0, 2)
	got = Downsample(small, seq(100), 10)
	assert.Len(t, got, 10)
	assert.Equal(t, 10, cap(got))
}

func TestValues(t *testing.T) {
	samples := []Sample{{Value: 1.5}, {Value: 2.5}}
	assert.Equal(t, []float64{1.5, 2.5}, Values(nil, samples))

	dst := make([]float64, 3, 8)
	got := Values(dst, samples)
	assert.Equal(t, []float64{1.5, 2.5}, got)
	assert.Equal(t, 8, cap(got))
}
