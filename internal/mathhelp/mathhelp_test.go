package mathhelp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEuclidianMod(t *testing.T) {
	tests := []struct {
		d, m, want int
	}{
		{d: -1, m: 4, want: 3},
		{d: 4, m: 4, want: 0},
		{d: 5, m: 4, want: 1},
		{d: -9, m: 4, want: 3},
		{d: 0, m: 4, want: 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EuclidianMod(tt.d, tt.m), "EuclidianMod(%d, %d)", tt.d, tt.m)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(1, 1+1e-12, Tolerance))
	assert.True(t, Equal(1e8, 1e8+1e-2, Tolerance))
	assert.False(t, Equal(1, 1.001, Tolerance))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(-3, 1, 5))
	assert.Equal(t, 5.0, Clamp(7, 1, 5))
	assert.Equal(t, 2.5, Clamp(2.5, 1, 5))
}
