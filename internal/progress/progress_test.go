package progress

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannel_LatestWins(t *testing.T) {
	c := New()
	assert.Equal(t, 0.0, c.Read())

	c.Write(0.1)
	c.Write(0.9)
	assert.Equal(t, 0.9, c.Read())
}

func TestChannel_Clamps(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "negative", in: -0.5, want: 0},
		{name: "above one", in: 1.5, want: 1},
		{name: "nan", in: math.NaN(), want: 0},
		{name: "in range", in: 0.25, want: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Write(tt.in)
			assert.Equal(t, tt.want, c.Read())
		})
	}
}

func TestChannel_ConcurrentReadersSeeMonotonicValues(t *testing.T) {
	c := New()
	const steps = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= steps; i++ {
			c.Write(float64(i) / steps)
		}
	}()

	last := 0.0
	for last < 1 {
		v := c.Read()
		if v < last {
			t.Fatalf("progress went backwards: %v after %v", v, last)
		}
		last = v
	}
	wg.Wait()
	assert.Equal(t, 1.0, c.Read())
}
