// Package progress provides the shared progress cell between an ingestion
// worker and the display poller.
package progress

import "sync"

// Channel holds a single progress fraction in [0, 1]. Writes overwrite the
// previous value; readers sample the latest one. All methods are thread-safe.
type Channel struct {
	mu    sync.Mutex
	value float64
}

// New returns a channel at 0.
func New() *Channel {
	return &Channel{}
}

// Write stores v, clamped to [0, 1].
func (c *Channel) Write(v float64) {
	switch {
	case v < 0 || v != v:
		v = 0
	case v > 1:
		v = 1
	}
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
}

// Read returns the most recently written value.
func (c *Channel) Read() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
