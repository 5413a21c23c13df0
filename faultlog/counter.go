package faultlog

import "sync/atomic"

// counter is a lock-free monotone counter.
type counter struct {
	v uint64
}

func (c *counter) inc() {
	atomic.AddUint64(&c.v, 1)
}

func (c *counter) load() uint64 {
	return atomic.LoadUint64(&c.v)
}
