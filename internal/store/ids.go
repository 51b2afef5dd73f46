package store

import "sync/atomic"

// IDGenerator issues monotonically increasing tier ids for the life of the process
type IDGenerator struct {
	last atomic.Int64
}

// NewIDGenerator returns a generator whose first id is 1
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a fresh id
func (g *IDGenerator) Next() int64 {
	return g.last.Add(1)
}

// Advance makes sure future ids are greater than min
func (g *IDGenerator) Advance(min int64) {
	for {
		cur := g.last.Load()
		if cur >= min || g.last.CompareAndSwap(cur, min) {
			return
		}
	}
}
