package result

import "sync/atomic"

// IDGenerator hands out incrementing detection result IDs.
type IDGenerator struct {
	id atomic.Int64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental ID number.
func (g *IDGenerator) GetNext() int64 {
	return g.id.Add(1)
}
