package transcript

import "sync/atomic"

// DispatchCounter tracks segments handed to the transcriber against
// segments that finished, successfully or not. Session teardown waits
// on Drained before synthesizing the final note.
type DispatchCounter struct {
	dispatched atomic.Uint64
	completed  atomic.Uint64
}

// IncDispatched records a segment entering the pipeline
func (c *DispatchCounter) IncDispatched() {
	c.dispatched.Add(1)
}

// IncCompleted records a segment leaving the pipeline
func (c *DispatchCounter) IncCompleted() {
	c.completed.Add(1)
}

// Drained reports whether every dispatched segment has completed
func (c *DispatchCounter) Drained() bool {
	// Read completed first so a racing dispatch can only make the
	// counter look behind, never falsely drained.
	completed := c.completed.Load()
	return c.dispatched.Load() == completed
}

// Pending returns the number of in-flight segments
func (c *DispatchCounter) Pending() uint64 {
	completed := c.completed.Load()
	dispatched := c.dispatched.Load()
	if dispatched < completed {
		return 0
	}
	return dispatched - completed
}
