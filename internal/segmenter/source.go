package segmenter

import "sync"

// ChanSource is a Source fed by pushed frames. Push after Close is a
// no-op, which lets producers race session shutdown safely.
type ChanSource struct {
	ch     chan []int16
	mu     sync.Mutex
	closed bool
}

// NewChanSource creates a push-based source with the given channel depth
func NewChanSource(depth int) *ChanSource {
	return &ChanSource{ch: make(chan []int16, depth)}
}

// Push delivers one frame. If the segmenter is severely behind the
// frame is dropped rather than blocking the caller.
func (c *ChanSource) Push(frame []int16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.ch <- frame:
		return true
	default:
		return false
	}
}

// Frames returns the frame channel
func (c *ChanSource) Frames() <-chan []int16 {
	return c.ch
}

// Close ends the stream. Idempotent.
func (c *ChanSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	return nil
}
