package audio

import "sync"

// RingBuffer is a thread-safe ring buffer for raw audio bytes. When full
// it drops the oldest bytes, keeping the most recent audio so a restarted
// recognizer resumes close to live.
type RingBuffer struct {
	buffer []byte
	size   int
	read   int
	write  int
	full   bool
	mu     sync.Mutex
}

// NewRingBuffer creates a new ring buffer with the specified capacity
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write appends data, overwriting the oldest bytes if the buffer is full
func (rb *RingBuffer) Write(data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(data) >= rb.size {
		// Only the newest window fits
		copy(rb.buffer, data[len(data)-rb.size:])
		rb.read = 0
		rb.write = 0
		rb.full = true
		return
	}

	for _, b := range data {
		rb.buffer[rb.write] = b
		rb.write = (rb.write + 1) % rb.size
		if rb.full {
			rb.read = rb.write
		} else if rb.write == rb.read {
			rb.full = true
		}
	}
}

// Drain returns all buffered bytes and empties the buffer
func (rb *RingBuffer) Drain() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := rb.available()
	if n == 0 {
		return nil
	}

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = rb.buffer[rb.read]
		rb.read = (rb.read + 1) % rb.size
	}
	rb.full = false
	return out
}

// Available returns the number of buffered bytes
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.available()
}

func (rb *RingBuffer) available() int {
	if rb.full {
		return rb.size
	}
	if rb.write >= rb.read {
		return rb.write - rb.read
	}
	return rb.size - rb.read + rb.write
}

// Clear empties the buffer
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.read = 0
	rb.write = 0
	rb.full = false
}
