// ABOUTME: Byte ring buffer between blocking writers and device callbacks
// ABOUTME: Writers wait for space, readers zero-fill on underrun
package output

import (
	"sync"
)

// RingBuffer is a bounded FIFO of PCM bytes. Write blocks until all data
// fits or the buffer is closed; Read never blocks.
type RingBuffer struct {
	buffer   []byte
	readPos  int
	writePos int
	count    int
	closed   bool
	silence  byte
	mu       sync.Mutex
	space    *sync.Cond
}

// NewRingBuffer creates a ring buffer with given capacity in bytes.
// Underruns are filled with the silence byte.
func NewRingBuffer(capacity int, silence byte) *RingBuffer {
	rb := &RingBuffer{buffer: make([]byte, capacity), silence: silence}
	rb.space = sync.NewCond(&rb.mu)
	return rb
}

// Write copies all of data into the buffer, waiting for the reader to make
// room. It returns the bytes written, which is short only after Close.
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for written < len(data) {
		for rb.count == len(rb.buffer) && !rb.closed {
			rb.space.Wait()
		}
		if rb.closed {
			return written
		}

		n := len(data) - written
		if free := len(rb.buffer) - rb.count; n > free {
			n = free
		}
		for i := 0; i < n; i++ {
			rb.buffer[rb.writePos] = data[written+i]
			rb.writePos = (rb.writePos + 1) % len(rb.buffer)
		}
		rb.count += n
		written += n
	}
	return written
}

// Read fills p from the buffer and pads any remainder with silence. It returns the
// number of real bytes copied.
func (rb *RingBuffer) Read(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for read < len(p) && rb.count > 0 {
		p[read] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % len(rb.buffer)
		rb.count--
		read++
	}
	for i := read; i < len(p); i++ {
		p[i] = rb.silence
	}

	if read > 0 {
		rb.space.Broadcast()
	}
	return read
}

// Available returns the number of bytes waiting to be read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of bytes that can be written without waiting
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.buffer) - rb.count
}

// Close wakes blocked writers; later writes return immediately
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.space.Broadcast()
}
