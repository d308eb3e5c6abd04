// Package buffer implements the fixed-capacity byte queues that back every
// simulated socket. Writes never block and never grow the buffer; reads
// remove bytes from the front in FIFO order.
package buffer

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/smallnest/ringbuffer"
)

// DefaultSize matches the default send and receive buffer of a socket.
const DefaultSize = 8192

var ErrBadCapacity = errors.New("buffer capacity must be positive")

// Status is a snapshot of a buffer's occupancy.
type Status struct {
	Used     int
	Free     int
	Capacity int
}

// Buffer is a byte FIFO with a fixed capacity that only changes through
// Resize. It is safe for concurrent use.
type Buffer struct {
	mu sync.Mutex
	rb *ringbuffer.RingBuffer
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("buffer: non-positive capacity")
	}
	return &Buffer{rb: ringbuffer.New(capacity)}
}

// Write appends as much of p as fits and returns the number of bytes stored.
// A full buffer stores nothing and returns 0.
func (b *Buffer) Write(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.write(p)
}

func (b *Buffer) write(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	// A partial or refused write surfaces as ErrTooMuchDataToWrite or
	// ErrIsFull; the count is all callers need.
	n, _ := b.rb.Write(p)
	return n
}

// Read removes and returns up to max bytes from the front. An empty buffer
// yields an empty slice.
func (b *Buffer) Read(max int) []byte {
	if max <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := b.rb.Length(); n < max {
		max = n
	}
	if max == 0 {
		return []byte{}
	}
	p := make([]byte, max)
	n, _ := b.rb.Read(p)
	return p[:n]
}

// ReadInto fills p from the front of the buffer and returns the byte count.
func (b *Buffer) ReadInto(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(p) == 0 || b.rb.IsEmpty() {
		return 0
	}
	n, _ := b.rb.Read(p)
	return n
}

// Drain removes and returns every buffered byte.
func (b *Buffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drain()
}

func (b *Buffer) drain() []byte {
	p := make([]byte, b.rb.Length())
	if len(p) == 0 {
		return p
	}
	n, _ := b.rb.Read(p)
	return p[:n]
}

// Resize changes the capacity. When shrinking below the buffered amount the
// newest bytes are dropped; the number of dropped bytes is returned.
func (b *Buffer) Resize(capacity int) (int, error) {
	if capacity <= 0 {
		return 0, errors.Wrapf(ErrBadCapacity, "resize to %d", capacity)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if capacity == b.rb.Capacity() {
		return 0, nil
	}
	data := b.drain()
	dropped := 0
	if len(data) > capacity {
		dropped = len(data) - capacity
		data = data[:capacity]
	}
	b.rb = ringbuffer.New(capacity)
	b.write(data)
	return dropped, nil
}

// Clear discards the contents but keeps the capacity.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rb.Reset()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rb.Length()
}

func (b *Buffer) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rb.Capacity()
}

func (b *Buffer) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rb.Free()
}

// HasSpace reports whether n more bytes would fit.
func (b *Buffer) HasSpace(n int) bool {
	return b.Free() >= n
}

func (b *Buffer) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Used:     b.rb.Length(),
		Free:     b.rb.Free(),
		Capacity: b.rb.Capacity(),
	}
}
