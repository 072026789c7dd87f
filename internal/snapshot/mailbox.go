package snapshot

import (
	"sync"
	"time"
)

// Frame is a captured RGBA frame owned by the snapshot pipeline
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte // Width*Height*4 RGBA bytes
}

// CopyFrame copies an RGBA output buffer into a new Frame. The capture
// buffer keeps being written by the session, so it is never handed over.
func CopyFrame(seq uint64, ts time.Time, width, height int, rgba []byte) *Frame {
	data := make([]byte, len(rgba))
	copy(data, rgba)
	return &Frame{Seq: seq, Timestamp: ts, Width: width, Height: height, Data: data}
}

// Mailbox is a single-slot frame buffer between the capture loop and a
// slow consumer (disk writer).
//
//   - Publish never blocks and overwrites an unconsumed frame
//   - Next blocks until a frame is available or the mailbox is closed
//   - A frame pending at Close is still handed out once
//   - Only one goroutine may call Next
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *Frame // nil = consumed
	closed bool

	published uint64
	dropped   uint64
}

// NewMailbox creates an empty mailbox
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores frame, replacing any frame the consumer has not taken yet
func (m *Mailbox) Publish(frame *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.frame != nil {
		m.dropped++
	}
	m.frame = frame
	m.published++
	m.cond.Signal()
}

// Next returns the latest frame, blocking until one arrives. Returns nil
// once the mailbox is closed and drained.
func (m *Mailbox) Next() *Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	if m.frame == nil {
		return nil
	}

	frame := m.frame
	m.frame = nil
	return frame
}

// Close stops accepting frames and wakes the consumer. Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

// Stats returns how many frames were published and overwritten unconsumed
func (m *Mailbox) Stats() (published, dropped uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published, m.dropped
}
