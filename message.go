package streamdecode

import (
	"sync/atomic"
)

// Message is a reference-counted container backing compressed frame storage.
//
// The decoder takes a reference before handing a frame to the pipeline and
// drops it from the pipeline's release callback, which may run on any
// goroutine after Decode has returned. onFree runs exactly once, when the
// last reference is dropped.
type Message struct {
	data   []byte
	refs   atomic.Int32
	onFree func()
}

// NewMessage wraps data with a single reference held by the caller
func NewMessage(data []byte, onFree func()) *Message {
	m := &Message{data: data, onFree: onFree}
	m.refs.Store(1)
	return m
}

// Data returns the message storage
func (m *Message) Data() []byte {
	return m.data
}

// Ref takes an additional reference
func (m *Message) Ref() *Message {
	if m.refs.Add(1) <= 1 {
		panic("stream-decode: Ref on a released message")
	}
	return m
}

// Unref drops a reference; the last one runs onFree
func (m *Message) Unref() {
	switch n := m.refs.Add(-1); {
	case n == 0:
		if m.onFree != nil {
			m.onFree()
		}
	case n < 0:
		panic("stream-decode: message reference count underflow")
	}
}

// Refs returns the current reference count
func (m *Message) Refs() int32 {
	return m.refs.Load()
}

// CompressedFrame is one compressed frame: Data points into storage owned
// by Message (which may be nil for storage the caller keeps alive itself).
type CompressedFrame struct {
	Message *Message
	Data    []byte
}

// FrameFromMessage returns a compressed frame spanning all of m
func FrameFromMessage(m *Message) CompressedFrame {
	return CompressedFrame{Message: m, Data: m.Data()}
}
