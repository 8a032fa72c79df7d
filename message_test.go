package streamdecode

import (
	"sync"
	"sync/atomic"
	"testing"
)

// TestMessage_RefCounting verifies onFree runs exactly once at zero
func TestMessage_RefCounting(t *testing.T) {
	var freed atomic.Int32
	m := NewMessage([]byte("abc"), func() { freed.Add(1) })

	if m.Refs() != 1 {
		t.Fatalf("Expected initial refs=1, got %d", m.Refs())
	}

	m.Ref().Ref()
	m.Unref()
	m.Unref()
	if freed.Load() != 0 {
		t.Fatal("onFree ran while references remained")
	}

	m.Unref()
	if freed.Load() != 1 {
		t.Errorf("Expected onFree once, got %d", freed.Load())
	}

	t.Logf("✅ onFree ran once at refs=0")
}

// TestMessage_ConcurrentUnref verifies the release callback may run on any
// goroutine without double-freeing
func TestMessage_ConcurrentUnref(t *testing.T) {
	const holders = 64

	var freed atomic.Int32
	m := NewMessage([]byte("abc"), func() { freed.Add(1) })
	for i := 0; i < holders; i++ {
		m.Ref()
	}

	var wg sync.WaitGroup
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Unref()
		}()
	}
	wg.Wait()

	if freed.Load() != 0 || m.Refs() != 1 {
		t.Fatalf("Expected caller reference left, refs=%d freed=%d", m.Refs(), freed.Load())
	}
	m.Unref()
	if freed.Load() != 1 {
		t.Errorf("Expected onFree once, got %d", freed.Load())
	}

	t.Logf("✅ %d concurrent unrefs, freed once", holders)
}

// TestMessage_Misuse verifies reference misuse panics instead of corrupting
func TestMessage_Misuse(t *testing.T) {
	expectPanic := func(t *testing.T, name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		fn()
	}

	m := NewMessage(nil, nil)
	m.Unref()

	expectPanic(t, "underflow", m.Unref)

	released := NewMessage(nil, nil)
	released.Unref()
	expectPanic(t, "ref after release", func() { released.Ref() })
}
