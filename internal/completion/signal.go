// Package completion implements the counted mailbox that turns the
// pipeline's asynchronous callbacks into a blocking wait.
package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned by Wait once the signal has been closed
	ErrClosed = errors.New("completion: signal closed")
	// ErrFailed is returned by Wait once the producer has reported a failure
	ErrFailed = errors.New("completion: producer failed")
)

// Signal coordinates the decode caller with pipeline callbacks.
//
// Two producer events clear the waiting flag: input-ready (the pipeline
// wants more data and produced nothing) and output-ready (one more decoded
// sample). Output events are counted rather than flagged, so an input-ready
// racing with an output-ready never loses the output.
//
// A reported failure is sticky: Arm does not clear it, so a failure that
// lands between two waits still ends the next one.
//
// The mutex only guards O(1) flag and counter updates.
type Signal struct {
	mu        sync.Mutex
	cond      *sync.Cond
	waiting   bool
	available uint32
	closed    bool
	failure   error
}

// New returns an armed signal with no available outputs
func New() *Signal {
	s := &Signal{waiting: true}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Arm marks the signal as awaiting completion.
//
// Called before each injection so a stray input-ready from the previous
// round cannot wake this round early. An input-ready landing between Arm
// and the push costs at most one frame of latency.
func (s *Signal) Arm() {
	s.mu.Lock()
	s.waiting = true
	s.mu.Unlock()
}

// NotifyInputReady records that the pipeline asked for more input without
// producing output. Safe to call from any goroutine.
func (s *Signal) NotifyInputReady() {
	s.mu.Lock()
	s.waiting = false
	s.cond.Signal()
	s.mu.Unlock()
}

// NotifyOutputReady records one decoded output. Safe to call from any goroutine.
func (s *Signal) NotifyOutputReady() {
	s.mu.Lock()
	s.waiting = false
	s.available++
	s.cond.Signal()
	s.mu.Unlock()
}

// Wait blocks until either producer event clears the waiting flag.
//
// Returns true when an output was available; that output is consumed
// (the counter is decremented, never below zero). The signal is re-armed
// before returning.
//
// ctx bounds the wait. With a context that is never cancelled the wait is
// unbounded and liveness is the pipeline's responsibility.
func (s *Signal) Wait(ctx context.Context) (bool, error) {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
		defer stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.waiting && !s.closed && s.failure == nil {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		s.cond.Wait()
	}
	if s.closed {
		return false, ErrClosed
	}
	if s.failure != nil {
		return false, fmt.Errorf("%w: %w", ErrFailed, s.failure)
	}

	s.waiting = true
	if s.available == 0 {
		return false, nil
	}
	s.available--
	return true, nil
}

// Fail records a producer failure and wakes every waiter. Every later Wait
// returns ErrFailed wrapping the first recorded cause. Safe to call from any
// goroutine.
func (s *Signal) Fail(cause error) {
	if cause == nil {
		cause = errors.New("unknown failure")
	}
	s.mu.Lock()
	if s.failure == nil {
		s.failure = cause
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Err returns the recorded failure, nil if none
func (s *Signal) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Available returns the number of unconsumed outputs
func (s *Signal) Available() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// Waiting reports whether the signal is armed
func (s *Signal) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting
}

// Close wakes every waiter with ErrClosed. Later producer events are ignored
// by waiters. Idempotent.
func (s *Signal) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}
