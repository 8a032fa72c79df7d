// Package gstpipetest provides a scripted in-memory pipeline backend for
// exercising the decode bridge without GStreamer.
package gstpipetest

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/gstpipe"
)

// Reaction is what a fake pipeline does after accepting a pushed buffer
type Reaction int

const (
	// ReactOutput fires one new-sample callback
	ReactOutput Reaction = iota
	// ReactNeedData fires one need-data callback (no output this round)
	ReactNeedData
	// ReactNeedDataThenOutput fires need-data immediately followed by new-sample
	ReactNeedDataThenOutput
	// ReactOutputThenNeedData fires new-sample immediately followed by need-data
	ReactOutputThenNeedData
	// ReactNothing fires no callback (a stalled pipeline)
	ReactNothing
)

var (
	// ErrConstruct is returned by Construct when the backend is told to fail
	ErrConstruct = errors.New("gstpipetest: syntax error in pipeline description")
	// ErrPush is returned by PushBuffer when pushes are rejected
	ErrPush = errors.New("gstpipetest: push rejected")
	// ErrPull is returned by PullSample when pulls fail or nothing is queued
	ErrPull = errors.New("gstpipetest: could not pull sample")
	// ErrMap is returned by Sample.Map when mapping is set to fail
	ErrMap = errors.New("gstpipetest: unable to map buffer")
	// ErrState is returned by SetState(PLAYING) when the transition fails
	ErrState = errors.New("gstpipetest: state change failed")
)

// Backend is a configurable fake gstpipe.Backend
type Backend struct {
	// FailConstruct makes Construct return ErrConstruct
	FailConstruct bool
	// FailPlaying makes SetState(TargetPlaying) return ErrState
	FailPlaying bool

	// Reaction is the default reaction to an accepted push
	Reaction Reaction

	// ReleaseAsync runs buffer release callbacks on a separate goroutine
	ReleaseAsync bool

	// Frame is the payload of produced samples (defaults to 16 bytes)
	Frame []byte

	mu        sync.Mutex
	pipelines []*Pipeline
	described []string
}

// Construct records description and returns a new fake pipeline
func (b *Backend) Construct(description string) (gstpipe.Pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.described = append(b.described, description)
	if b.FailConstruct {
		return nil, ErrConstruct
	}

	frame := b.Frame
	if frame == nil {
		frame = make([]byte, 16)
	}

	p := &Pipeline{
		Description:  description,
		reaction:     b.Reaction,
		releaseAsync: b.ReleaseAsync,
		failPlaying:  b.FailPlaying,
		frame:        frame,
	}
	b.pipelines = append(b.pipelines, p)
	return p, nil
}

// Descriptions returns every description passed to Construct
func (b *Backend) Descriptions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.described...)
}

// Pipelines returns every pipeline constructed so far
func (b *Backend) Pipelines() []*Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Pipeline(nil), b.pipelines...)
}

// Last returns the most recently constructed pipeline, nil if none
func (b *Backend) Last() *Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pipelines) == 0 {
		return nil
	}
	return b.pipelines[len(b.pipelines)-1]
}

// Pipeline is a fake gstpipe.Pipeline whose callbacks fire on their own
// goroutine after each accepted push.
type Pipeline struct {
	Description string

	mu           sync.Mutex
	callbacks    gstpipe.Callbacks
	registered   bool
	reaction     Reaction
	script       []Reaction
	releaseAsync bool
	failPlaying  bool
	rejectPush   bool
	failPull     bool
	failMap      bool
	frame        []byte
	playing      bool
	closed       bool
	states       []gstpipe.TargetState
	pushes       [][]byte
	queued       int

	pulls          atomic.Int64
	outstanding    atomic.Int64
	maxOutstanding atomic.Int64
	mapped         atomic.Int64
	releases       atomic.Int64

	wg sync.WaitGroup
}

// Script queues reactions consumed one per accepted push before falling
// back to the default reaction.
func (p *Pipeline) Script(reactions ...Reaction) {
	p.mu.Lock()
	p.script = append(p.script, reactions...)
	p.mu.Unlock()
}

// RejectPushes makes subsequent pushes fail with ErrPush
func (p *Pipeline) RejectPushes(reject bool) {
	p.mu.Lock()
	p.rejectPush = reject
	p.mu.Unlock()
}

// FailPulls makes subsequent pulls fail with ErrPull
func (p *Pipeline) FailPulls(fail bool) {
	p.mu.Lock()
	p.failPull = fail
	p.mu.Unlock()
}

// FailMaps makes subsequent samples fail to map
func (p *Pipeline) FailMaps(fail bool) {
	p.mu.Lock()
	p.failMap = fail
	p.mu.Unlock()
}

// FireNeedData invokes the need-data callback synchronously
func (p *Pipeline) FireNeedData() {
	p.mu.Lock()
	cb := p.callbacks.NeedData
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// FireNewSample queues one sample and invokes the new-sample callback
func (p *Pipeline) FireNewSample() {
	p.mu.Lock()
	p.queued++
	cb := p.callbacks.NewSample
	p.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// FireError invokes the error callback synchronously
func (p *Pipeline) FireError(category gstpipe.ErrorCategory, err error) {
	p.mu.Lock()
	cb := p.callbacks.Error
	p.mu.Unlock()
	if cb != nil {
		cb(category, err)
	}
}

func (p *Pipeline) SetCallbacks(cb gstpipe.Callbacks) {
	p.mu.Lock()
	p.callbacks = cb
	p.registered = true
	p.mu.Unlock()
}

func (p *Pipeline) SetState(target gstpipe.TargetState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, target)
	if target == gstpipe.TargetPlaying {
		if p.failPlaying {
			return ErrState
		}
		p.playing = true
		return nil
	}
	p.playing = false
	return nil
}

func (p *Pipeline) PushBuffer(data []byte, release func()) error {
	p.mu.Lock()
	if p.rejectPush || !p.playing {
		p.mu.Unlock()
		p.release(release)
		return ErrPush
	}

	p.pushes = append(p.pushes, append([]byte(nil), data...))
	reaction := p.reaction
	if len(p.script) > 0 {
		reaction = p.script[0]
		p.script = p.script[1:]
	}
	p.mu.Unlock()

	// The pipeline consumes the buffer on its own thread, then reacts.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.release(release)
		switch reaction {
		case ReactOutput:
			p.FireNewSample()
		case ReactNeedData:
			p.FireNeedData()
		case ReactNeedDataThenOutput:
			p.FireNeedData()
			p.FireNewSample()
		case ReactOutputThenNeedData:
			p.FireNewSample()
			p.FireNeedData()
		case ReactNothing:
		}
	}()
	return nil
}

func (p *Pipeline) release(release func()) {
	if p.releaseAsync {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			release()
			p.releases.Add(1)
		}()
		return
	}
	release()
	p.releases.Add(1)
}

func (p *Pipeline) PullSample() (gstpipe.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pulls.Add(1)
	if p.failPull || p.queued == 0 {
		return nil, ErrPull
	}
	p.queued--

	n := p.outstanding.Add(1)
	for {
		cur := p.maxOutstanding.Load()
		if n <= cur || p.maxOutstanding.CompareAndSwap(cur, n) {
			break
		}
	}

	return &Sample{
		owner:   p,
		data:    append([]byte(nil), p.frame...),
		failMap: p.failMap,
	}, nil
}

func (p *Pipeline) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Wait blocks until every callback and release goroutine has finished
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Registered reports whether SetCallbacks was called
func (p *Pipeline) Registered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered
}

// Closed reports whether Close was called
func (p *Pipeline) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Playing reports whether the pipeline is in PLAYING
func (p *Pipeline) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// States returns every requested state transition in order
func (p *Pipeline) States() []gstpipe.TargetState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]gstpipe.TargetState(nil), p.states...)
}

// Pushes returns copies of every accepted buffer
func (p *Pipeline) Pushes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.pushes...)
}

// Pulls returns the number of PullSample calls
func (p *Pipeline) Pulls() int64 { return p.pulls.Load() }

// Outstanding returns samples pulled but not yet unreferenced
func (p *Pipeline) Outstanding() int64 { return p.outstanding.Load() }

// MaxOutstanding returns the highest number of simultaneously held samples
func (p *Pipeline) MaxOutstanding() int64 { return p.maxOutstanding.Load() }

// Mapped returns samples currently mapped
func (p *Pipeline) Mapped() int64 { return p.mapped.Load() }

// Releases returns how many buffer release callbacks have run
func (p *Pipeline) Releases() int64 { return p.releases.Load() }

// Sample is a fake decoded sample tracking its own map/unref state
type Sample struct {
	owner   *Pipeline
	data    []byte
	failMap bool
	mapped  bool
	unrefed bool
}

func (s *Sample) Map() ([]byte, error) {
	if s.failMap {
		return nil, ErrMap
	}
	if !s.mapped {
		s.mapped = true
		s.owner.mapped.Add(1)
	}
	return s.data, nil
}

func (s *Sample) Unmap() {
	if !s.mapped {
		return
	}
	s.mapped = false
	s.owner.mapped.Add(-1)
}

func (s *Sample) Unref() {
	if s.unrefed {
		return
	}
	s.unrefed = true
	s.owner.outstanding.Add(-1)
}

func (s *Sample) Info() gstpipe.SampleInfo {
	return gstpipe.SampleInfo{Width: 2, Height: 2, Format: "BGRx"}
}
