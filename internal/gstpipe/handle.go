package gstpipe

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/completion"
)

// ErrNotRunning is returned when an endpoint is used outside the running state
var ErrNotRunning = errors.New("gstpipe: pipeline not running")

// BuildConfig contains configuration for pipeline construction
type BuildConfig struct {
	Codec        Codec
	Overrides    Overrides
	OutputFormat string

	// OnError receives asynchronous pipeline errors (optional)
	OnError func(category ErrorCategory, err error)
}

// Handle owns a running pipeline, its two endpoints and the completion
// signal the endpoint callbacks feed.
type Handle struct {
	mu          sync.Mutex
	state       State
	pipeline    Pipeline
	signal      *completion.Signal
	description string
}

// Build constructs and starts a pipeline for cfg.Codec
//
// This function:
//  1. Maps the codec to a topology description (Describe)
//  2. Constructs the pipeline through the backend
//  3. Registers need-data/new-sample hooks forwarding to a fresh completion signal
//  4. Sets the pipeline to PLAYING
//
// On any failure it returns *ConstructionError and leaves nothing running.
// Callbacks are never registered when construction itself fails.
func Build(backend Backend, cfg BuildConfig) (*Handle, error) {
	desc := Describe(cfg.Codec, cfg.Overrides, cfg.OutputFormat)
	slog.Debug("gstpipe: building pipeline", "codec", cfg.Codec.String(), "description", desc)

	p, err := backend.Construct(desc)
	if err != nil {
		cerr := newConstructionError(desc, err)
		slog.Warn("gstpipe: pipeline construction failed",
			"codec", cfg.Codec.String(),
			"category", cerr.Category.String(),
			"error", err,
		)
		return nil, cerr
	}

	h := &Handle{
		state:       StateConstructed,
		pipeline:    p,
		signal:      completion.New(),
		description: desc,
	}

	sig := h.signal
	p.SetCallbacks(Callbacks{
		NeedData:  sig.NotifyInputReady,
		NewSample: sig.NotifyOutputReady,
		// A failed pipeline may never ask for data again. The failure stays
		// on the signal so later waits end too.
		Error: func(category ErrorCategory, err error) {
			if cfg.OnError != nil {
				cfg.OnError(category, err)
			}
			sig.Fail(err)
		},
	})

	if err := p.SetState(TargetPlaying); err != nil {
		slog.Warn("gstpipe: unable to set the pipeline to the playing state",
			"codec", cfg.Codec.String(),
			"error", err,
		)
		h.unwind()
		return nil, &ConstructionError{
			Description: desc,
			Category:    ErrCategoryState,
			Err:         fmt.Errorf("set state PLAYING: %w", err),
		}
	}

	h.mu.Lock()
	h.state = StateRunning
	h.mu.Unlock()

	slog.Info("gstpipe: pipeline running", "codec", cfg.Codec.String())
	return h, nil
}

// Description returns the topology description the handle was built from
func (h *Handle) Description() string {
	return h.description
}

// State returns the current lifecycle state
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Signal returns the completion signal fed by the endpoint callbacks
func (h *Handle) Signal() *completion.Signal {
	return h.signal
}

// Err returns the first asynchronous pipeline error, nil while healthy
func (h *Handle) Err() error {
	return h.signal.Err()
}

// running returns the pipeline if the handle is running
func (h *Handle) running() (Pipeline, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateRunning || h.pipeline == nil {
		return nil, ErrNotRunning
	}
	return h.pipeline, nil
}

// Inject pushes one compressed buffer into the injection endpoint
//
// release is handed to the pipeline and runs exactly once when it is done
// with data, possibly after Inject returns and on another goroutine.
func (h *Handle) Inject(data []byte, release func()) error {
	p, err := h.running()
	if err != nil {
		release()
		return err
	}
	return p.PushBuffer(data, release)
}

// Pull takes one decoded sample from the extraction endpoint
func (h *Handle) Pull() (Sample, error) {
	p, err := h.running()
	if err != nil {
		return nil, err
	}
	return p.PullSample()
}

// Teardown stops the pipeline and releases everything the handle owns
//
// No-op unless running. Idempotent and safe on a nil or partially built handle.
func (h *Handle) Teardown() {
	if h == nil {
		return
	}

	h.mu.Lock()
	if h.state != StateRunning {
		h.mu.Unlock()
		return
	}
	h.state = StateTornDown
	h.mu.Unlock()

	h.unwind()
	slog.Info("gstpipe: pipeline torn down")
}

// unwind drives the pipeline to NULL, drops it and closes the signal
func (h *Handle) unwind() {
	h.mu.Lock()
	p := h.pipeline
	h.pipeline = nil
	h.state = StateTornDown
	h.mu.Unlock()

	if p != nil {
		if err := p.SetState(TargetNull); err != nil {
			slog.Error("gstpipe: failed to set pipeline to NULL", "error", err)
		}
		p.Close()
	}
	if h.signal != nil {
		h.signal.Close()
	}
}
