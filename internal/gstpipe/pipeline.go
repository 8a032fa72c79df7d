package gstpipe

// State is the lifecycle state of a pipeline handle.
type State int

const (
	// StateConstructed means the pipeline exists but is not running yet
	StateConstructed State = iota
	// StateRunning means the pipeline reached PLAYING and endpoints are valid
	StateRunning
	// StateTornDown means teardown has begun; endpoints must not be touched
	StateTornDown
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateRunning:
		return "running"
	case StateTornDown:
		return "torn-down"
	default:
		return "unknown"
	}
}

// TargetState is a state requested from the external pipeline.
type TargetState int

const (
	// TargetNull stops the pipeline and frees its streaming resources
	TargetNull TargetState = iota
	// TargetPlaying starts data flow
	TargetPlaying
)

// Callbacks are the asynchronous hooks registered on the pipeline's
// boundary endpoints. They are invoked from pipeline-owned threads.
type Callbacks struct {
	// NeedData fires when the injection endpoint wants more compressed input
	NeedData func()
	// NewSample fires when the extraction endpoint has a decoded sample
	NewSample func()
	// Error fires when the pipeline reports an asynchronous error (optional)
	Error func(category ErrorCategory, err error)
}

// Backend constructs pipelines from textual topology descriptions.
type Backend interface {
	Construct(description string) (Pipeline, error)
}

// Pipeline is the external decoding pipeline with its two boundary
// endpoints. Implementations must be safe for callbacks to fire on other
// goroutines while the owner pushes and pulls.
type Pipeline interface {
	// SetCallbacks registers the boundary hooks. Must be called before PLAYING.
	SetCallbacks(cb Callbacks)

	// SetState drives the pipeline to the target state.
	SetState(target TargetState) error

	// PushBuffer hands data to the injection endpoint. release is invoked
	// exactly once, from any goroutine, when the pipeline no longer needs
	// data - including when the push itself is refused.
	PushBuffer(data []byte, release func()) error

	// PullSample takes one decoded sample from the extraction endpoint.
	PullSample() (Sample, error)

	// Close drops the endpoint references and the pipeline object.
	Close()
}

// Sample is one decoded output sample.
type Sample interface {
	// Map maps the sample buffer read-only and returns the mapped bytes.
	Map() ([]byte, error)

	// Unmap releases a mapping made by Map. Safe to call when not mapped.
	Unmap()

	// Unref drops the sample reference.
	Unref()

	// Info reports the negotiated raw video layout, zero values if unknown.
	Info() SampleInfo
}

// SampleInfo describes the raw video layout of a sample
type SampleInfo struct {
	Width  int
	Height int
	Format string
}
