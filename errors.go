package streamdecode

import (
	"errors"
	"fmt"

	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/gstpipe"
)

// ErrNoOutput is the common kind of every per-frame failure.
//
// Per-frame failures are not fatal: the stream simply has no raw frame this
// round and the next compressed frame is decoded normally.
var ErrNoOutput = errors.New("stream-decode: no output frame")

var (
	// ErrEmptyFrame reports a zero-length compressed frame (pipeline untouched)
	ErrEmptyFrame = fmt.Errorf("%w: empty compressed frame", ErrNoOutput)
	// ErrInjectionRejected reports a buffer refused by the pipeline
	ErrInjectionRejected = fmt.Errorf("%w: injection rejected", ErrNoOutput)
	// ErrNeedMoreInput reports a round where the pipeline asked for more
	// data without producing output
	ErrNeedMoreInput = fmt.Errorf("%w: pipeline needs more input", ErrNoOutput)
	// ErrPullFailed reports an output that was signalled but could not be pulled
	ErrPullFailed = fmt.Errorf("%w: could not pull sample", ErrNoOutput)
	// ErrMapFailed reports a pulled sample that could not be mapped
	ErrMapFailed = fmt.Errorf("%w: could not map sample", ErrNoOutput)
	// ErrStalled reports a wait that exceeded Config.StallTimeout
	ErrStalled = fmt.Errorf("%w: pipeline stalled", ErrNoOutput)
	// ErrNoPipeline reports a decode on a stream without a running pipeline
	ErrNoPipeline = fmt.Errorf("%w: no pipeline", ErrNoOutput)
	// ErrPipelineFailed reports a decode on a pipeline that has posted an
	// error. Every later decode fails the same way until the decoder is
	// rebuilt (Stream.Cleanup, then Stream.Init).
	ErrPipelineFailed = fmt.Errorf("%w: pipeline failed", ErrNoOutput)
)

// ConstructionError reports a pipeline that could not be built or started.
// It is the only error surfaced as a hard failure.
type ConstructionError = gstpipe.ConstructionError

// ErrorCategory classifies pipeline errors for telemetry
type ErrorCategory = gstpipe.ErrorCategory

// Error categories, see gstpipe.ClassifyError
const (
	ErrCategoryTopology = gstpipe.ErrCategoryTopology
	ErrCategoryPlugin   = gstpipe.ErrCategoryPlugin
	ErrCategoryState    = gstpipe.ErrCategoryState
	ErrCategoryCodec    = gstpipe.ErrCategoryCodec
	ErrCategoryResource = gstpipe.ErrCategoryResource
	ErrCategoryUnknown  = gstpipe.ErrCategoryUnknown
)

// IsConstructionError reports whether err is (or wraps) a *ConstructionError
func IsConstructionError(err error) bool {
	var cerr *ConstructionError
	return errors.As(err, &cerr)
}
