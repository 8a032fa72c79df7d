package streamdecode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/completion"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/gstpipe"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/lease"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/telemetry"
	"github.com/google/uuid"
)

// cadenceWindow is the number of output timestamps kept for cadence stats
const cadenceWindow = 300

// Decoder turns one compressed frame into at most one raw frame, blocking
// until the pipeline has either produced output or asked for more input.
//
// Decode, Release and Close are serialized by a call mutex. Close may be
// called from another goroutine to end a blocked Decode. Stats is safe from
// any goroutine.
type Decoder struct {
	id     string
	cfg    Config
	handle *gstpipe.Handle

	// callMu serializes the caller-side operations (Decode, Release, Close)
	callMu sync.Mutex
	lease  lease.Lease
	seq    uint64

	// Statistics (atomic for thread-safety)
	framesIn      atomic.Uint64
	framesOut     atomic.Uint64
	bytesIn       atomic.Uint64
	bytesOut      atomic.Uint64
	noEmpty       atomic.Uint64
	noRejected    atomic.Uint64
	noNeedInput   atomic.Uint64
	noPullFailed  atomic.Uint64
	noMapFailed   atomic.Uint64
	noStalled     atomic.Uint64
	noPipeline    atomic.Uint64
	noFailed      atomic.Uint64
	leaseHeld     atomic.Bool
	busErrors     [gstpipe.ErrCategoryUnknown + 1]atomic.Uint64
	lastBusErrMsg atomic.Value // string

	// statsMu guards the latency window and the cadence ring
	statsMu     sync.Mutex
	latency     telemetry.LatencyWindow
	outputTimes []time.Time
	resolution  string
}

// NewDecoder builds and starts a GStreamer decode pipeline for cfg.Codec
//
// Validates configuration at construction time (fail-fast):
//   - Codec must be a known codec or CodecUnknown
//   - OutputFormat must be a supported raw layout
//   - StallTimeout must not be negative
//
// Returns *ConstructionError if the pipeline cannot be built or started.
func NewDecoder(cfg Config) (*Decoder, error) {
	gstpipe.Bootstrap()
	return newDecoder(cfg, gstpipe.GstBackend{})
}

// newDecoder builds a decoder over an arbitrary pipeline backend
func newDecoder(cfg Config, backend gstpipe.Backend) (*Decoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	d := &Decoder{
		id:  uuid.New().String(),
		cfg: cfg,
	}

	h, err := gstpipe.Build(backend, gstpipe.BuildConfig{
		Codec:        cfg.Codec,
		Overrides:    cfg.overrides(),
		OutputFormat: cfg.OutputFormat,
		OnError:      d.onPipelineError,
	})
	if err != nil {
		return nil, fmt.Errorf("stream-decode: failed to build %s pipeline: %w", cfg.Codec, err)
	}
	d.handle = h

	slog.Info("stream-decode: decoder created",
		"decoder_id", d.id,
		"codec", cfg.Codec.String(),
		"output_format", cfg.OutputFormat,
		"stall_timeout", cfg.StallTimeout,
		"source_stream", cfg.SourceStream,
	)
	return d, nil
}

// ID returns the decoder identifier used in logs
func (d *Decoder) ID() string {
	return d.id
}

// Decode pushes one compressed frame and returns the raw frame it produced
//
// This method:
//  1. Releases the frame leased by the previous call
//  2. Arms the completion signal (unless the pipeline has already failed)
//  3. Injects the frame (the message is referenced until the pipeline frees it)
//  4. Blocks until the pipeline produces output or asks for more input
//  5. Pulls and maps one sample, leasing it until the next call
//
// Every per-frame failure wraps ErrNoOutput; the decoder stays usable.
// The returned Frame's Data is valid until the next Decode, Release or Close.
func (d *Decoder) Decode(in CompressedFrame) (*Frame, error) {
	d.callMu.Lock()
	defer d.callMu.Unlock()

	start := time.Now()
	d.framesIn.Add(1)

	d.releaseLease()

	if d.handle.State() != gstpipe.StateRunning {
		d.noPipeline.Add(1)
		return nil, ErrNoPipeline
	}

	if err := d.handle.Err(); err != nil {
		d.noFailed.Add(1)
		return nil, fmt.Errorf("%w: %w", ErrPipelineFailed, err)
	}

	sig := d.handle.Signal()
	sig.Arm()

	if err := d.inject(in); err != nil {
		return nil, err
	}

	ok, err := d.wait(sig)
	if err != nil {
		return nil, err
	}
	if !ok {
		d.noNeedInput.Add(1)
		slog.Debug("stream-decode: pipeline needs more input", "decoder_id", d.id)
		return nil, ErrNeedMoreInput
	}

	frame, err := d.pull()
	if err != nil {
		return nil, err
	}

	d.recordOutput(frame, time.Since(start))
	return frame, nil
}

// inject hands in to the pipeline, referencing its message until released
func (d *Decoder) inject(in CompressedFrame) error {
	if len(in.Data) == 0 {
		d.noEmpty.Add(1)
		return ErrEmptyFrame
	}

	release := func() {}
	if in.Message != nil {
		release = sync.OnceFunc(in.Message.Ref().Unref)
	}

	if err := d.handle.Inject(in.Data, release); err != nil {
		d.noRejected.Add(1)
		slog.Debug("stream-decode: injection rejected",
			"decoder_id", d.id,
			"size_bytes", len(in.Data),
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrInjectionRejected, err)
	}

	d.bytesIn.Add(uint64(len(in.Data)))
	return nil
}

// wait blocks on the completion signal, bounded by StallTimeout if set
func (d *Decoder) wait(sig *completion.Signal) (bool, error) {
	ctx := context.Background()
	if d.cfg.StallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.StallTimeout)
		defer cancel()
	}

	ok, err := sig.Wait(ctx)
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, context.DeadlineExceeded):
		d.noStalled.Add(1)
		slog.Warn("stream-decode: pipeline stalled",
			"decoder_id", d.id,
			"stall_timeout", d.cfg.StallTimeout,
		)
		return false, ErrStalled
	case errors.Is(err, completion.ErrFailed):
		d.noFailed.Add(1)
		slog.Debug("stream-decode: pipeline failed during decode", "decoder_id", d.id, "error", err)
		return false, fmt.Errorf("%w: %w", ErrPipelineFailed, err)
	default:
		d.noPipeline.Add(1)
		return false, fmt.Errorf("%w: %w", ErrNoPipeline, err)
	}
}

// pull takes one sample from the sink and leases its mapped memory
func (d *Decoder) pull() (*Frame, error) {
	sample, err := d.handle.Pull()
	if err != nil {
		d.noPullFailed.Add(1)
		slog.Debug("stream-decode: pull failed", "decoder_id", d.id, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPullFailed, err)
	}

	data, err := d.lease.Acquire(sample)
	if err != nil {
		d.noMapFailed.Add(1)
		slog.Debug("stream-decode: map failed", "decoder_id", d.id, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	d.leaseHeld.Store(true)

	info := d.lease.Info()
	format := info.Format
	if format == "" {
		format = d.cfg.OutputFormat
	}

	d.seq++
	return &Frame{
		Seq:          d.seq,
		Timestamp:    time.Now(),
		Width:        info.Width,
		Height:       info.Height,
		Stride:       stride(info.Width, info.Height, format, len(data)),
		Format:       format,
		Data:         data,
		SourceStream: d.cfg.SourceStream,
		TraceID:      uuid.New().String(),
	}, nil
}

// stride derives the row length from the pixel format, falling back to the
// mapped size when the format is unknown. Packed rows are 4-byte aligned.
func stride(width, height int, format string, size int) int {
	if bpp := bytesPerPixel(format); bpp > 0 && width > 0 {
		return (width*bpp + 3) &^ 3
	}
	if height > 0 {
		return size / height
	}
	return 0
}

func (d *Decoder) recordOutput(f *Frame, elapsed time.Duration) {
	d.framesOut.Add(1)
	d.bytesOut.Add(uint64(len(f.Data)))

	d.statsMu.Lock()
	d.latency.AddSample(float64(elapsed.Microseconds()) / 1000.0)
	if len(d.outputTimes) == cadenceWindow {
		copy(d.outputTimes, d.outputTimes[1:])
		d.outputTimes = d.outputTimes[:cadenceWindow-1]
	}
	d.outputTimes = append(d.outputTimes, f.Timestamp)
	d.resolution = fmt.Sprintf("%dx%d", f.Width, f.Height)
	d.statsMu.Unlock()

	slog.Debug("stream-decode: frame decoded",
		"decoder_id", d.id,
		"seq", f.Seq,
		"size_bytes", len(f.Data),
		"resolution", fmt.Sprintf("%dx%d", f.Width, f.Height),
		"latency_ms", float64(elapsed.Microseconds())/1000.0,
		"trace_id", f.TraceID,
	)
}

// onPipelineError runs on the bus monitor goroutine
func (d *Decoder) onPipelineError(category ErrorCategory, err error) {
	if category < 0 || int(category) >= len(d.busErrors) {
		category = ErrCategoryUnknown
	}
	d.busErrors[category].Add(1)
	d.lastBusErrMsg.Store(err.Error())

	slog.Error("stream-decode: pipeline error",
		"decoder_id", d.id,
		"codec", d.cfg.Codec.String(),
		"category", category.String(),
		"error", err,
	)
}

// Release drops the currently leased frame. Its Data must not be used after.
func (d *Decoder) Release() {
	d.callMu.Lock()
	defer d.callMu.Unlock()
	d.releaseLease()
}

func (d *Decoder) releaseLease() {
	d.lease.Release()
	d.leaseHeld.Store(false)
}

// Close releases the lease and tears the pipeline down
//
// A Decode blocked on the pipeline is woken first and returns ErrNoPipeline.
// Safe to call multiple times (idempotent). Pipeline release callbacks for
// frames already injected may still run after Close returns.
func (d *Decoder) Close() {
	d.handle.Signal().Close()

	d.callMu.Lock()
	defer d.callMu.Unlock()

	d.releaseLease()
	if d.handle.State() != gstpipe.StateRunning {
		return
	}
	d.handle.Teardown()

	slog.Info("stream-decode: decoder closed",
		"decoder_id", d.id,
		"frames_in", d.framesIn.Load(),
		"frames_out", d.framesOut.Load(),
	)
}

// Stats returns current decoder statistics
//
// Thread-safe; may be called while a Decode is in progress.
func (d *Decoder) Stats() DecoderStats {
	stats := DecoderStats{
		ID:        d.id,
		Codec:     d.cfg.Codec.String(),
		FramesIn:  d.framesIn.Load(),
		FramesOut: d.framesOut.Load(),
		BytesIn:   d.bytesIn.Load(),
		BytesOut:  d.bytesOut.Load(),
		NoOutput: NoOutputStats{
			Empty:          d.noEmpty.Load(),
			Rejected:       d.noRejected.Load(),
			NeedMoreInput:  d.noNeedInput.Load(),
			PullFailed:     d.noPullFailed.Load(),
			MapFailed:      d.noMapFailed.Load(),
			Stalled:        d.noStalled.Load(),
			NoPipeline:     d.noPipeline.Load(),
			PipelineFailed: d.noFailed.Load(),
		},
		PipelineErrors: make(map[string]uint64),
		LeaseHeld:      d.leaseHeld.Load(),
	}

	for i := range d.busErrors {
		if n := d.busErrors[i].Load(); n > 0 {
			stats.PipelineErrors[gstpipe.ErrorCategory(i).String()] = n
		}
	}

	stats.Description = d.handle.Description()
	stats.Running = d.handle.State() == gstpipe.StateRunning
	stats.PendingOutputs = d.handle.Signal().Available()
	if msg, ok := d.lastBusErrMsg.Load().(string); ok {
		stats.LastPipelineError = msg
	}

	d.statsMu.Lock()
	stats.LatencyMeanMS, stats.LatencyP95MS, stats.LatencyMaxMS = d.latency.GetStats()
	stats.Resolution = d.resolution
	d.statsMu.Unlock()

	return stats
}

// Cadence returns output cadence statistics over the recent frames
func (d *Decoder) Cadence() *CadenceStats {
	d.statsMu.Lock()
	times := append([]time.Time(nil), d.outputTimes...)
	d.statsMu.Unlock()

	if len(times) < 2 {
		return telemetry.CalculateCadence(times, 0)
	}
	return telemetry.CalculateCadence(times, times[len(times)-1].Sub(times[0]))
}
