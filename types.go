package streamdecode

import (
	"fmt"
	"strings"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/gstpipe"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/telemetry"
)

// Codec identifies the compressed video format of a stream
type Codec = gstpipe.Codec

const (
	// CodecUnknown decodes through the auto-detecting decodebin fragment
	CodecUnknown = gstpipe.CodecUnknown
	// CodecMJPEG is motion-JPEG
	CodecMJPEG = gstpipe.CodecMJPEG
	// CodecVP8 is VP8
	CodecVP8 = gstpipe.CodecVP8
	// CodecH264 is H.264 (Annex-B byte stream)
	CodecH264 = gstpipe.CodecH264
	// CodecVP9 is VP9
	CodecVP9 = gstpipe.CodecVP9
	// CodecH265 is H.265 (Annex-B byte stream)
	CodecH265 = gstpipe.CodecH265
)

// ParseCodec maps a codec name ("mjpeg", "vp8", "h264", "vp9", "h265",
// "auto") to a Codec. Matching is case-insensitive.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mjpeg", "jpeg":
		return CodecMJPEG, nil
	case "vp8":
		return CodecVP8, nil
	case "h264", "avc":
		return CodecH264, nil
	case "vp9":
		return CodecVP9, nil
	case "h265", "hevc":
		return CodecH265, nil
	case "auto", "unknown", "":
		return CodecUnknown, nil
	default:
		return CodecUnknown, fmt.Errorf("stream-decode: unknown codec %q", name)
	}
}

// Overrides are the environment-level topology toggles
// (STREAM_DECODE_GST_AUTO and STREAM_DECODE_GST_DECODEBIN)
type Overrides = gstpipe.Overrides

// Environment variables read by OverridesFromEnv
const (
	EnvAutoSelect     = gstpipe.EnvAutoSelect
	EnvForceDecodebin = gstpipe.EnvForceDecodebin
)

// OverridesFromEnv reads the topology toggles from the process environment
func OverridesFromEnv() Overrides {
	return gstpipe.OverridesFromEnv()
}

// Frame is one decoded raw frame.
//
// Data views memory mapped from the pipeline's sample. It stays valid only
// until the next Decode, Release or Close on the decoder that produced it.
// Use Clone to keep a frame longer.
type Frame struct {
	// Seq is the monotonic output sequence number (starts at 1)
	Seq uint64
	// Timestamp is when the frame was pulled from the pipeline
	Timestamp time.Time
	// Width in pixels (0 if the sample caps carry no size)
	Width int
	// Height in pixels (0 if the sample caps carry no size)
	Height int
	// Stride is the row length in bytes
	Stride int
	// Format is the raw pixel layout (e.g. "BGRx")
	Format string
	// Data contains the leased raw pixels
	Data []byte
	// SourceStream identifies the stream (e.g., "display-0")
	SourceStream string
	// TraceID is a unique identifier for distributed tracing
	TraceID string
}

// Clone returns a copy of f whose Data no longer depends on the lease
func (f *Frame) Clone() Frame {
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return c
}

// bytesPerPixel returns the pixel size of a supported output format
func bytesPerPixel(format string) int {
	switch format {
	case "RGB", "BGR":
		return 3
	case "BGRx", "RGBx", "RGBA", "BGRA", "xRGB", "xBGR", "ARGB", "ABGR":
		return 4
	default:
		return 0
	}
}

// supportedOutputFormats are the raw layouts the sink may be fixed to
var supportedOutputFormats = []string{"BGRx", "RGBx", "RGBA", "BGRA", "RGB"}

// Config contains configuration for a decoder
type Config struct {
	// Codec selects the decode topology
	Codec Codec
	// OutputFormat is the raw pixel layout of decoded frames (default "BGRx")
	OutputFormat string
	// Overrides are the topology toggles; nil reads them from the environment
	Overrides *Overrides
	// StallTimeout bounds each wait for the pipeline. 0 waits forever.
	StallTimeout time.Duration
	// SourceStream identifies the stream (copied into each Frame)
	SourceStream string
}

// DefaultConfig returns a configuration for codec with default settings
func DefaultConfig(codec Codec) Config {
	return Config{
		Codec:        codec,
		OutputFormat: gstpipe.DefaultOutputFormat,
	}
}

// validate applies defaults and checks cfg (fail-fast)
func (c *Config) validate() error {
	if c.Codec < CodecUnknown || c.Codec > CodecH265 {
		return fmt.Errorf("stream-decode: invalid codec %d", int(c.Codec))
	}

	if c.OutputFormat == "" {
		c.OutputFormat = gstpipe.DefaultOutputFormat
	}
	supported := false
	for _, f := range supportedOutputFormats {
		if c.OutputFormat == f {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf(
			"stream-decode: unsupported output format %q (must be one of %s)",
			c.OutputFormat, strings.Join(supportedOutputFormats, ", "),
		)
	}

	if c.StallTimeout < 0 {
		return fmt.Errorf("stream-decode: invalid stall timeout %v (must be >= 0)", c.StallTimeout)
	}
	return nil
}

// overrides resolves the topology toggles
func (c *Config) overrides() Overrides {
	if c.Overrides != nil {
		return *c.Overrides
	}
	return OverridesFromEnv()
}

// DecoderStats contains current decoder statistics
type DecoderStats struct {
	// ID identifies the decoder in logs
	ID string
	// Codec is the configured codec
	Codec string
	// Description is the pipeline description the decoder runs
	Description string
	// Running indicates if the pipeline is running
	Running bool

	// FramesIn is the number of Decode calls
	FramesIn uint64
	// FramesOut is the number of decoded frames returned
	FramesOut uint64
	// BytesIn is the total compressed bytes injected
	BytesIn uint64
	// BytesOut is the total raw bytes returned
	BytesOut uint64

	// NoOutput counts per-frame failures by reason
	NoOutput NoOutputStats
	// PipelineErrors counts asynchronous pipeline errors by category
	PipelineErrors map[string]uint64
	// LastPipelineError is the most recent asynchronous pipeline error
	LastPipelineError string

	// PendingOutputs is the number of signalled but unconsumed outputs
	PendingOutputs uint32
	// LeaseHeld indicates if a decoded frame is currently leased
	LeaseHeld bool

	// LatencyMeanMS is the mean Decode latency over the recent window
	LatencyMeanMS float64
	// LatencyP95MS is the 95th percentile Decode latency
	LatencyP95MS float64
	// LatencyMaxMS is the maximum Decode latency in the window
	LatencyMaxMS float64

	// Resolution is the last decoded frame size (e.g., "1280x720")
	Resolution string
}

// NoOutputStats counts no-output decode rounds by reason
type NoOutputStats struct {
	Empty          uint64
	Rejected       uint64
	NeedMoreInput  uint64
	PullFailed     uint64
	MapFailed      uint64
	Stalled        uint64
	NoPipeline     uint64
	PipelineFailed uint64
}

// Total returns the sum of all no-output rounds
func (n NoOutputStats) Total() uint64 {
	return n.Empty + n.Rejected + n.NeedMoreInput + n.PullFailed + n.MapFailed +
		n.Stalled + n.NoPipeline + n.PipelineFailed
}

// CadenceStats describes how regularly decoded frames came out
type CadenceStats = telemetry.CadenceStats
