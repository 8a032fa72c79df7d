package streamdecode

import (
	"errors"
	"log/slog"

	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/gstpipe"
)

// Stream is the per-stream context the outer display subsystem drives once
// per arriving compressed frame.
//
// Typical use:
//
//	s := streamdecode.NewStream(streamdecode.DefaultConfig(streamdecode.CodecH264))
//	if err := s.Init(); err != nil {
//	    // no decoder: every Decode leaves OutFrame nil
//	}
//	defer s.Cleanup()
//
//	for msg := range messages {
//	    s.SetCurrentFrame(streamdecode.FrameFromMessage(msg))
//	    s.Decode()
//	    if s.OutFrame != nil {
//	        display(s.Out)
//	    }
//	    msg.Unref()
//	}
//
// Not safe for concurrent use.
type Stream struct {
	// OutFrame is the raw frame produced by the last Decode, nil if none.
	// Valid until the next Decode or Cleanup.
	OutFrame []byte
	// Out carries OutFrame together with its metadata, nil if none
	Out *Frame
	// LastErr is the reason the last Decode produced no frame
	LastErr error

	cfg     Config
	current CompressedFrame
	decoder *Decoder
	backend gstpipe.Backend
}

// NewStream returns a stream context for cfg; call Init before decoding
func NewStream(cfg Config) *Stream {
	return &Stream{cfg: cfg}
}

// Init builds the stream's decoder.
//
// On failure the stream keeps no decoder and every later Decode reports no
// output. Calling Init again after Cleanup rebuilds the pipeline.
func (s *Stream) Init() error {
	if s.decoder != nil {
		return nil
	}

	var (
		d   *Decoder
		err error
	)
	if s.backend != nil {
		d, err = newDecoder(s.cfg, s.backend)
	} else {
		d, err = NewDecoder(s.cfg)
	}
	if err != nil {
		slog.Error("stream-decode: stream init failed",
			"codec", s.cfg.Codec.String(),
			"source_stream", s.cfg.SourceStream,
			"error", err,
		)
		return err
	}

	s.decoder = d
	return nil
}

// SetCurrentFrame sets the compressed frame the next Decode consumes
func (s *Stream) SetCurrentFrame(frame CompressedFrame) {
	s.current = frame
}

// CurrentFrame returns the compressed frame the next Decode consumes
func (s *Stream) CurrentFrame() CompressedFrame {
	return s.current
}

// Decode decodes the current compressed frame into OutFrame.
//
// Per-frame failures leave OutFrame nil and are recorded in LastErr; they are
// never fatal to the stream.
func (s *Stream) Decode() {
	s.OutFrame = nil
	s.Out = nil
	s.LastErr = nil

	if s.decoder == nil {
		s.LastErr = ErrNoPipeline
		return
	}

	frame, err := s.decoder.Decode(s.current)
	if err != nil {
		s.LastErr = err
		if !errors.Is(err, ErrNoOutput) {
			slog.Warn("stream-decode: unexpected decode error",
				"source_stream", s.cfg.SourceStream,
				"error", err,
			)
		}
		return
	}

	s.Out = frame
	s.OutFrame = frame.Data
}

// Decoder returns the stream's decoder, nil before a successful Init
func (s *Stream) Decoder() *Decoder {
	return s.decoder
}

// Cleanup releases the leased frame and tears the pipeline down. Idempotent.
func (s *Stream) Cleanup() {
	s.OutFrame = nil
	s.Out = nil
	if s.decoder == nil {
		return
	}
	s.decoder.Close()
	s.decoder = nil
}
