// Package streamdecode provides synchronous video frame decoding over an
// asynchronous GStreamer pipeline.
//
// GStreamer decodes on its own streaming threads: compressed buffers go in
// through an appsrc, raw frames come out of an appsink, and both ends talk
// back through callbacks. This module turns that into a blocking
// one-in/one-out call: push one compressed frame, get back at most one raw
// frame.
//
// # Quick Start
//
//	cfg := streamdecode.DefaultConfig(streamdecode.CodecH264)
//	cfg.SourceStream = "display-0"
//
//	dec, err := streamdecode.NewDecoder(cfg)
//	if err != nil {
//	    log.Fatal(err) // *ConstructionError: pipeline could not be built
//	}
//	defer dec.Close()
//
//	for _, au := range accessUnits {
//	    frame, err := dec.Decode(streamdecode.CompressedFrame{Data: au})
//	    if errors.Is(err, streamdecode.ErrNoOutput) {
//	        continue // no raw frame this round
//	    }
//	    // frame.Data is BGRx, frame.Stride bytes per row
//	    show(frame)
//	}
//
// # Supported Codecs
//
//	Codec        appsrc caps          decoder
//	CodecMJPEG   image/jpeg           jpegdec
//	CodecVP8     video/x-vp8          vp8dec
//	CodecH264    video/x-h264         h264parse ! avdec_h264
//	CodecVP9     video/x-vp9          vp9dec
//	CodecH265    video/x-h265         h265parse ! avdec_h265
//	CodecUnknown typefind=true        decodebin
//
// Two environment variables adjust the topology when the decoder is built:
//
//   - STREAM_DECODE_GST_AUTO: any value other than "decodebin" makes appsrc
//     typefind the stream instead of announcing codec caps
//   - STREAM_DECODE_GST_DECODEBIN: if set (even empty), decodebin replaces the
//     codec-specific decoder
//
// # Frame Lifetime
//
// Input: a CompressedFrame may carry a reference-counted *Message that owns
// its storage. Decode takes a reference before pushing the buffer and the
// pipeline drops it when it frees the buffer, possibly on a GStreamer thread
// after Decode has returned.
//
// Output: the returned Frame views memory mapped from the pipeline's sample.
// That lease is released at the start of the next Decode, or by Release or
// Close. Call Frame.Clone to keep the pixels longer.
//
// # Error Handling
//
// Only pipeline construction fails hard (*ConstructionError, classified as
// topology, plugin, state, codec or resource). Every per-frame failure wraps
// ErrNoOutput and leaves the decoder usable:
//
//	frame, err := dec.Decode(in)
//	switch {
//	case errors.Is(err, streamdecode.ErrNeedMoreInput):
//	    // decoder buffering (e.g. waiting for a keyframe)
//	case errors.Is(err, streamdecode.ErrNoOutput):
//	    // other per-frame failure, see DecoderStats.NoOutput
//	}
//
// Asynchronous pipeline errors posted on the bus are classified and counted
// in DecoderStats.PipelineErrors. From then on every Decode, including one
// already blocked, returns ErrPipelineFailed until the stream is rebuilt
// (Cleanup, then Init). Close may be called from another goroutine to end a
// blocked Decode.
//
// # Blocking
//
// Decode waits until the pipeline either produces output or asks for more
// input. By default the wait is unbounded; set Config.StallTimeout to turn a
// silent pipeline into ErrStalled. An output that arrives after the bound is
// counted and consumed by a later Decode.
//
// # Statistics and Telemetry
//
//	stats := dec.Stats()
//	fmt.Printf("Frames: %d in / %d out\n", stats.FramesIn, stats.FramesOut)
//	fmt.Printf("No output: %d\n", stats.NoOutput.Total())
//	fmt.Printf("Latency (P95): %.2fms\n", stats.LatencyP95MS)
//
//	cadence := dec.Cadence()
//	fmt.Printf("Output FPS: %.2f (stable: %v)\n", cadence.FPSMean, cadence.IsStable)
//
// # Dependencies
//
// GStreamer 1.x must be installed on the system:
//
//	# Ubuntu/Debian
//	sudo apt-get install \
//	    gstreamer1.0-tools \
//	    gstreamer1.0-plugins-base \
//	    gstreamer1.0-plugins-good \
//	    gstreamer1.0-libav
//
// Verify the decoders:
//
//	gst-inspect-1.0 avdec_h264 vp8dec jpegdec
//
// # Thread Safety
//
//   - Decode, Release and Close are serialized internally; call them from
//     one goroutine
//   - Stats and Cadence are safe from any goroutine
//   - Message.Unref is safe from any goroutine
//
// # Testing
//
// A command-line tool feeds frames from files through the decoder:
//
//	go build -o bin/test-decode ./cmd/test-decode
//
//	./bin/test-decode --input clip.h264 --codec h264 \
//	    --output ./frames --format png --max-frames 100
//
// Run with --help for the full flag list; --config loads the same settings
// from YAML.
package streamdecode
