package streamdecode

// FrameDecoder defines the contract for synchronous frame decoding
//
// Implementations must guarantee:
//   - Decode is one-in/one-out: at most one raw frame per compressed frame
//   - Decode never returns a hard error; per-frame failures wrap ErrNoOutput
//   - At most one decoded frame is leased at a time
//   - Close is idempotent (safe to call multiple times)
//   - Stats is thread-safe (can be called from any goroutine)
type FrameDecoder interface {
	// Decode pushes one compressed frame and blocks until the pipeline has
	// either produced one raw frame or asked for more input.
	//
	// The frame leased by the previous call is released first, so the
	// returned Frame's Data is valid only until the next Decode, Release or
	// Close. Use Frame.Clone to keep it.
	//
	// The compressed frame's Message is referenced for as long as the
	// pipeline holds the buffer, which may extend past Decode's return.
	//
	// Returns an error wrapping ErrNoOutput if:
	//   - The frame is empty (ErrEmptyFrame, pipeline untouched)
	//   - The pipeline refused the buffer (ErrInjectionRejected)
	//   - The pipeline asked for more input without output (ErrNeedMoreInput)
	//   - The output could not be pulled or mapped (ErrPullFailed, ErrMapFailed)
	//   - The configured stall bound expired (ErrStalled)
	//   - The pipeline is not running (ErrNoPipeline)
	//   - The pipeline has posted an error (ErrPipelineFailed, sticky)
	//
	// Example:
	//   frame, err := dec.Decode(streamdecode.FrameFromMessage(msg))
	//   if errors.Is(err, streamdecode.ErrNoOutput) {
	//       return // nothing to display this round
	//   }
	//   display(frame.Data, frame.Width, frame.Height, frame.Stride)
	Decode(in CompressedFrame) (*Frame, error)

	// Release drops the currently leased frame.
	Release()

	// Close releases the lease and tears the pipeline down.
	//
	// Safe to call multiple times (idempotent). Release callbacks for
	// buffers still inside the pipeline may run after Close returns.
	Close()

	// Stats returns current decoder statistics.
	//
	// This method is thread-safe and can be called from any goroutine.
	Stats() DecoderStats
}

var _ FrameDecoder = (*Decoder)(nil)
