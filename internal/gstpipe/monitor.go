//go:build cgo && !nogst

package gstpipe

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// MonitorBus polls the pipeline bus until ctx is cancelled
//
// This function:
//  1. Polls the bus for EOS, Error and StateChanged messages
//  2. Classifies errors and forwards them to onError
//  3. Logs pipeline state transitions
//
// It never tears the pipeline down; the owner decides what an error means.
func MonitorBus(ctx context.Context, pipeline *gst.Pipeline, onError func(ErrorCategory, error)) {
	if pipeline == nil {
		return
	}

	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstpipe: context cancelled, stopping bus monitor")
			return

		default:
			// Poll with a short timeout for responsive shutdown
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gst.MessageEOS:
				slog.Info("gstpipe: end of stream received")

			case gst.MessageError:
				gerr := msg.ParseError()
				category := ClassifyError(gerr.Error(), gerr.DebugString())

				slog.Error("gstpipe: pipeline error",
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
					"category", category.String(),
					"source", msg.Source(),
				)

				if onError != nil {
					onError(category, gerr)
				}

			case gst.MessageStateChanged:
				if msg.Source() == pipeline.GetName() {
					oldState, newState := msg.ParseStateChanged()
					slog.Debug("gstpipe: pipeline state changed",
						"from", oldState,
						"to", newState,
					)
				}
			}
		}
	}
}
