//go:build !cgo || nogst

package gstpipe

import "errors"

// ErrBackendUnavailable is returned by GstBackend when the binary was built
// without GStreamer (nogst tag or cgo disabled)
var ErrBackendUnavailable = errors.New("gstpipe: built without gstreamer support")

// Bootstrap is a no-op without GStreamer
func Bootstrap() {}

// GstBackend refuses every pipeline without GStreamer
type GstBackend struct{}

// Construct always fails with ErrBackendUnavailable
func (GstBackend) Construct(description string) (Pipeline, error) {
	return nil, ErrBackendUnavailable
}
