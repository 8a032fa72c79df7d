package gstpipe

import (
	"fmt"
	"strings"
)

// ErrorCategory represents the classification of pipeline errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryTopology indicates a malformed pipeline description
	ErrCategoryTopology ErrorCategory = iota
	// ErrCategoryPlugin indicates a missing element or plugin
	ErrCategoryPlugin
	// ErrCategoryState indicates a failed state transition
	ErrCategoryState
	// ErrCategoryCodec indicates decode or negotiation failures
	ErrCategoryCodec
	// ErrCategoryResource indicates allocation or resource failures
	ErrCategoryResource
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryTopology:
		return "topology"
	case ErrCategoryPlugin:
		return "plugin"
	case ErrCategoryState:
		return "state"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryResource:
		return "resource"
	default:
		return "unknown"
	}
}

// ClassifyError analyzes a pipeline error message and categorizes it
//
// Classification is keyword based: GStreamer errors surface as GError text,
// and the binding does not expose the error domain.
func ClassifyError(msg, debug string) ErrorCategory {
	combined := strings.ToLower(msg + " " + debug)

	// Priority 1: missing elements (most specific, also parse-time)
	if containsAny(combined, pluginKeywords) {
		return ErrCategoryPlugin
	}

	// Priority 2: description syntax
	if containsAny(combined, topologyKeywords) {
		return ErrCategoryTopology
	}

	// Priority 3: codec/format errors
	if containsAny(combined, codecKeywords) {
		return ErrCategoryCodec
	}

	if containsAny(combined, resourceKeywords) {
		return ErrCategoryResource
	}

	if containsAny(combined, stateKeywords) {
		return ErrCategoryState
	}

	return ErrCategoryUnknown
}

var (
	pluginKeywords = []string{
		"no element",
		"missing plugin",
		"could not create element",
		"no such element",
		"not available",
	}
	topologyKeywords = []string{
		"syntax error",
		"could not link",
		"parse",
		"no property",
		"could not set property",
		"empty pipeline",
		"unexpected reference",
	}
	codecKeywords = []string{
		"decode",
		"codec",
		"not negotiated",
		"negotiation",
		"caps",
		"format",
		"stream type",
		"corrupt",
	}
	resourceKeywords = []string{
		"allocat",
		"out of memory",
		"resource",
		"busy",
	}
	stateKeywords = []string{
		"state change",
		"playing state",
		"set state",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// ConstructionError reports a pipeline that could not be built or started.
// It is the only error this layer treats as fatal for a stream.
type ConstructionError struct {
	Description string
	Category    ErrorCategory
	Err         error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("gstpipe: construction failed [%s]: %v", e.Category, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

func newConstructionError(description string, err error) *ConstructionError {
	return &ConstructionError{
		Description: description,
		Category:    ClassifyError(err.Error(), ""),
		Err:         err,
	}
}
