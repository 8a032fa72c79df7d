// Package lease tracks the single decoded sample whose mapped memory is
// currently exposed to the caller.
package lease

import (
	"fmt"

	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/gstpipe"
)

// Lease holds at most one mapped sample.
//
// The bytes returned by Acquire stay valid only until Release. Not safe for
// concurrent use; the decoder serializes access.
type Lease struct {
	sample gstpipe.Sample
	data   []byte
	info   gstpipe.SampleInfo
}

// Acquire maps sample and takes ownership of it.
//
// A lease still held is released first. On map failure the sample is
// unreferenced and the lease stays empty.
func (l *Lease) Acquire(sample gstpipe.Sample) ([]byte, error) {
	l.Release()

	data, err := sample.Map()
	if err != nil {
		sample.Unref()
		return nil, fmt.Errorf("lease: map sample: %w", err)
	}

	l.sample = sample
	l.data = data
	l.info = sample.Info()
	return data, nil
}

// Release unmaps and unreferences the held sample. No-op when empty.
func (l *Lease) Release() {
	if l.sample == nil {
		return
	}
	l.sample.Unmap()
	l.sample.Unref()
	l.sample = nil
	l.data = nil
	l.info = gstpipe.SampleInfo{}
}

// Held reports whether a sample is leased
func (l *Lease) Held() bool {
	return l.sample != nil
}

// Bytes returns the leased mapping, nil when empty
func (l *Lease) Bytes() []byte {
	return l.data
}

// Info returns the leased sample layout
func (l *Lease) Info() gstpipe.SampleInfo {
	return l.info
}
