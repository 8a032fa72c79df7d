// Package framesource reads compressed video frames from files, one
// decodable unit at a time, for feeding the decoder outside a live stream.
package framesource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsupported is returned when no reader handles the input
var ErrUnsupported = errors.New("framesource: unsupported input")

// Packet is one compressed frame
type Packet struct {
	// Data is the compressed frame (Annex-B for H.264/H.265)
	Data []byte
	// Keyframe is true when the frame can be decoded on its own (best effort)
	Keyframe bool
	// PTS is the presentation time relative to the start of the input
	PTS time.Duration
}

// Source yields compressed frames in decode order
type Source interface {
	// Next returns the next packet, io.EOF at the end of the input
	Next() (Packet, error)
	// Codec returns the codec name the input carries ("h264", "vp8", ...),
	// empty when unknown
	Codec() string
	// Close releases the input
	Close() error
}

// Open picks a reader for path by type and extension
//
//   - directory: one file per frame, in lexical order
//   - .h264, .264: H.264 Annex-B byte stream
//   - .h265, .265, .hevc: H.265 Annex-B byte stream
//   - .ivf: VP8/VP9 IVF container
//   - .mp4, .m4v: H.264 MP4 (progressive or fragmented)
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("framesource: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return OpenDir(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".h264", ".264":
		return OpenAnnexB(path, "h264")
	case ".h265", ".265", ".hevc":
		return OpenAnnexB(path, "h265")
	case ".ivf":
		return OpenIVF(path)
	case ".mp4", ".m4v":
		return OpenMP4(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

// sliceSource serves packets prepared up front
type sliceSource struct {
	codec   string
	packets []Packet
	next    int
}

func (s *sliceSource) Next() (Packet, error) {
	if s.next >= len(s.packets) {
		return Packet{}, io.EOF
	}
	p := s.packets[s.next]
	s.next++
	return p, nil
}

func (s *sliceSource) Codec() string { return s.codec }

func (s *sliceSource) Close() error {
	s.packets = nil
	return nil
}

// Len returns the total number of packets
func (s *sliceSource) Len() int { return len(s.packets) }
