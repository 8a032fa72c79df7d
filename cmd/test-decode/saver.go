package main

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/image/bmp"

	streamdecode "github.com/e7canasta/orion-care-sensor/modules/stream-decode"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/config"
)

// frameSaver writes decoded frames to disk
type frameSaver struct {
	dir     string
	format  string
	quality int
	every   int

	seen   int
	saved  atomic.Int64
	failed atomic.Int64
}

func newFrameSaver(cfg config.OutputConfig) (*frameSaver, error) {
	s := &frameSaver{
		dir:     cfg.Dir,
		format:  strings.ToLower(cfg.Format),
		quality: cfg.Quality,
		every:   cfg.SaveEvery,
	}
	if s.format == "jpg" {
		s.format = "jpeg"
	}
	if s.every <= 0 {
		s.every = 1
	}
	if s.dir == "" {
		return s, nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return s, nil
}

// Enabled reports whether frames are saved at all
func (s *frameSaver) Enabled() bool { return s.dir != "" }

// Saved returns the number of frames written
func (s *frameSaver) Saved() int64 { return s.saved.Load() }

// Failed returns the number of frames that could not be written
func (s *frameSaver) Failed() int64 { return s.failed.Load() }

// Save writes frame if saving is enabled and it is due
func (s *frameSaver) Save(frame *streamdecode.Frame) error {
	if !s.Enabled() {
		return nil
	}
	s.seen++
	if (s.seen-1)%s.every != 0 {
		return nil
	}

	if err := s.write(frame); err != nil {
		s.failed.Add(1)
		return err
	}
	s.saved.Add(1)
	return nil
}

func (s *frameSaver) write(frame *streamdecode.Frame) error {
	img, err := toRGBA(frame)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("frame_%06d_%s.%s", frame.Seq, frame.Timestamp.Format("20060102_150405.000"), s.format)
	file, err := os.Create(filepath.Join(s.dir, filename))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// Encode based on format
	switch s.format {
	case "png":
		if err := png.Encode(file, img); err != nil {
			return fmt.Errorf("failed to encode PNG: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(file, img, &jpeg.Options{Quality: s.quality}); err != nil {
			return fmt.Errorf("failed to encode JPEG: %w", err)
		}
	case "bmp":
		if err := bmp.Encode(file, img); err != nil {
			return fmt.Errorf("failed to encode BMP: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format: %s", s.format)
	}
	return nil
}

// channelOrder returns the byte offsets of R, G, B (and A, -1 if opaque)
// and the pixel size of a raw format
func channelOrder(format string) (r, g, b, a, bpp int, err error) {
	switch format {
	case "BGRx":
		return 2, 1, 0, -1, 4, nil
	case "BGRA":
		return 2, 1, 0, 3, 4, nil
	case "RGBx":
		return 0, 1, 2, -1, 4, nil
	case "RGBA":
		return 0, 1, 2, 3, 4, nil
	case "RGB":
		return 0, 1, 2, -1, 3, nil
	default:
		return 0, 0, 0, 0, 0, fmt.Errorf("unsupported pixel format %q", format)
	}
}

// toRGBA converts a decoded frame to an image, honoring its stride
func toRGBA(frame *streamdecode.Frame) (*image.RGBA, error) {
	if frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("frame has no dimensions")
	}
	ri, gi, bi, ai, bpp, err := channelOrder(frame.Format)
	if err != nil {
		return nil, err
	}

	stride := frame.Stride
	if stride == 0 {
		stride = frame.Width * bpp
	}
	if need := stride*(frame.Height-1) + frame.Width*bpp; len(frame.Data) < need {
		return nil, fmt.Errorf("frame data too short: %d bytes, need %d", len(frame.Data), need)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		row := frame.Data[y*stride:]
		out := img.Pix[y*img.Stride:]
		for x := 0; x < frame.Width; x++ {
			px := row[x*bpp:]
			out[x*4+0] = px[ri]
			out[x*4+1] = px[gi]
			out[x*4+2] = px[bi]
			if ai >= 0 {
				out[x*4+3] = px[ai]
			} else {
				out[x*4+3] = 255
			}
		}
	}
	return img, nil
}
