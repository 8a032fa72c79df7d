package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	streamdecode "github.com/e7canasta/orion-care-sensor/modules/stream-decode"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/config"
)

// paddedFrame returns a 3x2 frame with 4-byte aligned rows
func paddedFrame(format string) *streamdecode.Frame {
	bpp := 4
	if format == "RGB" {
		bpp = 3
	}
	stride := (3*bpp + 3) &^ 3
	data := make([]byte, stride*2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			px := data[y*stride+x*bpp:]
			for c := 0; c < bpp; c++ {
				px[c] = byte(10*c + x + 100*y)
			}
		}
	}
	return &streamdecode.Frame{
		Seq:       1,
		Timestamp: time.Now(),
		Width:     3,
		Height:    2,
		Stride:    stride,
		Format:    format,
		Data:      data,
	}
}

func TestToRGBA(t *testing.T) {
	testCases := []struct {
		format  string
		r, g, b int // source channel offsets
		alpha   int // -1 = opaque
	}{
		{"BGRx", 2, 1, 0, -1},
		{"BGRA", 2, 1, 0, 3},
		{"RGBx", 0, 1, 2, -1},
		{"RGBA", 0, 1, 2, 3},
		{"RGB", 0, 1, 2, -1},
	}

	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			frame := paddedFrame(tc.format)
			img, err := toRGBA(frame)
			if err != nil {
				t.Fatalf("toRGBA failed: %v", err)
			}

			// pixel (2,1): channel c holds 10*c + 2 + 100
			px := img.Pix[1*img.Stride+2*4:]
			want := func(c int) byte { return byte(10*c + 102) }
			if px[0] != want(tc.r) || px[1] != want(tc.g) || px[2] != want(tc.b) {
				t.Errorf("RGB = %v, want %v %v %v", px[:3], want(tc.r), want(tc.g), want(tc.b))
			}
			wantA := byte(255)
			if tc.alpha >= 0 {
				wantA = want(tc.alpha)
			}
			if px[3] != wantA {
				t.Errorf("A = %d, want %d", px[3], wantA)
			}
		})
	}
}

func TestToRGBA_Errors(t *testing.T) {
	short := paddedFrame("BGRx")
	short.Data = short.Data[:10]

	testCases := map[string]*streamdecode.Frame{
		"unknown format": {Width: 1, Height: 1, Format: "I420", Data: make([]byte, 4)},
		"no dimensions":  {Format: "BGRx", Data: make([]byte, 4)},
		"short data":     short,
	}
	for name, frame := range testCases {
		if _, err := toRGBA(frame); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFrameSaver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	s, err := newFrameSaver(config.OutputConfig{Dir: dir, Format: "jpg", SaveEvery: 2, Quality: 80})
	if err != nil {
		t.Fatalf("newFrameSaver failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		frame := paddedFrame("BGRx")
		frame.Seq = uint64(i + 1)
		if err := s.Save(frame); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.Saved() != 3 || len(entries) != 3 {
		t.Errorf("Expected frames 1, 3, 5 saved, got %d (%d files)", s.Saved(), len(entries))
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".jpeg" {
			t.Errorf("Unexpected file %s", e.Name())
		}
	}

	disabled, _ := newFrameSaver(config.OutputConfig{Format: "png"})
	if disabled.Enabled() || disabled.Save(paddedFrame("BGRx")) != nil || disabled.Saved() != 0 {
		t.Error("Saver without a directory must do nothing")
	}
}
