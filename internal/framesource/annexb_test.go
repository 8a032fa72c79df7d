package framesource

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, startCode...)
		out = append(out, n...)
	}
	return out
}

var (
	h264SPS  = []byte{0x67, 0x64, 0x00, 0x1f, 0xac, 0xd9, 0x40, 0x50}
	h264PPS  = []byte{0x68, 0xee, 0x3c, 0x80}
	h264IDR1 = []byte{0x65, 0x88, 0x84, 0x21, 0xa0} // first_mb_in_slice = 0
	h264IDR2 = []byte{0x65, 0x08, 0x84, 0x21}       // second slice of the same picture
	h264P1   = []byte{0x41, 0x9a, 0x21, 0x6c}
	h264P2   = []byte{0x41, 0x9a, 0x42, 0x3c}
)

// TestSplitAccessUnits_H264 verifies slices group into pictures
func TestSplitAccessUnits_H264(t *testing.T) {
	stream := annexB(h264SPS, h264PPS, h264IDR1, h264IDR2, h264P1, h264P2)

	packets, err := SplitAccessUnits(stream, "h264")
	if err != nil {
		t.Fatalf("SplitAccessUnits failed: %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("Expected 3 access units, got %d", len(packets))
	}

	want := [][]byte{
		annexB(h264SPS, h264PPS, h264IDR1, h264IDR2),
		annexB(h264P1),
		annexB(h264P2),
	}
	for i, p := range packets {
		if !bytes.Equal(p.Data, want[i]) {
			t.Errorf("AU %d mismatch\n got: % x\nwant: % x", i, p.Data, want[i])
		}
	}
	if !packets[0].Keyframe || packets[1].Keyframe || packets[2].Keyframe {
		t.Errorf("Expected only the IDR access unit flagged as keyframe")
	}

	t.Logf("✅ %d bytes → %d access units", len(stream), len(packets))
}

// TestSplitAccessUnits_H265 verifies H.265 NAL header parsing
func TestSplitAccessUnits_H265(t *testing.T) {
	vps := []byte{0x40, 0x01, 0x0c, 0x01, 0xff, 0xff}
	sps := []byte{0x42, 0x01, 0x01, 0x01, 0x60}
	pps := []byte{0x44, 0x01, 0xc1, 0x72}
	idr := []byte{0x26, 0x01, 0xaf, 0x09, 0x40}
	trail1 := []byte{0x02, 0x01, 0xd0, 0x28, 0xf4}
	trail2 := []byte{0x02, 0x01, 0xd0, 0x48, 0xf2}

	packets, err := SplitAccessUnits(annexB(vps, sps, pps, idr, trail1, trail2), "h265")
	if err != nil {
		t.Fatalf("SplitAccessUnits failed: %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("Expected 3 access units, got %d", len(packets))
	}
	if !bytes.Equal(packets[0].Data, annexB(vps, sps, pps, idr)) {
		t.Errorf("First AU should carry parameter sets and the IDR picture")
	}
	if !packets[0].Keyframe || packets[1].Keyframe {
		t.Errorf("Keyframe flags wrong: %v %v", packets[0].Keyframe, packets[1].Keyframe)
	}
}

// TestSplitAccessUnits_Errors covers rejected inputs
func TestSplitAccessUnits_Errors(t *testing.T) {
	if _, err := SplitAccessUnits(annexB(h264P1), "vp8"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported for vp8, got %v", err)
	}
	if _, err := SplitAccessUnits([]byte{1, 2, 3, 4, 5}, "h264"); err == nil {
		t.Error("Expected error for a non annex-b stream")
	}
}

// TestOpen_AnnexBFile verifies extension dispatch and EOF handling
func TestOpen_AnnexBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.264")
	if err := os.WriteFile(path, annexB(h264SPS, h264PPS, h264IDR1, h264P1), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if src.Codec() != "h264" {
		t.Errorf("Expected h264, got %q", src.Codec())
	}
	n := 0
	for {
		_, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		n++
	}
	if n != 2 {
		t.Errorf("Expected 2 packets, got %d", n)
	}
}

func TestOpen_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.avi")
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

func TestAVCCToAnnexB(t *testing.T) {
	in := []byte{
		0, 0, 0, 2, 0x65, 0x88,
		0, 0, 0, 1, 0x41,
		0, 0, 0, 9, 0x01, // truncated
	}
	want := annexB([]byte{0x65, 0x88}, []byte{0x41})

	if got := AVCCToAnnexB(in); !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}
