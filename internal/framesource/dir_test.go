package framesource

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"frame_002.jpg": "second",
		"frame_001.jpg": "first",
		".DS_Store":     "junk",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	src, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	if src.Codec() != "mjpeg" {
		t.Errorf("Expected mjpeg, got %q", src.Codec())
	}

	for _, want := range []string{"first", "second"} {
		p, err := src.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if string(p.Data) != want || !p.Keyframe {
			t.Errorf("Expected %q keyframe, got %q (key=%v)", want, p.Data, p.Keyframe)
		}
	}
	if _, err := src.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestOpenDir_Empty(t *testing.T) {
	if _, err := OpenDir(t.TempDir()); err == nil {
		t.Error("Expected error for a directory without frames")
	}
}

func TestCodecFromExt(t *testing.T) {
	testCases := map[string]string{
		".JPG":  "mjpeg",
		".h264": "h264",
		".hevc": "h265",
		".vp8":  "vp8",
		".vp9":  "vp9",
		".bin":  "",
	}
	for ext, want := range testCases {
		if got := codecFromExt(ext); got != want {
			t.Errorf("codecFromExt(%q) = %q, want %q", ext, got, want)
		}
	}
}
