package framesource

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// dirSource reads one frame per regular file
type dirSource struct {
	dir   string
	files []string
	codec string
	next  int
}

// OpenDir returns a source serving every regular file in dir as one frame,
// in lexical order. Hidden files are skipped.
func OpenDir(dir string) (Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("framesource: read dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, e.Name())
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("framesource: no frame files in %s", dir)
	}
	sort.Strings(files)

	return &dirSource{
		dir:   dir,
		files: files,
		codec: codecFromExt(filepath.Ext(files[0])),
	}, nil
}

func (s *dirSource) Next() (Packet, error) {
	if s.next >= len(s.files) {
		return Packet{}, io.EOF
	}
	name := s.files[s.next]
	s.next++

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return Packet{}, fmt.Errorf("framesource: read frame %s: %w", name, err)
	}
	return Packet{Data: data, Keyframe: s.codec == "mjpeg"}, nil
}

func (s *dirSource) Codec() string { return s.codec }

func (s *dirSource) Close() error { return nil }

// codecFromExt guesses the codec of a per-frame file
func codecFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".mjpeg":
		return "mjpeg"
	case ".h264", ".264":
		return "h264"
	case ".h265", ".265", ".hevc":
		return "h265"
	case ".vp8":
		return "vp8"
	case ".vp9":
		return "vp9"
	default:
		return ""
	}
}
