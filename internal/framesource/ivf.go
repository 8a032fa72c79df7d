package framesource

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

const (
	ivfSignature       = "DKIF"
	ivfFileHeaderSize  = 32
	ivfFrameHeaderSize = 12
	// ivfMaxFrameSize guards against corrupt size fields
	ivfMaxFrameSize = 64 << 20
)

// IVFHeader is the IVF file header
type IVFHeader struct {
	FourCC        string
	Width         uint16
	Height        uint16
	TimebaseDenom uint32
	TimebaseNum   uint32
	Frames        uint32
}

type ivfSource struct {
	f      *os.File
	r      *bufio.Reader
	header IVFHeader
	codec  string
}

// OpenIVF reads VP8/VP9 frames from an IVF container
func OpenIVF(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("framesource: open %s: %w", path, err)
	}

	r := bufio.NewReader(f)
	header, err := ReadIVFHeader(r)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("framesource: %s: %w", path, err)
	}

	var codec string
	switch header.FourCC {
	case "VP80":
		codec = "vp8"
	case "VP90":
		codec = "vp9"
	default:
		f.Close()
		return nil, fmt.Errorf("%w: ivf fourcc %q", ErrUnsupported, header.FourCC)
	}

	slog.Debug("framesource: ivf stream opened",
		"path", path,
		"codec", codec,
		"resolution", fmt.Sprintf("%dx%d", header.Width, header.Height),
		"frames", header.Frames,
	)
	return &ivfSource{f: f, r: r, header: header, codec: codec}, nil
}

// ReadIVFHeader parses the 32-byte IVF file header
func ReadIVFHeader(r io.Reader) (IVFHeader, error) {
	var buf [ivfFileHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return IVFHeader{}, fmt.Errorf("read ivf header: %w", err)
	}
	if string(buf[0:4]) != ivfSignature {
		return IVFHeader{}, errors.New("not an ivf file")
	}

	headerLen := binary.LittleEndian.Uint16(buf[6:8])
	if headerLen > ivfFileHeaderSize {
		if _, err := io.CopyN(io.Discard, r, int64(headerLen-ivfFileHeaderSize)); err != nil {
			return IVFHeader{}, fmt.Errorf("skip ivf header: %w", err)
		}
	}

	return IVFHeader{
		FourCC:        string(buf[8:12]),
		Width:         binary.LittleEndian.Uint16(buf[12:14]),
		Height:        binary.LittleEndian.Uint16(buf[14:16]),
		TimebaseDenom: binary.LittleEndian.Uint32(buf[16:20]),
		TimebaseNum:   binary.LittleEndian.Uint32(buf[20:24]),
		Frames:        binary.LittleEndian.Uint32(buf[24:28]),
	}, nil
}

func (s *ivfSource) Next() (Packet, error) {
	var hdr [ivfFrameHeaderSize]byte
	if _, err := io.ReadFull(s.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Packet{}, io.EOF
		}
		return Packet{}, fmt.Errorf("framesource: read ivf frame header: %w", err)
	}

	size := binary.LittleEndian.Uint32(hdr[0:4])
	if size > ivfMaxFrameSize {
		return Packet{}, fmt.Errorf("framesource: ivf frame size %d too large", size)
	}
	pts := binary.LittleEndian.Uint64(hdr[4:12])

	data := make([]byte, size)
	if _, err := io.ReadFull(s.r, data); err != nil {
		return Packet{}, fmt.Errorf("framesource: read ivf frame: %w", err)
	}

	return Packet{
		Data:     data,
		Keyframe: isVPXKeyframe(data, s.codec),
		PTS:      s.ptsDuration(pts),
	}, nil
}

// ptsDuration converts a pts in timebase units (num/denom seconds)
func (s *ivfSource) ptsDuration(pts uint64) time.Duration {
	if s.header.TimebaseDenom == 0 {
		return 0
	}
	return time.Duration(pts * uint64(s.header.TimebaseNum) * uint64(time.Second) / uint64(s.header.TimebaseDenom))
}

// isVPXKeyframe inspects the uncompressed frame header
func isVPXKeyframe(data []byte, codec string) bool {
	if len(data) == 0 {
		return false
	}
	if codec == "vp8" {
		// frame tag bit 0: 0 = key frame
		return data[0]&0x01 == 0
	}
	// VP9: frame_marker(2) profile_low(1) profile_high(1) [reserved(1) if profile 3]
	// show_existing_frame(1) frame_type(1), 0 = key frame
	b := data[0]
	if b>>6 != 0x2 {
		return false
	}
	profile := int(b>>5&1) | int(b>>4&1)<<1
	shift := 3
	if profile == 3 {
		shift = 2
	}
	if b>>shift&1 == 1 {
		return false
	}
	return b>>(shift-1)&1 == 0
}

func (s *ivfSource) Codec() string { return s.codec }

func (s *ivfSource) Close() error {
	return s.f.Close()
}
