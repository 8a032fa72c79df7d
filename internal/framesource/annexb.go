package framesource

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nareix/joy4/codec/h264parser"
)

var startCode = []byte{0, 0, 0, 1}

// H.264 NAL unit types
const (
	h264NALSlice    = 1
	h264NALIDRSlice = 5
	h264NALSPS      = 7
)

// H.265 NAL unit types
const (
	h265NALVCLMax   = 31
	h265NALIDRWRADL = 19
	h265NALCRA      = 21
)

// OpenAnnexB splits an Annex-B byte stream file into access units.
// codec is "h264" or "h265".
func OpenAnnexB(path, codec string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("framesource: read %s: %w", path, err)
	}

	packets, err := SplitAccessUnits(data, codec)
	if err != nil {
		return nil, fmt.Errorf("framesource: %s: %w", path, err)
	}

	slog.Debug("framesource: annex-b stream loaded",
		"path", path,
		"codec", codec,
		"size_bytes", len(data),
		"access_units", len(packets),
	)
	return &sliceSource{codec: codec, packets: packets}, nil
}

// SplitAccessUnits groups the NAL units of an Annex-B stream into access
// units, each re-emitted with 4-byte start codes.
//
// A new access unit starts at the first slice of a picture, or at a
// parameter set / SEI / delimiter following a picture's slices.
func SplitAccessUnits(data []byte, codec string) ([]Packet, error) {
	if codec != "h264" && codec != "h265" {
		return nil, fmt.Errorf("%w: annex-b codec %q", ErrUnsupported, codec)
	}

	nalus, typ := h264parser.SplitNALUs(data)
	if typ != h264parser.NALU_ANNEXB {
		return nil, fmt.Errorf("not an annex-b byte stream")
	}

	var (
		packets []Packet
		cur     Packet
		hasVCL  bool
	)
	flush := func() {
		if len(cur.Data) > 0 {
			packets = append(packets, cur)
		}
		cur = Packet{}
		hasVCL = false
	}

	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		vcl, firstSlice, key := classifyNALU(nalu, codec)

		switch {
		case vcl && firstSlice && hasVCL:
			flush()
		case !vcl && hasVCL:
			flush()
		}

		if codec == "h264" && nalu[0]&0x1f == h264NALSPS {
			logSPS(nalu)
		}

		cur.Data = append(cur.Data, startCode...)
		cur.Data = append(cur.Data, nalu...)
		if vcl {
			hasVCL = true
		}
		if key {
			cur.Keyframe = true
		}
	}
	flush()

	if len(packets) == 0 {
		return nil, fmt.Errorf("no access units found")
	}
	return packets, nil
}

// classifyNALU reports whether nalu is a picture slice, whether it is the
// first slice of its picture and whether it is an intra picture
func classifyNALU(nalu []byte, codec string) (vcl, firstSlice, key bool) {
	if codec == "h265" {
		if len(nalu) < 3 {
			return false, false, false
		}
		t := int(nalu[0]>>1) & 0x3f
		if t > h265NALVCLMax {
			return false, false, false
		}
		// first_slice_segment_in_pic_flag
		return true, nalu[2]&0x80 != 0, t >= h265NALIDRWRADL && t <= h265NALCRA
	}

	t := int(nalu[0] & 0x1f)
	if t != h264NALSlice && t != h264NALIDRSlice {
		return false, false, false
	}
	if len(nalu) < 2 {
		return true, true, t == h264NALIDRSlice
	}
	// first_mb_in_slice == 0 is ue(v) "1"
	return true, nalu[1]&0x80 != 0, t == h264NALIDRSlice
}

func logSPS(nalu []byte) {
	info, err := h264parser.ParseSPS(nalu)
	if err != nil {
		slog.Debug("framesource: unable to parse SPS", "error", err)
		return
	}
	slog.Debug("framesource: SPS",
		"resolution", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"profile", info.ProfileIdc,
		"level", info.LevelIdc,
	)
}
