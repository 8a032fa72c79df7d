package framesource

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

// OpenMP4 extracts the H.264 video track of an MP4 file as Annex-B access
// units. Parameter sets are prepended to every sync sample so each keyframe
// decodes on its own.
func OpenMP4(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("framesource: open %s: %w", path, err)
	}
	defer f.Close()

	packets, err := ReadMP4(f)
	if err != nil {
		return nil, fmt.Errorf("framesource: %s: %w", path, err)
	}

	slog.Debug("framesource: mp4 track loaded", "path", path, "samples", len(packets))
	return &sliceSource{codec: "h264", packets: packets}, nil
}

// ReadMP4 extracts H.264 samples from a progressive or fragmented MP4
func ReadMP4(r io.ReadSeeker) ([]Packet, error) {
	file, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	if file.IsFragmented() {
		return readFragmented(file)
	}
	return readProgressive(file, r)
}

// videoTrack locates the first video track and its parameter sets
func videoTrack(moov *mp4.MoovBox) (*mp4.TrakBox, []byte, error) {
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}

		var avcC *mp4.AvcCBox
		if trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil && trak.Mdia.Minf.Stbl.Stsd != nil {
			for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
				if avc1, ok := child.(*mp4.VisualSampleEntryBox); ok {
					avcC = avc1.AvcC
				}
			}
		}
		if avcC == nil {
			return nil, nil, fmt.Errorf("%w: video track is not H.264", ErrUnsupported)
		}

		var paramSets []byte
		for _, sps := range avcC.SPSnalus {
			paramSets = append(paramSets, startCode...)
			paramSets = append(paramSets, sps...)
		}
		for _, pps := range avcC.PPSnalus {
			paramSets = append(paramSets, startCode...)
			paramSets = append(paramSets, pps...)
		}
		return trak, paramSets, nil
	}
	return nil, nil, fmt.Errorf("no video track found")
}

func timescaleOf(trak *mp4.TrakBox) uint32 {
	if trak.Mdia != nil && trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		return trak.Mdia.Mdhd.Timescale
	}
	return 1000
}

func readProgressive(file *mp4.File, r io.ReadSeeker) ([]Packet, error) {
	if file.Moov == nil {
		return nil, fmt.Errorf("no moov box found")
	}
	trak, paramSets, err := videoTrack(file.Moov)
	if err != nil {
		return nil, err
	}
	timescale := timescaleOf(trak)

	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
		return nil, fmt.Errorf("no sample table found")
	}
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil {
		return nil, fmt.Errorf("no stsz box found")
	}

	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	var packets []Packet
	for nr := uint32(1); nr <= stbl.Stsz.SampleNumber; nr++ {
		sample, err := sampleData(stbl, r, nr)
		if err != nil {
			slog.Debug("framesource: skipping unreadable sample", "sample", nr, "error", err)
			continue
		}

		var decodeTime uint64
		if stbl.Stts != nil {
			decodeTime, _ = stbl.Stts.GetDecodeTime(nr)
		}
		key := syncSamples[nr] || len(syncSamples) == 0

		packets = append(packets, Packet{
			Data:     annexBSample(sample, paramSets, key),
			Keyframe: key,
			PTS:      mediaTime(decodeTime, timescale),
		})
	}
	return packets, nil
}

func readFragmented(file *mp4.File) ([]Packet, error) {
	if file.Init == nil || file.Init.Moov == nil {
		return nil, fmt.Errorf("no init segment found")
	}
	trak, paramSets, err := videoTrack(file.Init.Moov)
	if err != nil {
		return nil, err
	}
	trackID := trak.Tkhd.TrackID
	timescale := timescaleOf(trak)

	var trex *mp4.TrexBox
	if file.Init.Moov.Mvex != nil {
		for _, t := range file.Init.Moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var packets []Packet
	for _, seg := range file.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != trackID {
					continue
				}

				var decodeTime uint64
				if traf.Tfdt != nil {
					decodeTime = traf.Tfdt.BaseMediaDecodeTime()
				}

				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, fmt.Errorf("get samples: %w", err)
				}

				for _, s := range samples {
					key := s.Flags == mp4.SyncSampleFlags || len(packets) == 0
					packets = append(packets, Packet{
						Data:     annexBSample(s.Data, paramSets, key),
						Keyframe: key,
						PTS:      mediaTime(decodeTime, timescale),
					})
					decodeTime += uint64(s.Dur)
				}
			}
		}
	}
	return packets, nil
}

// sampleData reads one sample of a progressive file through the chunk tables
func sampleData(stbl *mp4.StblBox, r io.ReadSeeker, nr uint32) ([]byte, error) {
	if stbl.Stsc == nil {
		return nil, fmt.Errorf("missing stsc box")
	}

	chunkNr, firstSample, err := stbl.Stsc.ChunkNrFromSampleNr(int(nr))
	if err != nil {
		return nil, fmt.Errorf("chunk nr: %w", err)
	}

	var offset uint64
	switch {
	case stbl.Stco != nil:
		offset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return nil, fmt.Errorf("chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return nil, fmt.Errorf("chunk nr %d out of range", chunkNr)
		}
		offset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return nil, fmt.Errorf("no stco or co64 box")
	}

	for s := uint32(firstSample); s < nr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}

	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample: %w", err)
	}
	data := make([]byte, stbl.Stsz.GetSampleSize(int(nr)))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return data, nil
}

// annexBSample converts a length-prefixed sample to Annex-B, prefixing the
// parameter sets on keyframes
func annexBSample(sample, paramSets []byte, key bool) []byte {
	var out []byte
	if key {
		out = append(out, paramSets...)
	}
	return append(out, AVCCToAnnexB(sample)...)
}

// AVCCToAnnexB converts 4-byte length-prefixed NAL units to start-code form.
// A truncated trailing unit is dropped.
func AVCCToAnnexB(data []byte) []byte {
	var out []byte
	for off := 0; off+4 <= len(data); {
		n := int(data[off])<<24 | int(data[off+1])<<16 | int(data[off+2])<<8 | int(data[off+3])
		off += 4
		if n < 0 || off+n > len(data) {
			break
		}
		out = append(out, startCode...)
		out = append(out, data[off:off+n]...)
		off += n
	}
	return out
}

func mediaTime(t uint64, timescale uint32) time.Duration {
	return time.Duration(t * uint64(time.Second) / uint64(timescale))
}
