package gstpipe

import (
	"fmt"
	"os"
)

// Codec identifies the compressed video format fed to the pipeline
type Codec int

const (
	// CodecUnknown selects the auto-detecting decode fragment
	CodecUnknown Codec = iota
	// CodecMJPEG is motion-JPEG (one JPEG image per frame)
	CodecMJPEG
	// CodecVP8 is VP8
	CodecVP8
	// CodecH264 is H.264 Annex-B byte stream
	CodecH264
	// CodecVP9 is VP9
	CodecVP9
	// CodecH265 is H.265 Annex-B byte stream
	CodecH265
)

// String returns a human-readable string representation of the codec
func (c Codec) String() string {
	switch c {
	case CodecMJPEG:
		return "mjpeg"
	case CodecVP8:
		return "vp8"
	case CodecH264:
		return "h264"
	case CodecVP9:
		return "vp9"
	case CodecH265:
		return "h265"
	default:
		return "unknown"
	}
}

const (
	// EnvAutoSelect overrides source typing: unset or "decodebin" keeps the
	// codec caps, any other non-empty value forces typefind.
	EnvAutoSelect = "STREAM_DECODE_GST_AUTO"

	// EnvForceDecodebin forces the generic decoder when set to anything.
	EnvForceDecodebin = "STREAM_DECODE_GST_DECODEBIN"

	// genericDecoder is the auto-detecting decoder element
	genericDecoder = "decodebin"

	// genericCaps makes appsrc detect the stream type itself.
	// typefind misidentifies VP8, so codec caps stay the default.
	genericCaps = "typefind=true"

	// DefaultOutputFormat is the raw layout produced by the sink
	DefaultOutputFormat = "BGRx"
)

// Overrides are the two environment-level topology toggles
type Overrides struct {
	// AutoSelect mirrors EnvAutoSelect ("" means unset)
	AutoSelect string
	// ForceDecodebin mirrors whether EnvForceDecodebin is set
	ForceDecodebin bool
}

// OverridesFromEnv reads the topology toggles from the process environment
func OverridesFromEnv() Overrides {
	_, force := os.LookupEnv(EnvForceDecodebin)
	return Overrides{
		AutoSelect:     os.Getenv(EnvAutoSelect),
		ForceDecodebin: force,
	}
}

type fragment struct {
	caps    string
	decoder string
}

var codecFragments = map[Codec]fragment{
	CodecMJPEG: {caps: "caps=image/jpeg", decoder: "jpegdec"},
	CodecVP8:   {caps: "caps=video/x-vp8", decoder: "vp8dec"},
	CodecH264:  {caps: "caps=video/x-h264", decoder: "h264parse ! avdec_h264"},
	CodecVP9:   {caps: "caps=video/x-vp9", decoder: "vp9dec"},
	CodecH265:  {caps: "caps=video/x-h265", decoder: "h265parse ! avdec_h265"},
}

// SelectFragments returns the source typing and decoder fragments for codec
//
// Rules:
//   - Unknown codec: generic caps and generic decoder
//   - AutoSelect set to anything but "decodebin": generic caps
//   - ForceDecodebin: generic decoder, regardless of AutoSelect
func SelectFragments(codec Codec, ov Overrides) (caps, decoder string) {
	f, known := codecFragments[codec]
	caps, decoder = f.caps, f.decoder

	if !known || (ov.AutoSelect != "" && ov.AutoSelect != genericDecoder) {
		caps = genericCaps
	}
	if !known || ov.ForceDecodebin {
		decoder = genericDecoder
	}
	return caps, decoder
}

// Describe builds the pipeline description for codec
//
// Topology:
//
//	appsrc (typed or typefind) → decoder → videoconvert → appsink (fixed raw format)
func Describe(codec Codec, ov Overrides, outputFormat string) string {
	if outputFormat == "" {
		outputFormat = DefaultOutputFormat
	}
	caps, decoder := SelectFragments(codec, ov)
	return fmt.Sprintf(
		"appsrc name=%s format=time do-timestamp=true %s ! %s ! videoconvert ! appsink name=%s caps=video/x-raw,format=%s",
		SourceName, caps, decoder, SinkName, outputFormat,
	)
}

const (
	// SourceName is the element name of the injection endpoint
	SourceName = "src"
	// SinkName is the element name of the extraction endpoint
	SinkName = "sink"
)
