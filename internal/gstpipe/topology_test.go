package gstpipe

import (
	"strings"
	"testing"
)

// TestSelectFragments verifies codec to fragment mapping and both overrides
func TestSelectFragments(t *testing.T) {
	testCases := []struct {
		name        string
		codec       Codec
		ov          Overrides
		wantCaps    string
		wantDecoder string
	}{
		{"mjpeg", CodecMJPEG, Overrides{}, "caps=image/jpeg", "jpegdec"},
		{"vp8", CodecVP8, Overrides{}, "caps=video/x-vp8", "vp8dec"},
		{"h264", CodecH264, Overrides{}, "caps=video/x-h264", "h264parse ! avdec_h264"},
		{"vp9", CodecVP9, Overrides{}, "caps=video/x-vp9", "vp9dec"},
		{"h265", CodecH265, Overrides{}, "caps=video/x-h265", "h265parse ! avdec_h265"},
		{"unknown", CodecUnknown, Overrides{}, "typefind=true", "decodebin"},
		{"out of range", Codec(99), Overrides{}, "typefind=true", "decodebin"},

		// AutoSelect: "decodebin" keeps codec caps, anything else typefinds
		{"auto=decodebin", CodecVP8, Overrides{AutoSelect: "decodebin"}, "caps=video/x-vp8", "vp8dec"},
		{"auto=1", CodecVP8, Overrides{AutoSelect: "1"}, "typefind=true", "vp8dec"},
		{"auto=playbin", CodecH264, Overrides{AutoSelect: "playbin"}, "typefind=true", "h264parse ! avdec_h264"},

		// ForceDecodebin replaces the decoder regardless of AutoSelect
		{"force", CodecH264, Overrides{ForceDecodebin: true}, "caps=video/x-h264", "decodebin"},
		{"force+auto", CodecMJPEG, Overrides{AutoSelect: "yes", ForceDecodebin: true}, "typefind=true", "decodebin"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			caps, decoder := SelectFragments(tc.codec, tc.ov)
			if caps != tc.wantCaps || decoder != tc.wantDecoder {
				t.Errorf("got (%q, %q), want (%q, %q)", caps, decoder, tc.wantCaps, tc.wantDecoder)
			}
		})
	}
}

// TestDescribe verifies the full description layout
func TestDescribe(t *testing.T) {
	desc := Describe(CodecH264, Overrides{}, "")

	want := "appsrc name=src format=time do-timestamp=true caps=video/x-h264 ! " +
		"h264parse ! avdec_h264 ! videoconvert ! appsink name=sink caps=video/x-raw,format=BGRx"
	if desc != want {
		t.Errorf("Describe mismatch\n got: %s\nwant: %s", desc, want)
	}

	if d := Describe(CodecVP8, Overrides{}, "RGBA"); !strings.HasSuffix(d, "format=RGBA") {
		t.Errorf("Expected output format honored, got %s", d)
	}

	t.Logf("✅ %s", desc)
}

// TestOverridesFromEnv verifies set-but-empty counts for the decodebin toggle
func TestOverridesFromEnv(t *testing.T) {
	t.Setenv(EnvAutoSelect, "")
	t.Setenv(EnvForceDecodebin, "")

	ov := OverridesFromEnv()
	if ov.AutoSelect != "" || !ov.ForceDecodebin {
		t.Errorf("Expected ForceDecodebin from empty variable, got %+v", ov)
	}

	t.Setenv(EnvAutoSelect, "1")
	if ov := OverridesFromEnv(); ov.AutoSelect != "1" {
		t.Errorf("Expected AutoSelect=1, got %+v", ov)
	}
}

// TestClassifyError verifies keyword classification
func TestClassifyError(t *testing.T) {
	testCases := []struct {
		msg   string
		debug string
		want  ErrorCategory
	}{
		{"no element \"vp9dec\"", "", ErrCategoryPlugin},
		{"Your GStreamer installation is missing a plug-in.", "missing plugin: avdec_h265", ErrCategoryPlugin},
		{"syntax error", "", ErrCategoryTopology},
		{"could not link videoconvert0 to sink", "", ErrCategoryTopology},
		{"Could not decode stream.", "", ErrCategoryCodec},
		{"Internal data stream error.", "streaming stopped, reason not-negotiated (not negotiated)", ErrCategoryCodec},
		{"Failed to allocate a buffer", "", ErrCategoryResource},
		{"state change failed", "", ErrCategoryState},
		{"something odd", "", ErrCategoryUnknown},
	}

	for _, tc := range testCases {
		if got := ClassifyError(tc.msg, tc.debug); got != tc.want {
			t.Errorf("ClassifyError(%q, %q) = %s, want %s", tc.msg, tc.debug, got, tc.want)
		}
	}
}
