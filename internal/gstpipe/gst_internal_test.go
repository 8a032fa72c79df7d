//go:build cgo && !nogst

package gstpipe

import "testing"

// TestWrapCompressed_ReadOnly verifies injected frames are wrapped in
// read-only memory so no element can map them for writing
func TestWrapCompressed_ReadOnly(t *testing.T) {
	Bootstrap()

	data := []byte{0, 0, 0, 1, 0x65, 0x88, 0x84, 0x00}
	buf := wrapCompressed(data, nil)
	if buf == nil {
		t.Fatal("wrapCompressed returned nil")
	}
	if got := buf.GetSize(); got != int64(len(data)) {
		t.Errorf("GetSize() = %d, want %d", got, len(data))
	}
	if buf.IsAllMemoryWritable() {
		t.Error("Expected compressed frame memory to be read-only")
	}

	t.Logf("✅ %d-byte compressed frame wrapped read-only", len(data))
}
