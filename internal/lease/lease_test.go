package lease

import (
	"errors"
	"testing"

	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/gstpipe"
)

type fakeSample struct {
	data    []byte
	failMap bool
	mapped  int
	unrefs  int
}

func (s *fakeSample) Map() ([]byte, error) {
	if s.failMap {
		return nil, errors.New("map failed")
	}
	s.mapped++
	return s.data, nil
}

func (s *fakeSample) Unmap() { s.mapped-- }
func (s *fakeSample) Unref() { s.unrefs++ }

func (s *fakeSample) Info() gstpipe.SampleInfo {
	return gstpipe.SampleInfo{Width: 4, Height: 1, Format: "BGRx"}
}

func TestLease_AcquireReleasesPrevious(t *testing.T) {
	var l Lease
	first := &fakeSample{data: []byte{1}}
	second := &fakeSample{data: []byte{2}}

	if _, err := l.Acquire(first); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	data, err := l.Acquire(second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if first.mapped != 0 || first.unrefs != 1 {
		t.Errorf("Previous sample not released: mapped=%d unrefs=%d", first.mapped, first.unrefs)
	}
	if !l.Held() || data[0] != 2 || l.Info().Width != 4 {
		t.Error("Expected second sample leased")
	}

	l.Release()
	l.Release()
	if second.mapped != 0 || second.unrefs != 1 || l.Held() || l.Bytes() != nil {
		t.Errorf("Release not idempotent: mapped=%d unrefs=%d", second.mapped, second.unrefs)
	}
}

func TestLease_MapFailure(t *testing.T) {
	var l Lease
	s := &fakeSample{failMap: true}

	if _, err := l.Acquire(s); err == nil {
		t.Fatal("Expected map error")
	}
	if l.Held() {
		t.Error("Lease must stay empty on map failure")
	}
	if s.unrefs != 1 {
		t.Errorf("Expected unmappable sample unreferenced once, got %d", s.unrefs)
	}
}
