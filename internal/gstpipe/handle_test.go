package gstpipe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/completion"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/gstpipe"
	"github.com/e7canasta/orion-care-sensor/modules/stream-decode/internal/gstpipe/gstpipetest"
)

func TestBuild_Running(t *testing.T) {
	b := &gstpipetest.Backend{Reaction: gstpipetest.ReactOutput}
	h, err := gstpipe.Build(b, gstpipe.BuildConfig{Codec: gstpipe.CodecVP8})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer h.Teardown()

	p := b.Last()
	if h.State() != gstpipe.StateRunning || !p.Playing() || !p.Registered() {
		t.Fatalf("Expected running pipeline with callbacks, state=%s", h.State())
	}
	if h.Description() != b.Descriptions()[0] {
		t.Errorf("Handle description differs from constructed one")
	}

	released := 0
	if err := h.Inject([]byte{1, 2, 3}, func() { released++ }); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	ok, err := h.Signal().Wait(context.Background())
	if !ok || err != nil {
		t.Fatalf("Expected output signalled, got ok=%v err=%v", ok, err)
	}
	sample, err := h.Pull()
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	sample.Unref()

	p.Wait()
	if released != 1 {
		t.Errorf("Expected release once, got %d", released)
	}

	t.Logf("✅ %s", h.Description())
}

func TestBuild_ConstructionFailure(t *testing.T) {
	b := &gstpipetest.Backend{FailConstruct: true}
	h, err := gstpipe.Build(b, gstpipe.BuildConfig{Codec: gstpipe.CodecH264})

	var cerr *gstpipe.ConstructionError
	if h != nil || !errors.As(err, &cerr) {
		t.Fatalf("Expected ConstructionError, got handle=%v err=%v", h, err)
	}
	if cerr.Category != gstpipe.ErrCategoryTopology || cerr.Description == "" {
		t.Errorf("Unexpected construction error: %+v", cerr)
	}
	if !errors.Is(err, gstpipetest.ErrConstruct) {
		t.Errorf("Expected cause preserved, got %v", err)
	}
	if b.Last() != nil {
		t.Error("No pipeline should exist to register callbacks on")
	}
}

func TestBuild_PlayingFailureUnwinds(t *testing.T) {
	b := &gstpipetest.Backend{FailPlaying: true}
	h, err := gstpipe.Build(b, gstpipe.BuildConfig{Codec: gstpipe.CodecMJPEG})

	var cerr *gstpipe.ConstructionError
	if h != nil || !errors.As(err, &cerr) || cerr.Category != gstpipe.ErrCategoryState {
		t.Fatalf("Expected state ConstructionError, got %v", err)
	}

	p := b.Last()
	if !p.Closed() || p.Playing() {
		t.Error("Expected pipeline driven to NULL and released")
	}
}

func TestHandle_Teardown_Idempotent(t *testing.T) {
	b := &gstpipetest.Backend{Reaction: gstpipetest.ReactNothing}
	h, err := gstpipe.Build(b, gstpipe.BuildConfig{Codec: gstpipe.CodecH264})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	h.Teardown()
	h.Teardown()

	var nilHandle *gstpipe.Handle
	nilHandle.Teardown()

	if h.State() != gstpipe.StateTornDown {
		t.Errorf("Expected torn-down, got %s", h.State())
	}
	if states := b.Last().States(); len(states) != 2 {
		t.Errorf("Expected exactly PLAYING and NULL, got %v", states)
	}

	released := false
	if err := h.Inject([]byte{1}, func() { released = true }); !errors.Is(err, gstpipe.ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
	if !released {
		t.Error("Refused injection must still release the buffer")
	}
	if _, err := h.Pull(); !errors.Is(err, gstpipe.ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning from Pull, got %v", err)
	}
	if _, err := h.Signal().Wait(context.Background()); err == nil {
		t.Error("Expected closed signal after teardown")
	}

	t.Log("✅ Teardown idempotent, endpoints refused afterwards")
}

func TestHandle_ErrorCallback(t *testing.T) {
	b := &gstpipetest.Backend{Reaction: gstpipetest.ReactNothing}

	var got gstpipe.ErrorCategory = -1
	h, err := gstpipe.Build(b, gstpipe.BuildConfig{
		Codec:   gstpipe.CodecH264,
		OnError: func(c gstpipe.ErrorCategory, err error) { got = c },
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer h.Teardown()

	b.Last().FireError(gstpipe.ErrCategoryResource, errors.New("out of memory"))

	if got != gstpipe.ErrCategoryResource {
		t.Errorf("Expected resource category forwarded, got %s", got)
	}
	ok, err := h.Signal().Wait(context.Background())
	if ok || !errors.Is(err, completion.ErrFailed) {
		t.Errorf("Expected error to end the wait as failed, got ok=%v err=%v", ok, err)
	}
	if h.Err() == nil || h.Err().Error() != "out of memory" {
		t.Errorf("Expected handle to keep the error, got %v", h.Err())
	}

	// The next round still sees the failure
	h.Signal().Arm()
	if _, err := h.Signal().Wait(context.Background()); !errors.Is(err, completion.ErrFailed) {
		t.Errorf("Expected failure to persist across rounds, got %v", err)
	}
}
