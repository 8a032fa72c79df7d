//go:build cgo && !nogst

package gstpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

var bootstrapOnce sync.Once

// Bootstrap initializes GStreamer once per process.
//
// Repeated calls are no-ops. This package never deinitializes GStreamer.
func Bootstrap() {
	bootstrapOnce.Do(func() {
		gst.Init(nil)
		slog.Debug("gstpipe: gstreamer initialized")
	})
}

// GstBackend constructs pipelines with gst_parse_launch via go-gst
type GstBackend struct{}

// Construct parses description and resolves the appsrc/appsink endpoints.
// On failure every created object is released before returning.
func (GstBackend) Construct(description string) (Pipeline, error) {
	Bootstrap()

	pipeline, err := gst.NewPipelineFromString(description)
	if err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}

	srcElem, err := pipeline.GetElementByName(SourceName)
	if err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("no element %q in pipeline: %w", SourceName, err)
	}

	sinkElem, err := pipeline.GetElementByName(SinkName)
	if err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("no element %q in pipeline: %w", SinkName, err)
	}

	return &gstPipeline{
		pipeline: pipeline,
		src:      app.SrcFromElement(srcElem),
		sink:     app.SinkFromElement(sinkElem),
	}, nil
}

// gstPipeline adapts a parsed go-gst pipeline to the Pipeline interface
type gstPipeline struct {
	pipeline *gst.Pipeline
	src      *app.Source
	sink     *app.Sink

	callbacks Callbacks

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

func (p *gstPipeline) SetCallbacks(cb Callbacks) {
	p.callbacks = cb

	p.src.SetCallbacks(&app.SourceCallbacks{
		NeedDataFunc: func(_ *app.Source, _ uint) {
			if cb.NeedData != nil {
				cb.NeedData()
			}
		},
	})

	p.sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(_ *app.Sink) gst.FlowReturn {
			if cb.NewSample != nil {
				cb.NewSample()
			}
			return gst.FlowOK
		},
	})
}

func (p *gstPipeline) SetState(target TargetState) error {
	switch target {
	case TargetPlaying:
		if err := p.pipeline.SetState(gst.StatePlaying); err != nil {
			return err
		}
		p.startMonitor()
		return nil

	case TargetNull:
		p.stopMonitor()
		return p.pipeline.SetState(gst.StateNull)

	default:
		return fmt.Errorf("gstpipe: invalid target state %d", target)
	}
}

// wrapCompressed wraps data in a read-only buffer; release runs when
// GStreamer frees it.
func wrapCompressed(data []byte, release func()) *gst.Buffer {
	return gst.NewBufferFull(gst.MemoryFlagReadOnly, data, int64(len(data)), 0, int64(len(data)), release)
}

func (p *gstPipeline) PushBuffer(data []byte, release func()) error {
	buf := wrapCompressed(data, release)
	if buf == nil {
		release()
		return errors.New("gstpipe: unable to wrap compressed frame")
	}

	if ret := p.src.PushBuffer(buf); ret != gst.FlowOK {
		return fmt.Errorf("gstpipe: unable to push frame of size %d: %v", len(data), ret)
	}
	return nil
}

func (p *gstPipeline) PullSample() (Sample, error) {
	sample := p.sink.PullSample()
	if sample == nil {
		return nil, errors.New("gstpipe: could not pull sample")
	}
	return &gstSample{sample: sample}, nil
}

func (p *gstPipeline) Close() {
	p.stopMonitor()
	p.src = nil
	p.sink = nil
	p.pipeline = nil
}

func (p *gstPipeline) startMonitor() {
	if p.monitorCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.monitorCancel = cancel
	p.monitorDone = make(chan struct{})

	go func() {
		defer close(p.monitorDone)
		MonitorBus(ctx, p.pipeline, p.callbacks.Error)
	}()
}

func (p *gstPipeline) stopMonitor() {
	if p.monitorCancel == nil {
		return
	}
	p.monitorCancel()
	<-p.monitorDone
	p.monitorCancel = nil
}

// gstSample wraps a pulled go-gst sample
type gstSample struct {
	sample *gst.Sample
	buffer *gst.Buffer
	mapped bool
}

func (s *gstSample) Map() ([]byte, error) {
	if s.sample == nil {
		return nil, errors.New("gstpipe: sample already released")
	}

	buffer := s.sample.GetBuffer()
	if buffer == nil {
		return nil, errors.New("gstpipe: sample has no buffer")
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, errors.New("gstpipe: unable to map buffer")
	}

	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return nil, errors.New("gstpipe: empty buffer")
	}

	s.buffer = buffer
	s.mapped = true
	return data, nil
}

func (s *gstSample) Unmap() {
	if !s.mapped {
		return
	}
	s.buffer.Unmap()
	s.mapped = false
}

// Unref drops our references; the binding's finalizers return the
// sample and buffer to GStreamer.
func (s *gstSample) Unref() {
	s.buffer = nil
	s.sample = nil
}

func (s *gstSample) Info() SampleInfo {
	if s.sample == nil {
		return SampleInfo{}
	}

	caps := s.sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return SampleInfo{}
	}

	st := caps.GetStructureAt(0)
	if st == nil {
		return SampleInfo{}
	}

	var info SampleInfo
	if v, err := st.GetValue("width"); err == nil {
		info.Width, _ = v.(int)
	}
	if v, err := st.GetValue("height"); err == nil {
		info.Height, _ = v.(int)
	}
	if v, err := st.GetValue("format"); err == nil {
		info.Format, _ = v.(string)
	}
	return info
}
