package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// GStreamerConfig configures the V4L2 capture backend.
type GStreamerConfig struct {
	// DevicePath is the video device, e.g. "/dev/video0".
	DevicePath string
	// Width of captured frames in pixels.
	Width int
	// Height of captured frames in pixels.
	Height int
	// FPS is the capture frame rate.
	FPS float64
}

// GStreamer captures JPEG frames from a V4L2 device through a GStreamer
// pipeline:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter → jpegenc → appsink
//
// Frames are delivered latest-first: the appsink keeps a single buffer and
// drops older frames, and the internal channel replaces a stale frame
// rather than queueing.
type GStreamer struct {
	cfg GStreamerConfig

	mu       sync.Mutex
	pipeline *gst.Pipeline
	frames   chan Frame
	stopped  chan struct{}

	frameCount atomic.Uint64
	dropped    atomic.Uint64
}

// NewGStreamer validates the configuration and prepares the backend.
// The pipeline is not created until Start.
func NewGStreamer(cfg GStreamerConfig) (*GStreamer, error) {
	if cfg.DevicePath == "" {
		return nil, fmt.Errorf("camera: device path is required")
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("camera: invalid resolution %dx%d", cfg.Width, cfg.Height)
	}

	if cfg.FPS < 0.1 || cfg.FPS > 60 {
		return nil, fmt.Errorf("camera: invalid FPS %.2f (must be 0.1-60)", cfg.FPS)
	}

	return &GStreamer{cfg: cfg}, nil
}

// Start builds the pipeline and moves it to PLAYING.
func (g *GStreamer) Start(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pipeline != nil {
		return nil
	}

	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	source, err := gst.NewElement("v4l2src")
	if err != nil {
		return fmt.Errorf("create v4l2src: %w", err)
	}
	source.SetProperty("device", g.cfg.DevicePath)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("create videoconvert: %w", err)
	}

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return fmt.Errorf("create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return fmt.Errorf("create videorate: %w", err)
	}
	// Only drop frames, never duplicate: recordings must not contain
	// synthesized frames.
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("create capsfilter: %w", err)
	}

	fpsNum, fpsDen := framerateFraction(g.cfg.FPS)
	capsStr := fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/%d",
		g.cfg.Width, g.cfg.Height, fpsNum, fpsDen)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	encoder, err := gst.NewElement("jpegenc")
	if err != nil {
		return fmt.Errorf("create jpegenc: %w", err)
	}
	encoder.SetProperty("quality", jpegQuality)

	appsink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 1)
	appsink.SetProperty("drop", true)

	pipeline.AddMany(source, converter, scaler, videorate, capsfilter, encoder, appsink.Element)

	if err = gst.ElementLinkMany(source, converter, scaler, videorate, capsfilter, encoder, appsink.Element); err != nil {
		return fmt.Errorf("link pipeline elements: %w", err)
	}

	g.frames = make(chan Frame, 1)
	g.stopped = make(chan struct{})

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: g.onNewSample,
	})

	if err = pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	g.pipeline = pipeline

	return nil
}

// onNewSample copies the JPEG buffer out of GStreamer and publishes it with
// a latest-frame-wins policy.
func (g *GStreamer) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		// A single bad sample must not kill the pipeline.
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()

		return gst.FlowOK
	}

	// GStreamer reuses the buffer after the callback returns.
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	frame := Frame{
		Seq:       g.frameCount.Add(1),
		Timestamp: time.Now(),
		Width:     g.cfg.Width,
		Height:    g.cfg.Height,
		Data:      frameData,
		TraceID:   uuid.NewString(),
	}

	select {
	case g.frames <- frame:
	default:
		g.dropped.Add(1)
		select {
		case <-g.frames:
		default:
		}
		select {
		case g.frames <- frame:
		default:
		}
	}

	return gst.FlowOK
}

// ReadFrame returns the next captured frame.
func (g *GStreamer) ReadFrame(ctx context.Context) (Frame, error) {
	g.mu.Lock()
	frames := g.frames
	stopped := g.stopped
	g.mu.Unlock()

	if frames == nil {
		return Frame{}, ErrDeviceStopped
	}

	select {
	case frame := <-frames:
		return frame, nil
	case <-stopped:
		return Frame{}, ErrDeviceStopped
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Stop tears the pipeline down. Idempotent.
func (g *GStreamer) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pipeline == nil {
		return nil
	}

	close(g.stopped)

	if err := g.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("stop pipeline: %w", err)
	}

	g.pipeline = nil
	g.frames = nil

	return nil
}

// Dropped reports how many frames were discarded because the consumer lagged.
func (g *GStreamer) Dropped() uint64 {
	return g.dropped.Load()
}

// framerateFraction converts an FPS value to a GStreamer framerate fraction.
// Sub-1 rates use a denominator, e.g. 0.5 → 1/2.
func framerateFraction(fps float64) (num, den int) {
	if fps >= 1 {
		return int(fps + 0.5), 1
	}

	return 1, int(1/fps + 0.5)
}
