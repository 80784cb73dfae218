package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// jpegQuality matches the preview encoding quality of the appliance.
const jpegQuality = 80

// Synthetic is a camera device producing a timestamped test pattern.
// It serves two purposes: the fallback backend when no physical camera is
// configured, and a deterministic frame source for tests.
type Synthetic struct {
	width    int
	height   int
	interval time.Duration

	mu      sync.Mutex
	frames  chan Frame
	cancel  context.CancelFunc
	stopped chan struct{}
	seq     uint64
}

// NewSynthetic creates a test-pattern camera emitting frames at the given rate.
func NewSynthetic(width, height int, fps float64) *Synthetic {
	if fps <= 0 {
		fps = 1
	}

	return &Synthetic{
		width:    width,
		height:   height,
		interval: time.Duration(float64(time.Second) / fps),
	}
}

// Start launches the frame generator goroutine.
func (s *Synthetic) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.frames = make(chan Frame, 1)
	s.stopped = make(chan struct{})

	go s.run(runCtx)

	return nil
}

// run generates frames until the device is stopped.
func (s *Synthetic) run(ctx context.Context) {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.seq++
			frame := Frame{
				Seq:       s.seq,
				Timestamp: now,
				Width:     s.width,
				Height:    s.height,
				Data:      renderTestPattern(s.width, s.height, s.seq, now),
				TraceID:   uuid.NewString(),
			}

			// Latest frame wins: replace a stale buffered frame.
			select {
			case s.frames <- frame:
			default:
				select {
				case <-s.frames:
				default:
				}
				s.frames <- frame
			}
		}
	}
}

// ReadFrame returns the next generated frame.
func (s *Synthetic) ReadFrame(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	frames := s.frames
	stopped := s.stopped
	s.mu.Unlock()

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

// Stop halts frame generation. Idempotent.
func (s *Synthetic) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.stopped
		s.cancel = nil
		s.frames = nil
	}

	return nil
}

// renderTestPattern draws color bars with a moving block and a timestamp,
// encoded as JPEG.
func renderTestPattern(width, height int, seq uint64, now time.Time) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	bars := []color.RGBA{
		{R: 192, G: 192, B: 192, A: 255},
		{R: 192, G: 192, B: 0, A: 255},
		{R: 0, G: 192, B: 192, A: 255},
		{R: 0, G: 192, B: 0, A: 255},
		{R: 192, G: 0, B: 192, A: 255},
		{R: 192, G: 0, B: 0, A: 255},
		{R: 0, G: 0, B: 192, A: 255},
	}

	barWidth := width / len(bars)
	for i, c := range bars {
		rect := image.Rect(i*barWidth, 0, (i+1)*barWidth, height)
		draw.Draw(img, rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
	}

	// Moving block so consecutive frames differ visibly.
	blockSize := height / 8
	x := int(seq*8) % (width - blockSize)
	block := image.Rect(x, height/2-blockSize/2, x+blockSize, height/2+blockSize/2)
	draw.Draw(img, block, &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	drawLabel(img, 10, height-10, now.Format("2006-01-02 15:04:05"))

	return encodeJPEG(img)
}

// renderOffline draws the placeholder shown when the camera is unavailable.
func renderOffline(width, height int, now time.Time) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 24, G: 24, B: 24, A: 255}}, image.Point{}, draw.Src)

	drawLabel(img, width/2-60, height/2, "CAMERA OFFLINE")
	drawLabel(img, 10, height-10, now.Format("2006-01-02 15:04:05"))

	return encodeJPEG(img)
}

// OfflineFrame builds the placeholder frame served while the camera
// cannot be read.
func OfflineFrame(width, height int, now time.Time) Frame {
	return Frame{
		Timestamp: now,
		Width:     width,
		Height:    height,
		Data:      renderOffline(width, height, now),
		TraceID:   uuid.NewString(),
	}
}

// drawLabel renders text at the given baseline position.
func drawLabel(img *image.RGBA, x, y int, label string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

// encodeJPEG encodes the image at the appliance preview quality.
func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		// Encoding an in-memory RGBA image cannot fail with valid bounds.
		panic(fmt.Sprintf("encode test pattern: %v", err))
	}

	return buf.Bytes()
}
