// Package render turns the event stream into periodic RGBA frames.
//
// Events paint the frame as they arrive: on events set the red channel, off
// events the green channel. When an event arrives more than one frame
// interval after the frame started, the active features are marked with a
// white cross and the frame is handed to the configured handlers.
package render

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/logger"
	"github.com/okian/efast/pkg/metrics"
)

const (
	defaultFrameInterval = 1_000_000 / 60 // microseconds, 60 fps
	defaultMarkRadius    = 2
)

// Frame is one completed image.
type Frame struct {
	Seq   uint64
	Start int64 // event time the frame started at
	End   int64 // event time that closed the frame
	Image *image.RGBA
}

// FrameHandler receives completed frames. The image must not be modified.
type FrameHandler interface {
	HandleFrame(ctx context.Context, f Frame) error
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, f Frame) error

// HandleFrame calls fn.
func (fn FrameHandlerFunc) HandleFrame(ctx context.Context, f Frame) error {
	return fn(ctx, f)
}

// Snapshotter exposes the currently active feature pixels.
type Snapshotter interface {
	Snapshot(ctx context.Context) []model.Point
}

// Accumulator builds frames from packet results.
type Accumulator struct {
	width, height int
	interval      int64
	markRadius    int
	active        Snapshotter
	handlers      []FrameHandler

	mu      sync.Mutex
	img     *image.RGBA
	started bool
	start   int64
	seq     uint64
	marks   []model.Point // packet features, used when active is nil

	logger logger.Logger
}

// NewAccumulator creates an accumulator for a width x height sensor.
func NewAccumulator(width, height int, opts ...Option) *Accumulator {
	a := &Accumulator{
		width:      width,
		height:     height,
		interval:   defaultFrameInterval,
		markRadius: defaultMarkRadius,
		logger:     logger.Get().Named("render"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.img = a.newFrame()
	return a
}

// newFrame returns an opaque black image.
func (a *Accumulator) newFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, a.width, a.height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// HandlePacket paints the packet's events, emitting frames as intervals close.
func (a *Accumulator) HandlePacket(ctx context.Context, r model.PacketResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for i, e := range r.Events {
		switch {
		case !a.started:
			a.started = true
			a.start = e.T
		case e.T > a.start+a.interval:
			if err := a.emit(ctx, e.T); err != nil && firstErr == nil {
				firstErr = err
			}
			a.start = e.T
		}
		a.paint(e)
		if a.active == nil && i < len(r.Verdicts) && r.Verdicts[i] {
			a.marks = append(a.marks, model.Point{X: e.X, Y: e.Y})
		}
	}
	return firstErr
}

// Flush emits the partially filled frame, if any events were painted.
func (a *Accumulator) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	err := a.emit(ctx, a.start+a.interval)
	a.started = false
	return err
}

func (a *Accumulator) paint(e model.Event) {
	x, y := int(e.X), int(e.Y)
	if x >= a.width || y >= a.height {
		return
	}
	off := a.img.PixOffset(x, y)
	if e.On {
		a.img.Pix[off] = 0xff
	} else {
		a.img.Pix[off+1] = 0xff
	}
}

// emit marks features, hands the frame out and starts a fresh image.
func (a *Accumulator) emit(ctx context.Context, end int64) error {
	marks := a.marks
	if a.active != nil {
		marks = a.active.Snapshot(ctx)
	}
	for _, p := range marks {
		a.markCross(int(p.X), int(p.Y))
	}

	f := Frame{Seq: a.seq, Start: a.start, End: end, Image: a.img}
	a.seq++
	a.img = a.newFrame()
	a.marks = a.marks[:0]
	metrics.RecordFrameRendered()

	var firstErr error
	for _, h := range a.handlers {
		if err := h.HandleFrame(ctx, f); err != nil {
			metrics.RecordErrorByComponent("render", "handler_error")
			a.logger.Error(ctx, "frame handler failed",
				logger.Uint64("frame", f.Seq),
				logger.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// markCross draws a white plus centred on (x, y), clipped to the frame.
func (a *Accumulator) markCross(x, y int) {
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	bounds := a.img.Bounds()
	for i := -a.markRadius; i <= a.markRadius; i++ {
		if p := image.Pt(x+i, y); p.In(bounds) {
			a.img.SetRGBA(p.X, p.Y, white)
		}
		if p := image.Pt(x, y+i); p.In(bounds) {
			a.img.SetRGBA(p.X, p.Y, white)
		}
	}
}
