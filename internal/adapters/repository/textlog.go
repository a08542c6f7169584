package repository

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/metrics"
)

// Snapshotter exposes the currently active feature pixels.
type Snapshotter interface {
	Snapshot(ctx context.Context) []model.Point
}

// TextLog writes a plain text feature log.
//
// The first line is "WIDTHxHEIGHTxCHANNELS". Each packet then contributes one
// "x y" line per active feature followed by "DVS FAST: <nanoseconds>" with the
// packet's detection time. Without a Snapshotter only the packet's own
// features are listed.
type TextLog struct {
	w      io.Writer
	bw     *bufio.Writer
	active Snapshotter

	mu     sync.Mutex
	closed bool
}

// NewTextLog writes the header to w and returns the log.
func NewTextLog(w io.Writer, width, height, channels int, active Snapshotter) (*TextLog, error) {
	l := &TextLog{w: w, bw: bufio.NewWriter(w), active: active}
	if _, err := fmt.Fprintf(l.bw, "%dx%dx%d\n", width, height, channels); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return l, nil
}

// HandlePacket appends the block for one packet.
func (l *TextLog) HandlePacket(ctx context.Context, r model.PacketResult) error {
	start := time.Now()
	defer func() {
		metrics.RecordFeatureLogWrite(metrics.Milliseconds(time.Since(start)))
	}()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	if l.active != nil {
		for _, p := range l.active.Snapshot(ctx) {
			if _, err := fmt.Fprintf(l.bw, "%d %d\n", p.X, p.Y); err != nil {
				return fmt.Errorf("write feature: %w", err)
			}
		}
	} else {
		for _, f := range r.Features {
			if _, err := fmt.Fprintf(l.bw, "%d %d\n", f.X, f.Y); err != nil {
				return fmt.Errorf("write feature: %w", err)
			}
		}
	}

	if _, err := fmt.Fprintf(l.bw, "DVS FAST: %d\n", r.Duration.Nanoseconds()); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return nil
}

// Close flushes the log and closes the writer if it is closable.
func (l *TextLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	if err := l.bw.Flush(); err != nil {
		return fmt.Errorf("flush feature log: %w", err)
	}
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
