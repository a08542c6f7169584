// Package source decodes event streams into packets for the detector.
//
// A Source yields packets in stream order and returns io.EOF when exhausted.
// Events inside stream 0 must have non-decreasing timestamps; readers check
// this so the detector never sees a reordered stream.
package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/efast/internal/domain/model"
)

// Supported container formats.
const (
	FormatCBOR = "cbor"
	FormatText = "text"
)

// Source produces packets of events.
type Source interface {
	// Next returns the next packet or io.EOF at the end of the stream.
	Next(ctx context.Context) (model.Packet, error)

	// Close releases the underlying reader.
	Close() error
}

// Open opens path and returns a reader for the given format.
func Open(path, format string, opts ...Option) (Source, error) {
	if format != FormatCBOR && format != FormatText {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if format == FormatText {
		return NewTextReader(f, opts...), nil
	}
	return NewCBORReader(f, opts...), nil
}

// orderGuard tracks the last timestamp of the event stream.
type orderGuard struct {
	strict  bool
	started bool
	last    int64
}

func (g *orderGuard) check(e model.Event) error {
	if g.started && e.T < g.last {
		if g.strict {
			return fmt.Errorf("%w: t=%d after t=%d at (%d,%d)", ErrOutOfOrder, e.T, g.last, e.X, e.Y)
		}
		return nil
	}
	g.started = true
	g.last = e.T
	return nil
}

func closeIfCloser(r io.Reader) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
