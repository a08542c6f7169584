package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/logger"
)

// TextReader reads one event per line as "t x y p" with p in {0, 1}.
// Blank lines and lines starting with '#' are ignored. Events are grouped
// into packets of a fixed size; all text events belong to stream 0.
type TextReader struct {
	r          io.Reader
	sc         *bufio.Scanner
	line       int
	seq        uint64
	packetSize int
	order      orderGuard
	log        logger.Logger
}

// NewTextReader creates a reader over r.
func NewTextReader(r io.Reader, opts ...Option) *TextReader {
	o := newOptions(opts)
	return &TextReader{
		r:          r,
		sc:         bufio.NewScanner(r),
		packetSize: o.packetSize,
		order:      orderGuard{strict: o.strictOrder},
		log:        o.logger,
	}
}

// Next returns up to packetSize events.
func (t *TextReader) Next(ctx context.Context) (model.Packet, error) {
	if err := ctx.Err(); err != nil {
		return model.Packet{}, err
	}

	events := make([]model.Event, 0, t.packetSize)
	for len(events) < t.packetSize && t.sc.Scan() {
		t.line++
		line := strings.TrimSpace(t.sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseTextEvent(line)
		if err != nil {
			return model.Packet{}, fmt.Errorf("%w: line %d: %w", ErrMalformedRecord, t.line, err)
		}
		if err := t.order.check(e); err != nil {
			return model.Packet{}, fmt.Errorf("line %d: %w", t.line, err)
		}
		events = append(events, e)
	}
	if err := t.sc.Err(); err != nil {
		return model.Packet{}, fmt.Errorf("read line %d: %w", t.line, err)
	}
	if len(events) == 0 {
		return model.Packet{}, io.EOF
	}

	p := model.Packet{Seq: t.seq, Events: events}
	t.seq++
	return p, nil
}

// Close closes the underlying reader if it is closable.
func (t *TextReader) Close() error {
	return closeIfCloser(t.r)
}

func parseTextEvent(line string) (model.Event, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		return model.Event{}, fmt.Errorf("want 4 fields, got %d", len(fields))
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return model.Event{}, fmt.Errorf("timestamp: %w", err)
	}
	x, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return model.Event{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return model.Event{}, fmt.Errorf("y: %w", err)
	}
	var on bool
	switch fields[3] {
	case "1":
		on = true
	case "0":
	default:
		return model.Event{}, fmt.Errorf("polarity must be 0 or 1, got %q", fields[3])
	}
	return model.Event{X: uint16(x), Y: uint16(y), T: ts, On: on}, nil
}

// TextWriter writes events in the format read by TextReader.
type TextWriter struct {
	w  io.Writer
	bw *bufio.Writer
}

// NewTextWriter creates a writer over w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w, bw: bufio.NewWriter(w)}
}

// WritePacket appends the packet's events, one per line.
func (t *TextWriter) WritePacket(_ uint32, events []model.Event) error {
	for _, e := range events {
		p := 0
		if e.On {
			p = 1
		}
		if _, err := fmt.Fprintf(t.bw, "%d %d %d %d\n", e.T, e.X, e.Y, p); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the underlying writer if it is closable.
func (t *TextWriter) Close() error {
	if err := t.bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if cl, ok := t.w.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
