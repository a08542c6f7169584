package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/logger"
)

// packetRecord is the on-disk shape of one packet: a CBOR map with the stream
// id and an array of [x, y, t, on] tuples.
type packetRecord struct {
	StreamID uint32        `cbor:"s"`
	Events   []eventRecord `cbor:"e"`
}

type eventRecord struct {
	_  struct{} `cbor:",toarray"`
	X  uint16
	Y  uint16
	T  int64
	On bool
}

// CBORReader decodes a sequence of CBOR packet records.
type CBORReader struct {
	r     io.Reader
	dec   *cbor.Decoder
	seq   uint64
	order orderGuard
	log   logger.Logger
}

// NewCBORReader creates a reader over r.
func NewCBORReader(r io.Reader, opts ...Option) *CBORReader {
	o := newOptions(opts)
	return &CBORReader{
		r:     r,
		dec:   cbor.NewDecoder(r),
		order: orderGuard{strict: o.strictOrder},
		log:   o.logger,
	}
}

// Next decodes the next packet record.
func (c *CBORReader) Next(ctx context.Context) (model.Packet, error) {
	if err := ctx.Err(); err != nil {
		return model.Packet{}, err
	}

	var rec packetRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Packet{}, io.EOF
		}
		return model.Packet{}, fmt.Errorf("%w: packet %d: %w", ErrMalformedRecord, c.seq, err)
	}

	p := model.Packet{
		Seq:      c.seq,
		StreamID: rec.StreamID,
		Events:   make([]model.Event, len(rec.Events)),
	}
	c.seq++

	for i, er := range rec.Events {
		e := model.Event{X: er.X, Y: er.Y, T: er.T, On: er.On}
		if rec.StreamID == 0 {
			if err := c.order.check(e); err != nil {
				return model.Packet{}, err
			}
		}
		p.Events[i] = e
	}

	c.log.Debug(ctx, "decoded packet",
		logger.Uint64("seq", p.Seq),
		logger.Int("events", len(p.Events)),
	)
	return p, nil
}

// Close closes the underlying reader if it is closable.
func (c *CBORReader) Close() error {
	return closeIfCloser(c.r)
}

// CBORWriter encodes packets in the format read by CBORReader.
type CBORWriter struct {
	w   io.Writer
	enc *cbor.Encoder
}

// NewCBORWriter creates a writer over w.
func NewCBORWriter(w io.Writer) *CBORWriter {
	return &CBORWriter{w: w, enc: cbor.NewEncoder(w)}
}

// WritePacket appends one packet record.
func (c *CBORWriter) WritePacket(streamID uint32, events []model.Event) error {
	rec := packetRecord{
		StreamID: streamID,
		Events:   make([]eventRecord, len(events)),
	}
	for i, e := range events {
		rec.Events[i] = eventRecord{X: e.X, Y: e.Y, T: e.T, On: e.On}
	}
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode packet: %w", err)
	}
	return nil
}

// Close closes the underlying writer if it is closable.
func (c *CBORWriter) Close() error {
	if cl, ok := c.w.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
