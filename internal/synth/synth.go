// Package synth generates deterministic event streams for demos and tests.
//
// The scene is a bright square sliding diagonally across a dark sensor. Each
// one-pixel step fires on events along the leading edges and off events along
// the trailing edges, so the square's corners are the only places where a
// short arc of recent events meets older ones. Uniform noise can be mixed in.
package synth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/okian/efast/internal/domain/model"
)

// Default generator configuration.
const (
	DefaultWidth        = 346
	DefaultHeight       = 260
	DefaultSteps        = 600
	DefaultStepInterval = 1000 // microseconds
	DefaultSquareSize   = 40
	DefaultPacketSize   = 1024
)

// Config describes the generated scene.
type Config struct {
	Width        int
	Height       int
	Steps        int     // number of one-pixel moves
	StepInterval int64   // microseconds between moves
	SquareSize   int     // side of the square in pixels
	Noise        float64 // noise events per step
	PacketSize   int     // events per packet
	Seed         uint64
}

// DefaultConfig returns a scene sized for the default sensor.
func DefaultConfig() Config {
	return Config{
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		Steps:        DefaultSteps,
		StepInterval: DefaultStepInterval,
		SquareSize:   DefaultSquareSize,
		Noise:        5,
		PacketSize:   DefaultPacketSize,
		Seed:         1,
	}
}

// Validate reports whether the configuration describes a drawable scene.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("sensor must be positive, got %dx%d", c.Width, c.Height)
	case c.SquareSize < 2 || c.SquareSize+2 > c.Width || c.SquareSize+2 > c.Height:
		return fmt.Errorf("square of side %d does not fit a %dx%d sensor", c.SquareSize, c.Width, c.Height)
	case c.Steps < 0:
		return fmt.Errorf("steps must not be negative, got %d", c.Steps)
	case c.StepInterval <= 0:
		return fmt.Errorf("step interval must be positive, got %d", c.StepInterval)
	case c.Noise < 0:
		return fmt.Errorf("noise must not be negative, got %g", c.Noise)
	case c.PacketSize <= 0:
		return fmt.Errorf("packet size must be positive, got %d", c.PacketSize)
	}
	return nil
}

// PacketWriter receives generated packets.
type PacketWriter interface {
	WritePacket(streamID uint32, events []model.Event) error
}

// Generator produces the scene's events.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a generator. The same Config always yields the same stream,
// and repeated calls on one Generator return identical events.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg}, nil
}

// Events returns the full stream ordered by timestamp.
func (g *Generator) Events() []model.Event {
	g.rng = rand.New(rand.NewPCG(g.cfg.Seed, g.cfg.Seed^0x9e3779b97f4a7c15))

	var out []model.Event
	for k := 0; k < g.cfg.Steps; k++ {
		out = append(out, g.step(k)...)
	}
	return out
}

// Packets splits the stream into packets of cfg.PacketSize events.
func (g *Generator) Packets() []model.Packet {
	events := g.Events()
	var out []model.Packet
	for start := 0; start < len(events); start += g.cfg.PacketSize {
		end := min(start+g.cfg.PacketSize, len(events))
		out = append(out, model.Packet{Seq: uint64(len(out)), Events: events[start:end]})
	}
	return out
}

// Write writes every packet to w and returns the number of events written.
func (g *Generator) Write(ctx context.Context, w PacketWriter) (int, error) {
	n := 0
	for _, p := range g.Packets() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := w.WritePacket(p.StreamID, p.Events); err != nil {
			return n, fmt.Errorf("write packet %d: %w", p.Seq, err)
		}
		n += len(p.Events)
	}
	return n, nil
}

// origin returns the square's top-left corner before move k.
func (g *Generator) origin(k int) (int, int) {
	travel := min(g.cfg.Width, g.cfg.Height) - g.cfg.SquareSize - 1
	off := k % travel
	return off, off
}

// step returns the events of move k, ordered by timestamp.
func (g *Generator) step(k int) []model.Event {
	x, y := g.origin(k)
	if nx, _ := g.origin(k + 1); nx < x {
		// The square jumps back to the origin without firing.
		return g.noise(k, nil)
	}

	s := g.cfg.SquareSize
	var edge []model.Event
	// trailing edges darken
	for i := 0; i < s; i++ {
		edge = append(edge, model.Event{X: uint16(x), Y: uint16(y + i)})
	}
	for i := 1; i < s; i++ {
		edge = append(edge, model.Event{X: uint16(x + i), Y: uint16(y)})
	}
	// leading edges brighten
	for i := 1; i <= s; i++ {
		edge = append(edge, model.Event{X: uint16(x + s), Y: uint16(y + i), On: true})
	}
	for i := 1; i < s; i++ {
		edge = append(edge, model.Event{X: uint16(x + i), Y: uint16(y + s), On: true})
	}

	base := int64(k) * g.cfg.StepInterval
	spacing := max(g.cfg.StepInterval/int64(len(edge)+1), 1)
	for i := range edge {
		edge[i].T = base + int64(i)*spacing
	}
	return g.noise(k, edge)
}

// noise mixes random events into the step and sorts it by timestamp.
func (g *Generator) noise(k int, events []model.Event) []model.Event {
	n := int(g.cfg.Noise)
	if frac := g.cfg.Noise - float64(n); frac > 0 && g.rng.Float64() < frac {
		n++
	}
	base := int64(k) * g.cfg.StepInterval
	for i := 0; i < n; i++ {
		events = append(events, model.Event{
			X:  uint16(g.rng.IntN(g.cfg.Width)),
			Y:  uint16(g.rng.IntN(g.cfg.Height)),
			T:  base + g.rng.Int64N(g.cfg.StepInterval),
			On: g.rng.IntN(2) == 1,
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].T < events[j].T })
	return events
}
