package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/efast/internal/adapters/source"
	"github.com/okian/efast/internal/synth"
	"github.com/okian/efast/pkg/logger"
)

const usage = `gen-events writes a synthetic event recording: a square sliding across
a dark sensor, with optional uniform noise.

Usage:
  go run ./cmd/gen-events [options]

Examples:
  # Default scene as CBOR
  go run ./cmd/gen-events -output scene.cbor

  # Small noisy scene as text
  go run ./cmd/gen-events -format text -width 64 -height 48 -square 12 -noise 20 -output scene.txt

Options:
`

// packetWriter is implemented by the source package writers.
type packetWriter interface {
	synth.PacketWriter
	io.Closer
}

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		os.Stderr.WriteString("gen-events: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	def := synth.DefaultConfig()
	cfg := def

	fs := flag.NewFlagSet("gen-events", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	output := fs.String("output", "", "output file (default stdout)")
	format := fs.String("format", source.FormatCBOR, "output format: cbor or text")
	fs.IntVar(&cfg.Width, "width", def.Width, "sensor width in pixels")
	fs.IntVar(&cfg.Height, "height", def.Height, "sensor height in pixels")
	fs.IntVar(&cfg.Steps, "steps", def.Steps, "number of one-pixel moves")
	fs.Int64Var(&cfg.StepInterval, "step-us", def.StepInterval, "microseconds between moves")
	fs.IntVar(&cfg.SquareSize, "square", def.SquareSize, "side of the square in pixels")
	fs.Float64Var(&cfg.Noise, "noise", def.Noise, "noise events per step")
	fs.IntVar(&cfg.PacketSize, "packet", def.PacketSize, "events per packet")
	fs.Uint64Var(&cfg.Seed, "seed", def.Seed, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, err := synth.New(cfg)
	if err != nil {
		return err
	}

	var dst io.Writer = nopCloser{stdout}
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		dst = f
	}

	var w packetWriter
	switch *format {
	case source.FormatCBOR:
		w = source.NewCBORWriter(dst)
	case source.FormatText:
		w = source.NewTextWriter(dst)
	default:
		if c, ok := dst.(io.Closer); ok {
			_ = c.Close()
		}
		return fmt.Errorf("%w: %q", source.ErrUnsupportedFormat, *format)
	}

	n, err := g.Write(ctx, w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if *output != "" {
		logger.Get().Info(ctx, "recording written",
			logger.String("output", *output),
			logger.String("format", *format),
			logger.Int("events", n),
		)
	}
	return nil
}

// nopCloser keeps the writers from closing stdout.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
