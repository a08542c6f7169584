package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DirWriter writes each frame to dir as frame_<seq>.png.
type DirWriter struct {
	dir string
}

// NewDirWriter creates dir if needed.
func NewDirWriter(dir string) (*DirWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	return &DirWriter{dir: dir}, nil
}

// HandleFrame writes f to disk.
func (d *DirWriter) HandleFrame(_ context.Context, f Frame) error {
	data, err := EncodePNG(f.Image)
	if err != nil {
		return err
	}
	path := filepath.Join(d.dir, fmt.Sprintf("frame_%06d.png", f.Seq))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
