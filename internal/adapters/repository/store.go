// Package repository persists detected features.
package repository

import (
	"context"
	"time"

	"github.com/okian/efast/internal/domain/model"
)

// RunInfo describes one pass of the detector over an input.
type RunInfo struct {
	ID        string    `json:"id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Channels  int       `json:"channels"`
	Input     string    `json:"input"`
	StartedAt time.Time `json:"started_at"`
}

// StoredFeature is a feature together with the packet it was detected in.
type StoredFeature struct {
	PacketSeq uint64 `json:"packet_seq"`
	model.Feature
}

// Store records the features found during a run.
type Store interface {
	// BeginRun registers a run and returns its id.
	BeginRun(ctx context.Context, info RunInfo) (string, error)

	// RecordPacket stores the features and timing of one packet.
	RecordPacket(ctx context.Context, runID string, r model.PacketResult) error

	// Features returns up to limit features of a run in detection order.
	Features(ctx context.Context, runID string, limit int) ([]StoredFeature, error)

	// Runs lists the recorded runs, newest first.
	Runs(ctx context.Context) ([]RunInfo, error)

	Close() error
}
