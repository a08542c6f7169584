package repository_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/efast/internal/adapters/repository"
	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/logger"
)

func init() {
	_ = logger.InitWithWriter(io.Discard)
}

func openTestStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "features.db")
	s, err := repository.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_RecordAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx, repository.RunInfo{Width: 346, Height: 260, Channels: 1, Input: "demo.cbor"})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, s.RecordPacket(ctx, runID, model.PacketResult{
		Seq:      0,
		Events:   make([]model.Event, 5),
		Features: []model.Feature{{X: 10, Y: 20, T: 100, On: true}, {X: 11, Y: 21, T: 101}},
		Rejected: 1,
		Duration: 1500 * time.Nanosecond,
	}))
	require.NoError(t, s.RecordPacket(ctx, runID, model.PacketResult{
		Seq:      1,
		Events:   make([]model.Event, 2),
		Features: []model.Feature{{X: 30, Y: 40, T: 200, On: true}},
	}))
	require.NoError(t, s.RecordPacket(ctx, runID, model.PacketResult{Seq: 2}))

	got, err := s.Features(ctx, runID, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, repository.StoredFeature{PacketSeq: 0, Feature: model.Feature{X: 10, Y: 20, T: 100, On: true}}, got[0])
	assert.Equal(t, repository.StoredFeature{PacketSeq: 0, Feature: model.Feature{X: 11, Y: 21, T: 101}}, got[1])
	assert.Equal(t, repository.StoredFeature{PacketSeq: 1, Feature: model.Feature{X: 30, Y: 40, T: 200, On: true}}, got[2])

	limited, err := s.Features(ctx, runID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_Runs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := time.Unix(1_700_000_000, 0)
	first, err := s.BeginRun(ctx, repository.RunInfo{ID: "run-a", Width: 4, Height: 3, Channels: 1, Input: "a", StartedAt: older})
	require.NoError(t, err)
	assert.Equal(t, "run-a", first)

	second, err := s.BeginRun(ctx, repository.RunInfo{Width: 4, Height: 3, Channels: 1, Input: "b", StartedAt: older.Add(time.Hour)})
	require.NoError(t, err)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)
	assert.True(t, runs[1].StartedAt.Equal(older))

	_, err = s.BeginRun(ctx, repository.RunInfo{ID: "run-a"})
	assert.Error(t, err)
}

func TestSQLiteStore_Errors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.RecordPacket(ctx, "missing", model.PacketResult{})
	assert.ErrorIs(t, err, repository.ErrUnknownRun)

	_, err = s.Features(ctx, "missing", 0)
	assert.ErrorIs(t, err, repository.ErrInvalidLimit)

	features, err := s.Features(ctx, "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, features)

	runID, err := s.BeginRun(ctx, repository.RunInfo{Width: 1, Height: 1, Channels: 1})
	require.NoError(t, err)
	require.NoError(t, s.RecordPacket(ctx, runID, model.PacketResult{Seq: 4}))
	assert.Error(t, s.RecordPacket(ctx, runID, model.PacketResult{Seq: 4}), "duplicate packet sequence")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.BeginRun(ctx, repository.RunInfo{})
	assert.ErrorIs(t, err, repository.ErrClosed)
	assert.ErrorIs(t, s.RecordPacket(ctx, runID, model.PacketResult{}), repository.ErrClosed)
	_, err = s.Features(ctx, runID, 1)
	assert.ErrorIs(t, err, repository.ErrClosed)
	_, err = s.Runs(ctx)
	assert.ErrorIs(t, err, repository.ErrClosed)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.db")
	ctx := context.Background()

	s, err := repository.OpenSQLite(ctx, path)
	require.NoError(t, err)
	runID, err := s.BeginRun(ctx, repository.RunInfo{Width: 2, Height: 2, Channels: 1})
	require.NoError(t, err)
	require.NoError(t, s.RecordPacket(ctx, runID, model.PacketResult{Features: []model.Feature{{X: 1, Y: 1, T: 9}}}))
	require.NoError(t, s.Close())

	s, err = repository.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Features(ctx, runID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].T)
}
