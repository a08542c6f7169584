// Package service replays an event stream through the corner detector and
// hands the results to the configured outputs.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/okian/efast/internal/adapters/mq/queue"
	"github.com/okian/efast/internal/adapters/mq/worker"
	"github.com/okian/efast/internal/adapters/render"
	"github.com/okian/efast/internal/adapters/repository"
	"github.com/okian/efast/internal/adapters/source"
	"github.com/okian/efast/internal/domain/detector"
	"github.com/okian/efast/internal/domain/featureset"
	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/logger"
	"github.com/okian/efast/pkg/metrics"
)

// Default service configuration.
const (
	defaultWidth           = 346
	defaultHeight          = 260
	defaultMaxScale        = 1
	defaultQueueSize       = 1024
	defaultFeatureSetSize  = 0 // unbounded
	defaultTextPacketSize  = 1024
	defaultFrameInterval   = 1_000_000 / 60
	defaultMarkRadius      = 2
	defaultMetricsInterval = 10 * time.Second

	logChannels = 1
)

// ErrAlreadyRunning is returned when Run is called while a run is in progress.
var ErrAlreadyRunning = errors.New("service already running")

// Summary describes a completed run.
type Summary struct {
	RunID          string        `json:"run_id,omitempty"`
	Packets        uint64        `json:"packets"`
	SkippedPackets uint64        `json:"skipped_packets"`
	Events         uint64        `json:"events"`
	Rejected       uint64        `json:"rejected"`
	Features       uint64        `json:"features"`
	ActiveFeatures int64         `json:"active_features"`
	DetectionTime  time.Duration `json:"detection_time_ns"`
	WallTime       time.Duration `json:"wall_time_ns"`
}

// Service wires source -> queue -> worker -> sinks.
type Service struct {
	mu sync.RWMutex

	// Configuration
	width           int
	height          int
	maxScale        int
	input           string
	format          string
	textPacketSize  int
	queueSize       int
	featureSetSize  int
	frameInterval   int64
	markRadius      int
	metricsInterval time.Duration

	// Outputs
	src           source.Source
	store         repository.Store
	textLog       io.Writer
	frameHandlers []render.FrameHandler
	sinks         []worker.Sink

	// State
	active  featureset.Set
	queue   *queue.InMemoryQueue
	worker  *worker.Worker
	runID   string
	running bool
	last    *Summary

	logger logger.Logger
}

// New constructs a Service. The active feature set exists from the start so
// it can be served before a run begins.
func New(opts ...Option) *Service {
	s := &Service{
		width:           defaultWidth,
		height:          defaultHeight,
		maxScale:        defaultMaxScale,
		format:          source.FormatCBOR,
		textPacketSize:  defaultTextPacketSize,
		queueSize:       defaultQueueSize,
		featureSetSize:  defaultFeatureSetSize,
		frameInterval:   defaultFrameInterval,
		markRadius:      defaultMarkRadius,
		metricsInterval: defaultMetricsInterval,
		logger:          logger.Get().Named("service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.active = featureset.NewInMemorySet(featureset.WithMaxSize(s.featureSetSize))
	return s
}

// ActiveSet returns the set of pixels currently reported as features.
func (s *Service) ActiveSet() featureset.Set {
	return s.active
}

// Run replays the input to completion or until ctx is cancelled. Each run
// starts from an empty active set. A source given with WithSource is used by
// the first run only; later runs open the configured input.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Summary{}, ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	det, err := detector.New(s.height, s.width)
	if err != nil {
		return Summary{}, fmt.Errorf("create detector: %w", err)
	}
	s.active.Reset(ctx)

	src, err := s.openSource()
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.logger.Warn(ctx, "closing source", logger.Error(err))
		}
	}()

	outputs, err := s.buildOutputs(ctx)
	if err != nil {
		return Summary{}, err
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	w := worker.New(q, det,
		worker.WithMaxScale(s.maxScale),
		worker.WithFeatureSet(s.active),
		worker.WithSinks(outputs.sinks...),
	)

	s.mu.Lock()
	s.queue = q
	s.worker = w
	s.runID = outputs.runID
	s.mu.Unlock()

	s.logger.Info(ctx, "run started",
		logger.String("input", s.input),
		logger.String("format", s.format),
		logger.String("run_id", outputs.runID),
		logger.Int("width", s.width),
		logger.Int("height", s.height),
		logger.Int("max_scale", s.maxScale),
	)

	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	go s.collectRuntimeMetrics(metricsCtx)

	go w.Run(context.WithoutCancel(ctx))

	readErr := s.feed(ctx, src, q)

	_ = q.Close()
	<-w.Done()

	if err := outputs.close(context.WithoutCancel(ctx)); err != nil && readErr == nil {
		readErr = err
	}

	stats := w.Stats()
	sum := Summary{
		RunID:          outputs.runID,
		Packets:        stats.Packets,
		SkippedPackets: stats.SkippedPackets,
		Events:         stats.Events,
		Rejected:       stats.Rejected,
		Features:       stats.Features,
		ActiveFeatures: s.active.Size(),
		DetectionTime:  stats.DetectionTime,
		WallTime:       time.Since(start),
	}

	s.mu.Lock()
	s.last = &sum
	s.mu.Unlock()

	fields := []logger.Field{
		logger.Uint64("packets", sum.Packets),
		logger.Uint64("events", sum.Events),
		logger.Uint64("rejected", sum.Rejected),
		logger.Uint64("features", sum.Features),
		logger.Duration("detection_time", sum.DetectionTime),
		logger.Duration("wall_time", sum.WallTime),
	}
	if readErr != nil {
		s.logger.Error(ctx, "run stopped", append(fields, logger.Error(readErr))...)
		return sum, readErr
	}
	s.logger.Info(ctx, "run finished", fields...)
	return sum, nil
}

// feed moves packets from src into q until the stream ends.
func (s *Service) feed(ctx context.Context, src source.Source, q queue.Queue) error {
	for {
		p, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			metrics.RecordErrorByComponent("source", "read_failed")
			return fmt.Errorf("read input: %w", err)
		}
		if err := q.EnqueueWait(ctx, p); err != nil {
			return fmt.Errorf("enqueue packet %d: %w", p.Seq, err)
		}
	}
}

func (s *Service) openSource() (source.Source, error) {
	s.mu.Lock()
	src := s.src
	s.src = nil
	s.mu.Unlock()
	if src != nil {
		return src, nil
	}
	if s.input == "" {
		return nil, fmt.Errorf("%w: no input configured", source.ErrUnsupportedFormat)
	}
	return source.Open(s.input, s.format,
		source.WithPacketSize(s.textPacketSize),
		source.WithLogger(s.logger.Named("source")),
	)
}

// outputs collects the per-run sinks and what must be closed afterwards.
type outputs struct {
	runID  string
	sinks  []worker.Sink
	frames *render.Accumulator
	text   *repository.TextLog
}

func (o *outputs) close(ctx context.Context) error {
	var errs []error
	if o.frames != nil {
		if err := o.frames.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush frames: %w", err))
		}
	}
	if o.text != nil {
		if err := o.text.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) buildOutputs(ctx context.Context) (*outputs, error) {
	out := &outputs{}

	if s.store != nil {
		runID, err := s.store.BeginRun(ctx, repository.RunInfo{
			Width:    s.width,
			Height:   s.height,
			Channels: logChannels,
			Input:    s.input,
		})
		if err != nil {
			return nil, fmt.Errorf("begin run: %w", err)
		}
		out.runID = runID
		store := s.store
		out.sinks = append(out.sinks, worker.SinkFunc(func(ctx context.Context, r model.PacketResult) error {
			return store.RecordPacket(ctx, runID, r)
		}))
	}

	if s.textLog != nil {
		tl, err := repository.NewTextLog(s.textLog, s.width, s.height, logChannels, s.active)
		if err != nil {
			return nil, err
		}
		out.text = tl
		out.sinks = append(out.sinks, tl)
	}

	if len(s.frameHandlers) > 0 {
		out.frames = render.NewAccumulator(s.width, s.height,
			render.WithInterval(s.frameInterval),
			render.WithMarkRadius(s.markRadius),
			render.WithActiveSet(s.active),
			render.WithHandlers(s.frameHandlers...),
		)
		out.sinks = append(out.sinks, out.frames)
	}

	out.sinks = append(out.sinks, s.sinks...)
	return out, nil
}

// collectRuntimeMetrics samples memory, goroutine and GC figures.
func (s *Service) collectRuntimeMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.metricsInterval)
	defer ticker.Stop()

	var lastNumGC uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			metrics.UpdateSystemMemoryUsage(ms.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
			for i := lastNumGC; i < ms.NumGC && i < lastNumGC+uint32(len(ms.PauseNs)); i++ {
				pause := ms.PauseNs[i%uint32(len(ms.PauseNs))]
				metrics.RecordSystemGCPauseTime(metrics.Milliseconds(time.Duration(pause)))
			}
			lastNumGC = ms.NumGC
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"running":         s.running,
		"width":           s.width,
		"height":          s.height,
		"max_scale":       s.maxScale,
		"input":           s.input,
		"format":          s.format,
		"queue_size":      s.queueSize,
		"active_features": s.active.Size(),
	}
	if s.runID != "" {
		stats["run_id"] = s.runID
	}

	if s.queue != nil {
		stats["queue_length"] = s.queue.Len(context.Background())
	}
	if s.worker != nil {
		ws := s.worker.Stats()
		stats["packets"] = ws.Packets
		stats["skipped_packets"] = ws.SkippedPackets
		stats["events"] = ws.Events
		stats["rejected"] = ws.Rejected
		stats["features"] = ws.Features
		stats["sink_errors"] = ws.SinkErrors
		stats["outcomes"] = ws.Outcomes
		stats["detection_time_ns"] = ws.DetectionTime.Nanoseconds()
	}
	if s.last != nil {
		stats["last_run"] = *s.last
	}

	return stats
}
