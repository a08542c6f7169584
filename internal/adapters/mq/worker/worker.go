package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/efast/internal/domain/detector"
	"github.com/okian/efast/internal/domain/featureset"
	"github.com/okian/efast/internal/domain/model"
	"github.com/okian/efast/pkg/logger"
	"github.com/okian/efast/pkg/metrics"
)

const (
	defaultMaxScale = 1
	outcomeCount    = int(detector.OutcomeFeature) + 1
)

// Detector classifies events against the surface of active events.
type Detector interface {
	Contains(x, y int) bool
	Classify(e model.Event, maxScale int) detector.Outcome
}

// Queue defines how the worker receives packets.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Packet
}

// Sink consumes the result of each processed packet.
type Sink interface {
	HandlePacket(ctx context.Context, r model.PacketResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r model.PacketResult) error

// HandlePacket calls f.
func (f SinkFunc) HandlePacket(ctx context.Context, r model.PacketResult) error {
	return f(ctx, r)
}

// Stats is a snapshot of the worker counters.
type Stats struct {
	Packets        uint64            `json:"packets"`
	SkippedPackets uint64            `json:"skipped_packets"`
	Events         uint64            `json:"events"`
	Rejected       uint64            `json:"rejected"`
	Features       uint64            `json:"features"`
	SinkErrors     uint64            `json:"sink_errors"`
	Outcomes       map[string]uint64 `json:"outcomes"`
	DetectionTime  time.Duration     `json:"detection_time_ns"`
}

type counters struct {
	packets        atomic.Uint64
	skippedPackets atomic.Uint64
	events         atomic.Uint64
	rejected       atomic.Uint64
	features       atomic.Uint64
	sinkErrors     atomic.Uint64
	detectionNanos atomic.Int64
	outcomes       [outcomeCount]atomic.Uint64
}

// Worker owns the detector and is its only caller. Packets are processed one
// at a time in queue order.
type Worker struct {
	queue    Queue
	detector Detector
	name     string
	maxScale int
	features featureset.Set
	sinks    []Sink

	stats counters

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// New creates a worker reading from q and classifying with d.
func New(q Queue, d Detector, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		detector: d,
		name:     "worker",
		maxScale: defaultMaxScale,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run processes packets until the queue is drained, ctx is cancelled or
// Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	packets := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case p, ok := <-packets:
			if !ok {
				return
			}
			w.processPacket(ctx, p)
		}
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Shutdown stops the worker and waits for Run to return.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Stats returns a snapshot of the counters.
func (w *Worker) Stats() Stats {
	s := Stats{
		Packets:        w.stats.packets.Load(),
		SkippedPackets: w.stats.skippedPackets.Load(),
		Events:         w.stats.events.Load(),
		Rejected:       w.stats.rejected.Load(),
		Features:       w.stats.features.Load(),
		SinkErrors:     w.stats.sinkErrors.Load(),
		DetectionTime:  time.Duration(w.stats.detectionNanos.Load()),
		Outcomes:       make(map[string]uint64, len(w.stats.outcomes)),
	}
	for i := range w.stats.outcomes {
		s.Outcomes[detector.Outcome(i).String()] = w.stats.outcomes[i].Load()
	}
	return s
}

func (w *Worker) processPacket(ctx context.Context, p model.Packet) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(metrics.Milliseconds(time.Since(start)))
	}()

	if p.StreamID != 0 {
		w.stats.skippedPackets.Add(1)
		metrics.RecordPacketSkipped()
		w.logger.Debug(ctx, "skipping packet from non-polarity stream",
			logger.Uint64("seq", p.Seq),
			logger.Int64("stream_id", int64(p.StreamID)),
		)
		return
	}

	res := w.detect(p)

	w.stats.packets.Add(1)
	w.stats.events.Add(uint64(len(res.Events)))
	w.stats.rejected.Add(uint64(res.Rejected))
	w.stats.features.Add(uint64(len(res.Features)))
	w.stats.detectionNanos.Add(res.Duration.Nanoseconds())

	metrics.RecordPacketProcessed()
	metrics.RecordPacketDetectionLatency(res.Duration)
	metrics.RecordEventsProcessed(len(res.Events))
	metrics.RecordFeaturesDetected(len(res.Features))

	if w.features != nil {
		for i, e := range res.Events {
			w.features.Observe(ctx, model.Point{X: e.X, Y: e.Y}, res.Verdicts[i])
		}
		metrics.UpdateActiveFeatures(w.features.Size())
	}

	for _, s := range w.sinks {
		if err := s.HandlePacket(ctx, res); err != nil {
			w.stats.sinkErrors.Add(1)
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "sink_error")
			w.logger.Error(ctx, "sink failed",
				logger.Uint64("seq", p.Seq),
				logger.Error(err),
			)
		}
	}
}

// detect classifies every in-bounds event of p in order. Only the
// classification loop is timed.
func (w *Worker) detect(p model.Packet) model.PacketResult {
	res := model.PacketResult{
		Seq:      p.Seq,
		Events:   make([]model.Event, 0, len(p.Events)),
		Verdicts: make([]bool, 0, len(p.Events)),
	}

	var outcomes [outcomeCount]int
	start := time.Now()
	for _, e := range p.Events {
		if !w.detector.Contains(int(e.X), int(e.Y)) {
			res.Rejected++
			metrics.RecordEventRejected("out_of_bounds")
			continue
		}
		o := w.detector.Classify(e, w.maxScale)
		outcomes[o]++

		feature := o == detector.OutcomeFeature
		res.Events = append(res.Events, e)
		res.Verdicts = append(res.Verdicts, feature)
		if feature {
			res.Features = append(res.Features, model.FeatureFromEvent(e))
		}
	}
	res.Duration = time.Since(start)

	for i, n := range outcomes {
		w.stats.outcomes[i].Add(uint64(n))
		metrics.RecordClassifications(detector.Outcome(i).String(), n)
	}
	return res
}
