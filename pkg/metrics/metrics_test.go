package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithRegistry(registry))

			Convey("Then it registers its collectors there", func() {
				So(manager, ShouldNotBeNil)
				manager.eventsProcessed.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sub"),
				WithMetricPrefix("x_"),
				WithLatencyBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithRegistry(registry),
			)

			Convey("Then names carry the namespace, subsystem and prefix", func() {
				manager.eventsProcessed.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_sub_x_events_processed_total"], ShouldBeTrue)
			})

			Convey("Then constant labels are attached", func() {
				manager.eventsProcessed.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					for _, m := range f.GetMetric() {
						for _, l := range m.GetLabel() {
							if l.GetName() == "env" && l.GetValue() == "test" {
								found = true
							}
						}
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestDetectorMetrics(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When recording classified events", func() {
			before := testutil.ToFloat64(globalManager.eventsProcessed)
			RecordEventsProcessed(3)

			Convey("Then the counter grows by the batch size", func() {
				So(testutil.ToFloat64(globalManager.eventsProcessed), ShouldEqual, before+3)
			})
		})

		Convey("When recording outcomes", func() {
			c := globalManager.classifications.WithLabelValues("feature")
			before := testutil.ToFloat64(c)
			RecordClassifications("feature", 2)
			RecordClassifications("feature", 0)

			Convey("Then only positive counts are added", func() {
				So(testutil.ToFloat64(c), ShouldEqual, before+2)
			})
		})

		Convey("When updating gauges", func() {
			UpdateActiveFeatures(17)
			UpdateQueueSize(4)
			UpdateLiveClients(2)

			Convey("Then they hold the latest value", func() {
				So(testutil.ToFloat64(globalManager.activeFeatures), ShouldEqual, 17)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.liveClients), ShouldEqual, 2)
			})
		})

		Convey("When recording the remaining helpers", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					RecordEventRejected("out_of_bounds")
					RecordFeaturesDetected(1)
					RecordPacketProcessed()
					RecordPacketSkipped()
					RecordPacketDetectionLatency(250 * time.Microsecond)
					UpdateQueueCapacity(10)
					UpdateQueueUtilization(0.4)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					RecordQueueProcessingLatency(0.2)
					RecordWorkerProcessingLatency(1.5)
					RecordWorkerError()
					RecordFeatureLogWrite(2.5)
					RecordFrameRendered()
					RecordLiveMessage("frame")
					RecordHTTPRequest("/stats", "GET", "200")
					RecordHTTPRequestDuration("/stats", "GET", "200", 1)
					RecordErrorByComponent("worker", "sink")
					RecordErrorByEndpoint("/stats", "GET", "server_error")
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(12)
					RecordSystemGCPauseTime(0.3)
				}, ShouldNotPanic)
			})
		})

		Convey("When gathering the custom registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then it exposes efast metrics only", func() {
				So(err, ShouldBeNil)
				for _, f := range families {
					So(f.GetName(), ShouldStartWith, "efast_detector_")
				}
			})
		})
	})
}

func TestMilliseconds(t *testing.T) {
	Convey("Durations convert to fractional milliseconds", t, func() {
		So(Milliseconds(250*time.Microsecond), ShouldAlmostEqual, 0.25)
		So(Milliseconds(1500*time.Microsecond), ShouldAlmostEqual, 1.5)
		So(Milliseconds(2*time.Second), ShouldEqual, 2000.0)
		So(Milliseconds(0), ShouldEqual, 0.0)
	})
}
