package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seapigy/procuro-site-sub000/internal/progress"
)

// PrometheusSink exports adapter and aggregation progress via Prometheus.
type PrometheusSink struct {
	aggregationsStarted prometheus.Counter
	aggregationValid    prometheus.Histogram
	aggregationDuration prometheus.Histogram

	adapterLookups  *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	adapterInflight *prometheus.GaugeVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		aggregationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricewatch_progress_aggregations_started_total",
			Help: "Aggregations that have started.",
		}),
		aggregationValid: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_aggregation_valid_quotes",
			Help:    "Number of priced quotes per completed aggregation.",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 8},
		}),
		aggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricewatch_aggregation_duration_seconds",
			Help:    "Wall time per completed aggregation.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		adapterLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricewatch_adapter_lookups_total",
			Help: "Adapter lookups partitioned by retailer and outcome.",
		}, []string{"retailer", "outcome"}),
		adapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricewatch_adapter_duration_seconds",
			Help:    "Adapter lookup latency partitioned by retailer.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		}, []string{"retailer"}),
		adapterInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricewatch_adapter_inflight",
			Help: "Adapter lookups started but not yet finished.",
		}, []string{"retailer"}),
	}
	for _, collector := range []prometheus.Collector{
		s.aggregationsStarted,
		s.aggregationValid,
		s.aggregationDuration,
		s.adapterLookups,
		s.adapterDuration,
		s.adapterInflight,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageAggregateStart:
			s.aggregationsStarted.Inc()
		case progress.StageAggregateDone:
			s.aggregationValid.Observe(float64(evt.Valid))
			if evt.Dur > 0 {
				s.aggregationDuration.Observe(evt.Dur.Seconds())
			}
		case progress.StageAdapterStart:
			s.adapterInflight.WithLabelValues(evt.Retailer).Inc()
		case progress.StageAdapterDone:
			s.adapterInflight.WithLabelValues(evt.Retailer).Dec()
			s.adapterLookups.WithLabelValues(evt.Retailer, evt.Outcome).Inc()
			if evt.Dur > 0 {
				s.adapterDuration.WithLabelValues(evt.Retailer).Observe(evt.Dur.Seconds())
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
