// Package metrics exposes prometheus counters for the relay pipeline.
package metrics

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ethrelay"

// Attempt outcomes.
const (
	OutcomeRelayed  = "relayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Collector records relay client activity. A nil *Collector is a no-op.
type Collector struct {
	attempts       *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	events         *prometheus.CounterVec
	selfBroadcasts prometheus.Counter
}

// NewCollector registers the relay client metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_attempts_total",
				Help:      "Total number of relay attempts against a candidate relay, by outcome",
			},
			[]string{"outcome"},
		),
		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_rejections_total",
				Help:      "Total number of candidate relays rejected, by pipeline stage",
			},
			[]string{"stage"},
		),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_events_total",
				Help:      "Total number of relay pipeline events",
			},
			[]string{"event"},
		),
		selfBroadcasts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "self_broadcasts_total",
				Help:      "Total number of relayed transactions the client broadcast itself",
			},
		),
	}
}

func (c *Collector) Attempt(outcome string) {
	if c == nil {
		return
	}
	c.attempts.WithLabelValues(outcome).Inc()
}

func (c *Collector) Rejection(stage string) {
	if c == nil {
		return
	}
	c.rejections.WithLabelValues(stage).Inc()
}

func (c *Collector) Event(event string) {
	if c == nil {
		return
	}
	c.events.WithLabelValues(event).Inc()
}

func (c *Collector) SelfBroadcast() {
	if c == nil {
		return
	}
	c.selfBroadcasts.Inc()
}

// LogSnapshot writes every counter sample gathered from g to log at debug
// level, one record per labelled series. Short-lived processes use it in
// place of a scrape endpoint.
func LogSnapshot(ctx context.Context, log *slog.Logger, g prometheus.Gatherer) error {
	if !log.Enabled(ctx, slog.LevelDebug) {
		return nil
	}

	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []slog.Attr{
				slog.String("metric", mf.GetName()),
				slog.Float64("value", m.GetCounter().GetValue()),
			}
			for _, label := range m.GetLabel() {
				attrs = append(attrs, slog.String(label.GetName(), label.GetValue()))
			}
			log.LogAttrs(ctx, slog.LevelDebug, "metric", attrs...)
		}
	}
	return nil
}
