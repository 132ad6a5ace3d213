package metrics_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/0xsequence/ethrelay/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.Attempt(metrics.OutcomeRejected)
	c.Attempt(metrics.OutcomeRelayed)
	c.Rejection("balance")
	c.Rejection("balance")
	c.Event("sign-request")
	c.SelfBroadcast()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 4)

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "ethrelay_relay_attempts_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "ethrelay_relay_rejections_total"))

	for _, mf := range families {
		if mf.GetName() == "ethrelay_relay_rejections_total" {
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
		if mf.GetName() == "ethrelay_self_broadcasts_total" {
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestNilCollector(t *testing.T) {
	var c *metrics.Collector
	assert.NotPanics(t, func() {
		c.Attempt(metrics.OutcomeFailed)
		c.Rejection("hub")
		c.Event("relayer-response")
		c.SelfBroadcast()
	})
}

func TestLogSnapshot(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.Attempt(metrics.OutcomeRelayed)
	c.Rejection("balance")

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	require.NoError(t, metrics.LogSnapshot(context.Background(), log, reg))

	out := buf.String()
	assert.Contains(t, out, "metric=ethrelay_relay_attempts_total value=1 outcome=relayed")
	assert.Contains(t, out, "metric=ethrelay_relay_rejections_total value=1 stage=balance")
	assert.Contains(t, out, "metric=ethrelay_self_broadcasts_total value=0")

	buf.Reset()
	quiet := slog.New(slog.NewTextHandler(&buf, nil))
	require.NoError(t, metrics.LogSnapshot(context.Background(), quiet, reg))
	assert.Empty(t, buf.String())
}
