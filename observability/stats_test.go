package observability

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Metrics {
	t.Helper()
	rm := metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(context.Background(), &rm))
	res := make(map[string]metricdata.Metrics, 4)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			res[m.Name] = m
		}
	}
	return res
}

func attrValue(t *testing.T, set attribute.Set, key string) string {
	t.Helper()
	v, ok := set.Value(attribute.Key(key))
	require.True(t, ok)
	return v.AsString()
}

func TestTreeStats_ManualReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() {
		require.NoError(t, mp.Shutdown(context.Background()))
	}()

	stats, err := NewTreeStats(mp, "test")
	require.NoError(t, err)

	ctx := context.Background()
	stats.RecordOp(ctx, TreeOpInsert, 10)
	stats.RecordOp(ctx, TreeOpInsert, 5)
	stats.RecordOp(ctx, TreeOpDuplicate, 2)
	stats.RecordOp(ctx, TreeOpRemove, 0) // ignored
	stats.Snapshot("trial-0", 15, 5)
	stats.Snapshot("trial-1", 7, 4)
	stats.Snapshot("trial-0", 8, 4)

	metrics := collect(t, reader)

	ops, ok := metrics["rbtree.ops"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.True(t, ops.IsMonotonic)
	got := map[string]int64{}
	for _, dp := range ops.DataPoints {
		got[attrValue(t, dp.Attributes, "op")] = dp.Value
	}
	require.Equal(t, map[string]int64{"insert": 15, "duplicate": 2}, got)

	nodes, ok := metrics["rbtree.nodes"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	got = map[string]int64{}
	for _, dp := range nodes.DataPoints {
		got[attrValue(t, dp.Attributes, "tree")] = dp.Value
	}
	require.Equal(t, map[string]int64{"trial-0": 8, "trial-1": 7}, got)

	height, ok := metrics["rbtree.height"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	got = map[string]int64{}
	for _, dp := range height.DataPoints {
		got[attrValue(t, dp.Attributes, "tree")] = dp.Value
	}
	require.Equal(t, map[string]int64{"trial-0": 4, "trial-1": 4}, got)

	require.NoError(t, stats.Close())
}

func TestTreeStats_Nil(t *testing.T) {
	var stats *TreeStats
	stats.RecordOp(context.Background(), TreeOpInsert, 1)
	stats.Snapshot("nil", 1, 1)
	require.NoError(t, stats.Close())
}

func TestParseMetricsExporterType(t *testing.T) {
	testcases := []struct {
		in       string
		expected MetricsExporterType
		hasErr   bool
	}{
		{"", NoopMetrics, false},
		{"none", NoopMetrics, false},
		{" Console ", ConsoleMetrics, false},
		{"PROMETHEUS", PrometheusMetrics, false},
		{"otlp", NoopMetrics, true},
	}
	for _, tc := range testcases {
		t.Run(tc.in, func(tt *testing.T) {
			typ, err := ParseMetricsExporterType(tc.in)
			require.Equal(tt, tc.expected, typ)
			if tc.hasErr {
				require.Error(tt, err)
			} else {
				require.NoError(tt, err)
			}
		})
	}
}

func TestConsoleMetricsExporter(t *testing.T) {
	buf := &bytes.Buffer{}
	shutdown, err := NewConsoleMetricsExporter(time.Hour, time.Second, stdoutmetric.WithWriter(buf))
	require.NoError(t, err)

	stats, err := NewTreeStats(nil, "console")
	require.NoError(t, err)
	stats.RecordOp(context.Background(), TreeOpRemove, 3)
	stats.Snapshot("demo", 3, 2)

	// Flushed on shutdown.
	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, buf.String(), "rbtree.ops")
	require.Contains(t, buf.String(), "rbtree.nodes")
}

func TestPrometheusMetricsExporter(t *testing.T) {
	reg := promclient.NewRegistry()
	shutdown, err := NewMetricsExporter(PrometheusMetrics, 0, reg)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, shutdown(context.Background()))
	}()

	stats, err := NewTreeStats(nil, "prometheus")
	require.NoError(t, err)
	stats.RecordOp(context.Background(), TreeOpInsert, 4)
	stats.Snapshot("demo", 4, 3)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]struct{}, len(families))
	for _, mf := range families {
		names[mf.GetName()] = struct{}{}
	}
	require.Contains(t, names, "rbtree_ops_total")
	require.Contains(t, names, "rbtree_nodes")
	require.Contains(t, names, "rbtree_height")
}

func TestNoopMetricsExporter(t *testing.T) {
	shutdown, err := NewMetricsExporter(NoopMetrics, 0, nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitAppStats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var called atomic.Int32
	shutdown := func(context.Context) error {
		called.Add(1)
		return nil
	}
	InitAppStats(ctx, "", shutdown)
	// Only the first call takes effect.
	InitAppStats(ctx, "again", shutdown)
	cancel()
	require.Eventually(t, func() bool {
		return called.Load() == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, "xrbtree/app/default", meterName(" "))
	require.Equal(t, "xrbtree/app/rbheight", meterName("rbheight"))
}

func TestSampleProcess(t *testing.T) {
	profile, err := SampleProcess()
	require.NoError(t, err)
	require.Greater(t, profile.RSS, uint64(0))
	require.Greater(t, profile.HeapAlloc, uint64(0))
	require.Greater(t, profile.Goroutines, 0)
}
