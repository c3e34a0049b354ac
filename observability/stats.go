package observability

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	once sync.Once
)

func meterName(name string) string {
	builder := &strings.Builder{}
	builder.WriteString("xrbtree/app")
	if len(strings.TrimSpace(name)) > 0 {
		builder.Write([]byte("/"))
		builder.WriteString(name)
	} else {
		builder.Write([]byte("/"))
		builder.WriteString("default")
	}
	return builder.String()
}

type appStats struct {
	ctx              context.Context
	shutdownCallback func(ctx context.Context) error
	goroutines       metric.Int64ObservableUpDownCounter
	processes        metric.Int64ObservableUpDownCounter
}

func (stats *appStats) waitForShutdown() {
	if stats == nil || stats.shutdownCallback == nil {
		return
	}
	go func() {
		<-stats.ctx.Done()
		_ = stats.shutdownCallback(context.Background())
	}()
}

// InitAppStats registers the process gauges and the otel runtime
// instrumentation on the global meter provider. Only the first call takes
// effect. The shutdown callback runs once ctx is done.
func InitAppStats(ctx context.Context, name string, shutdown func(ctx context.Context) error) {
	once.Do(func() {
		name = meterName(name)
		meter := otel.Meter(
			name,
			metric.WithInstrumentationVersion(otelruntime.Version()),
		)
		stats := &appStats{
			ctx:              ctx,
			shutdownCallback: shutdown,
			goroutines: lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
				"app.core.goroutines",
				metric.WithDescription(`The application goroutines' info.`),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					ob.Observe(int64(runtime.NumGoroutine()))
					return nil
				}),
			)),
			processes: lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
				"app.core.processes",
				metric.WithDescription(`The application processes' info.`),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					ob.Observe(int64(runtime.GOMAXPROCS(0)))
					return nil
				}),
			)),
		}
		_ = otelruntime.Start()
		stats.waitForShutdown()
	})
}

type TreeOp string

const (
	TreeOpInsert    TreeOp = "insert"
	TreeOpDuplicate TreeOp = "duplicate"
	TreeOpRemove    TreeOp = "remove"
)

type treeSnapshot struct {
	nodes  int64
	height int64
}

// TreeStats exports the shape of named trees and the count of the tree
// operations.
//
// The trees are not safe for concurrent use, so the gauges never read a
// tree directly. The owner of a tree publishes a snapshot with Snapshot
// and the observable callback reports the latest one.
type TreeStats struct {
	ops       metric.Int64Counter
	nodes     metric.Int64ObservableGauge
	height    metric.Int64ObservableGauge
	reg       metric.Registration
	lock      sync.RWMutex
	snapshots map[string]treeSnapshot
}

// NewTreeStats creates the instruments from mp, or from the global meter
// provider if mp is nil.
func NewTreeStats(mp metric.MeterProvider, name string) (*TreeStats, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName(name))
	stats := &TreeStats{
		snapshots: make(map[string]treeSnapshot, 8),
	}
	var err error
	if stats.ops, err = meter.Int64Counter(
		"rbtree.ops",
		metric.WithDescription(`The red-black tree operations.`),
	); err != nil {
		return nil, err
	}
	if stats.nodes, err = meter.Int64ObservableGauge(
		"rbtree.nodes",
		metric.WithDescription(`The red-black tree elements.`),
	); err != nil {
		return nil, err
	}
	if stats.height, err = meter.Int64ObservableGauge(
		"rbtree.height",
		metric.WithDescription(`The red-black tree height, in nodes.`),
	); err != nil {
		return nil, err
	}
	if stats.reg, err = meter.RegisterCallback(stats.observe, stats.nodes, stats.height); err != nil {
		return nil, err
	}
	return stats, nil
}

func (stats *TreeStats) observe(ctx context.Context, ob metric.Observer) error {
	stats.lock.RLock()
	defer stats.lock.RUnlock()
	trees := lo.Keys(stats.snapshots)
	sort.Strings(trees)
	for _, tree := range trees {
		snapshot := stats.snapshots[tree]
		attrs := metric.WithAttributes(attribute.String("tree", tree))
		ob.ObserveInt64(stats.nodes, snapshot.nodes, attrs)
		ob.ObserveInt64(stats.height, snapshot.height, attrs)
	}
	return nil
}

func (stats *TreeStats) RecordOp(ctx context.Context, op TreeOp, n int64) {
	if stats == nil || n <= 0 {
		return
	}
	stats.ops.Add(ctx, n, metric.WithAttributes(attribute.String("op", string(op))))
}

func (stats *TreeStats) Snapshot(tree string, nodes int64, height int) {
	if stats == nil {
		return
	}
	stats.lock.Lock()
	defer stats.lock.Unlock()
	stats.snapshots[tree] = treeSnapshot{nodes: nodes, height: int64(height)}
}

// Close stops the gauges. The counter keeps its value in the provider.
func (stats *TreeStats) Close() error {
	if stats == nil || stats.reg == nil {
		return nil
	}
	return stats.reg.Unregister()
}
