package rbtool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"math/rand/v2"
	"runtime"
	"strconv"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xrbtree/lib/infra"
	"github.com/benz9527/xrbtree/lib/tree"
	"github.com/benz9527/xrbtree/observability"
	"github.com/benz9527/xrbtree/xlog"
)

var ErrHeightBoundExceeded = errors.New("[rbheight] tree height exceeds the theoretical bound")

// HeightBound is the theoretical height upper bound 2*ceil(log2(n+1))+1
// of a red-black tree of n elements, counted in nodes.
func HeightBound(n int) int {
	if n < 0 {
		n = 0
	}
	// ceil(log2(m)) == bits.Len(m-1) for m >= 1.
	return 2*bits.Len(uint(n)) + 1
}

type TrialReport struct {
	Trial      int   `json:"trial"`
	Inserted   int64 `json:"inserted"`
	Duplicates int64 `json:"duplicates"`
	Removed    int64 `json:"removed"`
	Len        int64 `json:"len"`
	Height     int   `json:"height"`
}

type HeightReport struct {
	N         int                          `json:"n"`
	Bound     int                          `json:"bound"`
	MaxHeight int                          `json:"maxHeight"`
	Trials    []TrialReport                `json:"trials"`
	Process   observability.ProcessProfile `json:"process"`
}

// HeightProbe measures the height of randomly built trees against the
// theoretical bound.
//
// Every trial inserts n pseudo-random keys in [0, keyRange), removes the
// keys of the first n/2 insertions (a key already removed is a no-op),
// validates all the tree invariants and records the height. The trials
// are independent and run on an ants pool, each one owns its own tree.
type HeightProbe struct {
	n        int
	trials   int
	seed     uint64
	workers  int
	keyRange int
	maxNodes int64
	dot      io.Writer
	stats    *observability.TreeStats
	logger   xlog.XLogger
}

type HeightProbeOption func(*HeightProbe) error

func WithHeightProbeSize(n int) HeightProbeOption {
	return func(p *HeightProbe) error {
		if n <= 0 {
			return infra.NewErrorStack("[rbheight] non-positive tree size " + strconv.Itoa(n))
		}
		p.n = n
		return nil
	}
}

func WithHeightProbeTrials(trials int) HeightProbeOption {
	return func(p *HeightProbe) error {
		if trials <= 0 {
			return infra.NewErrorStack("[rbheight] non-positive trials " + strconv.Itoa(trials))
		}
		p.trials = trials
		return nil
	}
}

func WithHeightProbeSeed(seed uint64) HeightProbeOption {
	return func(p *HeightProbe) error {
		p.seed = seed
		return nil
	}
}

func WithHeightProbeWorkers(workers int) HeightProbeOption {
	return func(p *HeightProbe) error {
		if workers <= 0 {
			workers = runtime.GOMAXPROCS(0)
		}
		p.workers = workers
		return nil
	}
}

// WithHeightProbeKeyRange bounds the random keys, a small range produces
// duplicates.
func WithHeightProbeKeyRange(keyRange int) HeightProbeOption {
	return func(p *HeightProbe) error {
		if keyRange <= 0 {
			return infra.NewErrorStack("[rbheight] non-positive key range " + strconv.Itoa(keyRange))
		}
		p.keyRange = keyRange
		return nil
	}
}

// WithHeightProbeMaxNodes caps the node cells of every trial tree.
func WithHeightProbeMaxNodes(limit int64) HeightProbeOption {
	return func(p *HeightProbe) error {
		p.maxNodes = limit
		return nil
	}
}

// WithHeightProbeDotWriter exports the tree of the first trial as a dot
// graph, after the removals.
func WithHeightProbeDotWriter(w io.Writer) HeightProbeOption {
	return func(p *HeightProbe) error {
		p.dot = w
		return nil
	}
}

func WithHeightProbeStats(stats *observability.TreeStats) HeightProbeOption {
	return func(p *HeightProbe) error {
		p.stats = stats
		return nil
	}
}

func WithHeightProbeLogger(logger xlog.XLogger) HeightProbeOption {
	return func(p *HeightProbe) error {
		p.logger = logger
		return nil
	}
}

func NewHeightProbe(opts ...HeightProbeOption) (*HeightProbe, error) {
	p := &HeightProbe{
		n:        10000,
		trials:   1,
		workers:  runtime.GOMAXPROCS(0),
		keyRange: 1000,
	}
	var err error
	for _, o := range opts {
		if o == nil {
			continue
		}
		err = multierr.Append(err, o(p))
	}
	if err != nil {
		return nil, err
	}
	if p.logger == nil {
		p.logger = defaultLogger()
	}
	return p, nil
}

func (p *HeightProbe) trial(ctx context.Context, idx int) (TrialReport, error) {
	report := TrialReport{Trial: idx}
	opts := make([]tree.RBTreeOpt[int], 0, 1)
	if p.maxNodes > 0 {
		opts = append(opts, tree.WithRBTreeMaxNodes[int](p.maxNodes))
	}
	t := tree.NewRBTree[int](infra.OrderedKeyComparator[int](), opts...)
	defer t.Release()

	name := "trial-" + strconv.Itoa(idx)
	rng := rand.New(rand.NewPCG(p.seed, uint64(idx)))
	keys := make([]int, p.n)
	for i := range keys {
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}
		keys[i] = rng.IntN(p.keyRange)
		ok, err := t.Insert(keys[i])
		if err != nil {
			return report, err
		}
		if ok {
			report.Inserted++
		} else {
			report.Duplicates++
		}
	}
	p.stats.RecordOp(ctx, observability.TreeOpInsert, report.Inserted)
	p.stats.RecordOp(ctx, observability.TreeOpDuplicate, report.Duplicates)

	for i := 0; i < p.n/2; i++ {
		if t.Delete(keys[i]) {
			report.Removed++
		}
	}
	p.stats.RecordOp(ctx, observability.TreeOpRemove, report.Removed)

	if err := tree.Validate[int](t); err != nil {
		return report, err
	}
	report.Len = t.Len()
	report.Height = t.Height()
	p.stats.Snapshot(name, report.Len, report.Height)

	if idx == 0 && p.dot != nil {
		if err := tree.DumpDot[int](p.dot, t, tree.DefaultDotAttributes[int]); err != nil {
			return report, err
		}
	}
	p.logger.DebugContext(ctx, "height trial finished",
		zap.String("tree", name),
		zap.Int64("len", report.Len),
		zap.Int("height", report.Height),
	)
	return report, nil
}

// Run blocks until every trial is done. The trial errors and the bound
// violations are all returned, joined.
func (p *HeightProbe) Run(ctx context.Context) (HeightReport, error) {
	report := HeightReport{
		N:      p.n,
		Bound:  HeightBound(p.n),
		Trials: make([]TrialReport, p.trials),
	}

	var (
		wg      sync.WaitGroup
		errLock sync.Mutex
		errs    error
	)
	appendErr := func(err error) {
		errLock.Lock()
		defer errLock.Unlock()
		errs = multierr.Append(errs, err)
	}
	pool, err := ants.NewPool(
		p.workers,
		ants.WithLogger(xlog.NewAntsXLogger(p.logger)),
	)
	if err != nil {
		return report, infra.WrapErrorStackWithMessage(err, "[rbheight] create trial pool")
	}
	defer pool.Release()

	for i := 0; i < p.trials; i++ {
		if err := ctx.Err(); err != nil {
			appendErr(err)
			break
		}
		idx := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer func() {
				// Recovered here, the pool panic handler runs after wg.Done.
				if r := recover(); r != nil {
					appendErr(infra.NewErrorStack(fmt.Sprintf("[rbheight] trial %d panic: %v", idx, r)))
				}
				wg.Done()
			}()
			tr, err := p.trial(ctx, idx)
			report.Trials[idx] = tr
			if err != nil {
				appendErr(infra.WrapErrorStackWithMessage(err, "[rbheight] trial "+strconv.Itoa(idx)))
				return
			}
			if tr.Height >= report.Bound {
				appendErr(infra.WrapErrorStackWithMessage(
					ErrHeightBoundExceeded,
					fmt.Sprintf("[rbheight] trial %d height %d bound %d", idx, tr.Height, report.Bound),
				))
			}
		}); err != nil {
			wg.Done()
			appendErr(infra.WrapErrorStackWithMessage(err, "[rbheight] submit trial "+strconv.Itoa(idx)))
		}
	}
	wg.Wait()

	for _, tr := range report.Trials {
		report.MaxHeight = max(report.MaxHeight, tr.Height)
	}
	if profile, err := observability.SampleProcess(); err != nil {
		p.logger.Warn("process memory sample failed", zap.String("error", err.Error()))
	} else {
		report.Process = profile
	}
	p.logger.InfoContext(ctx, "height probe finished",
		zap.Int("n", report.N),
		zap.Int("trials", p.trials),
		zap.Int("maxHeight", report.MaxHeight),
		zap.Int("bound", report.Bound),
		zap.Uint64("rss", report.Process.RSS),
	)
	return report, errs
}
