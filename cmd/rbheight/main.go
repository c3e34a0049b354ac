// rbheight measures the height of randomly built red-black trees against
// the theoretical bound 2*ceil(log2(n+1))+1, and optionally exports the
// first tree as a graphviz dot file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xrbtree/internal/cli"
	"github.com/benz9527/xrbtree/observability"
	"github.com/benz9527/xrbtree/rbtool"
	"github.com/benz9527/xrbtree/xlog"
)

type config struct {
	n               int
	trials          int
	seed            uint64
	workers         int
	keyRange        int
	maxNodes        int64
	dotDir          string
	dotName         string
	report          string
	metrics         observability.MetricsExporterType
	metricsAddr     string
	metricsInterval time.Duration
	linger          time.Duration
	log             cli.LogConfig
	out             io.Writer
	createDot       func(dir, name string) (io.WriteCloser, error)
}

func parseFlags(args []string) (*config, error) {
	cfg := &config{out: os.Stdout, createDot: rbtool.CreateDotFile}
	var metrics string
	fs := pflag.NewFlagSet("rbheight", pflag.ContinueOnError)
	fs.IntVarP(&cfg.n, "num", "n", 10000, "number of keys inserted per trial")
	fs.IntVarP(&cfg.trials, "trials", "t", 1, "number of independent trees")
	fs.Uint64Var(&cfg.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	fs.IntVarP(&cfg.workers, "workers", "w", 0, "trial workers, 0 is GOMAXPROCS")
	fs.IntVar(&cfg.keyRange, "key-range", 1000, "keys are drawn from [0, key-range)")
	fs.Int64Var(&cfg.maxNodes, "max-nodes", 0, "node cells limit per tree, 0 is unlimited")
	fs.StringVar(&cfg.dotDir, "dot-dir", ".", "directory of the dot file")
	fs.StringVar(&cfg.dotName, "dot-out", "", "dot file name of the first tree, empty disables the export")
	fs.StringVar(&cfg.report, "report", "text", "report format: text or json")
	fs.StringVar(&metrics, "metrics", "none", "metrics exporter: none, console or prometheus")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", ":9464", "prometheus scrape address")
	fs.DurationVar(&cfg.metricsInterval, "metrics-interval", 10*time.Second, "console metrics export interval")
	fs.DurationVar(&cfg.linger, "linger", 0, "keep serving the metrics after the probe")
	cfg.log.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	var err error
	if cfg.metrics, err = observability.ParseMetricsExporterType(metrics); err != nil {
		return nil, err
	}
	if cfg.report != "text" && cfg.report != "json" {
		return nil, fmt.Errorf("unknown report format %q", cfg.report)
	}
	return cfg, nil
}

func writeReport(w io.Writer, format string, report rbtool.HeightReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	var err error
	for _, tr := range report.Trials {
		_, e := fmt.Fprintf(w, "trial %d: %d elements, %d duplicates, %d removed, height %d\n",
			tr.Trial, tr.Len, tr.Duplicates, tr.Removed, tr.Height)
		err = multierr.Append(err, e)
	}
	_, e := fmt.Fprintf(w, "Tree height: %d, theoretical upper bound: %d\n", report.MaxHeight, report.Bound)
	return multierr.Append(err, e)
}

type metricsServer struct {
	shutdown func(ctx context.Context) error
	stats    *observability.TreeStats
	server   *http.Server
}

func newMetricsServer(lc fx.Lifecycle, cfg *config, logger xlog.XLogger) (*metricsServer, error) {
	reg := promclient.NewRegistry()
	shutdown, err := observability.NewMetricsExporter(cfg.metrics, cfg.metricsInterval, reg)
	if err != nil {
		return nil, err
	}
	ms := &metricsServer{shutdown: shutdown}
	if cfg.metrics != observability.NoopMetrics {
		observability.InitAppStats(context.Background(), "rbheight", nil)
	}
	if ms.stats, err = observability.NewTreeStats(nil, "rbheight"); err != nil {
		return nil, multierr.Append(err, shutdown(context.Background()))
	}
	if cfg.metrics == observability.PrometheusMetrics {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		ms.server = &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if ms.server == nil {
				return nil
			}
			go func() {
				if err := ms.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error(err, "metrics server stopped", zap.String("addr", cfg.metricsAddr))
				}
			}()
			logger.Info("metrics server started", zap.String("addr", cfg.metricsAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			var err error
			if ms.server != nil {
				err = multierr.Append(err, ms.server.Shutdown(ctx))
			}
			err = multierr.Append(err, ms.stats.Close())
			return multierr.Append(err, ms.shutdown(ctx))
		},
	})
	return ms, nil
}

func probe(ctx context.Context, cfg *config, ms *metricsServer, logger xlog.XLogger) (err error) {
	opts := []rbtool.HeightProbeOption{
		rbtool.WithHeightProbeSize(cfg.n),
		rbtool.WithHeightProbeTrials(cfg.trials),
		rbtool.WithHeightProbeSeed(cfg.seed),
		rbtool.WithHeightProbeWorkers(cfg.workers),
		rbtool.WithHeightProbeKeyRange(cfg.keyRange),
		rbtool.WithHeightProbeMaxNodes(cfg.maxNodes),
		rbtool.WithHeightProbeStats(ms.stats),
		rbtool.WithHeightProbeLogger(logger),
	}
	if len(cfg.dotName) > 0 {
		f, createErr := cfg.createDot(cfg.dotDir, cfg.dotName)
		if createErr != nil {
			return createErr
		}
		// A failed close may be the only sign of a truncated graph.
		defer func() {
			err = multierr.Append(err, f.Close())
		}()
		opts = append(opts, rbtool.WithHeightProbeDotWriter(f))
	}
	p, err := rbtool.NewHeightProbe(opts...)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "height probe started",
		zap.Int("n", cfg.n),
		zap.Int("trials", cfg.trials),
		zap.Uint64("seed", cfg.seed),
	)
	report, probeErr := p.Run(ctx)
	if err := writeReport(cfg.out, cfg.report, report); err != nil {
		return multierr.Append(probeErr, err)
	}
	if probeErr != nil {
		return probeErr
	}
	if cfg.linger > 0 {
		logger.Info("lingering", zap.Duration("for", cfg.linger))
		select {
		case <-time.After(cfg.linger):
		case <-ctx.Done():
		}
	}
	return nil
}

func newApp(cfg *config) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		cli.Options(cfg.log),
		fx.Provide(newMetricsServer),
		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner, ms *metricsServer, logger xlog.XLogger) {
			logger = logger.Named("rbheight")
			cli.Run(lc, shutdowner, logger, func(ctx context.Context) error {
				return probe(ctx, cfg, ms, logger)
			})
		}),
	)
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	} else if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	newApp(cfg).Run()
}
