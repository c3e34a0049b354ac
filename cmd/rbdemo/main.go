// rbdemo shows the life cycle of an int red-black tree.
//
//	rbdemo [-n 10] [n]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/benz9527/xrbtree/internal/cli"
	"github.com/benz9527/xrbtree/rbtool"
	"github.com/benz9527/xrbtree/xlog"
)

type config struct {
	n   int
	log cli.LogConfig
	out io.Writer
}

func parseFlags(args []string) (*config, error) {
	cfg := &config{out: os.Stdout}
	fs := pflag.NewFlagSet("rbdemo", pflag.ContinueOnError)
	fs.IntVarP(&cfg.n, "num", "n", 10, "number of elements to insert")
	cfg.log.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	// The element count may also be given as the first argument.
	if fs.NArg() > 0 {
		n, err := strconv.Atoi(fs.Arg(0))
		if err != nil {
			return nil, fmt.Errorf("invalid element count %q: %w", fs.Arg(0), err)
		}
		cfg.n = n
	}
	if cfg.n < 0 {
		return nil, fmt.Errorf("negative element count %d", cfg.n)
	}
	return cfg, nil
}

func newApp(cfg *config) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		cli.Options(cfg.log),
		fx.Invoke(func(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger xlog.XLogger) {
			cli.Run(lc, shutdowner, logger, func(ctx context.Context) error {
				_, err := rbtool.RunDemo(ctx, logger.Named("rbdemo"), cfg.n, cfg.out)
				return err
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
