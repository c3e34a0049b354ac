package rbtool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/benz9527/xrbtree/lib/infra"
	"github.com/benz9527/xrbtree/lib/tree"
	"github.com/benz9527/xrbtree/xlog"
)

// DemoReport is what the demo observed, in the order it was printed.
type DemoReport struct {
	EmptyAtStart bool  `json:"emptyAtStart"`
	Sequence     []int `json:"sequence"`
	Members      []int `json:"members"`
	Remaining    []int `json:"remaining"`
	Height       int   `json:"height"`
}

func writeSequence(w *bufio.Writer, prefix string, seq []int) {
	_, _ = w.WriteString(prefix)
	for i, v := range seq {
		if i > 0 {
			_ = w.WriteByte(' ')
		}
		_, _ = w.WriteString(strconv.Itoa(v))
	}
	_ = w.WriteByte('\n')
}

func collect(t tree.RBTree[int]) []int {
	seq := make([]int, 0, t.Len())
	for it := t.Begin(); !it.IsEnd(); it = it.Next() {
		seq = append(seq, it.Payload())
	}
	return seq
}

// RunDemo walks an int tree through its whole life cycle and prints
// every step to out.
//  1. A new tree is empty.
//  2. Insert 0..n-1 and print them in order.
//  3. Check the membership of 0..2n-1.
//  4. Remove the even elements and print the rest.
//  5. Release the tree.
func RunDemo(ctx context.Context, logger xlog.XLogger, n int, out io.Writer) (DemoReport, error) {
	report := DemoReport{}
	if n < 0 {
		return report, infra.NewErrorStack("[rbdemo] negative element count " + strconv.Itoa(n))
	}
	if logger == nil {
		logger = defaultLogger()
	}

	w := bufio.NewWriter(out)
	t := tree.NewRBTree[int](infra.OrderedKeyComparator[int]())
	defer t.Release()

	report.EmptyAtStart = t.IsEmpty()
	if report.EmptyAtStart {
		_, _ = w.WriteString("A brand-new tree is empty!\n")
	} else {
		_, _ = w.WriteString("Something went wrong :(\n")
	}

	for i := 0; i < n; i++ {
		if _, err := t.Insert(i); err != nil {
			return report, infra.WrapErrorStackWithMessage(err, "[rbdemo] insert "+strconv.Itoa(i))
		}
	}
	report.Sequence = collect(t)
	writeSequence(w, "", report.Sequence)
	logger.DebugContext(ctx, "demo tree populated",
		zap.Int64("len", t.Len()),
		zap.Int("height", t.Height()),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.Members = make([]int, 0, n)
	for i := 0; i < 2*n; i++ {
		if t.Member(i) {
			report.Members = append(report.Members, i)
			_, _ = fmt.Fprintf(w, "%d is in the tree.\n", i)
		} else {
			_, _ = fmt.Fprintf(w, "%d is NOT in the tree.\n", i)
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for i := 0; i < n; i += 2 {
		t.Remove(t.Find(i))
	}
	if err := tree.Validate[int](t); err != nil {
		return report, infra.WrapErrorStackWithMessage(err, "[rbdemo] tree broken after removal")
	}
	report.Remaining = collect(t)
	report.Height = t.Height()
	writeSequence(w, "remaining: ", report.Remaining)

	if err := w.Flush(); err != nil {
		return report, infra.WrapErrorStackWithMessage(err, "[rbdemo] write output")
	}
	logger.InfoContext(ctx, "demo finished",
		zap.Int("inserted", n),
		zap.Int("remaining", len(report.Remaining)),
		zap.Int("height", report.Height),
	)
	return report, nil
}

func defaultLogger() xlog.XLogger {
	return xlog.NewXLogger(
		xlog.WithXLoggerStdErrWriter(),
		xlog.WithXLoggerLevel(xlog.LogLevelError),
	)
}
