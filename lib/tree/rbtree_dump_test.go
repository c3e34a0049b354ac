package tree

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benz9527/xrbtree/lib/infra"
)

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("closed pipe")
}

func TestDump(t *testing.T) {
	tree := NewRBTree[int](infra.OrderedKeyComparator[int]())
	for _, k := range []int{1, 2, 3} {
		_, _ = tree.Insert(k)
	}

	buf := &bytes.Buffer{}
	require.NoError(t, Dump[int](buf, tree, nil))
	require.Equal(t, "-   2b\n    L   1r\n    R   3r\n", buf.String())

	calls := 0
	buf.Reset()
	require.NoError(t, Dump[int](buf, tree, func(node RBNode[int]) string {
		calls++
		return node.Color().String()
	}))
	require.Equal(t, 3, calls)
	require.Equal(t, "- Black\n    L Red\n    R Red\n", buf.String())

	require.Equal(t, "NILb", DefaultDescriber[int](nil))
}

func TestDumpDot(t *testing.T) {
	tree := NewRBTree[int](infra.OrderedKeyComparator[int]())
	for _, k := range []int{1, 2, 3} {
		_, _ = tree.Insert(k)
	}

	buf := &bytes.Buffer{}
	require.NoError(t, DumpDot[int](buf, tree, nil))
	require.Equal(t, `digraph {
"n0" [label="2", style=filled, color=gray]
"n0" -> "n1"
"n1" [label="1", style=filled, color=red]
"n0" -> "n2"
"n2" [label="3", style=filled, color=red]
}
`, buf.String())

	buf.Reset()
	require.NoError(t, DumpDot[int](buf, NewRBTree[int](infra.OrderedKeyComparator[int]()), nil))
	require.Equal(t, "digraph {\n}\n", buf.String())
}

func TestDumpDot_Edges(t *testing.T) {
	tree := NewRBTree[int](infra.OrderedKeyComparator[int]())
	for i := 0; i < 200; i++ {
		_, _ = tree.Insert(i)
	}

	calls := int64(0)
	buf := &bytes.Buffer{}
	require.NoError(t, DumpDot[int](buf, tree, func(node RBNode[int]) string {
		calls++
		return DefaultDotAttributes[int](node)
	}))
	require.Equal(t, tree.Len(), calls)
	// A tree of n nodes has n-1 edges.
	require.Equal(t, int(tree.Len()-1), strings.Count(buf.String(), "->"))
}

func TestDump_WriterError(t *testing.T) {
	tree := NewRBTree[int](infra.OrderedKeyComparator[int]())
	_, _ = tree.Insert(1)

	require.Error(t, Dump[int](failWriter{}, tree, nil))
	require.Error(t, DumpDot[int](failWriter{}, tree, nil))
}
