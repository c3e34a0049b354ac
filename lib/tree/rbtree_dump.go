package tree

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultDescriber renders a node as "%3v" plus 'r' or 'b', NIL as "NILb".
func DefaultDescriber[E any](node RBNode[E]) string {
	if node == nil {
		return "NILb"
	}
	c := 'b'
	if node.Color() == Red {
		c = 'r'
	}
	return fmt.Sprintf("%3v%c", node.Payload(), c)
}

// DefaultDotAttributes renders graphviz node attributes, red nodes in red
// and black nodes in gray.
func DefaultDotAttributes[E any](node RBNode[E]) string {
	color := "gray"
	if node.Color() == Red {
		color = "red"
	}
	return fmt.Sprintf("[label=\"%v\", style=filled, color=%s]", node.Payload(), color)
}

type dumpFrame[E any] struct {
	node  RBNode[E]
	depth int
	id    int
	dir   RBDirection
}

// preorder visits every node once, children are numbered in visiting order.
func preorder[E any](tree RBTree[E], visit func(f dumpFrame[E]) error) error {
	root := tree.Root()
	if root == nil {
		return nil
	}

	nextID := 0
	stack := []dumpFrame[E]{{node: root, dir: Root}}
	for size := len(stack); size > 0; size = len(stack) {
		f := stack[size-1]
		stack = stack[:size-1]
		f.id = nextID
		nextID++
		if err := visit(f); err != nil {
			return err
		}
		if r := f.node.Right(); r != nil {
			stack = append(stack, dumpFrame[E]{node: r, depth: f.depth + 1, dir: Right})
		}
		if l := f.node.Left(); l != nil {
			stack = append(stack, dumpFrame[E]{node: l, depth: f.depth + 1, dir: Left})
		}
	}
	return nil
}

func dirMark(dir RBDirection) string {
	switch dir {
	case Left:
		return "L"
	case Right:
		return "R"
	default:
	}
	return "-"
}

// Dump writes one line per node in preorder, indented by depth:
//
//	-   2b
//	    L   1b
//	    R   3b
//
// describe is called exactly once per node.
func Dump[E any](w io.Writer, tree RBTree[E], describe RBNodeDescriber[E]) error {
	if describe == nil {
		describe = DefaultDescriber[E]
	}
	bw := bufio.NewWriter(w)
	err := preorder[E](tree, func(f dumpFrame[E]) error {
		_, err := fmt.Fprintf(bw, "%s%s %s\n", strings.Repeat("    ", f.depth), dirMark(f.dir), describe(f.node))
		return err
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

// DumpDot writes a graphviz digraph. Nodes are named "n<preorder index>".
// attrs is called exactly once per node.
func DumpDot[E any](w io.Writer, tree RBTree[E], attrs RBNodeDescriber[E]) error {
	if attrs == nil {
		attrs = DefaultDotAttributes[E]
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("digraph {\n"); err != nil {
		return err
	}

	// Parents are always visited before their children.
	parents := make([]int, 0, 32)
	err := preorder[E](tree, func(f dumpFrame[E]) error {
		parents = append(parents[:f.depth], f.id)
		if f.depth > 0 {
			if _, err := fmt.Fprintf(bw, "\"n%d\" -> \"n%d\"\n", parents[f.depth-1], f.id); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(bw, "\"n%d\" %s\n", f.id, attrs(f.node))
		return err
	})
	if err != nil {
		return err
	}
	if _, err = bw.WriteString("}\n"); err != nil {
		return err
	}
	return bw.Flush()
}
