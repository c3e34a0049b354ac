package tree

import (
	"errors"

	"go.uber.org/multierr"
)

var (
	ErrRBTreeRedViolation   = errors.New("rbtree red violation")
	ErrRBTreeBlackViolation = errors.New("rbtree black violation")
	ErrRBTreeOrderViolation = errors.New("rbtree order violation")
	ErrRBTreeLinkViolation  = errors.New("rbtree link violation")
	ErrRBTreeRootViolation  = errors.New("rbtree root violation")
)

func isBlack[E any](node RBNode[E]) bool {
	return node == nil || node.Color() == Black
}

func isRed[E any](node RBNode[E]) bool {
	return node != nil && node.Color() == Red
}

func blackDepthTo[E any](target, to RBNode[E]) int {
	depth := 0
	for aux := target; aux != to; aux = aux.Parent() {
		if isBlack[E](aux) {
			depth++
		}
	}
	return depth
}

// Inorder walk with an explicit stack; visit returns false to stop.
func inorder[E any](tree RBTree[E], visit func(node RBNode[E]) bool) {
	aux := tree.Root()
	if aux == nil {
		return
	}

	stack := make([]RBNode[E], 0, 32)
	defer func() {
		clear(stack)
	}()

	for ; aux != nil; aux = aux.Left() {
		stack = append(stack, aux)
	}

	for size := len(stack); size > 0; size = len(stack) {
		if aux = stack[size-1]; !visit(aux) {
			return
		}
		stack = stack[:size-1]
		for aux = aux.Right(); aux != nil; aux = aux.Left() {
			stack = append(stack, aux)
		}
	}
}

// rbtree rule validation utilities.

// References:
// https://github1s.com/minghu6/rust-minghu6/blob/master/coll_st/src/bst/rb.rs

// RedViolationValidate checks that no red node has a red child.
func RedViolationValidate[E any](tree RBTree[E]) (err error) {
	inorder[E](tree, func(node RBNode[E]) bool {
		if isRed[E](node) && (isRed[E](node.Left()) || isRed[E](node.Right())) {
			err = ErrRBTreeRedViolation
			return false
		}
		return true
	})
	return err
}

// BFS traversal to load all nodes holding at least one NIL child.
func bfsLeaves[E any](tree RBTree[E]) []RBNode[E] {
	aux := tree.Root()
	if aux == nil {
		return nil
	}

	leaves := make([]RBNode[E], 0, tree.Len()>>1+1)
	queue := make([]RBNode[E], 0, tree.Len()>>1+1)
	defer func() {
		clear(queue)
	}()
	queue = append(queue, aux)

	for len(queue) > 0 {
		aux = queue[0]
		l, r := aux.Left(), aux.Right()
		if /* nil leaves, keep one */ l == nil || r == nil {
			leaves = append(leaves, aux)
		}
		if l != nil {
			queue = append(queue, l)
		}
		if r != nil {
			queue = append(queue, r)
		}
		queue = queue[1:]
	}
	return leaves
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).

	        [13]
			/  \
		 <8>    [15]
		 / \    /  \
	  [6] [11] [14] [17]
	  /              /
	<1>            <16>

2-3-4 tree like:

	       <8> --- [13] --- <15>
		  /  \             /    \
		 /    \           /      \
	  <1>-[6][11]      [14] <16>-[17]

Each NIL position to root black depth are equal.
*/
func BlackViolationValidate[E any](tree RBTree[E]) error {
	leaves := bfsLeaves[E](tree)
	if leaves == nil {
		return nil
	}

	blackDepth := blackDepthTo[E](leaves[0], nil)
	for i := 1; i < len(leaves); i++ {
		if blackDepthTo[E](leaves[i], nil) != blackDepth {
			return ErrRBTreeBlackViolation
		}
	}
	return nil
}

// OrderViolationValidate checks the inorder sequence is strictly
// ascending under the tree's comparator and its length equals Len().
func OrderViolationValidate[E any](tree RBTree[E]) (err error) {
	t, ok := tree.(*rbTree[E])
	if !ok {
		return errors.New("[rbtree] unknown tree implementation")
	}

	var (
		prev  RBNode[E]
		count int64
	)
	inorder[E](tree, func(node RBNode[E]) bool {
		if prev != nil && t.cmp(prev.Payload(), node.Payload()) >= 0 {
			err = ErrRBTreeOrderViolation
			return false
		}
		prev = node
		count++
		return true
	})
	if err == nil && count != tree.Len() {
		err = ErrRBTreeOrderViolation
	}
	return err
}

// LinkViolationValidate checks parent links are the inverse of child links.
func LinkViolationValidate[E any](tree RBTree[E]) (err error) {
	inorder[E](tree, func(node RBNode[E]) bool {
		if l := node.Left(); l != nil && l.Parent() != node {
			err = ErrRBTreeLinkViolation
			return false
		}
		if r := node.Right(); r != nil && r.Parent() != node {
			err = ErrRBTreeLinkViolation
			return false
		}
		return true
	})
	return err
}

func RootColorValidate[E any](tree RBTree[E]) error {
	root := tree.Root()
	if root == nil {
		return nil
	}
	if root.Color() != Black || root.Parent() != nil {
		return ErrRBTreeRootViolation
	}
	return nil
}

// Validate runs every rule validation and joins the violations.
func Validate[E any](tree RBTree[E]) error {
	return multierr.Combine(
		RootColorValidate[E](tree),
		LinkViolationValidate[E](tree),
		OrderViolationValidate[E](tree),
		RedViolationValidate[E](tree),
		BlackViolationValidate[E](tree),
	)
}
