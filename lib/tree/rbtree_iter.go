package tree

// RBIterator is a transient (tree, node) cursor. A nil node is the end
// of the sequence. It is not owned by the tree and is invalidated once
// the node it references is removed.
type RBIterator[E any] struct {
	tree *rbTree[E]
	node *rbNode[E]
}

func (it RBIterator[E]) IsEnd() bool {
	return it.node == nil
}

func (it RBIterator[E]) Node() RBNode[E] {
	if it.node == nil {
		return nil
	}
	return it.node
}

// Payload returns the zero value at the end of the sequence.
func (it RBIterator[E]) Payload() (payload E) {
	if it.node == nil {
		return payload
	}
	return it.node.payload
}

// Next climbs parent links instead of keeping a stack. The end iterator
// stays at the end.
func (it RBIterator[E]) Next() RBIterator[E] {
	if it.node == nil {
		return it
	}
	return RBIterator[E]{tree: it.tree, node: it.node.succ()}
}

func (it RBIterator[E]) HasMore() bool {
	return !it.Next().IsEnd()
}
