package tree

import (
	"errors"
)

// go install golang.org/x/tools/cmd/stringer@latest

//go:generate stringer -type=RBColor,RBDirection -output=rbcolor_string.go
type RBColor uint8

const (
	Black RBColor = iota
	Red
)

type RBDirection int8

const (
	Left RBDirection = -1 + iota
	Root
	Right
)

var ErrRBTreeResourceExhausted = errors.New("[rbtree] node resource exhausted")

// RBNode is the read-only view of a tree cell. The payload is owned by
// the caller, the cell by the tree.
type RBNode[E any] interface {
	Payload() E
	Color() RBColor
	Left() RBNode[E]
	Right() RBNode[E]
	Parent() RBNode[E]
}

// RBNodeDescriber renders one node as text for the diagnostics dumpers.
type RBNodeDescriber[E any] func(node RBNode[E]) string

// RBTree is an ordered set of caller-owned payloads.
// It is not safe for concurrent use.
type RBTree[E any] interface {
	Len() int64
	IsEmpty() bool
	Root() RBNode[E]
	Height() int
	// Insert returns false without mutation if an equal payload exists.
	Insert(payload E) (bool, error)
	Find(payload E) RBIterator[E]
	Member(payload E) bool
	// Remove is a no-op on the end iterator. Every iterator referencing
	// the removed node is invalid afterwards.
	Remove(it RBIterator[E])
	Delete(payload E) bool
	RemoveMin() (E, bool)
	Begin() RBIterator[E]
	Foreach(action func(idx int64, color RBColor, payload E) bool)
	Release()
}
