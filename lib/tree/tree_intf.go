package tree

import (
	"iter"

	"github.com/benz9527/xbst/lib/infra"
)

// go install golang.org/x/tools/cmd/stringer@latest

//go:generate stringer -type=RBColor
type RBColor uint8

const (
	Black RBColor = iota
	Red
)

//go:generate stringer -type=Direction
type Direction int8

const (
	Left Direction = -1 + iota
	None
	Right
)

// Invert turns Left into Right and the reverse. None stays None.
func (dir Direction) Invert() Direction {
	return -dir
}

//go:generate stringer -type=Outcome
type Outcome uint8

const (
	Inserted Outcome = iota
	Duplicate
	Deleted
	NotFound
)

// AVLNode is a read-only view of an AVL tree node.
// A view is valid until the next mutation of its tree: deleting a node with
// two children moves keys between nodes.
type AVLNode[K infra.OrderedKey] interface {
	Key() K
	Height() int
	Balance() int
	Direction() Direction
	Left() AVLNode[K]
	Right() AVLNode[K]
	Parent() AVLNode[K]
}

// RBNode is a read-only view of a red-black tree node.
type RBNode[K infra.OrderedKey] interface {
	Key() K
	Color() RBColor
	Direction() Direction
	Left() RBNode[K]
	Right() RBNode[K]
	Parent() RBNode[K]
}

// BalancedTree is the procedural surface shared by both engines.
// Callers own the tree exclusively, mutations must be serialized.
type BalancedTree[K infra.OrderedKey] interface {
	Engine() Engine
	Len() int64
	Insert(key K) Outcome
	Delete(key K) Outcome
	Contains(key K) bool
	Min() (K, bool)
	Max() (K, bool)
	Keys() iter.Seq[K]
	Release()
}
