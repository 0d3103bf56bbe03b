package tree

import (
	"iter"

	"github.com/benz9527/xbst/lib/infra"
)

var _ BalancedTree[int] = (*AVLTree[int])(nil)

// A freshly attached leaf starts at height -1 so the first refresh always
// reports a change and the update climbs to its parent.
const detachedLeafHeight = -1

type avlMeta struct {
	height  int
	balance int // left side height - right side height
}

type avlNodeRef[K infra.OrderedKey] struct {
	tree *AVLTree[K]
	id   NodeID
}

func (ref avlNodeRef[K]) Key() K               { return ref.tree.store.key(ref.id) }
func (ref avlNodeRef[K]) Height() int          { return ref.tree.store.meta(ref.id).height }
func (ref avlNodeRef[K]) Balance() int         { return ref.tree.store.meta(ref.id).balance }
func (ref avlNodeRef[K]) Direction() Direction { return ref.tree.store.directionOf(ref.id) }
func (ref avlNodeRef[K]) Left() AVLNode[K]     { return ref.tree.view(ref.tree.store.left(ref.id)) }
func (ref avlNodeRef[K]) Right() AVLNode[K]    { return ref.tree.view(ref.tree.store.right(ref.id)) }
func (ref avlNodeRef[K]) Parent() AVLNode[K]   { return ref.tree.view(ref.tree.store.parent(ref.id)) }

// AVLTree keeps the balance factor of every node in {-1, 0, 1}.
// It is not safe for concurrent use.
type AVLTree[K infra.OrderedKey] struct {
	store *nodeStore[K, avlMeta]
	obs   Observer[K]
	root  NodeID
}

func NewAVLTree[K infra.OrderedKey](opts ...TreeOption[K]) *AVLTree[K] {
	cfg := newTreeConfig[K](opts...)
	return &AVLTree[K]{
		store: newNodeStore[K, avlMeta](cfg.capacity, cfg.cmp),
		obs:   cfg.observer,
	}
}

func (t *AVLTree[K]) Engine() Engine {
	return AVL
}

func (t *AVLTree[K]) Len() int64 {
	return t.store.Live()
}

func (t *AVLTree[K]) Root() AVLNode[K] {
	return t.view(t.root)
}

func (t *AVLTree[K]) view(id NodeID) AVLNode[K] {
	if id == nilNode {
		return nil
	}
	return avlNodeRef[K]{tree: t, id: id}
}

func (t *AVLTree[K]) emit(ev Event[K]) {
	if t.obs == nil {
		return
	}
	ev.Engine = AVL
	t.obs.OnEvent(ev)
}

func (t *AVLTree[K]) released() func(NodeID) {
	if t.obs == nil {
		return nil
	}
	return func(id NodeID) {
		t.emit(Event[K]{Kind: EventReleased, Key: t.store.key(id)})
	}
}

func (t *AVLTree[K]) heightOf(id NodeID) int {
	if id == nilNode {
		return -1
	}
	return t.store.meta(id).height
}

// refresh recomputes the height and balance of id from its children, which
// must already be up to date. It reports whether the height moved.
func (t *AVLTree[K]) refresh(id NodeID) bool {
	lh, rh := t.heightOf(t.store.left(id)), t.heightOf(t.store.right(id))
	m := t.store.meta(id)
	before := m.height
	m.height = max(lh, rh) + 1
	m.balance = lh - rh
	if before == m.height {
		return false
	}
	t.emit(Event[K]{
		Kind:   EventHeightUpdated,
		Key:    t.store.key(id),
		Before: before,
		After:  m.height,
	})
	return true
}

// propagate refreshes from id toward the root and stops at the first node
// whose height did not change. Ancestors above it are unaffected.
func (t *AVLTree[K]) propagate(id NodeID) {
	for aux := id; aux != nilNode; aux = t.store.parent(aux) {
		if !t.refresh(aux) {
			return
		}
	}
}

func (t *AVLTree[K]) rotate(x NodeID, dir Direction) NodeID {
	y, ok := t.store.rotate(x, dir)
	if !ok {
		t.emit(Event[K]{Kind: EventRotationSkipped, Key: t.store.key(x), Direction: dir})
		return x
	}
	t.emit(Event[K]{
		Kind:      EventRotated,
		Key:       t.store.key(x),
		Peer:      t.store.key(y),
		HasPeer:   true,
		Direction: dir,
	})
	// x is y's child now.
	t.refresh(x)
	t.refresh(y)
	if t.store.parent(y) == nilNode {
		t.root = y
	}
	return y
}

/*
fix restores the balance of beta whose balance factor is ±2. Alpha is
the taller child of beta.

LL: alpha leans left (or is even) under a left heavy beta.

	    B               A
	   / \             / \
	  A   c  ====>    a   B
	 / \                 / \
	a   b               b   c

LR: alpha leans right under a left heavy beta. Rotate alpha left first,
then continue as LL.

	    B              B              C
	   / \            / \           /   \
	  A   d  ====>   C   d  ====>  A     B
	 / \            / \           / \   / \
	a   C          A   c         a   b c   d
	   / \        / \
	  b   c      a   b

RR and RL are the mirrors.
*/
func (t *AVLTree[K]) fix(beta NodeID) NodeID {
	betaBalance := t.store.meta(beta).balance
	heavy := Left
	if betaBalance < 0 {
		heavy = Right
	}
	alpha := t.store.child(beta, heavy)
	alphaBalance := t.store.meta(alpha).balance
	t.emit(Event[K]{
		Kind:      EventImbalanceFound,
		Key:       t.store.key(beta),
		Peer:      t.store.key(alpha),
		HasPeer:   true,
		Direction: heavy,
		Before:    betaBalance,
		After:     alphaBalance,
	})

	var c Case
	switch {
	case /* LL */ heavy == Left && alphaBalance >= 0:
		c = CaseLeftLeft
	case /* LR */ heavy == Left:
		c = CaseLeftRight
		t.rotate(alpha, Left)
	case /* RR */ alphaBalance <= 0:
		c = CaseRightRight
	default: /* RL */
		c = CaseRightLeft
		t.rotate(alpha, Right)
	}
	top := t.rotate(beta, heavy.Invert())
	t.emit(Event[K]{Kind: EventRebalanced, Case: c, Key: t.store.key(top)})
	return top
}

// rebalance walks from id to the root and fixes every node whose balance
// factor reached ±2. After an insertion at most one node is fixed, a
// deletion may need one fix per ancestor.
func (t *AVLTree[K]) rebalance(id NodeID) {
	for aux := id; aux != nilNode; aux = t.store.parent(aux) {
		if b := t.store.meta(aux).balance; b > -2 && b < 2 {
			continue
		}
		aux = t.fix(aux)
		t.propagate(t.store.parent(aux))
	}
}

// Insert adds key as a new leaf. Inserting an existing key changes nothing
// and reports Duplicate.
func (t *AVLTree[K]) Insert(key K) Outcome {
	if t.root == nilNode {
		t.root = t.store.allocate(key, avlMeta{})
		t.emit(Event[K]{Kind: EventInserted, Key: key})
		return Inserted
	}

	found, parent, dir := t.store.locate(t.root, key)
	if found != nilNode {
		t.emit(Event[K]{Kind: EventDuplicate, Key: key})
		return Duplicate
	}

	z := t.store.allocate(key, avlMeta{height: detachedLeafHeight})
	t.store.setChild(parent, dir, z)
	t.emit(Event[K]{Kind: EventInserted, Key: key, Direction: dir})

	t.propagate(z)
	t.rebalance(z)
	return Inserted
}

// Delete removes key. A node with two children first swaps its key with the
// in-order predecessor, which has at most one child, and that node is
// removed instead.
func (t *AVLTree[K]) Delete(key K) Outcome {
	target := t.store.search(t.root, key)
	if target == nilNode {
		t.emit(Event[K]{Kind: EventNotFound, Key: key})
		return NotFound
	}

	for t.store.left(target) != nilNode && t.store.right(target) != nilNode {
		pred := t.store.closestDescendant(target, Left)
		t.emit(Event[K]{
			Kind:    EventSwapped,
			Case:    CaseDeleteTwoChildren,
			Key:     t.store.key(target),
			Peer:    t.store.key(pred),
			HasPeer: true,
		})
		t.store.swapKeys(target, pred)
		target = pred
	}

	parent := t.store.parent(target)
	child := t.store.left(target)
	if child == nilNode {
		child = t.store.right(target)
	}

	if child == nilNode {
		t.emit(Event[K]{Kind: EventDeleted, Case: CaseDeleteLeaf, Key: key, Direction: t.store.directionOf(target)})
		if parent == nilNode {
			t.root = nilNode
		}
	} else {
		t.emit(Event[K]{Kind: EventDeleted, Case: CaseDeleteSingleChild, Key: key, Direction: t.store.directionOf(target)})
		if t.store.replace(target, child) {
			t.root = child
		}
		t.store.unlink(target)
	}
	t.store.release(target, t.released())

	if parent != nilNode {
		t.propagate(parent)
		t.rebalance(parent)
	}
	return Deleted
}

// Search returns the node holding key or nil.
func (t *AVLTree[K]) Search(key K) AVLNode[K] {
	return t.view(t.store.search(t.root, key))
}

func (t *AVLTree[K]) Contains(key K) bool {
	return t.store.search(t.root, key) != nilNode
}

func (t *AVLTree[K]) Min() (K, bool) {
	if t.root == nilNode {
		return *new(K), false
	}
	return t.store.key(t.store.minimum(t.root)), true
}

func (t *AVLTree[K]) Max() (K, bool) {
	if t.root == nilNode {
		return *new(K), false
	}
	return t.store.key(t.store.maximum(t.root)), true
}

// Keys yields the keys in tree order. Every call restarts from the root.
func (t *AVLTree[K]) Keys() iter.Seq[K] {
	return t.store.keys(t.root)
}

// Walk yields (depth, node) visiting the right subtree before the node and
// the left subtree after it, the order used to print a tree sideways.
func (t *AVLTree[K]) Walk() iter.Seq2[int, AVLNode[K]] {
	return func(yield func(int, AVLNode[K]) bool) {
		for depth, id := range t.store.descend(t.root) {
			if !yield(depth, t.view(id)) {
				return
			}
		}
	}
}

// Release frees every node.
func (t *AVLTree[K]) Release() {
	root := t.root
	t.root = nilNode
	t.store.release(root, t.released())
}
