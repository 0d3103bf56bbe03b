package tree

import (
	"iter"

	"github.com/benz9527/xbst/lib/infra"
)

var _ BalancedTree[int] = (*RBTree[int])(nil)

type rbNodeRef[K infra.OrderedKey] struct {
	tree *RBTree[K]
	id   NodeID
}

func (ref rbNodeRef[K]) Key() K               { return ref.tree.store.key(ref.id) }
func (ref rbNodeRef[K]) Color() RBColor       { return *ref.tree.store.meta(ref.id) }
func (ref rbNodeRef[K]) Direction() Direction { return ref.tree.store.directionOf(ref.id) }
func (ref rbNodeRef[K]) Left() RBNode[K]      { return ref.tree.view(ref.tree.store.left(ref.id)) }
func (ref rbNodeRef[K]) Right() RBNode[K]     { return ref.tree.view(ref.tree.store.right(ref.id)) }
func (ref rbNodeRef[K]) Parent() RBNode[K]    { return ref.tree.view(ref.tree.store.parent(ref.id)) }

// RBTree is a red-black tree. Absent nodes count as black.
//
// Properties:
//  1. Every node is either red or black.
//  2. The root is black.
//  3. A red node has no red child.
//  4. Every path from a node down to an absent leaf passes the same
//     number of black nodes.
//
// It is not safe for concurrent use.
type RBTree[K infra.OrderedKey] struct {
	store *nodeStore[K, RBColor]
	obs   Observer[K]
	root  NodeID
}

func NewRBTree[K infra.OrderedKey](opts ...TreeOption[K]) *RBTree[K] {
	cfg := newTreeConfig[K](opts...)
	return &RBTree[K]{
		store: newNodeStore[K, RBColor](cfg.capacity, cfg.cmp),
		obs:   cfg.observer,
	}
}

func (t *RBTree[K]) Engine() Engine {
	return RedBlack
}

func (t *RBTree[K]) Len() int64 {
	return t.store.Live()
}

func (t *RBTree[K]) Root() RBNode[K] {
	return t.view(t.root)
}

func (t *RBTree[K]) view(id NodeID) RBNode[K] {
	if id == nilNode {
		return nil
	}
	return rbNodeRef[K]{tree: t, id: id}
}

func (t *RBTree[K]) emit(ev Event[K]) {
	if t.obs == nil {
		return
	}
	ev.Engine = RedBlack
	t.obs.OnEvent(ev)
}

func (t *RBTree[K]) released() func(NodeID) {
	if t.obs == nil {
		return nil
	}
	return func(id NodeID) {
		t.emit(Event[K]{Kind: EventReleased, Key: t.store.key(id), Color: *t.store.meta(id)})
	}
}

func (t *RBTree[K]) color(id NodeID) RBColor {
	if id == nilNode {
		return Black
	}
	return *t.store.meta(id)
}

func (t *RBTree[K]) isRed(id NodeID) bool {
	return t.color(id) == Red
}

func (t *RBTree[K]) isBlack(id NodeID) bool {
	return t.color(id) == Black
}

func (t *RBTree[K]) paint(id NodeID, c RBColor) {
	if id == nilNode {
		return
	}
	if m := t.store.meta(id); *m != c {
		*m = c
		t.emit(Event[K]{Kind: EventRecolored, Key: t.store.key(id), Color: c})
	}
}

func (t *RBTree[K]) rotate(x NodeID, dir Direction) NodeID {
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
	if t.store.parent(y) == nilNode {
		t.root = y
	}
	return y
}

func (t *RBTree[K]) rebalanced(c Case, id NodeID) {
	t.emit(Event[K]{Kind: EventRebalanced, Case: c, Key: t.store.key(id), Color: t.color(id)})
}

// Insert adds key as a red leaf and repairs the red violation it may cause.
func (t *RBTree[K]) Insert(key K) Outcome {
	if t.root == nilNode {
		t.root = t.store.allocate(key, Black)
		t.emit(Event[K]{Kind: EventInserted, Key: key, Color: Black})
		return Inserted
	}

	found, parent, dir := t.store.locate(t.root, key)
	if found != nilNode {
		t.emit(Event[K]{Kind: EventDuplicate, Key: key})
		return Duplicate
	}

	x := t.store.allocate(key, Red)
	t.store.setChild(parent, dir, x)
	t.emit(Event[K]{Kind: EventInserted, Key: key, Direction: dir, Color: Red})
	t.insertRebalance(x)
	return Inserted
}

/*
insertRebalance fixes a red x under a possibly red parent.

im1: Parent is black, nothing to do.

im2: Parent is a red root. Paint it black.

im3: Parent and uncle are red. Push the blackness down from the
grandparent and continue from the grandparent.

	      G(B)                  G(R)
	     /    \                /    \
	   P(R)   U(R)  ====>    P(B)   U(B)
	   /                     /
	 X(R)                  X(R)

im4: Uncle is black and x is the inner grandchild. Rotate at the parent
so x becomes the outer grandchild, then continue as im5.

	      G(B)                  G(B)
	     /    \                /    \
	   P(R)   U(B)  ====>    X(R)   U(B)
	      \                  /
	      X(R)             P(R)

im5: Uncle is black and x is the outer grandchild. Rotate at the
grandparent, the parent takes its place and color.

	        G(B)              P(B)
	       /    \            /    \
	     P(R)   U(B) ====> X(R)   G(R)
	     /                           \
	   X(R)                          U(B)
*/
func (t *RBTree[K]) insertRebalance(x NodeID) {
	for {
		p := t.store.parent(x)
		if p == nilNode {
			if t.isRed(x) {
				t.rebalanced(CaseRedRoot, x)
				t.paint(x, Black)
			}
			return
		}
		// im1
		if t.isBlack(p) {
			return
		}
		// im2
		g := t.store.parent(p)
		if g == nilNode {
			t.rebalanced(CaseRedRoot, p)
			t.paint(p, Black)
			return
		}
		// im3
		if u := t.store.sibling(p); t.isRed(u) {
			t.rebalanced(CaseRedUncle, x)
			t.paint(p, Black)
			t.paint(u, Black)
			t.paint(g, Red)
			x = g
			continue
		}
		// im4
		pDir := t.store.directionOf(p)
		if t.store.directionOf(x) != pDir {
			t.rebalanced(CaseInnerChild, x)
			t.rotate(p, pDir)
			x, p = p, x
		}
		// im5
		t.rebalanced(CaseOuterChild, x)
		t.rotate(g, pDir.Invert())
		t.paint(p, Black)
		t.paint(g, Red)
		return
	}
}

// Delete removes key. A node with two children first swaps its key with the
// in-order predecessor and that node is removed instead.
func (t *RBTree[K]) Delete(key K) Outcome {
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

	child := t.store.left(target)
	if child == nilNode {
		child = t.store.right(target)
	}

	if child != nilNode {
		t.emit(Event[K]{
			Kind:      EventDeleted,
			Case:      CaseDeleteSingleChild,
			Key:       key,
			Direction: t.store.directionOf(target),
			Color:     t.color(target),
		})
		if t.store.replace(target, child) {
			t.root = child
		}
		if t.isBlack(target) {
			if t.isRed(child) {
				t.rebalanced(CaseRedReplacement, child)
				t.paint(child, Black)
			} else {
				t.removeRebalance(child)
			}
		}
		t.store.unlink(target)
		t.store.release(target, t.released())
		return Deleted
	}

	t.emit(Event[K]{
		Kind:      EventDeleted,
		Case:      CaseDeleteLeaf,
		Key:       key,
		Direction: t.store.directionOf(target),
		Color:     t.color(target),
	})
	if target == t.root {
		t.root = nilNode
	} else if t.isBlack(target) {
		// The leaf is still linked, it stands in for the absent node that
		// will lack one black.
		t.removeRebalance(target)
	}
	t.store.release(target, t.released())
	return Deleted
}

/*
removeRebalance fixes the subtree rooted at x that is one black short of
its sibling's subtree. S is the sibling, N the near nephew (the sibling's
child on x's side) and F the far nephew.

rm1: S is black, N is red. Rotate S outward then P inward, N takes P's
place and color, P turns black. Done.

	      P(?)                 P(?)               N(?)
	     /    \               /    \             /    \
	   X(B)   S(B)   ====>  X(B)   N(R)  ====> P(B)   S(B)
	          /                      \         /
	        N(R)                     S(B)    X(B)

rm2: S is black, N is black, F is red. Rotate P inward, S takes P's
place and color, P and F turn black. Done.

	      P(?)                  S(?)
	     /    \                /    \
	   X(B)   S(B)   ====>   P(B)   F(B)
	             \           /
	             F(R)      X(B)

rm3: S and both nephews are black, P is red. Swap the colors of P and S.
Done.

rm4: S, both nephews and P are black. Paint S red, the whole subtree of
P is now one black short, continue from P.

rm5: S is red, so P is black. Rotate P inward, S turns black and P red.
X gets a black sibling, continue from x.

	      P(B)                  S(B)
	     /    \                /    \
	   X(B)   S(R)   ====>   P(R)   F(B)
	          /  \           /  \
	        N(B) F(B)      X(B) N(B)
*/
func (t *RBTree[K]) removeRebalance(x NodeID) {
	for {
		p := t.store.parent(x)
		if p == nilNode {
			t.rebalanced(CaseDeficientRoot, x)
			t.paint(x, Black)
			return
		}
		dir := t.store.directionOf(x)
		s := t.store.child(p, dir.Invert())
		if s == nilNode {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] black deficient node without sibling")
		}

		// rm5
		if t.isRed(s) {
			t.rebalanced(CaseRedSibling, s)
			t.rotate(p, dir)
			t.paint(s, Black)
			t.paint(p, Red)
			continue
		}

		near, far := t.store.child(s, dir), t.store.child(s, dir.Invert())
		switch {
		case /* rm1 */ t.isRed(near):
			t.rebalanced(CaseRedNearNephew, near)
			pc := t.color(p)
			t.rotate(s, dir.Invert())
			t.rotate(p, dir)
			t.paint(near, pc)
			t.paint(p, Black)
			return
		case /* rm2 */ t.isRed(far):
			t.rebalanced(CaseRedFarNephew, far)
			pc := t.color(p)
			t.rotate(p, dir)
			t.paint(s, pc)
			t.paint(p, Black)
			t.paint(far, Black)
			return
		case /* rm3 */ t.isRed(p):
			t.rebalanced(CaseRedParent, p)
			t.paint(s, Red)
			t.paint(p, Black)
			return
		default: /* rm4 */
			t.rebalanced(CaseBlackFamily, p)
			t.paint(s, Red)
			x = p
		}
	}
}

// Search returns the node holding key or nil.
func (t *RBTree[K]) Search(key K) RBNode[K] {
	return t.view(t.store.search(t.root, key))
}

func (t *RBTree[K]) Contains(key K) bool {
	return t.store.search(t.root, key) != nilNode
}

func (t *RBTree[K]) Min() (K, bool) {
	if t.root == nilNode {
		return *new(K), false
	}
	return t.store.key(t.store.minimum(t.root)), true
}

func (t *RBTree[K]) Max() (K, bool) {
	if t.root == nilNode {
		return *new(K), false
	}
	return t.store.key(t.store.maximum(t.root)), true
}

// Keys yields the keys in tree order. Every call restarts from the root.
func (t *RBTree[K]) Keys() iter.Seq[K] {
	return t.store.keys(t.root)
}

// Walk yields (depth, node) from the greatest key to the least.
func (t *RBTree[K]) Walk() iter.Seq2[int, RBNode[K]] {
	return func(yield func(int, RBNode[K]) bool) {
		for depth, id := range t.store.descend(t.root) {
			if !yield(depth, t.view(id)) {
				return
			}
		}
	}
}

// Release frees every node.
func (t *RBTree[K]) Release() {
	root := t.root
	t.root = nilNode
	t.store.release(root, t.released())
}
