package tree

import (
	"iter"
	"math"

	"github.com/benz9527/xbst/lib/infra"
)

// NodeID addresses a slot inside a nodeStore. The zero value is the absent
// node, slot 0 is reserved and never handed out.
type NodeID uint32

const (
	nilNode  NodeID = 0
	maxSlots        = math.MaxUint32
)

type slot[K infra.OrderedKey, M any] struct {
	parent NodeID // weak back-reference, never ownership
	left   NodeID
	right  NodeID
	key    K
	meta   M
	inUse  bool
}

// nodeStore is an auto growth arena of tree nodes. Released slots are
// recycled before the backing slice grows again.
// M is the per engine metadata (AVL height/balance, red-black color).
type nodeStore[K infra.OrderedKey, M any] struct {
	slots    []slot[K, M]
	recycled []NodeID
	cmp      infra.OrderedKeyComparator[K]
	live     int64
}

func newNodeStore[K infra.OrderedKey, M any](capacity uint32, cmp infra.OrderedKeyComparator[K]) *nodeStore[K, M] {
	if cmp == nil {
		cmp = infra.CompareOrderedKey[K]
	}
	s := &nodeStore[K, M]{
		slots:    make([]slot[K, M], 1, int(capacity)+1),
		recycled: make([]NodeID, 0, 16),
		cmp:      cmp,
	}
	return s
}

func (s *nodeStore[K, M]) Live() int64 {
	return s.live
}

// node returns the slot of id. The pointer must not be kept across an
// allocate call, the backing slice may move.
func (s *nodeStore[K, M]) node(id NodeID) *slot[K, M] {
	return &s.slots[id]
}

func (s *nodeStore[K, M]) key(id NodeID) K {
	return s.slots[id].key
}

func (s *nodeStore[K, M]) meta(id NodeID) *M {
	return &s.slots[id].meta
}

func (s *nodeStore[K, M]) parent(id NodeID) NodeID {
	if id == nilNode {
		return nilNode
	}
	return s.slots[id].parent
}

func (s *nodeStore[K, M]) left(id NodeID) NodeID {
	if id == nilNode {
		return nilNode
	}
	return s.slots[id].left
}

func (s *nodeStore[K, M]) right(id NodeID) NodeID {
	if id == nilNode {
		return nilNode
	}
	return s.slots[id].right
}

// allocate returns a detached node. Running out of addressable slots is
// fatal, a tree has no degraded mode without node storage.
func (s *nodeStore[K, M]) allocate(key K, meta M) NodeID {
	var id NodeID
	if l := len(s.recycled); l > 0 {
		id = s.recycled[l-1]
		s.recycled = s.recycled[:l-1]
	} else {
		if uint64(len(s.slots)) >= maxSlots {
			panic(infra.NewErrorStack("[tree] node store exhausted"))
		}
		s.slots = append(s.slots, slot[K, M]{})
		id = NodeID(len(s.slots) - 1)
	}
	s.slots[id] = slot[K, M]{
		key:   key,
		meta:  meta,
		inUse: true,
	}
	s.live++
	return id
}

// release detaches id from its parent and frees the whole subtree under it.
// Callers unlink whatever they want to keep beforehand.
func (s *nodeStore[K, M]) release(id NodeID, freed func(NodeID)) {
	if id == nilNode || !s.slots[id].inUse {
		return
	}
	if p := s.slots[id].parent; p != nilNode {
		s.setChild(p, s.directionOf(id), nilNode)
	}

	stack := make([]NodeID, 0, 16)
	stack = append(stack, id)
	for len(stack) > 0 {
		aux := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &s.slots[aux]
		if n.left != nilNode {
			stack = append(stack, n.left)
		}
		if n.right != nilNode {
			stack = append(stack, n.right)
		}
		if freed != nil {
			freed(aux)
		}
		s.slots[aux] = slot[K, M]{}
		s.recycled = append(s.recycled, aux)
		s.live--
	}
}

// reset drops every node at once.
func (s *nodeStore[K, M]) reset() {
	clear(s.slots)
	s.slots = s.slots[:1]
	s.recycled = s.recycled[:0]
	s.live = 0
}

func (s *nodeStore[K, M]) search(root NodeID, key K) NodeID {
	for aux := root; aux != nilNode; {
		res := s.cmp(key, s.slots[aux].key)
		if res == 0 {
			return aux
		} else if res < 0 {
			aux = s.slots[aux].left
		} else {
			aux = s.slots[aux].right
		}
	}
	return nilNode
}

// locate descends from root to the slot where key lives or would be
// attached. It returns the matched node (or nilNode) together with the last
// visited node and the direction from it.
func (s *nodeStore[K, M]) locate(root NodeID, key K) (found, parent NodeID, dir Direction) {
	for aux := root; aux != nilNode; {
		res := s.cmp(key, s.slots[aux].key)
		if res == 0 {
			return aux, s.slots[aux].parent, s.directionOf(aux)
		}
		parent = aux
		if res < 0 {
			dir, aux = Left, s.slots[aux].left
		} else {
			dir, aux = Right, s.slots[aux].right
		}
	}
	return nilNode, parent, dir
}

func (s *nodeStore[K, M]) directionOf(id NodeID) Direction {
	if id == nilNode {
		return None
	}
	p := s.slots[id].parent
	if p == nilNode {
		return None
	}
	if s.slots[p].left == id {
		return Left
	}
	if s.slots[p].right == id {
		return Right
	}
	// impossible run to here
	panic( /* debug assertion */ "[tree] parent does not own the child")
}

func (s *nodeStore[K, M]) child(id NodeID, dir Direction) NodeID {
	if id == nilNode {
		return nilNode
	}
	switch dir {
	case Left:
		return s.slots[id].left
	case Right:
		return s.slots[id].right
	default:
	}
	return nilNode
}

func (s *nodeStore[K, M]) sibling(id NodeID) NodeID {
	dir := s.directionOf(id)
	if dir == None {
		return nilNode
	}
	return s.child(s.slots[id].parent, dir.Invert())
}

// closestDescendant walks one step toward dir, then as far as possible the
// other way. Left yields the in-order predecessor inside the subtree, Right
// the successor. Without a first step the node itself is returned.
func (s *nodeStore[K, M]) closestDescendant(id NodeID, dir Direction) NodeID {
	if id == nilNode || dir == None {
		return nilNode
	}
	aux := s.child(id, dir)
	if aux == nilNode {
		return id
	}
	for back := dir.Invert(); s.child(aux, back) != nilNode; {
		aux = s.child(aux, back)
	}
	return aux
}

// setChild links child under parent and fixes the child's back-reference.
func (s *nodeStore[K, M]) setChild(parent NodeID, dir Direction, child NodeID) {
	switch dir {
	case Left:
		s.slots[parent].left = child
	case Right:
		s.slots[parent].right = child
	default:
		// impossible run to here
		panic( /* debug assertion */ "[tree] set child without direction")
	}
	if child != nilNode {
		s.slots[child].parent = parent
	}
}

// replace puts repl into old's position. It reports whether old was the
// root, so the caller can move its root reference.
func (s *nodeStore[K, M]) replace(old, repl NodeID) (wasRoot bool) {
	p := s.slots[old].parent
	if p == nilNode {
		if repl != nilNode {
			s.slots[repl].parent = nilNode
		}
		return true
	}
	s.setChild(p, s.directionOf(old), repl)
	s.slots[old].parent = nilNode
	return false
}

// unlink clears every link of id so a following release frees id alone.
// The former neighbours must already point elsewhere.
func (s *nodeStore[K, M]) unlink(id NodeID) {
	n := &s.slots[id]
	n.parent, n.left, n.right = nilNode, nilNode, nilNode
}

func (s *nodeStore[K, M]) swapKeys(a, b NodeID) {
	s.slots[a].key, s.slots[b].key = s.slots[b].key, s.slots[a].key
}

/*
rotate(X, Left) lifts the right child S:

		 |                         |
		 X                         S
		/ \     rotate(X, Left)   / \
	   L   S    ============>    X   Sd
		  / \                   / \
		Sc   Sd                L   Sc

rotate(S, Right) is the exact inverse.

The rotation is skipped (false) when the child to lift is absent. The
returned node is the new subtree root, or x itself on a skip.
*/
func (s *nodeStore[K, M]) rotate(x NodeID, dir Direction) (NodeID, bool) {
	if x == nilNode || dir == None {
		return x, false
	}
	y := s.child(x, dir.Invert())
	if y == nilNode {
		return x, false
	}

	p, xDir := s.slots[x].parent, s.directionOf(x)
	inner := s.child(y, dir)
	s.setChild(x, dir.Invert(), inner)
	s.setChild(y, dir, x)

	if xDir == None {
		s.slots[y].parent = nilNode
	} else {
		s.setChild(p, xDir, y)
	}
	return y, true
}

func (s *nodeStore[K, M]) depthOf(id NodeID) int {
	depth := 0
	for aux := s.parent(id); aux != nilNode; aux = s.parent(aux) {
		depth++
	}
	return depth
}

func (s *nodeStore[K, M]) minimum(root NodeID) NodeID {
	aux := root
	for ; aux != nilNode && s.slots[aux].left != nilNode; aux = s.slots[aux].left {
	}
	return aux
}

func (s *nodeStore[K, M]) maximum(root NodeID) NodeID {
	aux := root
	for ; aux != nilNode && s.slots[aux].right != nilNode; aux = s.slots[aux].right {
	}
	return aux
}

type visitFrame struct {
	id    NodeID
	depth int
}

// walk is an in-order traversal with an explicit stack. first is the side
// visited before the node itself.
func (s *nodeStore[K, M]) walk(root NodeID, first Direction) iter.Seq2[int, NodeID] {
	return func(yield func(int, NodeID) bool) {
		stack := make([]visitFrame, 0, 32)
		defer func() {
			clear(stack)
		}()
		push := func(id NodeID, depth int) {
			for ; id != nilNode; id, depth = s.child(id, first), depth+1 {
				stack = append(stack, visitFrame{id: id, depth: depth})
			}
		}

		push(root, 0)
		for size := len(stack); size > 0; size = len(stack) {
			f := stack[size-1]
			stack = stack[:size-1]
			if !yield(f.depth, f.id) {
				return
			}
			push(s.child(f.id, first.Invert()), f.depth+1)
		}
	}
}

// ascend visits keys in comparator order.
func (s *nodeStore[K, M]) ascend(root NodeID) iter.Seq2[int, NodeID] {
	return s.walk(root, Left)
}

// descend visits the right subtree, the node, then the left subtree, so
// larger keys are printed above smaller ones.
func (s *nodeStore[K, M]) descend(root NodeID) iter.Seq2[int, NodeID] {
	return s.walk(root, Right)
}

func (s *nodeStore[K, M]) keys(root NodeID) iter.Seq[K] {
	return func(yield func(K) bool) {
		for _, id := range s.ascend(root) {
			if !yield(s.slots[id].key) {
				return
			}
		}
	}
}
