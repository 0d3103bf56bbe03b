package tree

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/benz9527/xbst/lib/infra"
)

var (
	ErrOrderViolation     = errors.New("[tree] search order violation")
	ErrLinkViolation      = errors.New("[tree] parent child link violation")
	ErrHeightViolation    = errors.New("[avl] stale height or balance")
	ErrBalanceViolation   = errors.New("[avl] balance factor out of range")
	ErrRedViolation       = errors.New("[rbtree] red node with red child")
	ErrBlackViolation     = errors.New("[rbtree] unequal black height")
	ErrRootColorViolation = errors.New("[rbtree] root is not black")
)

// preorder lists every node reachable from root. Reversed, children always
// come before their parent. More nodes than the store holds means a cycle.
func (s *nodeStore[K, M]) preorder(root NodeID) ([]NodeID, error) {
	if root == nilNode {
		return nil, nil
	}
	if p := s.slots[root].parent; p != nilNode {
		return nil, fmt.Errorf("%w: root %v has parent %v", ErrLinkViolation, s.key(root), s.key(p))
	}
	order := make([]NodeID, 0, s.live)
	stack := []NodeID{root}
	for len(stack) > 0 {
		aux := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if int64(len(order)) >= s.live || !s.slots[aux].inUse {
			return nil, fmt.Errorf("%w: cycle or released node %d", ErrLinkViolation, aux)
		}
		order = append(order, aux)
		for _, c := range [2]NodeID{s.slots[aux].left, s.slots[aux].right} {
			if c == nilNode {
				continue
			}
			if s.slots[c].parent != aux {
				return nil, fmt.Errorf("%w: %v is not the parent of %v", ErrLinkViolation, s.key(aux), s.key(c))
			}
			stack = append(stack, c)
		}
	}
	return order, nil
}

func (s *nodeStore[K, M]) validateLinks(root NodeID) error {
	order, err := s.preorder(root)
	if err != nil {
		return err
	}
	if int64(len(order)) != s.live {
		return fmt.Errorf("%w: %d reachable, %d live", ErrLinkViolation, len(order), s.live)
	}
	return nil
}

func (s *nodeStore[K, M]) validateOrder(root NodeID) error {
	var (
		prev    K
		hasPrev bool
	)
	for _, id := range s.ascend(root) {
		k := s.key(id)
		if hasPrev && s.cmp(prev, k) >= 0 {
			return fmt.Errorf("%w: %v is not before %v", ErrOrderViolation, prev, k)
		}
		prev, hasPrev = k, true
	}
	return nil
}

type treeInternals interface {
	validateLinks() error
	validateOrder() error
}

func (t *AVLTree[K]) validateLinks() error { return t.store.validateLinks(t.root) }
func (t *AVLTree[K]) validateOrder() error { return t.store.validateOrder(t.root) }
func (t *RBTree[K]) validateLinks() error  { return t.store.validateLinks(t.root) }
func (t *RBTree[K]) validateOrder() error  { return t.store.validateOrder(t.root) }

// LinkValidate checks that every parent reference mirrors a child reference
// and that every live node is reachable from the root.
func LinkValidate[K infra.OrderedKey](tree BalancedTree[K]) error {
	if ti, ok := tree.(treeInternals); ok {
		return ti.validateLinks()
	}
	return nil
}

// OrderValidate checks that an in-order walk is strictly increasing under
// the tree comparator.
func OrderValidate[K infra.OrderedKey](tree BalancedTree[K]) error {
	if ti, ok := tree.(treeInternals); ok {
		return ti.validateOrder()
	}
	return nil
}

// avlHeights recomputes every height from scratch.
func (t *AVLTree[K]) avlHeights() (map[NodeID]int, error) {
	order, err := t.store.preorder(t.root)
	if err != nil {
		return nil, err
	}
	heights := make(map[NodeID]int, len(order)+1)
	heights[nilNode] = -1
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		heights[id] = max(heights[t.store.left(id)], heights[t.store.right(id)]) + 1
	}
	return heights, nil
}

// HeightViolationValidate checks that the cached height and balance of
// every node match the real shape.
func HeightViolationValidate[K infra.OrderedKey](tree *AVLTree[K]) error {
	heights, err := tree.avlHeights()
	if err != nil {
		return err
	}
	for id, h := range heights {
		if id == nilNode {
			continue
		}
		m := tree.store.meta(id)
		b := heights[tree.store.left(id)] - heights[tree.store.right(id)]
		if m.height != h || m.balance != b {
			return fmt.Errorf("%w: key %v cached h%d/b%d, real h%d/b%d",
				ErrHeightViolation, tree.store.key(id), m.height, m.balance, h, b)
		}
	}
	return nil
}

// BalanceViolationValidate checks that no subtree heights differ by more
// than one.
func BalanceViolationValidate[K infra.OrderedKey](tree *AVLTree[K]) error {
	heights, err := tree.avlHeights()
	if err != nil {
		return err
	}
	for id := range heights {
		if id == nilNode {
			continue
		}
		if b := heights[tree.store.left(id)] - heights[tree.store.right(id)]; b < -1 || b > 1 {
			return fmt.Errorf("%w: key %v balance %d", ErrBalanceViolation, tree.store.key(id), b)
		}
	}
	return nil
}

func RootColorValidate[K infra.OrderedKey](tree *RBTree[K]) error {
	if tree.isRed(tree.root) {
		return fmt.Errorf("%w: key %v", ErrRootColorViolation, tree.store.key(tree.root))
	}
	return nil
}

func RedViolationValidate[K infra.OrderedKey](tree *RBTree[K]) error {
	for _, id := range tree.store.ascend(tree.root) {
		if !tree.isRed(id) {
			continue
		}
		for _, c := range [2]NodeID{tree.store.left(id), tree.store.right(id)} {
			if tree.isRed(c) {
				return fmt.Errorf("%w: %v under %v", ErrRedViolation, tree.store.key(c), tree.store.key(id))
			}
		}
	}
	return nil
}

// BlackViolationValidate checks that both sides of every node carry the
// same number of black nodes down to the absent leaves.
func BlackViolationValidate[K infra.OrderedKey](tree *RBTree[K]) error {
	order, err := tree.store.preorder(tree.root)
	if err != nil {
		return err
	}
	blackHeights := make(map[NodeID]int, len(order)+1)
	blackHeights[nilNode] = 1
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		lbh, rbh := blackHeights[tree.store.left(id)], blackHeights[tree.store.right(id)]
		if lbh != rbh {
			return fmt.Errorf("%w: key %v left %d right %d", ErrBlackViolation, tree.store.key(id), lbh, rbh)
		}
		if tree.isBlack(id) {
			lbh++
		}
		blackHeights[id] = lbh
	}
	return nil
}

// BlackHeight counts the black nodes from the root down to an absent leaf,
// the absent leaf excluded.
func BlackHeight[K infra.OrderedKey](tree *RBTree[K]) int {
	bh := 0
	for aux := tree.root; aux != nilNode; aux = tree.store.left(aux) {
		if tree.isBlack(aux) {
			bh++
		}
	}
	return bh
}

// Validate runs every structural check that applies to tree and joins the
// failures.
func Validate[K infra.OrderedKey](tree BalancedTree[K]) error {
	if err := LinkValidate(tree); err != nil {
		return err
	}
	err := OrderValidate(tree)
	switch t := tree.(type) {
	case *AVLTree[K]:
		err = multierr.Combine(err, HeightViolationValidate(t), BalanceViolationValidate(t))
	case *RBTree[K]:
		err = multierr.Combine(err, RootColorValidate(t), RedViolationValidate(t), BlackViolationValidate(t))
	default:
	}
	return err
}
