package tree

import "github.com/benz9527/xbst/lib/infra"

type Engine uint8

const (
	AVL Engine = iota
	RedBlack
)

func (e Engine) String() string {
	switch e {
	case AVL:
		return "avl"
	case RedBlack:
		return "rbtree"
	default:
	}
	return "unknown"
}

type EventKind uint8

const (
	EventInserted EventKind = iota
	EventDuplicate
	EventDeleted
	EventNotFound
	EventRotated
	EventRotationSkipped
	EventRecolored
	EventHeightUpdated
	EventImbalanceFound
	EventRebalanced
	EventSwapped
	EventReleased
)

var eventKindNames = [...]string{
	EventInserted:        "inserted",
	EventDuplicate:       "duplicate",
	EventDeleted:         "deleted",
	EventNotFound:        "not-found",
	EventRotated:         "rotated",
	EventRotationSkipped: "rotation-skipped",
	EventRecolored:       "recolored",
	EventHeightUpdated:   "height-updated",
	EventImbalanceFound:  "imbalance-found",
	EventRebalanced:      "rebalanced",
	EventSwapped:         "swapped",
	EventReleased:        "released",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "unknown"
}

// Case labels the branch of a rebalancing or deletion procedure.
type Case string

const (
	CaseNone Case = ""

	// AVL rotations, named after where the tallest grandchild of the
	// unbalanced node sits.
	CaseLeftLeft   Case = "LL"
	CaseLeftRight  Case = "LR"
	CaseRightRight Case = "RR"
	CaseRightLeft  Case = "RL"

	// Deletion shapes shared by both engines.
	CaseDeleteLeaf        Case = "delete-leaf"
	CaseDeleteSingleChild Case = "delete-single-child"
	CaseDeleteTwoChildren Case = "delete-two-children"

	// Red-black insertion.
	CaseRedRoot    Case = "red-root"
	CaseRedUncle   Case = "red-uncle"
	CaseInnerChild Case = "inner-child"
	CaseOuterChild Case = "outer-child"

	// Red-black deletion fix-up.
	CaseRedNearNephew  Case = "red-near-nephew"
	CaseRedFarNephew   Case = "red-far-nephew"
	CaseRedParent      Case = "red-parent"
	CaseBlackFamily    Case = "black-family"
	CaseRedSibling     Case = "red-sibling"
	CaseDeficientRoot  Case = "deficient-root"
	CaseRedReplacement Case = "red-replacement"
)

// Event is a structured notification emitted while a tree mutates.
//
// Key is the node the event is about. Peer carries the second node when the
// event involves two: the child lifted by a rotation, the swap partner, or
// the child (alpha) of an unbalanced node. Before and After carry heights
// for EventHeightUpdated and balance factors for EventImbalanceFound.
type Event[K infra.OrderedKey] struct {
	Engine    Engine
	Kind      EventKind
	Case      Case
	Key       K
	Peer      K
	HasPeer   bool
	Direction Direction
	Color     RBColor
	Before    int
	After     int
}

type Observer[K infra.OrderedKey] interface {
	OnEvent(ev Event[K])
}

type ObserverFunc[K infra.OrderedKey] func(ev Event[K])

func (fn ObserverFunc[K]) OnEvent(ev Event[K]) {
	fn(ev)
}

type multiObserver[K infra.OrderedKey] []Observer[K]

func (mo multiObserver[K]) OnEvent(ev Event[K]) {
	for _, o := range mo {
		o.OnEvent(ev)
	}
}

// MultiObserver fans every event out to all non-nil observers in order.
func MultiObserver[K infra.OrderedKey](observers ...Observer[K]) Observer[K] {
	mo := make(multiObserver[K], 0, len(observers))
	for _, o := range observers {
		if o != nil {
			mo = append(mo, o)
		}
	}
	if len(mo) == 0 {
		return nil
	}
	if len(mo) == 1 {
		return mo[0]
	}
	return mo
}

type treeConfig[K infra.OrderedKey] struct {
	observer Observer[K]
	cmp      infra.OrderedKeyComparator[K]
	capacity uint32
}

type TreeOption[K infra.OrderedKey] func(*treeConfig[K])

func WithObserver[K infra.OrderedKey](observers ...Observer[K]) TreeOption[K] {
	return func(cfg *treeConfig[K]) {
		cfg.observer = MultiObserver[K](append([]Observer[K]{cfg.observer}, observers...)...)
	}
}

// WithDescOrder makes the tree order keys from the greatest to the least.
func WithDescOrder[K infra.OrderedKey]() TreeOption[K] {
	return func(cfg *treeConfig[K]) {
		cfg.cmp = infra.ReverseOrderedKey[K]
	}
}

// WithCapacity preallocates node slots.
func WithCapacity[K infra.OrderedKey](capacity uint32) TreeOption[K] {
	return func(cfg *treeConfig[K]) {
		cfg.capacity = capacity
	}
}

func newTreeConfig[K infra.OrderedKey](opts ...TreeOption[K]) *treeConfig[K] {
	cfg := &treeConfig[K]{
		cmp: infra.CompareOrderedKey[K],
	}
	for _, o := range opts {
		if o != nil {
			o(cfg)
		}
	}
	return cfg
}
