package stress

import (
	"errors"
	"fmt"
	randv2 "math/rand/v2"
	"slices"

	"github.com/benz9527/xbst/lib/tree"
)

var (
	ErrOutcomeMismatch = errors.New("[stress] unexpected outcome")
	ErrContentMismatch = errors.New("[stress] tree content diverged from the reference set")
)

// Trial replays one seeded operation sequence against a fresh tree.
type Trial struct {
	ID     int
	Engine tree.Engine
	Seed   uint64
	Keys   int
}

// Result of a trial. Err is nil when every check passed.
type Result struct {
	Trial
	Ops      int
	Inserted int
	Deleted  int
	Err      error
}

func newTree(engine tree.Engine, opts ...tree.TreeOption[int]) tree.BalancedTree[int] {
	if engine == tree.AVL {
		return tree.NewAVLTree[int](opts...)
	}
	return tree.NewRBTree[int](opts...)
}

// trialState checks the tree against a plain set after every operation.
type trialState struct {
	tr  tree.BalancedTree[int]
	ref map[int]struct{}
	res *Result
}

func (s *trialState) insert(key int) error {
	_, exists := s.ref[key]
	want := tree.Inserted
	if exists {
		want = tree.Duplicate
	}
	return s.apply("insert", key, s.tr.Insert(key), want, func() {
		s.ref[key] = struct{}{}
		s.res.Inserted++
	})
}

func (s *trialState) delete(key int) error {
	_, exists := s.ref[key]
	want := tree.NotFound
	if exists {
		want = tree.Deleted
	}
	return s.apply("delete", key, s.tr.Delete(key), want, func() {
		delete(s.ref, key)
		s.res.Deleted++
	})
}

func (s *trialState) apply(op string, key int, got, want tree.Outcome, onChange func()) error {
	s.res.Ops++
	if got != want {
		return fmt.Errorf("%w: op %d %s(%d) got %s, want %s", ErrOutcomeMismatch, s.res.Ops, op, key, got, want)
	}
	if got == tree.Inserted || got == tree.Deleted {
		onChange()
	}
	if err := tree.Validate[int](s.tr); err != nil {
		return fmt.Errorf("op %d %s(%d): %w", s.res.Ops, op, key, err)
	}
	return nil
}

// verify compares the ordered traversal and the queries with the set.
func (s *trialState) verify() error {
	expected := make([]int, 0, len(s.ref))
	for k := range s.ref {
		expected = append(expected, k)
	}
	slices.Sort(expected)
	actual := slices.Collect(s.tr.Keys())
	if !slices.Equal(expected, actual) {
		return fmt.Errorf("%w: %d keys in tree, %d expected", ErrContentMismatch, len(actual), len(expected))
	}
	if s.tr.Len() != int64(len(expected)) {
		return fmt.Errorf("%w: len %d, want %d", ErrContentMismatch, s.tr.Len(), len(expected))
	}
	minKey, okMin := s.tr.Min()
	maxKey, okMax := s.tr.Max()
	if okMin != (len(expected) > 0) || okMax != okMin {
		return fmt.Errorf("%w: min/max presence", ErrContentMismatch)
	}
	if okMin && (minKey != expected[0] || maxKey != expected[len(expected)-1]) {
		return fmt.Errorf("%w: min %d max %d", ErrContentMismatch, minKey, maxKey)
	}
	for _, k := range expected {
		if !s.tr.Contains(k) {
			return fmt.Errorf("%w: missing %d", ErrContentMismatch, k)
		}
	}
	return nil
}

// run executes three phases: random inserts, a mixed phase and the
// deletion of every remaining key in random order. The key space is twice
// the number of keys so duplicates and absent deletions both occur.
func (trial Trial) run(stop func() bool, opts ...tree.TreeOption[int]) (res Result) {
	res.Trial = trial
	rnd := randv2.New(randv2.NewPCG(trial.Seed, uint64(trial.ID)))
	s := &trialState{
		tr:  newTree(trial.Engine, opts...),
		ref: make(map[int]struct{}, trial.Keys),
		res: &res,
	}
	defer s.tr.Release()

	space := 2 * trial.Keys
	for i := 0; i < trial.Keys; i++ {
		if stop() {
			return res
		}
		if res.Err = s.insert(rnd.IntN(space)); res.Err != nil {
			return res
		}
	}
	if res.Err = s.verify(); res.Err != nil {
		return res
	}

	for i := 0; i < trial.Keys; i++ {
		if stop() {
			return res
		}
		key := rnd.IntN(space)
		if rnd.IntN(2) == 0 {
			res.Err = s.insert(key)
		} else {
			res.Err = s.delete(key)
		}
		if res.Err != nil {
			return res
		}
	}
	if res.Err = s.verify(); res.Err != nil {
		return res
	}

	remaining := slices.Collect(s.tr.Keys())
	rnd.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})
	for _, key := range remaining {
		if stop() {
			return res
		}
		if res.Err = s.delete(key); res.Err != nil {
			return res
		}
	}
	res.Err = s.verify()
	return res
}
