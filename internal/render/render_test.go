package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benz9527/xbst/internal/stress"
	"github.com/benz9527/xbst/lib/tree"
)

var demoKeys = []int{60, 40, 30, 10, 50, 20}

func TestPrinter_Tree(t *testing.T) {
	avl := tree.NewAVLTree[int]()
	rb := tree.NewRBTree[int]()
	for _, k := range demoKeys {
		avl.Insert(k)
		rb.Insert(k)
	}

	testcases := []struct {
		name     string
		print    func(p *Printer) error
		expected string
	}{
		{
			name:  "avl",
			print: func(p *Printer) error { return AVL(p, avl) },
			expected: "|\t┌\t60 ⚖️1 h1 [L50  P40]\n" +
				"|\t|\t└\t50 ⚖️0 h0 [  P60]\n" +
				"♢ >>>\t40 ⚖️0 h2 [L20 R60 ]\n" +
				"|\t|\t┌\t30 ⚖️0 h0 [  P20]\n" +
				"|\t└\t20 ⚖️0 h1 [L10 R30 P40]\n" +
				"|\t|\t└\t10 ⚖️0 h0 [  P20]\n",
		},
		{
			name:  "rbtree",
			print: func(p *Printer) error { return RB(p, rb) },
			expected: "|\t┌\t60 (Black) [L50  P40]\n" +
				"|\t|\t└\t50 (Red) [  P60]\n" +
				"♢ >>>\t40 (Black) [L20 R60 ]\n" +
				"|\t|\t┌\t30 (Red) [  P20]\n" +
				"|\t└\t20 (Black) [L10 R30 P40]\n" +
				"|\t|\t└\t10 (Red) [  P20]\n",
		},
		{
			name:     "empty",
			print:    func(p *Printer) error { return AVL(p, tree.NewAVLTree[int]()) },
			expected: "(empty tree)\n",
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			buf := &bytes.Buffer{}
			p := NewPrinter(buf, WithColor(false))
			require.Equal(tt, FormatTree, p.Format())
			require.NoError(tt, tc.print(p))
			require.Equal(tt, tc.expected, buf.String())
		})
	}
}

func TestPrinter_Color(t *testing.T) {
	rb := tree.NewRBTree[int]()
	for _, k := range demoKeys {
		rb.Insert(k)
	}
	buf := &bytes.Buffer{}
	require.NoError(t, RB(NewPrinter(buf, WithColor(true)), rb))
	require.Contains(t, buf.String(), "\x1b[31m(Red)\x1b[0m")
	require.Contains(t, buf.String(), "\x1b[37m(Black)\x1b[0m")
	require.Contains(t, buf.String(), "\x1b[34m[L20 R60 ]\x1b[0m")
}

func TestPrinter_Table(t *testing.T) {
	avl := tree.NewAVLTree[int]()
	rb := tree.NewRBTree[int]()
	for _, k := range demoKeys {
		avl.Insert(k)
		rb.Insert(k)
	}

	buf := &bytes.Buffer{}
	p := NewPrinter(buf, WithColor(false), WithFormat("TABLE"))
	require.Equal(t, FormatTable, p.Format())
	require.NoError(t, AVL(p, avl))
	out := strings.ToUpper(buf.String())
	require.Contains(t, out, "BALANCE")
	require.Contains(t, out, "TOTAL: 6 NODES")
	require.Contains(t, out, "ROOT")
	require.Less(t, strings.Index(out, " 10 "), strings.Index(out, " 60 "))

	buf.Reset()
	require.NoError(t, RB(p, rb))
	out = strings.ToUpper(buf.String())
	require.Contains(t, out, "COLOR")
	require.Contains(t, out, "RED")
	require.Contains(t, out, "BLACK")

	require.Equal(t, FormatTree, NewPrinter(buf, WithFormat("dot"), nil).Format())
}

func TestPrinter_Println(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, NewPrinter(buf).Println("# insert", 60))
	require.Equal(t, "# insert 60\n", buf.String())
}

func TestStressReport(t *testing.T) {
	report := &stress.Report{
		Seed: 11,
		Results: []stress.Result{
			{Trial: stress.Trial{ID: 0, Engine: tree.AVL, Seed: 11}, Ops: 10, Inserted: 4, Deleted: 4},
			{Trial: stress.Trial{ID: 1, Engine: tree.AVL, Seed: 12}, Ops: 6, Inserted: 2, Deleted: 1, Err: errors.New("boom")},
			{Trial: stress.Trial{ID: 0, Engine: tree.RedBlack, Seed: 11}, Ops: 10, Inserted: 4, Deleted: 4},
		},
		Failed:   1,
		Canceled: true,
	}
	buf := &bytes.Buffer{}
	require.NoError(t, StressReport(NewPrinter(buf, WithColor(false)), report))
	out := buf.String()
	require.Contains(t, strings.ToUpper(out), "SEED 11")
	require.Contains(t, strings.ToUpper(out), "CANCELED")
	require.Contains(t, out, "avl")
	require.Contains(t, out, "rbtree")
	require.Less(t, strings.Index(out, "avl"), strings.Index(out, "rbtree"))
	require.Contains(t, out, "avl trial 1 (seed 12): boom\n")

	buf.Reset()
	require.NoError(t, StressReport(NewPrinter(buf), nil))
	require.Equal(t, "(no report)\n", buf.String())
}
