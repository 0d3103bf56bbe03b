package render

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/benz9527/xbst/lib/infra"
	"github.com/benz9527/xbst/lib/tree"
)

type Format string

const (
	FormatTree  Format = "tree"
	FormatTable Format = "table"
)

const (
	rootMarker  = "♢ >>>\t"
	leftMarker  = "└\t"
	rightMarker = "┌\t"
	indent      = "|\t"
	emptyTree   = "(empty tree)"
)

// row is one node as printed, collected in descending key order.
type row struct {
	depth  int
	dir    tree.Direction
	key    string
	left   string
	right  string
	parent string
	// AVL
	height  int
	balance int
	// Red-black
	color tree.RBColor
}

// Printer writes trees sideways, greatest key first, so the tree reads
// left to right when the output is turned clockwise.
type Printer struct {
	w      io.Writer
	format Format
	color  bool

	indent *color.Color
	links  *color.Color
	bal    *color.Color
	height *color.Color
	red    *color.Color
	black  *color.Color
}

type PrinterOption func(p *Printer)

func WithFormat(format string) PrinterOption {
	return func(p *Printer) {
		if strings.EqualFold(format, string(FormatTable)) {
			p.format = FormatTable
			return
		}
		p.format = FormatTree
	}
}

func WithColor(enabled bool) PrinterOption {
	return func(p *Printer) {
		p.color = enabled
	}
}

func NewPrinter(w io.Writer, opts ...PrinterOption) *Printer {
	p := &Printer{
		w:      w,
		format: FormatTree,
		color:  true,
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	p.indent = p.newColor(color.FgWhite)
	p.links = p.newColor(color.FgBlue)
	p.bal = p.newColor(color.FgCyan)
	p.height = p.newColor(color.FgRed)
	p.red = p.newColor(color.FgRed)
	p.black = p.newColor(color.FgWhite)
	return p
}

// newColor does not depend on the color.NoColor global, which is only set
// from the terminal detection of stdout.
func (p *Printer) newColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if p.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (p *Printer) Format() Format {
	return p.format
}

// Println writes a plain line, used for the demo narration.
func (p *Printer) Println(a ...any) error {
	_, err := fmt.Fprintln(p.w, a...)
	return err
}

func AVL[K infra.OrderedKey](p *Printer, t *tree.AVLTree[K]) error {
	rows := make([]row, 0, t.Len())
	for depth, n := range t.Walk() {
		r := row{
			depth:   depth,
			dir:     n.Direction(),
			key:     fmt.Sprint(n.Key()),
			height:  n.Height(),
			balance: n.Balance(),
		}
		if l := n.Left(); l != nil {
			r.left = fmt.Sprint(l.Key())
		}
		if rr := n.Right(); rr != nil {
			r.right = fmt.Sprint(rr.Key())
		}
		if pn := n.Parent(); pn != nil {
			r.parent = fmt.Sprint(pn.Key())
		}
		rows = append(rows, r)
	}
	return p.print(tree.AVL, rows)
}

func RB[K infra.OrderedKey](p *Printer, t *tree.RBTree[K]) error {
	rows := make([]row, 0, t.Len())
	for depth, n := range t.Walk() {
		r := row{
			depth: depth,
			dir:   n.Direction(),
			key:   fmt.Sprint(n.Key()),
			color: n.Color(),
		}
		if l := n.Left(); l != nil {
			r.left = fmt.Sprint(l.Key())
		}
		if rr := n.Right(); rr != nil {
			r.right = fmt.Sprint(rr.Key())
		}
		if pn := n.Parent(); pn != nil {
			r.parent = fmt.Sprint(pn.Key())
		}
		rows = append(rows, r)
	}
	return p.print(tree.RedBlack, rows)
}

func (p *Printer) print(engine tree.Engine, rows []row) error {
	if len(rows) == 0 {
		return p.Println(emptyTree)
	}
	if p.format == FormatTable {
		return p.printTable(engine, rows)
	}
	return p.printTree(engine, rows)
}

func (p *Printer) printTree(engine tree.Engine, rows []row) error {
	var sb strings.Builder
	for _, r := range rows {
		for i := 0; i < r.depth; i++ {
			sb.WriteString(p.indent.Sprint(indent))
		}
		switch r.dir {
		case tree.Left:
			sb.WriteString(leftMarker)
		case tree.Right:
			sb.WriteString(rightMarker)
		default:
			sb.WriteString(rootMarker)
		}
		sb.WriteString(r.key)
		sb.WriteByte(' ')
		if engine == tree.AVL {
			sb.WriteString(p.bal.Sprintf("⚖️%d", r.balance))
			sb.WriteByte(' ')
			sb.WriteString(p.height.Sprintf("h%d", r.height))
		} else if r.color == tree.Red {
			sb.WriteString(p.red.Sprint("(Red)"))
		} else {
			sb.WriteString(p.black.Sprint("(Black)"))
		}
		sb.WriteByte(' ')
		sb.WriteString(p.links.Sprint(links(r)))
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(p.w, sb.String())
	return err
}

func links(r row) string {
	var l, rr, pp string
	if len(r.left) > 0 {
		l = "L" + r.left
	}
	if len(r.right) > 0 {
		rr = "R" + r.right
	}
	if len(r.parent) > 0 {
		pp = "P" + r.parent
	}
	return "[" + l + " " + rr + " " + pp + "]"
}

// printTable lists the nodes in ascending key order.
func (p *Printer) printTable(engine tree.Engine, rows []row) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	if engine == tree.AVL {
		tbl.AppendHeader(table.Row{"Key", "Depth", "Side", "Height", "Balance", "Left", "Right", "Parent"})
	} else {
		tbl.AppendHeader(table.Row{"Key", "Depth", "Side", "Color", "Left", "Right", "Parent"})
	}
	for _, r := range slices.Backward(rows) {
		side := r.dir.String()
		if r.dir == tree.None {
			side = "root"
		}
		if engine == tree.AVL {
			tbl.AppendRow(table.Row{r.key, r.depth, side, r.height, r.balance, r.left, r.right, r.parent})
			continue
		}
		c := p.black.Sprint(r.color.String())
		if r.color == tree.Red {
			c = p.red.Sprint(r.color.String())
		}
		tbl.AppendRow(table.Row{r.key, r.depth, side, c, r.left, r.right, r.parent})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d nodes", len(rows))})
	_, err := fmt.Fprintln(p.w, tbl.Render())
	return err
}
