// Package ir defines the flat target representation produced by lowering.
// The IR has no call/return and no lexical scoping: only assignment, a
// two-outcome numeric comparison, conditionals and loops guarded by boolean
// formulas over named flags, sequencing, and parallel composition. Every
// instruction carries an attachable liveness tag, nil while the tree is
// being built and set exactly once by the liveness analyzer.
package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Node is implemented by all IR nodes.
type Node interface {
	irNode()
	String() string
}

// Expr is the value-expression residue left after lowering: identifiers,
// integer constants, and addition. Multiplication, division and modulo never
// survive into the IR.
type Expr interface {
	irExpr()
	String() string
}

// Guard is a boolean formula over flags, used by If and Loop.
type Guard interface {
	irGuard()
	String() string
}

// ===== Nodes =====

// Seq executes Items in order.
type Seq struct {
	Items []Node
}

// Par composes independent branches. The downstream executor may run them
// in any order or concurrently; this core only analyzes them.
type Par struct {
	Items []Node
}

// Assign writes the value of Src into the numeric cell Dst.
type Assign struct {
	Dst  string
	Src  Expr
	Live NameSet
}

// Cmp reads the numeric cells LHS and RHS and derives two boolean flags
// named after them: flag LHS is set when LHS holds the greater value, flag
// RHS when it holds the lesser. Cell names and flag names are distinct
// namespaces that happen to share spellings.
type Cmp struct {
	LHS  string
	RHS  string
	Live NameSet
}

// If executes Then when Cond holds, Else otherwise.
type If struct {
	Cond Guard
	Then Node
	Else Node
	Live NameSet
}

// Loop executes Body as long as Cond holds.
type Loop struct {
	Cond Guard
	Body Node
	Live NameSet
}

func (*Seq) irNode()    {}
func (*Par) irNode()    {}
func (*Assign) irNode() {}
func (*Cmp) irNode()    {}
func (*If) irNode()     {}
func (*Loop) irNode()   {}

// ===== Expressions =====

// Ident reads a numeric cell.
type Ident struct {
	Name string
}

// Int is an integer constant.
type Int struct {
	Value int64
}

// Add is the sum of two expressions.
type Add struct {
	LHS Expr
	RHS Expr
}

func (*Ident) irExpr() {}
func (*Int) irExpr()   {}
func (*Add) irExpr()   {}

func (i *Ident) String() string { return i.Name }
func (n *Int) String() string   { return strconv.FormatInt(n.Value, 10) }
func (a *Add) String() string   { return fmt.Sprintf("(%s + %s)", a.LHS, a.RHS) }

// ===== Guards =====

// FlagRef reads a named boolean flag.
type FlagRef struct {
	Name string
}

// NotG negates a guard.
type NotG struct {
	X Guard
}

// AndG is guard conjunction.
type AndG struct {
	LHS Guard
	RHS Guard
}

// OrG is guard disjunction.
type OrG struct {
	LHS Guard
	RHS Guard
}

func (*FlagRef) irGuard() {}
func (*NotG) irGuard()    {}
func (*AndG) irGuard()    {}
func (*OrG) irGuard()     {}

func (f *FlagRef) String() string { return fmt.Sprintf("flag(%s)", f.Name) }
func (n *NotG) String() string    { return fmt.Sprintf("!%s", n.X) }
func (a *AndG) String() string    { return fmt.Sprintf("(%s && %s)", a.LHS, a.RHS) }
func (o *OrG) String() string     { return fmt.Sprintf("(%s || %s)", o.LHS, o.RHS) }

// ===== Read sets =====

// ReadsExpr collects the cell names read by e into dst.
func ReadsExpr(e Expr, dst NameSet) {
	switch v := e.(type) {
	case *Ident:
		dst.Add(v.Name)
	case *Add:
		ReadsExpr(v.LHS, dst)
		ReadsExpr(v.RHS, dst)
	}
}

// ReadsGuard collects the flag names read by g into dst. Flag names share
// spellings with the cells the producing Cmp read, which is what keeps
// those cells' defining assignments live across the comparison.
func ReadsGuard(g Guard, dst NameSet) {
	switch v := g.(type) {
	case *FlagRef:
		dst.Add(v.Name)
	case *NotG:
		ReadsGuard(v.X, dst)
	case *AndG:
		ReadsGuard(v.LHS, dst)
		ReadsGuard(v.RHS, dst)
	case *OrG:
		ReadsGuard(v.LHS, dst)
		ReadsGuard(v.RHS, dst)
	}
}

// CountNodes returns the number of instructions in the tree, excluding the
// Seq/Par grouping nodes themselves.
func CountNodes(n Node) int {
	switch v := n.(type) {
	case *Seq:
		total := 0
		for _, c := range v.Items {
			total += CountNodes(c)
		}
		return total
	case *Par:
		total := 0
		for _, c := range v.Items {
			total += CountNodes(c)
		}
		return total
	case *If:
		return 1 + CountNodes(v.Then) + CountNodes(v.Else)
	case *Loop:
		return 1 + CountNodes(v.Body)
	default:
		return 1
	}
}

// ===== NameSet =====

// NameSet is a set of variable names, used both as the liveness state during
// analysis and as the tag attached to surviving instructions.
type NameSet map[string]struct{}

// NewNameSet builds a set from the given names.
func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports membership. Safe on a nil set.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts names into the set.
func (s NameSet) Add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

// Remove deletes a name from the set.
func (s NameSet) Remove(name string) {
	delete(s, name)
}

// Clone returns an independent copy. Cloning a nil set yields an empty one.
func (s NameSet) Clone() NameSet {
	out := make(NameSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Union returns a new set holding every name in s or o.
func (s NameSet) Union(o NameSet) NameSet {
	out := s.Clone()
	for n := range o {
		out[n] = struct{}{}
	}
	return out
}

// Equal reports whether s and o hold the same names.
func (s NameSet) Equal(o NameSet) bool {
	if len(s) != len(o) {
		return false
	}
	for n := range s {
		if !o.Has(n) {
			return false
		}
	}
	return true
}

// Names returns the members in sorted order.
func (s NameSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s NameSet) String() string {
	return "{" + strings.Join(s.Names(), " ") + "}"
}

// ===== Printing =====

func (s *Seq) String() string {
	var b strings.Builder
	writeNode(&b, s, 0)
	return b.String()
}

func (p *Par) String() string {
	var b strings.Builder
	writeNode(&b, p, 0)
	return b.String()
}

func (a *Assign) String() string { return line(fmt.Sprintf("%s = %s", a.Dst, a.Src), a.Live) }
func (c *Cmp) String() string    { return line(fmt.Sprintf("cmp %s, %s", c.LHS, c.RHS), c.Live) }

func (i *If) String() string {
	var b strings.Builder
	writeNode(&b, i, 0)
	return b.String()
}

func (l *Loop) String() string {
	var b strings.Builder
	writeNode(&b, l, 0)
	return b.String()
}

func line(text string, live NameSet) string {
	if live == nil {
		return text
	}
	return text + " ; live:" + strings.Join(live.Names(), ",")
}

func writeNode(b *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := n.(type) {
	case *Seq:
		fmt.Fprintf(b, "%s{\n", indent)
		for _, c := range v.Items {
			writeNode(b, c, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	case *Par:
		fmt.Fprintf(b, "%spar {\n", indent)
		for _, c := range v.Items {
			writeNode(b, c, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	case *If:
		fmt.Fprintf(b, "%s%s\n", indent, line(fmt.Sprintf("if %s", v.Cond), v.Live))
		writeNode(b, v.Then, depth+1)
		fmt.Fprintf(b, "%selse\n", indent)
		writeNode(b, v.Else, depth+1)
	case *Loop:
		fmt.Fprintf(b, "%s%s\n", indent, line(fmt.Sprintf("loop %s", v.Cond), v.Live))
		writeNode(b, v.Body, depth+1)
	case *Assign:
		fmt.Fprintf(b, "%s%s\n", indent, v.String())
	case *Cmp:
		fmt.Fprintf(b, "%s%s\n", indent, v.String())
	}
}
