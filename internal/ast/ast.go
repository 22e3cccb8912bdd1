// Package ast defines the source-level tree for the Loam lowering core.
// The tree arrives from an external parser and is consumed by the
// normalization passes in this package and by the inliner in internal/lower.
// All nodes are immutable once built; every pass rebuilds rather than
// mutates, so subtrees may be shared freely between siblings.
package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Stmt is the base interface for all source statements.
type Stmt interface {
	stmtNode() // Marker method to distinguish statements
	String() string
}

// Expr is the base interface for all value expressions.
type Expr interface {
	exprNode() // Marker method to distinguish value expressions
	String() string
}

// BoolExpr is the base interface for all boolean expressions.
type BoolExpr interface {
	boolNode() // Marker method to distinguish boolean expressions
	String() string
}

// ===== Statements =====

// Seq runs First and then Rest.
type Seq struct {
	First Stmt
	Rest  Stmt
}

// FuncDef introduces a function whose name is visible only in Rest, never in
// Body. A later definition of the same name shadows an earlier one for all
// subsequent uses.
type FuncDef struct {
	Name   string
	Params []string
	Body   Stmt
	Rest   Stmt
}

// If chooses between Then and Else based on Cond.
type If struct {
	Cond BoolExpr
	Then Stmt
	Else Stmt
}

// While repeats Body as long as Cond holds.
type While struct {
	Cond BoolExpr
	Body Stmt
}

// Let binds Name to the value of Init for the extent of Rest, shadowing any
// outer binding of the same name.
type Let struct {
	Name string
	Init Expr
	Rest Stmt
}

// Assign evaluates Value and binds its result(s) to the ordered Names.
// A call on the right-hand side may produce several results; any other
// expression produces exactly one.
type Assign struct {
	Names []string
	Value Expr
}

// Return yields Results to the nearest enclosing inlined call.
type Return struct {
	Results []Expr
}

// Nop does nothing.
type Nop struct{}

func (*Seq) stmtNode()     {}
func (*FuncDef) stmtNode() {}
func (*If) stmtNode()      {}
func (*While) stmtNode()   {}
func (*Let) stmtNode()     {}
func (*Assign) stmtNode()  {}
func (*Return) stmtNode()  {}
func (*Nop) stmtNode()     {}

func (s *Seq) String() string { return fmt.Sprintf("%s; %s", s.First, s.Rest) }

func (f *FuncDef) String() string {
	return fmt.Sprintf("def %s(%s) { %s }; %s", f.Name, strings.Join(f.Params, ", "), f.Body, f.Rest)
}

func (i *If) String() string {
	return fmt.Sprintf("if %s { %s } else { %s }", i.Cond, i.Then, i.Else)
}

func (w *While) String() string { return fmt.Sprintf("while %s { %s }", w.Cond, w.Body) }

func (l *Let) String() string { return fmt.Sprintf("let %s = %s in %s", l.Name, l.Init, l.Rest) }

func (a *Assign) String() string {
	return fmt.Sprintf("%s := %s", strings.Join(a.Names, ", "), a.Value)
}

func (r *Return) String() string {
	parts := make([]string, len(r.Results))
	for i, e := range r.Results {
		parts[i] = e.String()
	}
	return "return " + strings.Join(parts, ", ")
}

func (*Nop) String() string { return "nop" }

// ===== Value expressions =====

// Ident references a bound variable.
type Ident struct {
	Name string
}

// IntLit is an integer constant.
type IntLit struct {
	Value int64
}

// Binary applies Op to LHS and RHS.
type Binary struct {
	LHS Expr
	Op  BinOp
	RHS Expr
}

// Call invokes a previously defined function (or a caller-supplied builtin)
// by name.
type Call struct {
	Name string
	Args []Expr
}

// BinOp enumerates the source arithmetic operators.
type BinOp int

const (
	OpAdd BinOp = iota
	OpMul
	OpDiv
	OpMod
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	default:
		return "op?"
	}
}

func (*Ident) exprNode()  {}
func (*IntLit) exprNode() {}
func (*Binary) exprNode() {}
func (*Call) exprNode()   {}

func (i *Ident) String() string  { return i.Name }
func (n *IntLit) String() string { return strconv.FormatInt(n.Value, 10) }

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.LHS, b.Op, b.RHS)
}

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}

// ===== Boolean expressions =====

// Compare relates two value expressions.
type Compare struct {
	LHS Expr
	Op  RelOp
	RHS Expr
}

// And is boolean conjunction.
type And struct {
	LHS BoolExpr
	RHS BoolExpr
}

// Or is boolean disjunction.
type Or struct {
	LHS BoolExpr
	RHS BoolExpr
}

// Not is boolean negation.
type Not struct {
	X BoolExpr
}

// Flag references a named boolean state. Flags exist only in the target IR,
// as a side effect of lowering a Compare; a Flag supplied at the source
// level is rejected by the lowerer.
type Flag struct {
	Name string
}

// RelOp enumerates the source comparison operators.
type RelOp int

const (
	RelEq RelOp = iota
	RelNeq
	RelLt
	RelLte
	RelGt
	RelGte
)

func (op RelOp) String() string {
	switch op {
	case RelEq:
		return "=="
	case RelNeq:
		return "!="
	case RelLt:
		return "<"
	case RelLte:
		return "<="
	case RelGt:
		return ">"
	case RelGte:
		return ">="
	default:
		return "rel?"
	}
}

func (*Compare) boolNode() {}
func (*And) boolNode()     {}
func (*Or) boolNode()      {}
func (*Not) boolNode()     {}
func (*Flag) boolNode()    {}

func (c *Compare) String() string { return fmt.Sprintf("(%s %s %s)", c.LHS, c.Op, c.RHS) }
func (a *And) String() string     { return fmt.Sprintf("(%s && %s)", a.LHS, a.RHS) }
func (o *Or) String() string      { return fmt.Sprintf("(%s || %s)", o.LHS, o.RHS) }
func (n *Not) String() string     { return fmt.Sprintf("!%s", n.X) }
func (f *Flag) String() string    { return fmt.Sprintf("flag(%s)", f.Name) }
