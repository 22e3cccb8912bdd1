// Package lower turns a normalized source tree into the flat target IR.
// The transformation:
// 1. Inlines every call fully; the target has no call/return
// 2. Renames variables so inlined bodies and shadowed bindings cannot
//    capture each other
// 3. Rewrites multiplication, division and modulo into additions or calls
//    to the caller-supplied "*", "/" and "%" builtins
// 4. Lowers the six comparison operators onto the two-outcome Cmp primitive
//    and formulas over its flags
// Lowering either succeeds for the whole tree or fails with the first fatal
// error and no partial output.
package lower

import (
	"fmt"

	"github.com/loam-lang/loam/internal/ast"
	"github.com/loam-lang/loam/internal/ir"
)

// maxUnrollFactor caps constant-multiplication unrolling. A literal factor
// above the cap (or a negative one) falls back to the "*" builtin so the
// output cannot grow linearly with an arbitrary constant.
const maxUnrollFactor = 8

// Lowerer drives one lowering run. It owns the fresh-name counter for the
// run; the function table and renaming table are threaded through the
// recursion as values.
type Lowerer struct {
	names NameGen
}

// NewLowerer creates a lowerer with a fresh name counter.
func NewLowerer() *Lowerer {
	return &Lowerer{}
}

// callSite identifies the inlined call whose return slots are currently in
// scope, for arity reporting.
type callSite struct {
	name  string
	slots int
}

// Lower transforms a source tree into untagged IR. fns is the externally
// supplied builtin table (may be nil for none). results names the cells the
// program's top-level return values land in; a top-level return beyond
// len(results) is discarded like any other unclaimed slot.
func (l *Lowerer) Lower(s ast.Stmt, fns Funcs, results []string) (ir.Node, error) {
	if fns == nil {
		fns = NewFuncs()
	}
	sc := scope{}
	for i, r := range results {
		sc = sc.extend(retSlot(i), r)
	}
	site := &callSite{name: "program", slots: len(results)}
	nodes, _, err := l.stmt(s, fns, sc, site)
	if err != nil {
		return nil, err
	}
	return blockOf(nodes), nil
}

// ====== Statement lowering ======

// stmt lowers one statement. It returns the emitted instructions and the
// renaming table for whatever follows in the same sequence. Statements that
// carry their own continuation (FuncDef, Let) confine their extensions to
// it and hand back the scope they received.
func (l *Lowerer) stmt(s ast.Stmt, fns Funcs, sc scope, site *callSite) ([]ir.Node, scope, error) {
	switch n := s.(type) {
	case *ast.Seq:
		first, sc2, err := l.stmt(n.First, fns, sc, site)
		if err != nil {
			return nil, sc, err
		}
		rest, sc3, err := l.stmt(n.Rest, fns, sc2, site)
		if err != nil {
			return nil, sc, err
		}
		return concat(first, rest), sc3, nil

	case *ast.FuncDef:
		nodes, _, err := l.stmt(n.Rest, fns.Define(n.Name, n.Params, n.Body), sc, site)
		return nodes, sc, err

	case *ast.Let:
		pre, val, err := l.expr(n.Init, fns, sc)
		if err != nil {
			return nil, sc, err
		}
		dst := n.Name
		if _, bound := sc[n.Name]; bound {
			dst = l.names.Fresh(n.Name)
		}
		body, _, err := l.stmt(n.Rest, fns, sc.extend(n.Name, dst), site)
		if err != nil {
			return nil, sc, err
		}
		return concat(pre, []ir.Node{&ir.Assign{Dst: dst, Src: val}}, body), sc, nil

	case *ast.Assign:
		return l.assign(n, fns, sc)

	case *ast.Return:
		nodes, err := l.ret(n, fns, sc, site)
		return nodes, sc, err

	case *ast.If:
		pre, g, err := l.guard(n.Cond, fns, sc)
		if err != nil {
			return nil, sc, err
		}
		then, _, err := l.stmt(n.Then, fns, sc, site)
		if err != nil {
			return nil, sc, err
		}
		els, _, err := l.stmt(n.Else, fns, sc, site)
		if err != nil {
			return nil, sc, err
		}
		node := &ir.If{Cond: g, Then: blockOf(then), Else: blockOf(els)}
		return concat(pre, []ir.Node{node}), sc, nil

	case *ast.While:
		pre, g, err := l.guard(n.Cond, fns, sc)
		if err != nil {
			return nil, sc, err
		}
		body, _, err := l.stmt(n.Body, fns, sc, site)
		if err != nil {
			return nil, sc, err
		}
		// The guard's prelude runs again at the end of every iteration so
		// the next test reads fresh values.
		node := &ir.Loop{Cond: g, Body: blockOf(concat(body, pre))}
		return concat(pre, []ir.Node{node}), sc, nil

	case *ast.Nop:
		return nil, sc, nil

	default:
		return nil, sc, fmt.Errorf("unsupported statement kind: %T", s)
	}
}

// assign lowers a multi-assignment. A call on the right-hand side is
// inlined; anything else produces exactly one value.
func (l *Lowerer) assign(n *ast.Assign, fns Funcs, sc scope) ([]ir.Node, scope, error) {
	if call, ok := n.Value.(*ast.Call); ok {
		targets := make([]string, len(n.Names))
		sc2 := sc
		for i, name := range n.Names {
			dst, bound := sc2[name]
			if !bound {
				dst = name
				sc2 = sc2.extend(name, name)
			}
			targets[i] = dst
		}
		nodes, err := l.inlineCall(call, targets, fns, sc)
		if err != nil {
			return nil, sc, err
		}
		return nodes, sc2, nil
	}

	if len(n.Names) != 1 {
		return nil, sc, &ArityMismatchError{Name: "assignment", What: "results", Want: 1, Got: len(n.Names)}
	}
	pre, val, err := l.expr(n.Value, fns, sc)
	if err != nil {
		return nil, sc, err
	}
	dst, bound := sc[n.Names[0]]
	sc2 := sc
	if !bound {
		dst = n.Names[0]
		sc2 = sc.extend(dst, dst)
	}
	return concat(pre, []ir.Node{&ir.Assign{Dst: dst, Src: val}}), sc2, nil
}

// ret assigns each result to whatever the active call site bound the
// corresponding return slot to. A slot the caller never claimed drops its
// computation entirely; a claimed slot beyond the returned count is an
// arity error. Only the active site's own slots count: an enclosing call's
// slot bindings visible through the shared table never receive results.
func (l *Lowerer) ret(n *ast.Return, fns Funcs, sc scope, site *callSite) ([]ir.Node, error) {
	if site.slots > len(n.Results) {
		return nil, &ArityMismatchError{Name: site.name, What: "results", Want: site.slots, Got: len(n.Results)}
	}
	var nodes []ir.Node
	for i, e := range n.Results {
		if i >= site.slots {
			continue
		}
		dst, bound := sc[retSlot(i)]
		if !bound {
			continue
		}
		pre, val, err := l.expr(e, fns, sc)
		if err != nil {
			return nil, err
		}
		nodes = concat(nodes, pre, []ir.Node{&ir.Assign{Dst: dst, Src: val}})
	}
	return nodes, nil
}

// inlineCall splices a callee body in place of a call. Arguments are
// evaluated under the caller's renaming table into fresh cells, and the
// body is lowered under the caller's table extended with those cells bound
// to the parameters plus the return-slot bindings. Binding parameters to
// fresh cells is what shadows any caller variable of the same name, and the
// shadow rule on Let does the rest, so an inlined body can neither capture
// caller state nor leak its own. The body sees the function table as it
// stood at the definition, so it can call nothing defined after it,
// itself included.
func (l *Lowerer) inlineCall(c *ast.Call, targets []string, fns Funcs, sc scope) ([]ir.Node, error) {
	fn, ok := fns[c.Name]
	if !ok {
		return nil, &UndefinedFunctionError{Name: c.Name}
	}
	if len(c.Args) != len(fn.Params) {
		return nil, &ArityMismatchError{Name: c.Name, What: "arguments", Want: len(fn.Params), Got: len(c.Args)}
	}

	var nodes []ir.Node
	callee := sc
	for i, arg := range c.Args {
		pre, val, err := l.expr(arg, fns, sc)
		if err != nil {
			return nil, err
		}
		tmp := l.names.Fresh(fn.Params[i])
		nodes = concat(nodes, pre, []ir.Node{&ir.Assign{Dst: tmp, Src: val}})
		callee = callee.extend(fn.Params[i], tmp)
	}
	for i, t := range targets {
		callee = callee.extend(retSlot(i), t)
	}

	body, _, err := l.stmt(fn.Body, fn.defs, callee, &callSite{name: c.Name, slots: len(targets)})
	if err != nil {
		return nil, err
	}
	return concat(nodes, body), nil
}

// ====== Expression lowering ======

// expr lowers a value expression into a hoisted prelude plus a pure IR
// expression.
func (l *Lowerer) expr(e ast.Expr, fns Funcs, sc scope) ([]ir.Node, ir.Expr, error) {
	switch n := e.(type) {
	case *ast.Ident:
		dst, ok := sc[n.Name]
		if !ok {
			return nil, nil, &UndefinedVariableError{Name: n.Name}
		}
		return nil, &ir.Ident{Name: dst}, nil

	case *ast.IntLit:
		return nil, &ir.Int{Value: n.Value}, nil

	case *ast.Binary:
		return l.binary(n, fns, sc)

	case *ast.Call:
		// A call in expression position becomes a single-result inline
		// whose fresh result cell stands in for the expression.
		res := l.names.Fresh("ret")
		nodes, err := l.inlineCall(n, []string{res}, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		return nodes, &ir.Ident{Name: res}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported expression kind: %T", e)
	}
}

func (l *Lowerer) binary(n *ast.Binary, fns Funcs, sc scope) ([]ir.Node, ir.Expr, error) {
	if n.Op == ast.OpAdd {
		lp, lv, err := l.expr(n.LHS, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		rp, rv, err := l.expr(n.RHS, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		return concat(lp, rp), &ir.Add{LHS: lv, RHS: rv}, nil
	}

	if n.Op == ast.OpMul {
		if factor, operand, ok := constFactor(n); ok && factor >= 0 && factor <= maxUnrollFactor {
			pre, val, err := l.expr(operand, fns, sc)
			if err != nil {
				return nil, nil, err
			}
			switch factor {
			case 0:
				// The operand's prelude still runs; its value is unused.
				return pre, &ir.Int{Value: 0}, nil
			case 1:
				return pre, val, nil
			default:
				sum := val
				for i := int64(1); i < factor; i++ {
					sum = &ir.Add{LHS: sum, RHS: val}
				}
				return pre, sum, nil
			}
		}
	}

	return l.expr(&ast.Call{Name: builtinName(n.Op), Args: []ast.Expr{n.LHS, n.RHS}}, fns, sc)
}

// constFactor splits a multiplication with a literal on either side into
// the literal factor and the other operand, preferring the left.
func constFactor(n *ast.Binary) (int64, ast.Expr, bool) {
	if lit, ok := n.LHS.(*ast.IntLit); ok {
		return lit.Value, n.RHS, true
	}
	if lit, ok := n.RHS.(*ast.IntLit); ok {
		return lit.Value, n.LHS, true
	}
	return 0, nil, false
}

func builtinName(op ast.BinOp) string {
	switch op {
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	default:
		return "%"
	}
}

// ====== Boolean lowering ======

// guard lowers a boolean expression into a hoisted prelude plus a formula
// over flags. A Compare evaluates both sides into fresh cells a and b,
// emits Cmp(a, b), and encodes the relation over flag a ("left greater")
// and flag b ("left less"); both flags true is never produced:
//
//	==  ->  !a && !b        !=  ->  a || b
//	<   ->  b               <=  ->  !a
//	>   ->  a               >=  ->  !b
func (l *Lowerer) guard(b ast.BoolExpr, fns Funcs, sc scope) ([]ir.Node, ir.Guard, error) {
	switch n := b.(type) {
	case *ast.Compare:
		lp, lv, err := l.expr(n.LHS, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		rp, rv, err := l.expr(n.RHS, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		left := l.names.Fresh("cmp")
		right := l.names.Fresh("cmp")
		nodes := concat(lp, rp, []ir.Node{
			&ir.Assign{Dst: left, Src: lv},
			&ir.Assign{Dst: right, Src: rv},
			&ir.Cmp{LHS: left, RHS: right},
		})
		return nodes, relFormula(n.Op, left, right), nil

	case *ast.And:
		lp, lg, err := l.guard(n.LHS, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		rp, rg, err := l.guard(n.RHS, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		return concat(lp, rp), &ir.AndG{LHS: lg, RHS: rg}, nil

	case *ast.Or:
		lp, lg, err := l.guard(n.LHS, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		rp, rg, err := l.guard(n.RHS, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		return concat(lp, rp), &ir.OrG{LHS: lg, RHS: rg}, nil

	case *ast.Not:
		p, g, err := l.guard(n.X, fns, sc)
		if err != nil {
			return nil, nil, err
		}
		return p, &ir.NotG{X: g}, nil

	case *ast.Flag:
		return nil, nil, &SourceFlagError{Name: n.Name}

	default:
		return nil, nil, fmt.Errorf("unsupported boolean kind: %T", b)
	}
}

func relFormula(op ast.RelOp, left, right string) ir.Guard {
	greater := &ir.FlagRef{Name: left}
	less := &ir.FlagRef{Name: right}
	switch op {
	case ast.RelEq:
		return &ir.AndG{LHS: &ir.NotG{X: greater}, RHS: &ir.NotG{X: less}}
	case ast.RelNeq:
		return &ir.OrG{LHS: greater, RHS: less}
	case ast.RelLt:
		return less
	case ast.RelLte:
		return &ir.NotG{X: greater}
	case ast.RelGt:
		return greater
	default:
		return &ir.NotG{X: less}
	}
}

// ====== Helpers ======

func concat(lists ...[]ir.Node) []ir.Node {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	out := make([]ir.Node, 0, total)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// blockOf wraps a lowered instruction list as a single IR node.
func blockOf(nodes []ir.Node) ir.Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return &ir.Seq{Items: nodes}
}
