package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/loam-lang/loam/internal/ast"
	"github.com/loam-lang/loam/internal/ir"
	"github.com/loam-lang/loam/internal/lower"
)

func seq(stmts ...ast.Stmt) ast.Stmt {
	s := stmts[len(stmts)-1]
	for i := len(stmts) - 2; i >= 0; i-- {
		s = &ast.Seq{First: stmts[i], Rest: s}
	}
	return s
}

func num(v int64) ast.Expr { return &ast.IntLit{Value: v} }

func id(name string) ast.Expr { return &ast.Ident{Name: name} }

func cell(name string) ir.Expr { return &ir.Ident{Name: name} }

func setVar(name string, e ast.Expr) ast.Stmt {
	return &ast.Assign{Names: []string{name}, Value: e}
}

func TestCompileStraightLineProgram(t *testing.T) {
	// x := 5; y := x*3; return y
	prog := seq(
		setVar("x", num(5)),
		setVar("y", &ast.Binary{LHS: id("x"), Op: ast.OpMul, RHS: num(3)}),
		&ast.Return{Results: []ast.Expr{id("y")}},
	)

	c := New(WithLogger(zaptest.NewLogger(t)), WithResults("out"))
	got, err := c.Compile(prog)
	require.NoError(t, err)

	want := &ir.Seq{Items: []ir.Node{
		&ir.Assign{Dst: "x", Src: &ir.Int{Value: 5}, Live: ir.NewNameSet("x")},
		&ir.Assign{
			Dst:  "y",
			Src:  &ir.Add{LHS: &ir.Add{LHS: cell("x"), RHS: cell("x")}, RHS: cell("x")},
			Live: ir.NewNameSet("y"),
		},
		&ir.Assign{Dst: "out", Src: cell("y"), Live: ir.NewNameSet("out")},
	}}
	require.Empty(t, cmp.Diff(want, got))
}

func TestCompileUndefinedFunction(t *testing.T) {
	prog := setVar("x", &ast.Call{Name: "missing"})

	got, err := New().Compile(prog)
	var undef *lower.UndefinedFunctionError
	require.ErrorAs(t, err, &undef)
	require.Equal(t, "missing", undef.Name)
	require.Nil(t, got)
}

func TestCompileWithBuiltinMultiplication(t *testing.T) {
	// The builtin stands in for a real "*" implementation; the pipeline
	// only needs it to exist so non-constant multiplication can lower.
	mulBody := &ast.Return{Results: []ast.Expr{
		&ast.Binary{LHS: id("a"), Op: ast.OpAdd, RHS: id("b")},
	}}
	prog := seq(
		setVar("m", num(4)),
		setVar("n", num(5)),
		setVar("p", &ast.Binary{LHS: id("m"), Op: ast.OpMul, RHS: id("n")}),
		&ast.Return{Results: []ast.Expr{id("p")}},
	)

	c := New(
		WithBuiltin("*", []string{"a", "b"}, mulBody),
		WithResults("out"),
	)
	got, err := c.Compile(prog)
	require.NoError(t, err)

	want := &ir.Seq{Items: []ir.Node{
		&ir.Assign{Dst: "m", Src: &ir.Int{Value: 4}, Live: ir.NewNameSet("m")},
		&ir.Assign{Dst: "n", Src: &ir.Int{Value: 5}, Live: ir.NewNameSet("m", "n")},
		&ir.Assign{Dst: "a.2", Src: cell("m"), Live: ir.NewNameSet("a.2", "n")},
		&ir.Assign{Dst: "b.3", Src: cell("n"), Live: ir.NewNameSet("a.2", "b.3")},
		&ir.Assign{Dst: "ret.1", Src: &ir.Add{LHS: cell("a.2"), RHS: cell("b.3")}, Live: ir.NewNameSet("ret.1")},
		&ir.Assign{Dst: "p", Src: cell("ret.1"), Live: ir.NewNameSet("p")},
		&ir.Assign{Dst: "out", Src: cell("p"), Live: ir.NewNameSet("out")},
	}}
	require.Empty(t, cmp.Diff(want, got))
}

func TestCompileAbsorbsConditionalTail(t *testing.T) {
	// if (a < b) { return 9 } else {}; x := 2
	// The tail survives only on the non-returning path, and the store to x
	// is then dead anyway.
	prog := seq(
		setVar("a", num(1)),
		setVar("b", num(2)),
		&ast.If{
			Cond: &ast.Compare{LHS: id("a"), Op: ast.RelLt, RHS: id("b")},
			Then: &ast.Return{Results: []ast.Expr{num(9)}},
			Else: &ast.Nop{},
		},
		setVar("x", num(2)),
	)

	c := New(WithResults("out"))
	got, err := c.Compile(prog)
	require.NoError(t, err)

	want := &ir.Seq{Items: []ir.Node{
		&ir.Assign{Dst: "b", Src: &ir.Int{Value: 2}, Live: ir.NewNameSet("b", "out")},
		&ir.Assign{Dst: "cmp.2", Src: cell("b"), Live: ir.NewNameSet("cmp.2", "out")},
		&ir.Cmp{LHS: "cmp.1", RHS: "cmp.2", Live: ir.NewNameSet("cmp.2", "out")},
		&ir.If{
			Cond: &ir.FlagRef{Name: "cmp.2"},
			Then: &ir.Assign{Dst: "out", Src: &ir.Int{Value: 9}, Live: ir.NewNameSet("out")},
			Else: &ir.Seq{},
			Live: ir.NewNameSet("out"),
		},
	}}
	require.Empty(t, cmp.Diff(want, got))
}

func TestCompileDropsUnusedComputation(t *testing.T) {
	prog := seq(
		setVar("kept", num(1)),
		setVar("waste", num(2)),
		&ast.Return{Results: []ast.Expr{id("kept")}},
	)

	got, err := New(WithResults("out")).Compile(prog)
	require.NoError(t, err)

	for _, n := range got.(*ir.Seq).Items {
		if a, ok := n.(*ir.Assign); ok {
			require.NotEqual(t, "waste", a.Dst, "dead store should have been deleted")
		}
	}
}
