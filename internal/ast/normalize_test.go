package ast

import (
	"reflect"
	"testing"
)

// Test helpers building trees the way a parser would.

func seqOf(stmts ...Stmt) Stmt {
	s := stmts[len(stmts)-1]
	for i := len(stmts) - 2; i >= 0; i-- {
		s = &Seq{First: stmts[i], Rest: s}
	}
	return s
}

func set(name string, value int64) Stmt {
	return &Assign{Names: []string{name}, Value: &IntLit{Value: value}}
}

func ret(values ...int64) Stmt {
	r := &Return{}
	for _, v := range values {
		r.Results = append(r.Results, &IntLit{Value: v})
	}
	return r
}

func lessThan(a, b string) BoolExpr {
	return &Compare{LHS: &Ident{Name: a}, Op: RelLt, RHS: &Ident{Name: b}}
}

func TestLeftifyRotatesNestedSequences(t *testing.T) {
	a, b, c := set("a", 1), set("b", 2), set("c", 3)
	in := &Seq{First: &Seq{First: a, Rest: b}, Rest: c}

	got := leftify(in)
	want := &Seq{First: a, Rest: &Seq{First: b, Rest: c}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("leftify produced %s, want %s", got, want)
	}
}

func TestLeftifyDescendsIntoCompounds(t *testing.T) {
	nested := &Seq{First: &Seq{First: set("a", 1), Rest: set("b", 2)}, Rest: set("c", 3)}
	in := &While{Cond: lessThan("a", "b"), Body: nested}

	got, ok := leftify(in).(*While)
	if !ok {
		t.Fatalf("leftify changed node kind: %T", leftify(in))
	}
	body, ok := got.Body.(*Seq)
	if !ok {
		t.Fatalf("loop body is %T, want *Seq", got.Body)
	}
	if _, nestedStill := body.First.(*Seq); nestedStill {
		t.Errorf("loop body still left-nested: %s", body)
	}
}

func TestReturnsPredicate(t *testing.T) {
	tests := []struct {
		name string
		stmt Stmt
		want bool
	}{
		{"return", ret(1), true},
		{"assign", set("x", 1), false},
		{"nop", &Nop{}, false},
		{"seq with return", seqOf(set("x", 1), ret(1)), true},
		{"if one branch returns", &If{Cond: lessThan("a", "b"), Then: ret(1), Else: &Nop{}}, true},
		{"if neither branch returns", &If{Cond: lessThan("a", "b"), Then: set("x", 1), Else: &Nop{}}, false},
		{"while body returns", &While{Cond: lessThan("a", "b"), Body: ret(1)}, true},
		{"let rest returns", &Let{Name: "x", Init: &IntLit{Value: 1}, Rest: ret(1)}, true},
		{"funcdef body returns", &FuncDef{Name: "f", Body: ret(1), Rest: &Nop{}}, true},
		{"funcdef rest returns", &FuncDef{Name: "f", Body: &Nop{}, Rest: ret(1)}, true},
	}
	for _, tt := range tests {
		if got := Returns(tt.stmt); got != tt.want {
			t.Errorf("%s: Returns = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAbsorbDistributesTailIntoBranches(t *testing.T) {
	cond := &If{Cond: lessThan("a", "b"), Then: ret(1), Else: &Nop{}}
	in := &Seq{First: cond, Rest: set("x", 2)}

	got, ok := absorb(leftify(in)).(*If)
	if !ok {
		t.Fatalf("absorb produced %T, want *If", absorb(leftify(in)))
	}

	then, ok := got.Then.(*Seq)
	if !ok {
		t.Fatalf("then branch is %T, want *Seq", got.Then)
	}
	if _, isReturn := then.First.(*Return); !isReturn {
		t.Errorf("then branch should start with the return, got %s", then.First)
	}
	if !reflect.DeepEqual(then.Rest, set("x", 2)) {
		t.Errorf("then branch should carry the duplicated tail, got %s", then.Rest)
	}

	// The empty else branch plus tail simplifies to the tail alone.
	if !reflect.DeepEqual(got.Else, set("x", 2)) {
		t.Errorf("else branch = %s, want the tail alone", got.Else)
	}
}

func TestSequenceWithNopSimplifies(t *testing.T) {
	in := seqOf(&Nop{}, set("x", 1), &Nop{})
	got := absorb(leftify(in))
	if !reflect.DeepEqual(got, set("x", 1)) {
		t.Errorf("got %s, want the assignment alone", got)
	}
}

func TestPrecompilePrunesAfterReturn(t *testing.T) {
	// If s1 returns, Sequence(s1, s2) normalizes to the normalization of s1
	// alone, for any s2.
	s1 := seqOf(set("x", 1), ret(1))
	tails := []Stmt{
		set("y", 2),
		&While{Cond: lessThan("a", "b"), Body: set("z", 3)},
		seqOf(set("p", 1), set("q", 2)),
	}
	for _, s2 := range tails {
		got := Precompile(&Seq{First: s1, Rest: s2})
		want := Precompile(s1)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("tail %s survived after a guaranteed return:\n got %s\nwant %s", s2, got, want)
		}
	}
}

func TestPrecompileScenarioReturningThenBranch(t *testing.T) {
	// if (a < b) { return 1 } else {}; x := 2
	// The assignment must survive only in the else branch; the then branch
	// returns, so its duplicated copy is pruned.
	in := &Seq{
		First: &If{Cond: lessThan("a", "b"), Then: ret(1), Else: &Nop{}},
		Rest:  set("x", 2),
	}

	got, ok := Precompile(in).(*If)
	if !ok {
		t.Fatalf("Precompile produced %T, want *If", Precompile(in))
	}
	if !reflect.DeepEqual(got.Then, ret(1)) {
		t.Errorf("then branch = %s, want the bare return", got.Then)
	}
	if !reflect.DeepEqual(got.Else, set("x", 2)) {
		t.Errorf("else branch = %s, want the tail assignment", got.Else)
	}
}

func TestPrecompileIdempotent(t *testing.T) {
	trees := []Stmt{
		seqOf(set("a", 1), set("b", 2), ret(1)),
		&Seq{
			First: &Seq{
				First: &If{Cond: lessThan("a", "b"), Then: ret(1), Else: &Nop{}},
				Rest:  set("x", 2),
			},
			Rest: &While{
				Cond: lessThan("x", "y"),
				Body: seqOf(set("x", 3), &Nop{}, &If{Cond: lessThan("x", "y"), Then: set("y", 1), Else: set("y", 2)}),
			},
		},
		&FuncDef{
			Name:   "f",
			Params: []string{"n"},
			Body:   seqOf(ret(1), set("dead", 9)),
			Rest:   &Let{Name: "x", Init: &IntLit{Value: 1}, Rest: ret(2)},
		},
	}
	for i, tree := range trees {
		once := Precompile(tree)
		twice := Precompile(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("tree %d: Precompile is not idempotent:\n once %s\ntwice %s", i, once, twice)
		}
	}
}
