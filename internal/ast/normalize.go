// Source-tree normalization passes.
// The passes rewrite the statement tree into the shape the inliner expects:
// a right-leaning sequence spine, conditionals that have absorbed whatever
// followed them, and no code after a statement that is guaranteed to return.
// Each pass is a pure structural recursion; input nodes are never mutated.
package ast

// Precompile canonicalizes a source tree. It is the entry point for the
// normalizer and is idempotent: applying it to its own output yields a
// structurally equal tree.
func Precompile(s Stmt) Stmt {
	return elimDead(absorb(leftify(s)))
}

// Returns reports whether a Return is structurally reachable in s without
// crossing a function boundary below it. After normalization, nothing may
// follow a returning statement in a sequence.
func Returns(s Stmt) bool {
	switch n := s.(type) {
	case *Return:
		return true
	case *Seq:
		return Returns(n.First) || Returns(n.Rest)
	case *If:
		return Returns(n.Then) || Returns(n.Else)
	case *While:
		return Returns(n.Body)
	case *Let:
		return Returns(n.Rest)
	case *FuncDef:
		return Returns(n.Body) || Returns(n.Rest)
	default:
		return false
	}
}

// leftify rewrites Seq(Seq(a, b), c) into Seq(a, Seq(b, c)) everywhere,
// producing a right-leaning spine, and descends into every compound
// statement.
func leftify(s Stmt) Stmt {
	switch n := s.(type) {
	case *Seq:
		for {
			inner, ok := n.First.(*Seq)
			if !ok {
				break
			}
			n = &Seq{First: inner.First, Rest: &Seq{First: inner.Rest, Rest: n.Rest}}
		}
		return &Seq{First: leftify(n.First), Rest: leftify(n.Rest)}
	case *FuncDef:
		return &FuncDef{Name: n.Name, Params: n.Params, Body: leftify(n.Body), Rest: leftify(n.Rest)}
	case *If:
		return &If{Cond: n.Cond, Then: leftify(n.Then), Else: leftify(n.Else)}
	case *While:
		return &While{Cond: n.Cond, Body: leftify(n.Body)}
	case *Let:
		return &Let{Name: n.Name, Init: n.Init, Rest: leftify(n.Rest)}
	default:
		return s
	}
}

// absorb distributes the tail of Seq(If(..), tail) into both branches of the
// conditional, so that every conditional ends its enclosing sequence. The
// tail is duplicated unconditionally even when one branch always returns;
// elimDead prunes the dead copy afterwards. Sequences with a Nop on either
// side simplify away first. Expects a leftified tree and preserves that
// shape.
func absorb(s Stmt) Stmt {
	switch n := s.(type) {
	case *Seq:
		if _, ok := n.First.(*Nop); ok {
			return absorb(n.Rest)
		}
		if _, ok := n.Rest.(*Nop); ok {
			return absorb(n.First)
		}
		if cond, ok := n.First.(*If); ok {
			then := absorb(cond.Then)
			els := absorb(cond.Else)
			tail := absorb(n.Rest)
			return &If{
				Cond: cond.Cond,
				Then: absorb(leftify(&Seq{First: then, Rest: tail})),
				Else: absorb(leftify(&Seq{First: els, Rest: tail})),
			}
		}
		return &Seq{First: absorb(n.First), Rest: absorb(n.Rest)}
	case *FuncDef:
		return &FuncDef{Name: n.Name, Params: n.Params, Body: absorb(n.Body), Rest: absorb(n.Rest)}
	case *If:
		return &If{Cond: n.Cond, Then: absorb(n.Then), Else: absorb(n.Else)}
	case *While:
		return &While{Cond: n.Cond, Body: absorb(n.Body)}
	case *Let:
		return &Let{Name: n.Name, Init: n.Init, Rest: absorb(n.Rest)}
	default:
		return s
	}
}

// elimDead discards the rest of a sequence whose first statement is
// guaranteed to return.
func elimDead(s Stmt) Stmt {
	switch n := s.(type) {
	case *Seq:
		first := elimDead(n.First)
		if Returns(first) {
			return first
		}
		return &Seq{First: first, Rest: elimDead(n.Rest)}
	case *FuncDef:
		return &FuncDef{Name: n.Name, Params: n.Params, Body: elimDead(n.Body), Rest: elimDead(n.Rest)}
	case *If:
		return &If{Cond: n.Cond, Then: elimDead(n.Then), Else: elimDead(n.Else)}
	case *While:
		return &While{Cond: n.Cond, Body: elimDead(n.Body)}
	case *Let:
		return &Let{Name: n.Name, Init: n.Init, Rest: elimDead(n.Rest)}
	default:
		return s
	}
}
