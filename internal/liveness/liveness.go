// Package liveness runs a backward dataflow analysis over the flattened IR.
// For every instruction it computes the set of cell names whose value may
// still be read afterwards, deletes assignments that nothing reads, and
// tags each surviving instruction with its live-after set. Loop bodies are
// iterated to a fixpoint; the iteration terminates because the sets only
// grow within the finite universe of names in the tree.
package liveness

import "github.com/loam-lang/loam/internal/ir"

// Analyze tags n against the given live-out set (the cells the external
// consumer reads after the program, e.g. its result cells) and returns the
// rebuilt tree. The input tree is not modified; tags are attached to fresh
// nodes and never changed afterwards.
func Analyze(n ir.Node, liveOut ir.NameSet) ir.Node {
	out, _ := analyze(n, liveOut.Clone())
	if out == nil {
		return &ir.Seq{}
	}
	return out
}

// analyze returns the rebuilt node (nil when deleted) and the live-before
// set. Incoming sets are never mutated, so a set may be handed onward as-is.
func analyze(n ir.Node, after ir.NameSet) (ir.Node, ir.NameSet) {
	switch v := n.(type) {
	case *ir.Assign:
		if !after.Has(v.Dst) {
			// Dead store: nothing downstream reads the cell.
			return nil, after
		}
		before := after.Clone()
		before.Remove(v.Dst)
		ir.ReadsExpr(v.Src, before)
		return &ir.Assign{Dst: v.Dst, Src: v.Src, Live: after.Clone()}, before

	case *ir.Cmp:
		// Setting the flags is a visible side effect; a Cmp is never
		// deleted. The cells it reads stay live through the guards that
		// read the equally named flags, not through the Cmp itself.
		return &ir.Cmp{LHS: v.LHS, RHS: v.RHS, Live: after.Clone()}, after

	case *ir.Seq:
		items := make([]ir.Node, 0, len(v.Items))
		live := after
		for i := len(v.Items) - 1; i >= 0; i-- {
			kept, before := analyze(v.Items[i], live)
			if kept != nil {
				items = append(items, kept)
			}
			live = before
		}
		if len(items) == 0 {
			return nil, live
		}
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		return &ir.Seq{Items: items}, live

	case *ir.Par:
		// Branches are independent: each is analyzed against the same
		// incoming live-after, with no threading between siblings.
		items := make([]ir.Node, len(v.Items))
		before := ir.NewNameSet()
		for i, c := range v.Items {
			kept, b := analyze(c, after)
			items[i] = orEmpty(kept)
			before = before.Union(b)
		}
		return &ir.Par{Items: items}, before

	case *ir.If:
		thenN, thenB := analyze(v.Then, after)
		elseN, elseB := analyze(v.Else, after)
		before := thenB.Union(elseB)
		ir.ReadsGuard(v.Cond, before)
		return &ir.If{
			Cond: v.Cond,
			Then: orEmpty(thenN),
			Else: orEmpty(elseN),
			Live: after.Clone(),
		}, before

	case *ir.Loop:
		base := after.Clone()
		ir.ReadsGuard(v.Cond, base)
		live := base
		for {
			_, bodyB := analyze(v.Body, live)
			next := base.Union(bodyB)
			if next.Equal(live) {
				break
			}
			live = next
		}
		// One more pass at the fixpoint produces the final tagged body.
		body, _ := analyze(v.Body, live)
		return &ir.Loop{Cond: v.Cond, Body: orEmpty(body), Live: live.Clone()}, live

	default:
		return n, after
	}
}

func orEmpty(n ir.Node) ir.Node {
	if n == nil {
		return &ir.Seq{}
	}
	return n
}
