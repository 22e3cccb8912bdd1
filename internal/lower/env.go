package lower

import (
	"fmt"

	"github.com/loam-lang/loam/internal/ast"
)

// The two environments threaded through lowering are extend-only and
// copy-on-extend: growing one branch of the recursion is never observable
// in a sibling branch or in the enclosing scope.

// Func is one function-table entry. defs is the table as it stood when the
// definition was encountered, without the entry itself, so a function can
// call everything defined before it and nothing else. Self- and
// forward-references therefore fail as undefined functions.
type Func struct {
	Params []string
	Body   ast.Stmt
	defs   Funcs
}

// Funcs maps a function name to its definition. A later definition shadows
// an earlier one of the same name for all subsequent uses.
type Funcs map[string]*Func

// NewFuncs returns an empty function table.
func NewFuncs() Funcs { return Funcs{} }

// Define returns a new table extended with a definition. The receiver is
// left untouched.
func (f Funcs) Define(name string, params []string, body ast.Stmt) Funcs {
	next := make(Funcs, len(f)+1)
	for k, v := range f {
		next[k] = v
	}
	next[name] = &Func{Params: params, Body: body, defs: f}
	return next
}

// scope is the renaming table: source name to target cell name.
type scope map[string]string

func (s scope) extend(src, dst string) scope {
	next := make(scope, len(s)+1)
	for k, v := range s {
		next[k] = v
	}
	next[src] = dst
	return next
}

// retSlot is the reserved per-call-site name the i-th return value must
// land in.
func retSlot(i int) string { return fmt.Sprintf("__%d", i) }

// NameGen produces fresh cell names, unique within one lowering run. The
// dot is reserved: source identifiers never contain one, so a generated
// name cannot collide with a renamed source variable.
type NameGen struct {
	n int
}

// Fresh returns a new name derived from base.
func (g *NameGen) Fresh(base string) string {
	g.n++
	return fmt.Sprintf("%s.%d", base, g.n)
}
