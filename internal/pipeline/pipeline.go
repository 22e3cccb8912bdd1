// Package pipeline wires the lowering passes together. A Compiler takes a
// parsed source tree through normalization, inlining/lowering, flattening
// and liveness analysis, and hands the tagged IR to the external emitter.
// It adds no semantics of its own.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/loam-lang/loam/internal/ast"
	"github.com/loam-lang/loam/internal/ir"
	"github.com/loam-lang/loam/internal/liveness"
	"github.com/loam-lang/loam/internal/lower"
)

// Compiler runs the pass chain. Each run is independent; a Compiler may be
// reused sequentially but not concurrently, since every run draws fresh
// names from its own lowerer.
type Compiler struct {
	log      *zap.Logger
	builtins []builtin
	results  []string
}

type builtin struct {
	name   string
	params []string
	body   ast.Stmt
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger for pass-boundary diagnostics. The default
// discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *Compiler) { c.log = log }
}

// WithBuiltin registers an externally supplied function, available to every
// call site in the program. The implicit arithmetic builtins "*", "/" and
// "%" must be registered this way before a program can use non-constant
// multiplication, division or modulo. Builtins are defined in registration
// order, so a builtin may call one registered before it.
func WithBuiltin(name string, params []string, body ast.Stmt) Option {
	return func(c *Compiler) {
		c.builtins = append(c.builtins, builtin{name: name, params: params, body: body})
	}
}

// WithResults names the cells the program's top-level return values land
// in. The same names seed the live-out set of the analysis, so computations
// feeding them survive dead-store elimination.
func WithResults(names ...string) Option {
	return func(c *Compiler) { c.results = names }
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile runs the full chain on a source tree and returns the
// liveness-tagged IR, or the first fatal error with no partial output.
func (c *Compiler) Compile(src ast.Stmt) (ir.Node, error) {
	norm := ast.Precompile(src)
	c.log.Debug("normalized source tree")

	fns := lower.NewFuncs()
	for _, b := range c.builtins {
		fns = fns.Define(b.name, b.params, b.body)
	}

	low, err := lower.NewLowerer().Lower(norm, fns, c.results)
	if err != nil {
		c.log.Debug("lowering failed", zap.Error(err))
		return nil, err
	}
	c.log.Debug("lowered to IR", zap.Int("instructions", ir.CountNodes(low)))

	flat := ir.Flatten(low)

	tagged := liveness.Analyze(flat, ir.NewNameSet(c.results...))
	c.log.Debug("liveness analysis complete",
		zap.Int("instructions", ir.CountNodes(tagged)),
		zap.Strings("live_out", c.results))
	return tagged, nil
}
