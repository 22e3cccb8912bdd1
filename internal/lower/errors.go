package lower

import "fmt"

// Lowering failures are fatal for the whole run: the lowerer returns the
// first one it hits and no partial IR accompanies it. Callers distinguish
// the kinds with errors.As.

// UndefinedVariableError reports an identifier with no reachable binding.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable: %s", e.Name)
}

// UndefinedFunctionError reports a call to a name absent from the function
// table at that program point. The implicit arithmetic builtins "*", "/"
// and "%" fail the same way when the caller never supplied them.
type UndefinedFunctionError struct {
	Name string
}

func (e *UndefinedFunctionError) Error() string {
	return fmt.Sprintf("undefined function: %s", e.Name)
}

// ArityMismatchError reports an argument/parameter or assigned-name/result
// count mismatch at a call site.
type ArityMismatchError struct {
	Name string // function involved
	What string // "arguments" or "results"
	Want int
	Got  int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d %s, got %d", e.Name, e.Want, e.What, e.Got)
}

// SourceFlagError reports a flag reference in source input. Flags only ever
// originate from lowering a comparison; the parser has no way to produce
// one, so reaching this means the tree was built by hand incorrectly.
type SourceFlagError struct {
	Name string
}

func (e *SourceFlagError) Error() string {
	return fmt.Sprintf("flag %s referenced in source input", e.Name)
}
