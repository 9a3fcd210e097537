package expr

// Subs performs non-capturing substitution: every Var node whose UID is a
// key of repl is replaced by the corresponding expression; everything
// else is rebuilt structurally. Used by pkg/block to implement port
// connections as pure variable renames.
func Subs(e *Expr, repl map[int]*Expr) *Expr {
	switch e.Kind {
	case KConst:
		return e
	case KVar:
		if r, ok := repl[e.UID]; ok {
			return r
		}
		return e
	}

	args := make([]*Expr, len(e.Args))
	for i, a := range e.Args {
		args[i] = Subs(a, repl)
	}
	return &Expr{Kind: e.Kind, Args: args}
}
