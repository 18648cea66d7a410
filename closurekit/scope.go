package closurekit

// ScopeFrame is the set of identifiers bound at some point in the AST
// walk. Frames compose by set-union as the walker descends into blocks,
// function parameters, variable declarators, and catch clauses (spec
// §3, ScopeFrame).
type ScopeFrame map[string]bool

func newScopeFrame(names ...string) ScopeFrame {
	f := make(ScopeFrame, len(names))
	for _, n := range names {
		if n != "" {
			f[n] = true
		}
	}
	return f
}

// with returns a new frame containing f's names plus names, without
// mutating f (callers hold cumulative frames across sibling subtrees that
// must not see each other's bindings).
func (f ScopeFrame) with(names ...string) ScopeFrame {
	out := make(ScopeFrame, len(f)+len(names))
	for k := range f {
		out[k] = true
	}
	for _, n := range names {
		if n != "" {
			out[n] = true
		}
	}
	return out
}
