package forge

// scopeKind identifies the builder family of an enclosing fragment.
// Include paths only travel between fragments of the same family.
type scopeKind int

const (
	scopeNone scopeKind = iota
	scopeSelect
	scopeUpdate
)

// Scope is what an enclosing fragment hands to a nested one while rendering:
// its builder family and the dotted include paths nobody has claimed yet.
// A Scope is never modified after it is created.
type Scope struct {
	kind     scopeKind
	includes []string
}

// TopLevel is the scope of a fragment rendered on its own.
var TopLevel = Scope{}

// Includes returns a copy of the inherited include paths.
func (s Scope) Includes() []string {
	return append([]string(nil), s.includes...)
}

// Rendered is the output of a fragment. Claimed lists the inherited paths
// (exactly as they appeared in the Scope) that this fragment or one of its
// descendants took ownership of.
type Rendered struct {
	SQL     string
	Claimed []string
}

// Fragment is a composable unit of SQL text.
type Fragment interface {
	Render(scope Scope) (Rendered, error)
}

// Render renders a fragment outside of any enclosing builder.
func Render(f Fragment) (string, error) {
	r, err := f.Render(TopLevel)
	if err != nil {
		return "", err
	}
	return r.SQL, nil
}

// Raw is literal SQL text.
type Raw string

// Render returns the text unchanged.
func (r Raw) Render(Scope) (Rendered, error) {
	return Rendered{SQL: string(r)}, nil
}

// fragmentList renders its members space-joined. Every member receives the
// same scope; the claim is the union of the members' claims.
type fragmentList []Fragment

func (l fragmentList) Render(scope Scope) (Rendered, error) {
	var out Rendered
	seen := make(map[string]bool)
	for i, f := range l {
		r, err := f.Render(scope)
		if err != nil {
			return Rendered{}, err
		}
		if i > 0 {
			out.SQL += " "
		}
		out.SQL += r.SQL
		for _, c := range r.Claimed {
			if !seen[c] {
				seen[c] = true
				out.Claimed = append(out.Claimed, c)
			}
		}
	}
	return out, nil
}
