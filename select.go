package forge

import (
	"context"
	"errors"
	"fmt"
)

// projection is one key/value pair of the emitted JSON object.
type projection struct {
	name   string
	source Fragment
}

// relation is a nested projection reachable from a Select. A relation
// declared by an fk field builds its child fragment at render time;
// one added with Relate carries it directly.
type relation struct {
	name     string
	field    *Field
	target   *registered
	fragment Fragment
}

// selectFragment projects an entity into a JSON object (single mode) or a
// JSON array of objects (array mode).
type selectFragment struct {
	forge     *Forge
	reg       *registered
	alias     string
	single    bool
	columns   []projection
	relations []relation
	includes  []string
	filter    Fragment
	err       error
}

func newSelectFragment(f *Forge, reg *registered, alias string, single bool) *selectFragment {
	s := &selectFragment{
		forge:  f,
		reg:    reg,
		alias:  alias,
		single: single,
	}
	if s.alias == "" {
		s.alias = reg.desc.Table
	}

	for i := range reg.desc.Fields {
		field := reg.desc.Fields[i]
		if field.Roles.Has(RoleIgnored) {
			continue
		}

		if field.Roles.Has(RoleForeignKey) {
			target, err := f.lookup(field.ForeignKey.Target)
			if err != nil {
				s.err = fmt.Errorf("%s.%s: %w", reg.desc.Table, field.Name, err)
				return s
			}
			if _, ok := target.desc.PrimaryKey(); !ok {
				s.err = fmt.Errorf("%w: %s.%s references %s", ErrMissingPrimaryKey, reg.desc.Table, field.Name, target.desc.Table)
				return s
			}
			s.relations = append(s.relations, relation{
				name:   field.Column,
				field:  &field,
				target: target,
			})
			continue
		}

		s.columns = append(s.columns, projection{
			name:   field.Column,
			source: Raw(s.alias + "." + field.Column),
		})
	}
	return s
}

// child builds the nested projection of an fk relation.
func (s *selectFragment) child(rel relation) Fragment {
	if rel.fragment != nil {
		return rel.fragment
	}
	fk := rel.field.ForeignKey
	c := newSelectFragment(s.forge, rel.target, rel.name, !fk.Collection)
	c.filter = Raw(fmt.Sprintf("where %s.%s = %s.%s", s.alias, fk.ParentField, rel.name, fk.ChildField))
	return c
}

func (s *selectFragment) setColumn(name string, source Fragment) {
	for i := range s.columns {
		if s.columns[i].name == name {
			s.columns[i].source = source
			return
		}
	}
	s.columns = append(s.columns, projection{name: name, source: source})
}

func (s *selectFragment) setRelation(name string, fragment Fragment) {
	for i := range s.relations {
		if s.relations[i].name == name {
			s.relations[i] = relation{name: name, fragment: fragment}
			return
		}
	}
	s.relations = append(s.relations, relation{name: name, fragment: fragment})
}

func (s *selectFragment) relation(name string) (relation, bool) {
	for _, rel := range s.relations {
		if rel.name == name {
			return rel, true
		}
	}
	return relation{}, false
}

// Render emits the projection. Inherited paths qualified with this alias are
// claimed; the rest are offered to the nested fragments.
func (s *selectFragment) Render(scope Scope) (Rendered, error) {
	if s.err != nil {
		return Rendered{}, s.err
	}
	if len(s.columns) == 0 {
		return Rendered{}, fmt.Errorf("%w: %s", ErrEmptyProjection, s.alias)
	}

	set, err := adoptIncludes(s.alias, s.includes, scope, scopeSelect)
	if err != nil {
		return Rendered{}, err
	}
	pairs := make([]string, 0, len(s.columns)+len(s.relations))

	for _, col := range s.columns {
		r, err := col.source.Render(set.scope(scopeSelect))
		if err != nil {
			return Rendered{}, fmt.Errorf("column %q: %w", col.name, err)
		}
		set.absorb(r.Claimed)
		pairs = append(pairs, fmt.Sprintf("'%s',(%s)", col.name, r.SQL))
	}

	for _, path := range set.local() {
		rel, ok := s.relation(path)
		if !ok {
			return Rendered{}, fmt.Errorf("%w: %q on %s", ErrForeignKeyNotFound, path, s.alias)
		}
		r, err := s.child(rel).Render(set.scope(scopeSelect))
		if err != nil {
			return Rendered{}, err
		}
		set.absorb(r.Claimed)
		pairs = append(pairs, fmt.Sprintf("'%s',(%s)", rel.name, r.SQL))
	}

	dialect := s.forge.dialect
	expr := dialect.JSONObject(pairs)
	if !s.single {
		expr = dialect.JSONArray(expr)
	}

	sql := "SELECT " + expr + " AS " + s.alias + "_JSON FROM " + s.reg.desc.Table + " AS " + s.alias
	if s.filter != nil {
		r, err := s.filter.Render(TopLevel)
		if err != nil {
			return Rendered{}, err
		}
		if r.SQL != "" {
			sql += " " + r.SQL
		}
	}

	return Rendered{SQL: sql, Claimed: set.claimed}, nil
}

// SelectOption configures a Select.
type SelectOption func(*selectConfig)

type selectConfig struct {
	alias string
}

// WithAlias sets the table alias. The alias prefixes every column reference,
// names the result column (<alias>_JSON) and qualifies include paths meant for
// this level when the Select is nested in another one.
func WithAlias(alias string) SelectOption {
	return func(c *selectConfig) { c.alias = alias }
}

// Select builds a nested JSON SELECT for T.
type Select[T any] struct {
	entity *Entity[T]
	frag   *selectFragment
}

// Select returns a Select producing a JSON array with one object per row.
//
// Example:
//
//	teams, err := entity.Select().
//	    Where("Team.id = 1").
//	    Include("players").
//	    Exec(ctx)
func (e *Entity[T]) Select(opts ...SelectOption) *Select[T] {
	return e.newSelect(false, opts)
}

// SelectOne returns a Select producing a single JSON object.
func (e *Entity[T]) SelectOne(opts ...SelectOption) *Select[T] {
	return e.newSelect(true, opts)
}

func (e *Entity[T]) newSelect(single bool, opts []SelectOption) *Select[T] {
	var cfg selectConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Select[T]{entity: e, frag: newSelectFragment(e.forge, e.reg, cfg.alias, single)}
}

// Alias returns the table alias.
func (sb *Select[T]) Alias() string {
	return sb.frag.alias
}

// Where sets the filter. The clause is rendered after "where" unchanged.
func (sb *Select[T]) Where(clause string) *Select[T] {
	sb.frag.filter = Raw("where " + clause)
	return sb
}

// WhereCond sets the filter from a Condition.
func (sb *Select[T]) WhereCond(c Condition) *Select[T] {
	if sb.frag.err != nil {
		return sb
	}
	clause, err := c.clause(sb.entity.forge.escape)
	if err != nil {
		sb.frag.err = fmt.Errorf("invalid condition: %w", err)
		return sb
	}
	return sb.Where(clause)
}

// Include requests nested relations. A path is a relation name of this
// entity, or alias.relation to reach a relation of a nested projection.
// Paths are resolved at render time.
func (sb *Select[T]) Include(paths ...string) *Select[T] {
	sb.frag.includes = append(sb.frag.includes, paths...)
	return sb
}

// AddColumn adds or replaces a projected key whose value is a SQL expression.
func (sb *Select[T]) AddColumn(name, expression string) *Select[T] {
	sb.frag.setColumn(name, Raw(expression))
	return sb
}

// AddFragment adds or replaces a projected key whose value is a fragment.
// The fragment is rendered inside this Select and takes part in include
// forwarding.
func (sb *Select[T]) AddFragment(name string, f Fragment) *Select[T] {
	sb.frag.setColumn(name, f)
	return sb
}

// Relate adds or replaces the relation projected when name is included.
func (sb *Select[T]) Relate(name string, f Fragment) *Select[T] {
	sb.frag.setRelation(name, f)
	return sb
}

// Fragment returns the Select as a fragment for composition.
func (sb *Select[T]) Fragment() Fragment {
	return sb.frag
}

// Render builds the SQL statement.
func (sb *Select[T]) Render() (string, error) {
	return Render(sb.frag)
}

// MustRender is like Render but panics on error.
func (sb *Select[T]) MustRender() string {
	sql, err := sb.Render()
	if err != nil {
		panic(err)
	}
	return sql
}

// Exec runs the Select and decodes every root record.
// A single-mode Select yields at most one record.
func (sb *Select[T]) Exec(ctx context.Context) ([]*T, error) {
	if sb.frag.single {
		record, err := sb.one(ctx)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []*T{record}, nil
	}

	sql, result, err := sb.run(ctx)
	if err != nil {
		return nil, err
	}

	var records []*T
	if result != "" {
		if err := sb.entity.forge.decode(ctx, sb.table(), sql, result, &records); err != nil {
			return nil, err
		}
	}

	for _, record := range records {
		if err := sb.entity.callOnScan(ctx, record); err != nil {
			return nil, fmt.Errorf("onScan callback failed: %w", err)
		}
	}
	return records, nil
}

// One runs the Select and returns exactly one record. It returns ErrNotFound
// when there is none and, in array mode, ErrMultipleRows when there are more.
func (sb *Select[T]) One(ctx context.Context) (*T, error) {
	if sb.frag.single {
		return sb.one(ctx)
	}

	records, err := sb.Exec(ctx)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return records[0], nil
	default:
		return nil, ErrMultipleRows
	}
}

func (sb *Select[T]) one(ctx context.Context) (*T, error) {
	sql, result, err := sb.run(ctx)
	if err != nil {
		return nil, err
	}
	if result == "" {
		return nil, ErrNotFound
	}

	record := new(T)
	if err := sb.entity.forge.decode(ctx, sb.table(), sql, result, record); err != nil {
		return nil, err
	}
	if err := sb.entity.callOnScan(ctx, record); err != nil {
		return nil, fmt.Errorf("onScan callback failed: %w", err)
	}
	return record, nil
}

func (sb *Select[T]) run(ctx context.Context) (sql, result string, err error) {
	sql, err = sb.Render()
	if err != nil {
		return "", "", err
	}
	result, err = sb.entity.forge.query(ctx, sb.table(), opSelect, sql)
	if err != nil {
		return "", "", err
	}
	return sql, result, nil
}

func (sb *Select[T]) table() string {
	return sb.frag.reg.desc.Table
}
