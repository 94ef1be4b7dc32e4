package forge

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// updateRelation is a cascade target of an Update. fragment is nil when the
// related value is absent; err is reported only if the relation is included.
type updateRelation struct {
	name     string
	fragment Fragment
	err      error
}

// updateFragment emits an UPDATE for one model and, for every included
// relation, the UPDATEs of the related models.
type updateFragment struct {
	forge     *Forge
	table     string
	alias     string
	values    *valueMap
	filter    string
	relations []updateRelation
	includes  []string
	err       error
}

// visitSet holds the models on the current construction branch; a
// back-reference to one of them is skipped.
type visitSet map[uintptr]reflect.Type

func newUpdateFragment(f *Forge, reg *registered, alias string, model reflect.Value, visiting visitSet) *updateFragment {
	u := &updateFragment{
		forge: f,
		table: reg.desc.Table,
		alias: alias,
	}
	if u.alias == "" {
		u.alias = reg.desc.Table
	}

	values, err := snapshot(reg.desc, model)
	if err != nil {
		u.err = err
		return u
	}
	u.values = values

	if model.CanAddr() {
		addr := model.Addr().Pointer()
		visiting[addr] = model.Type()
		defer delete(visiting, addr)
	}

	for _, field := range reg.desc.Fields {
		if !field.Roles.Has(RoleForeignKey) || field.Roles.Has(RoleIgnored) {
			continue
		}
		u.relations = append(u.relations, u.cascade(reg, field, model.FieldByIndex(field.index), visiting))
	}
	return u
}

// cascade builds the child statements of one fk field.
func (u *updateFragment) cascade(owner *registered, field Field, rv reflect.Value, visiting visitSet) updateRelation {
	rel := updateRelation{name: field.Column}

	target, err := u.forge.lookup(field.ForeignKey.Target)
	if err != nil {
		rel.err = fmt.Errorf("%s.%s: %w", owner.desc.Table, field.Name, err)
		return rel
	}
	pk, ok := target.desc.PrimaryKey()
	if !ok {
		rel.err = fmt.Errorf("%w: %s.%s references %s", ErrMissingPrimaryKey, owner.desc.Table, field.Name, target.desc.Table)
		return rel
	}

	if !field.ForeignKey.Collection {
		elem, ok := indirect(rv)
		if !ok || u.cyclic(elem, visiting) {
			return rel
		}
		child, err := u.child(target, pk, field.Column, elem, visiting)
		if err != nil {
			rel.err = err
			return rel
		}
		rel.fragment = child
		return rel
	}

	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return rel
	}

	list := make(fragmentList, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, ok := indirect(rv.Index(i))
		if !ok || u.cyclic(elem, visiting) {
			continue
		}
		child, err := u.child(target, pk, field.Column, elem, visiting)
		if err != nil {
			rel.err = err
			return rel
		}
		list = append(list, child)
	}
	rel.fragment = list
	return rel
}

func (u *updateFragment) cyclic(elem reflect.Value, visiting visitSet) bool {
	if !elem.CanAddr() {
		return false
	}
	t, ok := visiting[elem.Addr().Pointer()]
	return ok && t == elem.Type()
}

// child builds the UPDATE of a related model, filtered on its own primary key.
func (u *updateFragment) child(target *registered, pk Field, alias string, elem reflect.Value, visiting visitSet) (*updateFragment, error) {
	key, err := valueOfReflect(elem.FieldByIndex(pk.index))
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", target.desc.Table, pk.Name, err)
	}
	c := newUpdateFragment(u.forge, target, alias, elem, visiting)
	c.filter = pk.Column + " = " + u.forge.literal(key)
	return c, nil
}

func (u *updateFragment) relation(name string) (updateRelation, bool) {
	for _, rel := range u.relations {
		if rel.name == name {
			return rel, true
		}
	}
	return updateRelation{}, false
}

// Render emits the UPDATE followed by the statements of every included
// relation, each preceded by a marker comment naming the include.
func (u *updateFragment) Render(scope Scope) (Rendered, error) {
	if u.err != nil {
		return Rendered{}, u.err
	}
	if u.filter == "" {
		return Rendered{}, fmt.Errorf("%w: UPDATE %s", ErrMissingWhereClause, u.table)
	}
	if u.values.len() == 0 {
		return Rendered{}, fmt.Errorf("%w: UPDATE %s", ErrNoValues, u.table)
	}

	sets := make([]string, 0, u.values.len())
	for _, col := range u.values.keys {
		sets = append(sets, col+" = "+u.forge.literal(u.values.values[col]))
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(u.table)
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(sets, ", "))
	sb.WriteString(" WHERE ")
	sb.WriteString(u.filter)
	sb.WriteString(";")

	set, err := adoptIncludes(u.alias, u.includes, scope, scopeUpdate)
	if err != nil {
		return Rendered{}, err
	}
	for _, name := range set.local() {
		rel, ok := u.relation(name)
		if !ok {
			return Rendered{}, fmt.Errorf("%w: %q on %s", ErrForeignKeyNotFound, name, u.alias)
		}
		if rel.err != nil {
			return Rendered{}, rel.err
		}
		if rel.fragment == nil {
			continue
		}
		r, err := rel.fragment.Render(set.scope(scopeUpdate))
		if err != nil {
			return Rendered{}, err
		}
		set.absorb(r.Claimed)
		if r.SQL == "" {
			continue
		}
		sb.WriteString(" -- Include logic for ")
		sb.WriteString(name)
		sb.WriteString(" \n\n ")
		sb.WriteString(r.SQL)
	}

	return Rendered{SQL: sb.String(), Claimed: set.claimed}, nil
}

// Update builds a cascading UPDATE for a model of type T.
type Update[T any] struct {
	entity *Entity[T]
	model  *T
	frag   *updateFragment
}

// Update returns an Update over a snapshot of model. Related models reachable
// through fk fields are captured at the same time and updated when included.
//
// Example:
//
//	n, err := entity.Update(team).
//	    Where("id = 1").
//	    Include("players").
//	    Exec(ctx)
func (e *Entity[T]) Update(model *T) *Update[T] {
	ub := &Update[T]{entity: e, model: model}
	if model == nil {
		ub.frag = &updateFragment{forge: e.forge, table: e.reg.desc.Table, err: fmt.Errorf("%w: nil model", ErrInvalidEntity)}
		return ub
	}
	ub.frag = newUpdateFragment(e.forge, e.reg, "", reflect.ValueOf(model).Elem(), make(visitSet))
	return ub
}

// Set overrides the value written to column.
func (ub *Update[T]) Set(column string, value any) *Update[T] {
	if ub.frag.err != nil {
		return ub
	}
	if err := ub.entity.validateColumn(column); err != nil {
		ub.frag.err = err
		return ub
	}
	v, err := ValueOf(value)
	if err != nil {
		ub.frag.err = fmt.Errorf("column %q: %w", column, err)
		return ub
	}
	ub.frag.values.set(column, v)
	return ub
}

// Where sets the filter. An Update without a filter never renders.
func (ub *Update[T]) Where(clause string) *Update[T] {
	ub.frag.filter = clause
	return ub
}

// WhereCond sets the filter from a Condition.
func (ub *Update[T]) WhereCond(c Condition) *Update[T] {
	if ub.frag.err != nil {
		return ub
	}
	clause, err := c.clause(ub.entity.forge.escape)
	if err != nil {
		ub.frag.err = fmt.Errorf("invalid condition: %w", err)
		return ub
	}
	return ub.Where(clause)
}

// Include requests cascading updates of related models.
// Paths follow the same rules as Select.Include.
func (ub *Update[T]) Include(paths ...string) *Update[T] {
	ub.frag.includes = append(ub.frag.includes, paths...)
	return ub
}

// Fragment returns the Update as a fragment for composition.
func (ub *Update[T]) Fragment() Fragment {
	return ub.frag
}

// Render builds the SQL statement batch.
func (ub *Update[T]) Render() (string, error) {
	return Render(ub.frag)
}

// MustRender is like Render but panics on error.
func (ub *Update[T]) MustRender() string {
	sql, err := ub.Render()
	if err != nil {
		panic(err)
	}
	return sql
}

// Exec runs the statement batch in one call and returns the rows affected as
// the driver reports them; for a cascaded batch that is the count of the last
// statement, not the total. Nothing is sent to the database when rendering fails.
func (ub *Update[T]) Exec(ctx context.Context) (int64, error) {
	sql, err := ub.Render()
	if err != nil {
		return 0, err
	}
	if err := ub.entity.callOnRecord(ctx, ub.model); err != nil {
		return 0, fmt.Errorf("onRecord callback failed: %w", err)
	}
	return ub.entity.forge.exec(ctx, ub.entity.reg.desc.Table, opUpdate, sql)
}
