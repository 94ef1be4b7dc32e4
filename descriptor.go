package forge

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/zoobzio/sentinel"
)

// StorageKind is the column storage class a field maps to.
type StorageKind int

// Storage kinds.
const (
	KindUnsupported StorageKind = iota
	KindText
	KindInteger
	KindReal
	KindBoolean // stored as INTEGER 0/1
	KindGUID    // stored as TEXT
)

// String returns the kind name.
func (k StorageKind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindInteger:
		return "Integer"
	case KindReal:
		return "Real"
	case KindBoolean:
		return "BooleanAsInteger"
	case KindGUID:
		return "GuidAsText"
	default:
		return "Unsupported"
	}
}

// Role is a bit set of field roles.
type Role uint8

// Field roles.
const (
	RoleIgnored Role = 1 << iota
	RolePrimaryKey
	RoleNotNull
	RoleForeignKey
)

// Has reports whether r contains role.
func (r Role) Has(role Role) bool {
	return r&role != 0
}

// ForeignKey describes a relation field. ParentField names the column on the
// owning entity and ChildField the column on the related entity.
type ForeignKey struct {
	ParentField string
	ChildField  string
	Collection  bool
	Target      reflect.Type // struct type of the related entity
}

// Field is one entry of a Descriptor.
type Field struct {
	Name       string // Go field name
	Column     string // column name, JSON key and relation alias
	Kind       StorageKind
	Roles      Role
	ForeignKey *ForeignKey
	index      []int
}

// Descriptor is the static metadata of an entity type.
type Descriptor struct {
	Type   reflect.Type
	Table  string
	Fields []Field
	pk     int
}

// PrimaryKey returns the primary key field, if any.
func (d *Descriptor) PrimaryKey() (Field, bool) {
	if d.pk < 0 {
		return Field{}, false
	}
	return d.Fields[d.pk], true
}

// Field returns the field with the given column name.
func (d *Descriptor) Field(column string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return Field{}, false
}

// storable reports whether the field maps to a column of its own table.
func (f Field) storable() bool {
	return !f.Roles.Has(RoleIgnored) && !f.Roles.Has(RoleForeignKey)
}

// Tabler lets an entity override its table name.
type Tabler interface {
	TableName() string
}

var (
	uuidType   = reflect.TypeFor[uuid.UUID]()
	tablerType = reflect.TypeFor[Tabler]()
)

var trackedTags = []string{"db", "constraints", "fk"}

func registerTags() {
	for _, name := range trackedTags {
		sentinel.Tag(name)
	}
}

// describe builds the descriptor of T from its sentinel metadata.
func describe[T any]() (*Descriptor, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrInvalidEntity, t)
	}

	registerTags()
	metadata := sentinel.Inspect[T]()

	name := metadata.TypeName
	if name == "" {
		name = t.Name()
	}
	return buildDescriptor(t, name, metadata.Fields)
}

func buildDescriptor(t reflect.Type, typeName string, fields []sentinel.FieldMetadata) (*Descriptor, error) {
	d := &Descriptor{
		Type:  t,
		Table: tableName(t, typeName),
		pk:    -1,
	}

	byName := make(map[string]sentinel.FieldMetadata, len(fields))
	for _, fm := range fields {
		byName[fm.Name] = fm
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		tags := fieldTags(sf, byName)

		f := Field{
			Name:   sf.Name,
			Column: sf.Name,
			index:  sf.Index,
		}

		if col, ok := tags["db"]; ok && col != "" {
			if col == "-" {
				f.Roles |= RoleIgnored
			} else {
				f.Column = col
			}
		}

		if constraints, ok := tags["constraints"]; ok {
			notNull, primaryKey := parseConstraints(constraints)
			if notNull {
				f.Roles |= RoleNotNull
			}
			if primaryKey {
				f.Roles |= RolePrimaryKey
			}
		}

		if fk, ok := tags["fk"]; ok && !f.Roles.Has(RoleIgnored) {
			rel, err := parseForeignKey(fk, sf.Type)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", d.Table, f.Name, err)
			}
			f.Roles |= RoleForeignKey
			f.ForeignKey = rel
		}

		if f.storable() {
			f.Kind = storageKind(sf.Type)
			if f.Kind == KindUnsupported {
				return nil, fmt.Errorf("%w: field %s of type %s on %s", ErrUnsupportedStorageKind, f.Name, sf.Type, d.Table)
			}
		}

		if f.Roles.Has(RolePrimaryKey) && !f.Roles.Has(RoleIgnored) {
			if d.pk >= 0 {
				return nil, fmt.Errorf("%w: %s declares %s and %s", ErrMultiplePrimaryKeys, d.Table, d.Fields[d.pk].Name, f.Name)
			}
			d.pk = len(d.Fields)
		}

		d.Fields = append(d.Fields, f)
	}

	return d, nil
}

// fieldTags prefers sentinel's cached tags and fills in any tracked tag it
// did not report from the raw struct tag.
func fieldTags(sf reflect.StructField, byName map[string]sentinel.FieldMetadata) map[string]string {
	tags := make(map[string]string, len(trackedTags))
	if fm, ok := byName[sf.Name]; ok {
		for k, v := range fm.Tags {
			tags[k] = v
		}
	}
	for _, name := range trackedTags {
		if _, ok := tags[name]; ok {
			continue
		}
		if v, ok := sf.Tag.Lookup(name); ok {
			tags[name] = v
		}
	}
	return tags
}

func tableName(t reflect.Type, typeName string) string {
	if reflect.PointerTo(t).Implements(tablerType) {
		if tb, ok := reflect.New(t).Interface().(Tabler); ok {
			if name := tb.TableName(); name != "" {
				return name
			}
		}
	}
	return typeName
}

// parseConstraints accepts both "primarykey" and "primary_key" spellings.
func parseConstraints(tag string) (notNull, primaryKey bool) {
	for _, c := range strings.Split(tag, ",") {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "notnull", "not_null":
			notNull = true
		case "primarykey", "primary_key":
			primaryKey = true
		}
	}
	return notNull, primaryKey
}

// parseForeignKey parses an fk tag of the form "ParentField,ChildField".
func parseForeignKey(tag string, t reflect.Type) (*ForeignKey, error) {
	parts := strings.Split(tag, ",")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return nil, fmt.Errorf("%w: invalid fk tag %q, expected 'ParentField,ChildField'", ErrInvalidEntity, tag)
	}

	rel := &ForeignKey{
		ParentField: strings.TrimSpace(parts[0]),
		ChildField:  strings.TrimSpace(parts[1]),
	}

	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		rel.Collection = true
		t = t.Elem()
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: fk field must hold a struct or a collection of structs, got %s", ErrInvalidEntity, t)
	}
	rel.Target = t
	return rel, nil
}

// storageKind maps a Go type to its storage kind.
func storageKind(t reflect.Type) StorageKind {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == uuidType {
		return KindGUID
	}

	switch t.Kind() {
	case reflect.String:
		return KindText
	case reflect.Bool:
		return KindBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger
	case reflect.Float32, reflect.Float64:
		return KindReal
	default:
		return KindUnsupported
	}
}
