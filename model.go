package rivet

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FieldKind classifies a resource-model field for type inference and SQL
// generation.
type FieldKind int

const (
	KindInvalid FieldKind = iota
	KindAuto               // auto-increment integer primary key
	KindInt
	KindUint
	KindFloat
	KindBool
	KindString
	KindUUID
	KindBytes
	KindTime
	KindForeignKey
	KindManyToMany
)

func (k FieldKind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindUUID:
		return "uuid"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	case KindForeignKey:
		return "fk"
	case KindManyToMany:
		return "m2m"
	default:
		return "invalid"
	}
}

// FieldMeta describes one field of a resource model.
type FieldMeta struct {
	// Name is the Go struct field name.
	Name string

	// Column is the wire and storage name: the json tag if present,
	// otherwise the snake-cased field name. Path placeholders and payload
	// fields address fields by column.
	Column string

	Kind FieldKind
	Type reflect.Type

	// PrimaryKey marks the model's primary key. Auto implies PrimaryKey.
	PrimaryKey bool
	Auto       bool

	// RelatedModel names the registered model a fk/m2m field points at.
	RelatedModel string

	index int // struct field index
}

// ModelMeta is the introspected metadata of a resource model type. Build one
// with ModelOf; metas are memoized per type and registered by name so that
// foreign keys can resolve their related model, including self-references.
type ModelMeta struct {
	// Name is the model's type name (e.g. "Employee").
	Name string

	// Table is the snake-cased storage name (e.g. "employee").
	Table string

	// Type is the underlying struct type.
	Type reflect.Type

	// Fields lists the model's fields in declaration order.
	Fields []*FieldMeta

	byColumn map[string]*FieldMeta
	pk       *FieldMeta
}

var (
	metaMu     sync.RWMutex
	metaByType = map[reflect.Type]*ModelMeta{}
	metaByName = map[string]*ModelMeta{}
)

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
	timeType = reflect.TypeOf(time.Time{})
)

// ModelOf builds (or returns the memoized) metadata for T, which must be a
// struct type. The meta is registered under its type name so foreign keys on
// other models can refer to it.
func ModelOf[T any]() *ModelMeta {
	meta, err := MetaOf(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		panic(err)
	}
	return meta
}

// MetaOf is the non-generic form of ModelOf.
func MetaOf(t reflect.Type) (*ModelMeta, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("rivet: model must be a struct, got %s", t.Kind())
	}

	metaMu.RLock()
	meta, ok := metaByType[t]
	metaMu.RUnlock()
	if ok {
		return meta, nil
	}

	meta, err := buildMeta(t)
	if err != nil {
		return nil, err
	}

	metaMu.Lock()
	defer metaMu.Unlock()
	if existing, ok := metaByType[t]; ok {
		return existing, nil
	}
	metaByType[t] = meta
	metaByName[meta.Name] = meta
	return meta, nil
}

// modelByName resolves a registered model by type name. Used for foreign-key
// indirection; related models must have been built with ModelOf/MetaOf.
func modelByName(name string) (*ModelMeta, bool) {
	metaMu.RLock()
	defer metaMu.RUnlock()
	meta, ok := metaByName[name]
	return meta, ok
}

func buildMeta(t reflect.Type) (*ModelMeta, error) {
	meta := &ModelMeta{
		Name:     t.Name(),
		Table:    snakeCase(t.Name()),
		Type:     t,
		byColumn: make(map[string]*FieldMeta),
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		field := &FieldMeta{
			Name:   sf.Name,
			Column: columnName(sf),
			Type:   sf.Type,
			index:  i,
		}

		for _, opt := range strings.Split(sf.Tag.Get("rivet"), ",") {
			switch {
			case opt == "pk":
				field.PrimaryKey = true
			case opt == "auto":
				field.PrimaryKey = true
				field.Auto = true
			case strings.HasPrefix(opt, "fk:"):
				field.Kind = KindForeignKey
				field.RelatedModel = strings.TrimPrefix(opt, "fk:")
			case strings.HasPrefix(opt, "m2m:"):
				field.Kind = KindManyToMany
				field.RelatedModel = strings.TrimPrefix(opt, "m2m:")
			case opt == "" || opt == "-":
				// no directive
			default:
				return nil, fmt.Errorf("rivet: model %s field %s: unknown tag option %q", t.Name(), sf.Name, opt)
			}
		}

		if field.Kind == KindInvalid {
			field.Kind = classifyKind(sf.Type, field.Auto)
		}
		if field.Kind == KindForeignKey && field.RelatedModel == "self" {
			field.RelatedModel = meta.Name
		}

		if field.PrimaryKey {
			if meta.pk != nil {
				return nil, fmt.Errorf("rivet: model %s declares more than one primary key", t.Name())
			}
			meta.pk = field
		}

		meta.Fields = append(meta.Fields, field)
		meta.byColumn[field.Column] = field
	}

	if meta.pk == nil {
		// Convention fallback, like Django's implicit id field.
		if f, ok := meta.byColumn["id"]; ok {
			f.PrimaryKey = true
			meta.pk = f
		} else {
			return nil, fmt.Errorf("rivet: model %s has no primary key (tag a field with rivet:\"pk\")", t.Name())
		}
	}
	return meta, nil
}

func classifyKind(t reflect.Type, auto bool) FieldKind {
	// Auto UUID keys keep their UUID kind; stores generate them instead of
	// relying on an integer sequence.
	if auto && t != uuidType {
		return KindAuto
	}
	switch {
	case t == uuidType:
		return KindUUID
	case t == timeType:
		return KindTime
	case t.Kind() == reflect.String:
		return KindString
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Int64:
		return KindInt
	case t.Kind() >= reflect.Uint && t.Kind() <= reflect.Uint64:
		return KindUint
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		return KindFloat
	case t.Kind() == reflect.Bool:
		return KindBool
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return KindBytes
	default:
		return KindInvalid
	}
}

// Field returns the field with the given column name.
func (m *ModelMeta) Field(column string) (*FieldMeta, error) {
	f, ok := m.byColumn[column]
	if !ok {
		return nil, &FieldError{Model: m.Name, Field: column, Err: ErrFieldNotFound}
	}
	return f, nil
}

// PrimaryKey returns the model's primary-key field.
func (m *ModelMeta) PrimaryKey() *FieldMeta { return m.pk }

// Related resolves the model a foreign-key or many-to-many field points at.
func (m *ModelMeta) Related(f *FieldMeta) (*ModelMeta, error) {
	if f.RelatedModel == "" {
		return nil, fmt.Errorf("rivet: field %s.%s is not a relation", m.Name, f.Name)
	}
	if f.RelatedModel == m.Name {
		return m, nil
	}
	related, ok := modelByName(f.RelatedModel)
	if !ok {
		return nil, fmt.Errorf("rivet: related model %q of %s.%s is not registered", f.RelatedModel, m.Name, f.Name)
	}
	return related, nil
}

// New returns a pointer to a fresh zero instance of the model.
func (m *ModelMeta) New() any {
	return reflect.New(m.Type).Interface()
}

// Value reads the named column from an instance (a *T or T of the model's
// struct type).
func (m *ModelMeta) Value(instance any, column string) (any, error) {
	f, err := m.Field(column)
	if err != nil {
		return nil, err
	}
	v := reflect.Indirect(reflect.ValueOf(instance))
	return v.Field(f.index).Interface(), nil
}

// SetValue writes the named column on an instance, converting assignable
// numeric types.
func (m *ModelMeta) SetValue(instance any, column string, value any) error {
	f, err := m.Field(column)
	if err != nil {
		return err
	}
	dst := reflect.Indirect(reflect.ValueOf(instance)).Field(f.index)
	src := reflect.ValueOf(value)
	if !src.IsValid() {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if src.Type() != dst.Type() {
		if !src.Type().ConvertibleTo(dst.Type()) {
			return fmt.Errorf("rivet: cannot assign %s to %s.%s (%s)", src.Type(), m.Name, f.Name, dst.Type())
		}
		src = src.Convert(dst.Type())
	}
	dst.Set(src)
	return nil
}

// PrimaryKeyValue reads the primary key of an instance.
func (m *ModelMeta) PrimaryKeyValue(instance any) any {
	v := reflect.Indirect(reflect.ValueOf(instance))
	return v.Field(m.pk.index).Interface()
}

func columnName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag != "" {
		name := strings.Split(tag, ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return snakeCase(sf.Name)
}

// snakeCase converts CamelCase names to snake_case, keeping initialisms like
// "ID" as a single segment.
func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && (runes[i-1] < 'A' || runes[i-1] > 'Z' || (i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z')) {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
