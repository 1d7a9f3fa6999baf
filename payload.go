package rivet

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/url"
	"reflect"
	"sort"
	"sync"

	"github.com/gorilla/schema"
	"github.com/mitchellh/mapstructure"
)

var schemaDecoder = schema.NewDecoder()

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
}

// Payload wraps a parsed request input (body, query or path parameters): a
// typed value plus the set of fields the client explicitly provided. The
// distinction drives partial updates and query filtering, where unset fields
// must never be used.
type Payload struct {
	value reflect.Value // pointer to struct
	typ   reflect.Type
	set   map[string]bool // explicitly provided, by column name
}

// NewPayload wraps an existing struct value, marking the given columns as
// explicitly set. A nil set marks every field as set. Mostly useful in tests
// and custom hooks.
func NewPayload(value any, setColumns []string) *Payload {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Ptr {
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		v = ptr
	}
	p := &Payload{value: v, typ: v.Type().Elem()}
	if setColumns == nil {
		p.set = make(map[string]bool)
		for col := range structColumns(p.typ) {
			p.set[col] = true
		}
	} else {
		p.set = make(map[string]bool, len(setColumns))
		for _, col := range setColumns {
			p.set[col] = true
		}
	}
	return p
}

// ParseBody decodes a JSON request body into the schema type, tracking which
// fields were present in the document.
func ParseBody(prototype any, body io.Reader) (*Payload, error) {
	typ := SchemaType(prototype)
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "failed to read body: %v", err)
	}
	if len(data) == 0 {
		data = []byte("{}")
	}

	ptr := reflect.New(typ)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, Errorf(CodeInvalidArgument, "failed to decode body: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, Errorf(CodeInvalidArgument, "body must be a JSON object")
	}

	columns := structColumns(typ)
	set := make(map[string]bool, len(raw))
	for key := range raw {
		if _, ok := columns[key]; ok {
			set[key] = true
		}
	}
	return &Payload{value: ptr, typ: typ, set: set}, nil
}

// DecodeValues decodes URL values (query string or extracted path segments)
// into the schema type via gorilla/schema, tracking which keys were present.
func DecodeValues(prototype any, values url.Values) (*Payload, error) {
	typ := SchemaType(prototype)
	ptr := reflect.New(typ)
	if err := schemaDecoder.Decode(ptr.Interface(), values); err != nil {
		return nil, Errorf(CodeInvalidArgument, "failed to decode parameters: %v", err)
	}

	columns := structColumns(typ)
	set := make(map[string]bool, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if _, ok := columns[key]; ok {
			set[key] = true
		}
	}
	return &Payload{value: ptr, typ: typ, set: set}, nil
}

// Value returns the typed value as a pointer to the schema struct.
func (p *Payload) Value() any { return p.value.Interface() }

// Type returns the schema struct type.
func (p *Payload) Type() reflect.Type { return p.typ }

// Has reports whether the column was explicitly provided.
func (p *Payload) Has(column string) bool { return p.set[column] }

// Get returns the value of a column and whether the column exists on the
// schema at all (set or not).
func (p *Payload) Get(column string) (any, bool) {
	idx, ok := structColumns(p.typ)[column]
	if !ok {
		return nil, false
	}
	return p.value.Elem().Field(idx).Interface(), true
}

// SetFields iterates the explicitly provided fields as column/value pairs, in
// a stable order.
func (p *Payload) SetFields() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, col := range p.sortedSet() {
			v, _ := p.Get(col)
			if !yield(col, v) {
				return
			}
		}
	}
}

// Fields iterates every schema field as column/value pairs, set or not.
func (p *Payload) Fields() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		columns := structColumns(p.typ)
		cols := make([]string, 0, len(columns))
		for col := range columns {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			if !yield(col, p.value.Elem().Field(columns[col]).Interface()) {
				return
			}
		}
	}
}

// Map returns the explicitly provided fields as a column-to-value map.
func (p *Payload) Map() map[string]any {
	out := make(map[string]any, len(p.set))
	for col, v := range p.SetFields() {
		out[col] = v
	}
	return out
}

// Relation is a deferred many-to-many assignment produced by Apply/ApplySet:
// the relation's column and the related primary keys to set.
type Relation struct {
	Column string
	Values []any
}

// Apply assigns every payload field onto a model instance. Many-to-many
// fields are not assigned; they are returned for the caller to apply through
// Store.SetRelation once the instance is persisted.
func (p *Payload) Apply(instance any, meta *ModelMeta) ([]Relation, error) {
	return p.apply(instance, meta, p.Fields())
}

// ApplySet is Apply restricted to explicitly provided fields, for partial
// updates.
func (p *Payload) ApplySet(instance any, meta *ModelMeta) ([]Relation, error) {
	return p.apply(instance, meta, p.SetFields())
}

func (p *Payload) apply(instance any, meta *ModelMeta, fields iter.Seq2[string, any]) ([]Relation, error) {
	values := make(map[string]any)
	var relations []Relation
	for col, v := range fields {
		field, err := meta.Field(col)
		if err != nil {
			return nil, err
		}
		if field.Kind == KindManyToMany {
			relations = append(relations, Relation{Column: col, Values: anySlice(v)})
			continue
		}
		if err := meta.SetValue(instance, col, v); err == nil {
			continue
		}
		// Not directly convertible (pointer fields, nested shapes); let
		// mapstructure work it out below.
		values[col] = v
	}

	if len(values) > 0 {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:  instance,
			TagName: "json",
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(values); err != nil {
			return nil, fmt.Errorf("rivet: assigning payload to %s: %w", meta.Name, err)
		}
	}
	return relations, nil
}

func (p *Payload) sortedSet() []string {
	cols := make([]string, 0, len(p.set))
	for col := range p.set {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func anySlice(v any) []any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// SchemaType normalizes a schema given either as a prototype value
// (DepartmentOut{}), a pointer to one, or a reflect.Type.
func SchemaType(prototype any) reflect.Type {
	if t, ok := prototype.(reflect.Type); ok {
		return t
	}
	t := reflect.TypeOf(prototype)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

var columnCache sync.Map // reflect.Type -> map[string]int

// structColumns maps column names (json tag, else snake-cased field name) to
// struct field indices.
func structColumns(t reflect.Type) map[string]int {
	if cached, ok := columnCache.Load(t); ok {
		return cached.(map[string]int)
	}
	columns := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		columns[columnName(sf)] = i
	}
	columnCache.Store(t, columns)
	return columns
}
