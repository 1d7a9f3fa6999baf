// Package memstore is an in-memory rivet.Store, intended for tests and
// demos. Rows are kept per table in insertion order; instances are copied on
// the way in and out, so callers never alias stored state.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/rivetapi/rivet"
)

// Store holds one table of rows per model. The zero value is not usable;
// create stores with New.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

type table struct {
	rows      []any
	seq       int64
	relations map[relationKey][]any
}

type relationKey struct {
	pk     string
	column string
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

// table returns the model's table, creating it if needed. Callers must hold
// the write lock.
func (s *Store) table(meta *rivet.ModelMeta) *table {
	t, ok := s.tables[meta.Table]
	if !ok {
		t = &table{relations: make(map[relationKey][]any)}
		s.tables[meta.Table] = t
	}
	return t
}

// lookup returns the model's table or nil. Read-lock safe.
func (s *Store) lookup(meta *rivet.ModelMeta) *table {
	return s.tables[meta.Table]
}

// Queryset implements rivet.Store.
func (s *Store) Queryset(meta *rivet.ModelMeta) rivet.Queryset {
	return &queryset{store: s, meta: meta, limit: -1}
}

// Get implements rivet.Store.
func (s *Store) Get(ctx context.Context, meta *rivet.ModelMeta, filters map[string]any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.lookup(meta)
	if t == nil {
		return nil, rivet.ErrNotFound
	}
	var found any
	for _, row := range t.rows {
		if !matchesAll(meta, row, filters) {
			continue
		}
		if found != nil {
			return nil, rivet.ErrMultipleFound
		}
		found = row
	}
	if found == nil {
		return nil, rivet.ErrNotFound
	}
	return clone(meta, found), nil
}

// Insert implements rivet.Store. Zero-valued auto primary keys are assigned:
// integer kinds from a per-table sequence, UUID kinds from a random UUID.
func (s *Store) Insert(ctx context.Context, meta *rivet.ModelMeta, instance any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(meta)
	pk := meta.PrimaryKey()
	if pk.Auto && isZero(meta.PrimaryKeyValue(instance)) {
		switch pk.Kind {
		case rivet.KindUUID:
			if err := meta.SetValue(instance, pk.Column, uuid.New()); err != nil {
				return err
			}
		default:
			t.seq++
			if err := meta.SetValue(instance, pk.Column, t.seq); err != nil {
				return err
			}
		}
	}
	t.rows = append(t.rows, clone(meta, instance))
	return nil
}

// Update implements rivet.Store.
func (s *Store) Update(ctx context.Context, meta *rivet.ModelMeta, instance any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(meta)
	key := pkString(meta, instance)
	for i, row := range t.rows {
		if pkString(meta, row) == key {
			t.rows[i] = clone(meta, instance)
			return nil
		}
	}
	return rivet.ErrNotFound
}

// Delete implements rivet.Store. Relation rows of the instance are removed
// with it.
func (s *Store) Delete(ctx context.Context, meta *rivet.ModelMeta, instance any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(meta)
	key := pkString(meta, instance)
	for i, row := range t.rows {
		if pkString(meta, row) == key {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			for rk := range t.relations {
				if rk.pk == key {
					delete(t.relations, rk)
				}
			}
			return nil
		}
	}
	return rivet.ErrNotFound
}

// SetRelation implements rivet.Store.
func (s *Store) SetRelation(ctx context.Context, meta *rivet.ModelMeta, instance any, column string, values []any) error {
	if _, err := meta.Field(column); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(meta)
	key := relationKey{pk: pkString(meta, instance), column: column}
	t.relations[key] = append([]any(nil), values...)
	return nil
}

// Relations returns the related primary keys stored for an instance's
// many-to-many column. Meant for assertions in tests.
func (s *Store) Relations(meta *rivet.ModelMeta, instance any, column string) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.lookup(meta)
	if t == nil {
		return nil
	}
	key := relationKey{pk: pkString(meta, instance), column: column}
	return append([]any(nil), t.relations[key]...)
}

type filter struct {
	column string
	value  any
}

type queryset struct {
	store   *Store
	meta    *rivet.ModelMeta
	filters []filter
	offset  int
	limit   int
}

func (q *queryset) Filter(column string, value any) rivet.Queryset {
	next := *q
	next.filters = append(append([]filter(nil), q.filters...), filter{column, value})
	return &next
}

func (q *queryset) Slice(offset, limit int) rivet.Queryset {
	next := *q
	next.offset = offset
	next.limit = limit
	return &next
}

func (q *queryset) All(ctx context.Context) ([]any, error) {
	rows, err := q.matching()
	if err != nil {
		return nil, err
	}
	if q.offset > len(rows) {
		return []any{}, nil
	}
	rows = rows[q.offset:]
	if q.limit >= 0 && q.limit < len(rows) {
		rows = rows[:q.limit]
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = clone(q.meta, row)
	}
	return out, nil
}

func (q *queryset) Count(ctx context.Context) (int, error) {
	rows, err := q.matching()
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (q *queryset) matching() ([]any, error) {
	q.store.mu.RLock()
	defer q.store.mu.RUnlock()

	for _, f := range q.filters {
		if _, err := q.meta.Field(f.column); err != nil {
			return nil, err
		}
	}
	t := q.store.lookup(q.meta)
	if t == nil {
		return nil, nil
	}
	var rows []any
	for _, row := range t.rows {
		ok := true
		for _, f := range q.filters {
			if !matches(q.meta, row, f.column, f.value) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func matchesAll(meta *rivet.ModelMeta, row any, filters map[string]any) bool {
	for column, value := range filters {
		if !matches(meta, row, column, value) {
			return false
		}
	}
	return true
}

func matches(meta *rivet.ModelMeta, row any, column string, value any) bool {
	got, err := meta.Value(row, column)
	if err != nil {
		return false
	}
	return equalValues(got, value)
}

// equalValues compares loosely across numeric widths: path parameters decode
// as int64 while model fields may be any integer type.
func equalValues(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)
	if !av.IsValid() || !bv.IsValid() {
		return false
	}
	if isNumeric(av.Kind()) && isNumeric(bv.Kind()) && bv.Type().ConvertibleTo(av.Type()) {
		return reflect.DeepEqual(a, bv.Convert(av.Type()).Interface())
	}
	return false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func clone(meta *rivet.ModelMeta, instance any) any {
	ptr := reflect.New(meta.Type)
	ptr.Elem().Set(reflect.Indirect(reflect.ValueOf(instance)))
	return ptr.Interface()
}

func pkString(meta *rivet.ModelMeta, instance any) string {
	return fmt.Sprint(meta.PrimaryKeyValue(instance))
}

func isZero(v any) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || rv.IsZero()
}

var _ rivet.Store = (*Store)(nil)
