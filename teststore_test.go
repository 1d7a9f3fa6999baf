package rivet

import (
	"context"
	"fmt"
	"reflect"
)

// testStore is a minimal in-memory Store recording the order of mutating
// calls, so tests can assert sequencing (insert before relations, lookup
// before delete).
type testStore struct {
	rows  map[string][]any
	calls []string
	seq   int64

	relations map[string][]any // "pk/column" -> values

	getErr    error
	insertErr error
}

func newTestStore() *testStore {
	return &testStore{
		rows:      make(map[string][]any),
		relations: make(map[string][]any),
	}
}

func (s *testStore) Queryset(meta *ModelMeta) Queryset {
	return &testQueryset{store: s, meta: meta, limit: -1}
}

func (s *testStore) Get(ctx context.Context, meta *ModelMeta, filters map[string]any) (any, error) {
	s.calls = append(s.calls, "get")
	if s.getErr != nil {
		return nil, s.getErr
	}
	var found any
	for _, row := range s.rows[meta.Table] {
		if !rowMatches(meta, row, filters) {
			continue
		}
		if found != nil {
			return nil, ErrMultipleFound
		}
		found = row
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *testStore) Insert(ctx context.Context, meta *ModelMeta, instance any) error {
	s.calls = append(s.calls, "insert")
	if s.insertErr != nil {
		return s.insertErr
	}
	pk := meta.PrimaryKey()
	if pk.Auto {
		v := reflect.ValueOf(meta.PrimaryKeyValue(instance))
		if v.IsZero() {
			s.seq++
			if err := meta.SetValue(instance, pk.Column, s.seq); err != nil {
				return err
			}
		}
	}
	s.rows[meta.Table] = append(s.rows[meta.Table], instance)
	return nil
}

func (s *testStore) Update(ctx context.Context, meta *ModelMeta, instance any) error {
	s.calls = append(s.calls, "update")
	key := fmt.Sprint(meta.PrimaryKeyValue(instance))
	for i, row := range s.rows[meta.Table] {
		if fmt.Sprint(meta.PrimaryKeyValue(row)) == key {
			s.rows[meta.Table][i] = instance
			return nil
		}
	}
	return ErrNotFound
}

func (s *testStore) Delete(ctx context.Context, meta *ModelMeta, instance any) error {
	s.calls = append(s.calls, "delete")
	key := fmt.Sprint(meta.PrimaryKeyValue(instance))
	rows := s.rows[meta.Table]
	for i, row := range rows {
		if fmt.Sprint(meta.PrimaryKeyValue(row)) == key {
			s.rows[meta.Table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *testStore) SetRelation(ctx context.Context, meta *ModelMeta, instance any, column string, values []any) error {
	s.calls = append(s.calls, "set_relation:"+column)
	key := fmt.Sprint(meta.PrimaryKeyValue(instance)) + "/" + column
	s.relations[key] = append([]any(nil), values...)
	return nil
}

func (s *testStore) relationsOf(meta *ModelMeta, instance any, column string) []any {
	return s.relations[fmt.Sprint(meta.PrimaryKeyValue(instance))+"/"+column]
}

type testQueryset struct {
	store   *testStore
	meta    *ModelMeta
	filters map[string]any
	offset  int
	limit   int
}

func (q *testQueryset) Filter(column string, value any) Queryset {
	next := *q
	next.filters = make(map[string]any, len(q.filters)+1)
	for k, v := range q.filters {
		next.filters[k] = v
	}
	next.filters[column] = value
	return &next
}

func (q *testQueryset) Slice(offset, limit int) Queryset {
	next := *q
	next.offset = offset
	next.limit = limit
	return &next
}

func (q *testQueryset) All(ctx context.Context) ([]any, error) {
	var out []any
	for _, row := range q.store.rows[q.meta.Table] {
		if rowMatches(q.meta, row, q.filters) {
			out = append(out, row)
		}
	}
	if q.offset > len(out) {
		return []any{}, nil
	}
	out = out[q.offset:]
	if q.limit >= 0 && q.limit < len(out) {
		out = out[:q.limit]
	}
	return out, nil
}

func (q *testQueryset) Count(ctx context.Context) (int, error) {
	n := 0
	for _, row := range q.store.rows[q.meta.Table] {
		if rowMatches(q.meta, row, q.filters) {
			n++
		}
	}
	return n, nil
}

func rowMatches(meta *ModelMeta, row any, filters map[string]any) bool {
	for column, want := range filters {
		got, err := meta.Value(row, column)
		if err != nil {
			return false
		}
		if reflect.DeepEqual(got, want) {
			continue
		}
		gv := reflect.ValueOf(got)
		wv := reflect.ValueOf(want)
		if gv.IsValid() && wv.IsValid() && wv.Type().ConvertibleTo(gv.Type()) &&
			reflect.DeepEqual(got, wv.Convert(gv.Type()).Interface()) {
			continue
		}
		return false
	}
	return true
}
