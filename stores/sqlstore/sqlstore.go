// Package sqlstore is a database/sql-backed rivet.Store. SQL is generated
// from model metadata: one table per model, one join table per many-to-many
// field, `?` placeholders throughout.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/rivetapi/rivet"
)

// Store executes model operations against a *sql.DB. It holds no state of
// its own beyond the handle, so a single Store is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// New creates a store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the model's table and one join table per many-to-many
// field, if they do not exist. Meant for tests and demos, not as a migration
// system.
func (s *Store) Migrate(ctx context.Context, meta *rivet.ModelMeta) error {
	var cols []string
	for _, f := range rowFields(meta) {
		def, err := columnDef(meta, f)
		if err != nil {
			return err
		}
		cols = append(cols, def)
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", meta.Table, strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlstore: creating table %s: %w", meta.Table, err)
	}

	for _, f := range meta.Fields {
		if f.Kind != rivet.KindManyToMany {
			continue
		}
		related, err := meta.Related(f)
		if err != nil {
			return err
		}
		join := joinTable(meta, f)
		ownCol := meta.Table + "_id"
		relCol := related.Table + "_id"
		ddl := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (%s %s NOT NULL, %s %s NOT NULL, UNIQUE (%s, %s))",
			join,
			ownCol, sqlType(meta.PrimaryKey().Kind),
			relCol, sqlType(related.PrimaryKey().Kind),
			ownCol, relCol,
		)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("sqlstore: creating join table %s: %w", join, err)
		}
	}
	return nil
}

// Queryset implements rivet.Store.
func (s *Store) Queryset(meta *rivet.ModelMeta) rivet.Queryset {
	return &queryset{store: s, meta: meta, limit: -1}
}

// Get implements rivet.Store.
func (s *Store) Get(ctx context.Context, meta *rivet.ModelMeta, filters map[string]any) (any, error) {
	var (
		conds []string
		args  []any
	)
	for column, value := range filters {
		if _, err := meta.Field(column); err != nil {
			return nil, err
		}
		conds = append(conds, column+" = ?")
		args = append(args, value)
	}
	query := "SELECT " + strings.Join(columnNames(meta), ", ") + " FROM " + meta.Table
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " LIMIT 2"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found any
	for rows.Next() {
		if found != nil {
			return nil, rivet.ErrMultipleFound
		}
		instance, err := scanRow(meta, rows)
		if err != nil {
			return nil, err
		}
		found = instance
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if found == nil {
		return nil, rivet.ErrNotFound
	}
	return found, nil
}

// Insert implements rivet.Store. Auto integer primary keys come back from
// the driver; auto UUID primary keys are generated before the insert.
func (s *Store) Insert(ctx context.Context, meta *rivet.ModelMeta, instance any) error {
	pk := meta.PrimaryKey()
	if pk.Auto && pk.Kind == rivet.KindUUID && isZero(meta.PrimaryKeyValue(instance)) {
		if err := meta.SetValue(instance, pk.Column, uuid.New()); err != nil {
			return err
		}
	}

	var (
		cols         []string
		placeholders []string
		args         []any
	)
	for _, f := range rowFields(meta) {
		if f.Auto && f.Kind != rivet.KindUUID && isZero(meta.PrimaryKeyValue(instance)) {
			continue
		}
		value, err := meta.Value(instance, f.Column)
		if err != nil {
			return err
		}
		cols = append(cols, f.Column)
		placeholders = append(placeholders, "?")
		args = append(args, value)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		meta.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	if pk.Auto && pk.Kind != rivet.KindUUID && isZero(meta.PrimaryKeyValue(instance)) {
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := meta.SetValue(instance, pk.Column, id); err != nil {
			return err
		}
	}
	return nil
}

// Update implements rivet.Store.
func (s *Store) Update(ctx context.Context, meta *rivet.ModelMeta, instance any) error {
	var (
		sets []string
		args []any
	)
	for _, f := range rowFields(meta) {
		if f.PrimaryKey {
			continue
		}
		value, err := meta.Value(instance, f.Column)
		if err != nil {
			return err
		}
		sets = append(sets, f.Column+" = ?")
		args = append(args, value)
	}
	args = append(args, meta.PrimaryKeyValue(instance))

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		meta.Table, strings.Join(sets, ", "), meta.PrimaryKey().Column)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete implements rivet.Store. The instance's join-table rows go with it.
func (s *Store) Delete(ctx context.Context, meta *rivet.ModelMeta, instance any) error {
	pkValue := meta.PrimaryKeyValue(instance)
	for _, f := range meta.Fields {
		if f.Kind != rivet.KindManyToMany {
			continue
		}
		query := fmt.Sprintf("DELETE FROM %s WHERE %s_id = ?", joinTable(meta, f), meta.Table)
		if _, err := s.db.ExecContext(ctx, query, pkValue); err != nil {
			return err
		}
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", meta.Table, meta.PrimaryKey().Column)
	res, err := s.db.ExecContext(ctx, query, pkValue)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetRelation implements rivet.Store: replace the instance's join-table rows
// for the column with one row per related primary key.
func (s *Store) SetRelation(ctx context.Context, meta *rivet.ModelMeta, instance any, column string, values []any) error {
	f, err := meta.Field(column)
	if err != nil {
		return err
	}
	if f.Kind != rivet.KindManyToMany {
		return fmt.Errorf("sqlstore: column %s of %s is not a many-to-many relation", column, meta.Name)
	}
	related, err := meta.Related(f)
	if err != nil {
		return err
	}
	pkValue := meta.PrimaryKeyValue(instance)
	join := joinTable(meta, f)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	del := fmt.Sprintf("DELETE FROM %s WHERE %s_id = ?", join, meta.Table)
	if _, err := tx.ExecContext(ctx, del, pkValue); err != nil {
		return err
	}
	ins := fmt.Sprintf("INSERT INTO %s (%s_id, %s_id) VALUES (?, ?)", join, meta.Table, related.Table)
	for _, v := range values {
		if _, err := tx.ExecContext(ctx, ins, pkValue, v); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RelatedKeys reads back the join-table rows for an instance's many-to-many
// column. Meant for assertions in tests.
func (s *Store) RelatedKeys(ctx context.Context, meta *rivet.ModelMeta, instance any, column string) ([]int64, error) {
	f, err := meta.Field(column)
	if err != nil {
		return nil, err
	}
	related, err := meta.Related(f)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s_id FROM %s WHERE %s_id = ? ORDER BY %s_id",
		related.Table, joinTable(meta, f), meta.Table, related.Table)
	rows, err := s.db.QueryContext(ctx, query, meta.PrimaryKeyValue(instance))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []int64
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
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
	where, args, err := q.where()
	if err != nil {
		return nil, err
	}
	query := "SELECT " + strings.Join(columnNames(q.meta), ", ") + " FROM " + q.meta.Table + where
	query += " ORDER BY " + q.meta.PrimaryKey().Column
	if q.limit >= 0 {
		query += " LIMIT ?"
		args = append(args, q.limit)
	} else if q.offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET.
		query += " LIMIT -1"
	}
	if q.offset > 0 {
		query += " OFFSET ?"
		args = append(args, q.offset)
	}

	rows, err := q.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []any{}
	for rows.Next() {
		instance, err := scanRow(q.meta, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, instance)
	}
	return out, rows.Err()
}

func (q *queryset) Count(ctx context.Context) (int, error) {
	where, args, err := q.where()
	if err != nil {
		return 0, err
	}
	var count int
	query := "SELECT COUNT(*) FROM " + q.meta.Table + where
	if err := q.store.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (q *queryset) where() (string, []any, error) {
	if len(q.filters) == 0 {
		return "", nil, nil
	}
	var (
		conds []string
		args  []any
	)
	for _, f := range q.filters {
		if _, err := q.meta.Field(f.column); err != nil {
			return "", nil, err
		}
		conds = append(conds, f.column+" = ?")
		args = append(args, f.value)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// rowFields lists the fields stored as columns of the model's own table,
// excluding many-to-many fields, which live in join tables.
func rowFields(meta *rivet.ModelMeta) []*rivet.FieldMeta {
	fields := make([]*rivet.FieldMeta, 0, len(meta.Fields))
	for _, f := range meta.Fields {
		if f.Kind == rivet.KindManyToMany {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

func columnNames(meta *rivet.ModelMeta) []string {
	fields := rowFields(meta)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Column
	}
	return names
}

func joinTable(meta *rivet.ModelMeta, f *rivet.FieldMeta) string {
	return meta.Table + "_" + f.Column
}

func columnDef(meta *rivet.ModelMeta, f *rivet.FieldMeta) (string, error) {
	switch {
	case f.Kind == rivet.KindAuto:
		return f.Column + " INTEGER PRIMARY KEY AUTOINCREMENT", nil
	case f.Kind == rivet.KindForeignKey:
		related, err := meta.Related(f)
		if err != nil {
			return "", err
		}
		return f.Column + " " + sqlType(related.PrimaryKey().Kind) + " NOT NULL", nil
	case f.PrimaryKey:
		return f.Column + " " + sqlType(f.Kind) + " PRIMARY KEY", nil
	default:
		return f.Column + " " + sqlType(f.Kind) + " NOT NULL", nil
	}
}

func sqlType(k rivet.FieldKind) string {
	switch k {
	case rivet.KindAuto, rivet.KindInt, rivet.KindUint, rivet.KindBool:
		return "INTEGER"
	case rivet.KindFloat:
		return "REAL"
	case rivet.KindBytes:
		return "BLOB"
	case rivet.KindTime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func scanRow(meta *rivet.ModelMeta, rows *sql.Rows) (any, error) {
	instance := meta.New()
	elem := reflect.ValueOf(instance).Elem()
	fields := rowFields(meta)
	targets := make([]any, len(fields))
	for i, f := range fields {
		targets[i] = elem.FieldByName(f.Name).Addr().Interface()
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}
	return instance, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rivet.ErrNotFound
	}
	return nil
}

func isZero(v any) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || rv.IsZero()
}

var _ rivet.Store = (*Store)(nil)
