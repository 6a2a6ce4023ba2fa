package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/island-mesh/island/internal/retry"
)

// Execer is an interface that matches both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Query narrows and orders a List call.
type Query struct {
	// Where holds "column = value" filters joined with AND.
	Where map[string]any
	// OrderBy is a column name, optionally prefixed with "-" for descending order.
	OrderBy string
}

// Table maps struct type T onto a DuckDB table.
type Table[T any] struct {
	db        Execer
	name      string
	columns   []string
	pk        []string
	immutable map[string]bool
	fields    map[string]int
	logger    zerolog.Logger
}

// NewTable creates a Table[T]. T must be a struct with `duckdb` tags.
func NewTable[T any](db Execer, name string) *Table[T] {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic("duckdb: Table type parameter must be a struct")
	}

	table := &Table[T]{
		db:        db,
		name:      name,
		immutable: make(map[string]bool),
		fields:    make(map[string]int),
		logger:    zerolog.Nop(),
	}

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("duckdb")
		if tag == "" || tag == "-" {
			continue
		}

		parts := strings.Split(tag, ",")
		col := strings.TrimSpace(parts[0])
		table.columns = append(table.columns, col)
		table.fields[col] = i

		for _, opt := range parts[1:] {
			switch strings.TrimSpace(opt) {
			case "pk":
				table.pk = append(table.pk, col)
			case "immutable":
				table.immutable[col] = true
			}
		}
	}

	return table
}

// WithLogger returns a copy of the table that traces every statement it runs.
func (t *Table[T]) WithLogger(logger zerolog.Logger) *Table[T] {
	c := *t
	c.logger = logger.With().Str("table", t.name).Logger()
	return &c
}

// WithExecer returns a copy of the table bound to ex, typically a *sql.Tx.
func (t *Table[T]) WithExecer(ex Execer) *Table[T] {
	c := *t
	c.db = ex
	return &c
}

// Name returns the table name.
func (t *Table[T]) Name() string {
	return t.name
}

// upsertSQL builds INSERT ... ON CONFLICT for the table.
func (t *Table[T]) upsertSQL() string {
	placeholders := make([]string, len(t.columns))
	var updates []string
	for i, col := range t.columns {
		placeholders[i] = "?"
		if !slices.Contains(t.pk, col) && !t.immutable[col] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	// #nosec G201 - table and column names come from struct tags, not user input
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name,
		strings.Join(t.columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if len(t.pk) > 0 {
		action := "DO NOTHING"
		if len(updates) > 0 {
			action = "DO UPDATE SET " + strings.Join(updates, ", ")
		}
		query += fmt.Sprintf(" ON CONFLICT (%s) %s", strings.Join(t.pk, ", "), action)
	}
	return query
}

func (t *Table[T]) values(item *T) []any {
	val := reflect.ValueOf(item).Elem()
	out := make([]any, len(t.columns))
	for i, col := range t.columns {
		out[i] = val.Field(t.fields[col]).Interface()
	}
	return out
}

func (t *Table[T]) exec(ctx context.Context, query string, args ...any) error {
	t.logger.Trace().Str("sql", InterpolateQuery(query, args)).Msg("exec")
	return retry.Do(ctx, retry.DatabaseConflict, func() error {
		_, err := t.db.ExecContext(ctx, query, args...)
		return err
	}, isTransactionConflict)
}

// Upsert inserts item or updates the mutable columns of the existing row.
func (t *Table[T]) Upsert(ctx context.Context, item *T) error {
	return t.exec(ctx, t.upsertSQL(), t.values(item)...)
}

// BatchUpsert upserts items with one prepared statement inside a transaction.
// When the table is bound to a *sql.Tx the caller owns commit and rollback.
func (t *Table[T]) BatchUpsert(ctx context.Context, items []*T) (err error) {
	if len(items) == 0 {
		return nil
	}

	var tx *sql.Tx
	switch d := t.db.(type) {
	case *sql.Tx:
		tx = d
	case *sql.DB:
		tx, err = d.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
				return
			}
			if cerr := tx.Commit(); cerr != nil {
				err = fmt.Errorf("commit: %w", cerr)
			}
		}()
	default:
		return fmt.Errorf("unsupported Execer type for BatchUpsert: %T", t.db)
	}

	query := t.upsertSQL()
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		args := t.values(item)
		t.logger.Trace().Str("sql", InterpolateQuery(query, args)).Msg("batch exec")
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Get returns the row whose first primary key column equals id.
// A missing row yields sql.ErrNoRows.
func (t *Table[T]) Get(ctx context.Context, id any) (*T, error) {
	if len(t.pk) == 0 {
		return nil, errors.New("no primary key defined for table")
	}

	// #nosec G201 - identifiers come from struct tags
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(t.columns, ", "), t.name, t.pk[0])
	t.logger.Trace().Str("sql", InterpolateQuery(query, []any{id})).Msg("get")

	item, dest := t.scanTargets()
	if err := t.db.QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		return nil, err
	}
	return item, nil
}

// List returns the rows matching q.
func (t *Table[T]) List(ctx context.Context, q Query) ([]*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(t.columns, ", "), t.name)
	where, args, err := t.whereClause(q.Where)
	if err != nil {
		return nil, err
	}
	query += where

	if q.OrderBy != "" {
		col, desc := strings.CutPrefix(q.OrderBy, "-")
		if _, ok := t.fields[col]; !ok {
			return nil, fmt.Errorf("column %s does not exist in table %s", col, t.name)
		}
		query += " ORDER BY " + col
		if desc {
			query += " DESC"
		}
	}
	t.logger.Trace().Str("sql", InterpolateQuery(query, args)).Msg("list")

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []*T
	for rows.Next() {
		item, dest := t.scanTargets()
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Delete removes the row whose first primary key column equals id.
func (t *Table[T]) Delete(ctx context.Context, id any) error {
	if len(t.pk) == 0 {
		return errors.New("no primary key defined for table")
	}
	return t.exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.name, t.pk[0]), id)
}

// DeleteWhere removes the rows matching filters. Nil filters remove every row.
func (t *Table[T]) DeleteWhere(ctx context.Context, filters map[string]any) error {
	where, args, err := t.whereClause(filters)
	if err != nil {
		return err
	}
	return t.exec(ctx, "DELETE FROM "+t.name+where, args...)
}

func (t *Table[T]) whereClause(filters map[string]any) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	cols := make([]string, 0, len(filters))
	for col := range filters {
		if _, ok := t.fields[col]; !ok {
			return "", nil, fmt.Errorf("column %s does not exist in table %s", col, t.name)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	clauses := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		clauses[i] = col + " = ?"
		args[i] = filters[col]
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (t *Table[T]) scanTargets() (*T, []any) {
	item := new(T)
	val := reflect.ValueOf(item).Elem()
	dest := make([]any, len(t.columns))
	for i, col := range t.columns {
		dest[i] = val.Field(t.fields[col]).Addr().Interface()
	}
	return item, dest
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Conflict on update") ||
		strings.Contains(msg, "TransactionContext Error") ||
		strings.Contains(msg, "serialization")
}
