package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/workforce-hq/workforce/internal/shared"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Table is the generic CRUD surface every entity kind exposes.
type Table[T any] interface {
	FindMany(ctx context.Context, q Query) ([]T, error)
	FindOne(ctx context.Context, id string) (T, error)
	Count(ctx context.Context, q Query) (int, error)
	Create(ctx context.Context, row T) (T, error)
	// Update applies patch to row id when every guard condition holds. A
	// missing row yields shared.ErrNotFound; a failed guard ErrNoRowsAffected.
	Update(ctx context.Context, id string, patch Patch, guard ...Cond) (T, error)
	Delete(ctx context.Context, id string, guard ...Cond) error
}

// Mapping describes how T is stored. Columns[0] is the primary key and Values
// must return arguments in Columns order.
type Mapping[T any] struct {
	Table   string
	Columns []string
	Scan    func(row pgx.Row) (T, error)
	Values  func(T) []any
}

// PGTable implements Table on top of pgx.
type PGTable[T any] struct {
	q       Querier
	m       Mapping[T]
	allowed map[string]bool
}

// NewTable binds mapping to q.
func NewTable[T any](q Querier, m Mapping[T]) *PGTable[T] {
	allowed := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		allowed[c] = true
	}
	return &PGTable[T]{q: q, m: m, allowed: allowed}
}

func (t *PGTable[T]) builder() *sqlBuilder {
	return &sqlBuilder{allowed: t.allowed}
}

func (t *PGTable[T]) pk() string {
	return t.m.Columns[0]
}

func (t *PGTable[T]) selectList() string {
	return strings.Join(t.m.Columns, ", ")
}

// FindMany returns rows matching q.
func (t *PGTable[T]) FindMany(ctx context.Context, q Query) ([]T, error) {
	b := t.builder()
	where, err := b.where(q.Where)
	if err != nil {
		return nil, err
	}
	order, err := b.orderBy(q.OrderBy)
	if err != nil {
		return nil, err
	}
	sql := "SELECT " + t.selectList() + " FROM " + t.m.Table + where + order + b.window(q.Limit, q.Offset)
	rows, err := t.q.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, fmt.Errorf("platform/db: select %s: %w", t.m.Table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := t.m.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("platform/db: scan %s: %w", t.m.Table, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// FindOne loads a row by primary key.
func (t *PGTable[T]) FindOne(ctx context.Context, id string) (T, error) {
	sql := "SELECT " + t.selectList() + " FROM " + t.m.Table + " WHERE " + t.pk() + " = $1"
	item, err := t.m.Scan(t.q.QueryRow(ctx, sql, id))
	if err != nil {
		var zero T
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, shared.NotFound(t.m.Table)
		}
		return zero, fmt.Errorf("platform/db: find %s: %w", t.m.Table, err)
	}
	return item, nil
}

// Count returns the number of rows matching q. Ordering and window are ignored.
func (t *PGTable[T]) Count(ctx context.Context, q Query) (int, error) {
	b := t.builder()
	where, err := b.where(q.Where)
	if err != nil {
		return 0, err
	}
	var total int
	if err := t.q.QueryRow(ctx, "SELECT COUNT(*) FROM "+t.m.Table+where, b.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("platform/db: count %s: %w", t.m.Table, err)
	}
	return total, nil
}

// Create inserts row and returns the stored version.
func (t *PGTable[T]) Create(ctx context.Context, row T) (T, error) {
	b := t.builder()
	values := t.m.Values(row)
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.arg(v)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		t.m.Table, t.selectList(), strings.Join(placeholders, ", "), t.selectList())
	item, err := t.m.Scan(t.q.QueryRow(ctx, sql, b.args...))
	if err != nil {
		var zero T
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return zero, fmt.Errorf("platform/db: insert %s: %w", t.m.Table, shared.ErrConflict)
		}
		return zero, fmt.Errorf("platform/db: insert %s: %w", t.m.Table, err)
	}
	return item, nil
}

// Update applies patch to the row with the given id.
func (t *PGTable[T]) Update(ctx context.Context, id string, patch Patch, guard ...Cond) (T, error) {
	var zero T
	if len(patch) == 0 {
		return zero, fmt.Errorf("platform/db: update %s: empty patch", t.m.Table)
	}
	b := t.builder()
	sets := make([]string, 0, len(patch))
	for _, col := range patch.Columns() {
		if col == t.pk() {
			return zero, fmt.Errorf("platform/db: update %s: primary key is immutable", t.m.Table)
		}
		name, err := b.column(col)
		if err != nil {
			return zero, err
		}
		sets = append(sets, name+" = "+b.arg(patch[col]))
	}
	where, err := b.where(append([]Cond{Eq(t.pk(), id)}, guard...))
	if err != nil {
		return zero, err
	}
	sql := "UPDATE " + t.m.Table + " SET " + strings.Join(sets, ", ") + where + " RETURNING " + t.selectList()
	item, err := t.m.Scan(t.q.QueryRow(ctx, sql, b.args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if len(guard) > 0 {
				return zero, ErrNoRowsAffected
			}
			return zero, shared.NotFound(t.m.Table)
		}
		return zero, fmt.Errorf("platform/db: update %s: %w", t.m.Table, err)
	}
	return item, nil
}

// Delete removes the row with the given id when every guard holds.
func (t *PGTable[T]) Delete(ctx context.Context, id string, guard ...Cond) error {
	b := t.builder()
	where, err := b.where(append([]Cond{Eq(t.pk(), id)}, guard...))
	if err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx, "DELETE FROM "+t.m.Table+where, b.args...)
	if err != nil {
		return fmt.Errorf("platform/db: delete %s: %w", t.m.Table, err)
	}
	if tag.RowsAffected() == 0 {
		if len(guard) > 0 {
			return ErrNoRowsAffected
		}
		return shared.NotFound(t.m.Table)
	}
	return nil
}
