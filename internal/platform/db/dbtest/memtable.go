// Package dbtest provides an in-memory db.Table for package tests.
package dbtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/shared"
)

// Schema tells MemTable how to read and patch T.
type Schema[T any] struct {
	ID    func(T) string
	Field func(row T, column string) any
	Apply func(row T, patch db.Patch) T
}

// MemTable evaluates db.Query predicates against rows held in memory.
type MemTable[T any] struct {
	mu     sync.Mutex
	schema Schema[T]
	rows   []T

	// Err, when set, is returned by every call.
	Err error
	// Queries records every predicate passed to FindMany and Count.
	Queries []db.Query
}

// New returns a table seeded with rows.
func New[T any](schema Schema[T], rows ...T) *MemTable[T] {
	return &MemTable[T]{schema: schema, rows: append([]T(nil), rows...)}
}

// Rows returns a snapshot of the stored rows in insertion order.
func (m *MemTable[T]) Rows() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.rows...)
}

// Get returns the stored row with id.
func (m *MemTable[T]) Get(id string) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.index(id); i >= 0 {
		return m.rows[i], true
	}
	var zero T
	return zero, false
}

func (m *MemTable[T]) FindMany(ctx context.Context, q db.Query) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, q)
	if m.Err != nil {
		return nil, m.Err
	}
	var out []T
	for _, row := range m.rows {
		if m.matches(row, q.Where) {
			out = append(out, row)
		}
	}
	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				c := compare(m.schema.Field(out[i], o.Column), m.schema.Field(out[j], o.Column))
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemTable[T]) FindOne(ctx context.Context, id string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if m.Err != nil {
		return zero, m.Err
	}
	if i := m.index(id); i >= 0 {
		return m.rows[i], nil
	}
	return zero, shared.NotFound("row")
}

func (m *MemTable[T]) Count(ctx context.Context, q db.Query) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, q)
	if m.Err != nil {
		return 0, m.Err
	}
	n := 0
	for _, row := range m.rows {
		if m.matches(row, q.Where) {
			n++
		}
	}
	return n, nil
}

func (m *MemTable[T]) Create(ctx context.Context, row T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if m.Err != nil {
		return zero, m.Err
	}
	if m.index(m.schema.ID(row)) >= 0 {
		return zero, shared.ErrConflict
	}
	m.rows = append(m.rows, row)
	return row, nil
}

func (m *MemTable[T]) Update(ctx context.Context, id string, patch db.Patch, guard ...db.Cond) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if m.Err != nil {
		return zero, m.Err
	}
	i := m.index(id)
	if i < 0 {
		if len(guard) > 0 {
			return zero, db.ErrNoRowsAffected
		}
		return zero, shared.NotFound("row")
	}
	if !m.matches(m.rows[i], guard) {
		return zero, db.ErrNoRowsAffected
	}
	m.rows[i] = m.schema.Apply(m.rows[i], patch)
	return m.rows[i], nil
}

func (m *MemTable[T]) Delete(ctx context.Context, id string, guard ...db.Cond) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	i := m.index(id)
	if i < 0 {
		if len(guard) > 0 {
			return db.ErrNoRowsAffected
		}
		return shared.NotFound("row")
	}
	if !m.matches(m.rows[i], guard) {
		return db.ErrNoRowsAffected
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return nil
}

func (m *MemTable[T]) index(id string) int {
	for i, row := range m.rows {
		if m.schema.ID(row) == id {
			return i
		}
	}
	return -1
}

func (m *MemTable[T]) matches(row T, conds []db.Cond) bool {
	for _, c := range conds {
		v := m.schema.Field(row, c.Column)
		switch c.Op {
		case db.OpEq:
			if c.Value == nil {
				if v != nil {
					return false
				}
				continue
			}
			if v == nil || fmt.Sprint(v) != fmt.Sprint(c.Value) {
				return false
			}
		case db.OpIn:
			values, _ := c.Value.([]string)
			found := false
			for _, candidate := range values {
				if fmt.Sprint(v) == candidate {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case db.OpJSONTextEqualFold:
			if !jsonTextEqualFold(v, c.Key, fmt.Sprint(c.Value)) {
				return false
			}
		case db.OpGTE:
			if v == nil || compare(v, c.Value) < 0 {
				return false
			}
		case db.OpLT:
			if v == nil || compare(v, c.Value) >= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func jsonTextEqualFold(v any, key, want string) bool {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		return false
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}
	got, ok := doc[key].(string)
	return ok && strings.EqualFold(got, want)
}

func compare(a, b any) int {
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case int:
		if y, ok := b.(int); ok {
			return x - y
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
