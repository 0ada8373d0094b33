package db

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoRowsAffected is returned by conditional updates and deletes whose guard
// predicate matched nothing.
var ErrNoRowsAffected = errors.New("platform/db: no rows affected")

// Op is a predicate operator.
type Op int

const (
	// OpEq compares a column for equality; a nil value means IS NULL.
	OpEq Op = iota
	// OpIn matches a column against a list of strings.
	OpIn
	// OpJSONTextEqualFold compares a top level JSON text field case-insensitively.
	OpJSONTextEqualFold
	// OpGTE and OpLT bound ordered columns such as timestamps.
	OpGTE
	OpLT
)

// Cond is a single conjunct of a predicate.
type Cond struct {
	Column string
	Op     Op
	Key    string
	Value  any
}

// Eq builds an equality condition.
func Eq(column string, value any) Cond {
	return Cond{Column: column, Op: OpEq, Value: value}
}

// In builds a membership condition.
func In(column string, values ...string) Cond {
	return Cond{Column: column, Op: OpIn, Value: values}
}

// JSONTextEqualFold builds a condition on column->>key.
func JSONTextEqualFold(column, key, value string) Cond {
	return Cond{Column: column, Op: OpJSONTextEqualFold, Key: key, Value: value}
}

// GTE builds column >= value.
func GTE(column string, value any) Cond {
	return Cond{Column: column, Op: OpGTE, Value: value}
}

// LT builds column < value.
func LT(column string, value any) Cond {
	return Cond{Column: column, Op: OpLT, Value: value}
}

// Order sorts by a column.
type Order struct {
	Column string
	Desc   bool
}

// Query is a conjunctive predicate plus ordering and window.
type Query struct {
	Where   []Cond
	OrderBy []Order
	Limit   int
	Offset  int
}

// And returns a copy of q with extra conjuncts.
func (q Query) And(conds ...Cond) Query {
	where := make([]Cond, 0, len(q.Where)+len(conds))
	where = append(where, q.Where...)
	where = append(where, conds...)
	q.Where = where
	return q
}

// Unpaged returns a copy of q without limit, offset and ordering.
func (q Query) Unpaged() Query {
	q.Limit, q.Offset, q.OrderBy = 0, 0, nil
	return q
}

// Patch holds column assignments for an update.
type Patch map[string]any

// Columns returns the patch keys sorted.
func (p Patch) Columns() []string {
	cols := make([]string, 0, len(p))
	for c := range p {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

type sqlBuilder struct {
	allowed map[string]bool
	args    []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) column(name string) (string, error) {
	if !b.allowed[name] {
		return "", fmt.Errorf("platform/db: unknown column %q", name)
	}
	return name, nil
}

func (b *sqlBuilder) where(conds []Cond) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		col, err := b.column(c.Column)
		if err != nil {
			return "", err
		}
		switch c.Op {
		case OpEq:
			if c.Value == nil {
				parts = append(parts, col+" IS NULL")
				continue
			}
			parts = append(parts, col+" = "+b.arg(c.Value))
		case OpIn:
			parts = append(parts, col+" = ANY("+b.arg(c.Value)+")")
		case OpJSONTextEqualFold:
			parts = append(parts, "lower("+col+"->>"+b.arg(c.Key)+") = lower("+b.arg(c.Value)+")")
		case OpGTE:
			parts = append(parts, col+" >= "+b.arg(c.Value))
		case OpLT:
			parts = append(parts, col+" < "+b.arg(c.Value))
		default:
			return "", fmt.Errorf("platform/db: unsupported operator %d", c.Op)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func (b *sqlBuilder) orderBy(orders []Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		col, err := b.column(o.Column)
		if err != nil {
			return "", err
		}
		if o.Desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (b *sqlBuilder) window(limit, offset int) string {
	var sb strings.Builder
	if limit > 0 {
		sb.WriteString(" LIMIT " + b.arg(limit))
	}
	if offset > 0 {
		sb.WriteString(" OFFSET " + b.arg(offset))
	}
	return sb.String()
}
