// Package scoped confines generic table access to the acting tenant and, for
// owned kinds, to the acting user.
package scoped

import (
	"context"
	"errors"
	"fmt"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// Record is implemented by rows stored through a Collection.
type Record[T any] interface {
	// Scope returns the tenant and owning user of the row. ownerID is empty
	// for kinds without per-user ownership.
	Scope() (tenantID, ownerID string)
	// WithScope returns a copy of the row bound to tenantID and ownerID.
	WithScope(tenantID, ownerID string) T
}

// Kind describes how an entity kind is partitioned.
type Kind struct {
	Name         string
	TenantColumn string
	// OwnerColumn is empty when rows are not owned by a single user.
	OwnerColumn string
}

// Owned reports whether the kind narrows USER contexts to their own rows.
func (k Kind) Owned() bool {
	return k.OwnerColumn != ""
}

// Collection is a per-request view of a table. It holds no state beyond the
// acting context it was built from and re-applies scoping on every call.
type Collection[T Record[T]] struct {
	table db.Table[T]
	kind  Kind
	actx  tenancy.ActingContext
}

// New builds a collection for one request.
func New[T Record[T]](table db.Table[T], kind Kind, actx tenancy.ActingContext) *Collection[T] {
	return &Collection[T]{table: table, kind: kind, actx: actx}
}

// Actor returns the acting context the collection is bound to.
func (c *Collection[T]) Actor() tenancy.ActingContext {
	return c.actx
}

func (c *Collection[T]) tenantFiltered() bool {
	return !c.actx.Global()
}

func (c *Collection[T]) ownerFiltered() bool {
	return c.kind.Owned() && !c.actx.IsSuperuser && c.actx.Role == rbac.RoleUser
}

func (c *Collection[T]) scope(q db.Query) db.Query {
	var conds []db.Cond
	if c.tenantFiltered() {
		conds = append(conds, db.Eq(c.kind.TenantColumn, c.actx.TenantID))
	}
	if c.ownerFiltered() {
		conds = append(conds, db.Eq(c.kind.OwnerColumn, c.actx.UserID))
	}
	return q.And(conds...)
}

func (c *Collection[T]) visible(row T) bool {
	tenantID, ownerID := row.Scope()
	if c.tenantFiltered() && tenantID != c.actx.TenantID {
		return false
	}
	if c.ownerFiltered() && ownerID != c.actx.UserID {
		return false
	}
	return true
}

// FindMany lists rows matching q within scope.
func (c *Collection[T]) FindMany(ctx context.Context, q db.Query) ([]T, error) {
	rows, err := c.table.FindMany(ctx, c.scope(q))
	if err != nil {
		return nil, fmt.Errorf("scoped: list %s: %w", c.kind.Name, err)
	}
	return rows, nil
}

// Count counts rows matching q within scope.
func (c *Collection[T]) Count(ctx context.Context, q db.Query) (int, error) {
	n, err := c.table.Count(ctx, c.scope(q.Unpaged()))
	if err != nil {
		return 0, fmt.Errorf("scoped: count %s: %w", c.kind.Name, err)
	}
	return n, nil
}

// FindOne loads a row and re-verifies it against the acting scope. Rows
// outside scope are reported as not found.
func (c *Collection[T]) FindOne(ctx context.Context, id string) (T, error) {
	var zero T
	row, err := c.table.FindOne(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return zero, shared.NotFound(c.kind.Name)
		}
		return zero, fmt.Errorf("scoped: find %s: %w", c.kind.Name, err)
	}
	if !c.visible(row) {
		return zero, shared.NotFound(c.kind.Name)
	}
	return row, nil
}

// Create stores row inside the acting scope. The tenant always comes from the
// context unless the caller is a global superuser; USER contexts of owned
// kinds always create rows owned by themselves.
func (c *Collection[T]) Create(ctx context.Context, row T) (T, error) {
	var zero T
	tenantID, ownerID := row.Scope()
	if c.tenantFiltered() {
		tenantID = c.actx.TenantID
	}
	if tenantID == "" {
		return zero, shared.ValidationFailed(map[string]string{"tenantId": "required"})
	}
	if c.kind.Owned() && (c.ownerFiltered() || ownerID == "") {
		ownerID = c.actx.UserID
	}
	created, err := c.table.Create(ctx, row.WithScope(tenantID, ownerID))
	if err != nil {
		return zero, fmt.Errorf("scoped: create %s: %w", c.kind.Name, err)
	}
	return created, nil
}

// Update patches a row after re-verifying scope. guard conditions make the
// update conditional; a failed guard yields db.ErrNoRowsAffected.
func (c *Collection[T]) Update(ctx context.Context, id string, patch db.Patch, guard ...db.Cond) (T, error) {
	var zero T
	if err := c.checkPatch(patch); err != nil {
		return zero, err
	}
	if _, err := c.FindOne(ctx, id); err != nil {
		return zero, err
	}
	updated, err := c.table.Update(ctx, id, patch, c.scope(db.Query{Where: guard}).Where...)
	if err != nil {
		if errors.Is(err, db.ErrNoRowsAffected) {
			return zero, err
		}
		return zero, fmt.Errorf("scoped: update %s: %w", c.kind.Name, err)
	}
	return updated, nil
}

// Delete removes a row after re-verifying scope.
func (c *Collection[T]) Delete(ctx context.Context, id string, guard ...db.Cond) error {
	if _, err := c.FindOne(ctx, id); err != nil {
		return err
	}
	if err := c.table.Delete(ctx, id, c.scope(db.Query{Where: guard}).Where...); err != nil {
		if errors.Is(err, db.ErrNoRowsAffected) {
			return err
		}
		return fmt.Errorf("scoped: delete %s: %w", c.kind.Name, err)
	}
	return nil
}

func (c *Collection[T]) checkPatch(patch db.Patch) error {
	for col := range patch {
		if col == c.kind.TenantColumn || (c.kind.Owned() && col == c.kind.OwnerColumn) {
			return shared.ValidationFailed(map[string]string{col: "immutable"})
		}
	}
	return nil
}
