package leave

import (
	"context"

	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// Store persists leave requests as audit rows.
type Store interface {
	// Create inserts the creating row. A non-empty idempotency key is claimed
	// in the same transaction; a replayed key fails with shared.ErrConflict.
	Create(ctx context.Context, actx tenancy.ActingContext, ev audit.Event, idempotencyKey string) (audit.Entry, error)
	List(ctx context.Context, actx tenancy.ActingContext, q audit.VirtualQuery) ([]audit.Entry, int, error)
}

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	db.Querier
	db.TxStarter
}

type pgStore struct {
	pool  Pool
	audit *audit.Store
}

// NewStore returns the PostgreSQL backed Store.
func NewStore(pool Pool, store *audit.Store) Store {
	return &pgStore{pool: pool, audit: store}
}

func (s *pgStore) Create(ctx context.Context, actx tenancy.ActingContext, ev audit.Event, idempotencyKey string) (audit.Entry, error) {
	if idempotencyKey == "" {
		return s.audit.Insert(ctx, actx, ev)
	}
	var entry audit.Entry
	err := db.WithTx(ctx, s.pool, func(q db.Querier) error {
		if err := shared.NewIdempotencyStore(q).CheckAndInsert(ctx, idempotencyKey, actx.TenantID, ev.Action); err != nil {
			return err
		}
		var err error
		entry, err = s.audit.WithTable(audit.NewTable(q)).Insert(ctx, actx, ev)
		return err
	})
	return entry, err
}

func (s *pgStore) List(ctx context.Context, actx tenancy.ActingContext, q audit.VirtualQuery) ([]audit.Entry, int, error) {
	return s.audit.ListVirtual(ctx, actx, q)
}
