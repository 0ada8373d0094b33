package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/scoped"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// Observer is notified about audit writes that never reached storage.
type Observer interface {
	AuditWriteFailed(action string)
	AuditDropped(action string)
}

type nopObserver struct{}

func (nopObserver) AuditWriteFailed(string) {}
func (nopObserver) AuditDropped(string)     {}

// Store writes and reads audit rows. There is no update path.
type Store struct {
	table    db.Table[Entry]
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
	newID    func() string
}

// NewStore constructs a Store over the audit table.
func NewStore(table db.Table[Entry], logger *slog.Logger, observer Observer) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Store{
		table:    table,
		logger:   logger,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// WithTable returns a copy of the store writing to table, typically one bound
// to a transaction.
func (s *Store) WithTable(table db.Table[Entry]) *Store {
	clone := *s
	clone.table = table
	return &clone
}

// Stamp builds the row for ev as acted by actx. The tenant is NULL for a
// global superuser.
func (s *Store) Stamp(actx tenancy.ActingContext, ev Event) (Entry, error) {
	if strings.TrimSpace(ev.Action) == "" || strings.TrimSpace(ev.Resource) == "" {
		return Entry{}, errors.New("audit: action and resource required")
	}
	oldValues, err := marshalValues(ev.OldValues)
	if err != nil {
		return Entry{}, err
	}
	newValues, err := marshalValues(ev.NewValues)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:         s.newID(),
		TenantID:   optional(actx.TenantID),
		UserID:     actx.UserID,
		Action:     ev.Action,
		Resource:   ev.Resource,
		ResourceID: optional(ev.ResourceID),
		OldValues:  oldValues,
		NewValues:  newValues,
		CreatedAt:  s.now(),
		IPAddress:  optional(ev.IPAddress),
	}, nil
}

// Insert stores ev and returns the row. Used where the row is the entity
// itself, so failures are returned.
func (s *Store) Insert(ctx context.Context, actx tenancy.ActingContext, ev Event) (Entry, error) {
	entry, err := s.Stamp(actx, ev)
	if err != nil {
		return Entry{}, err
	}
	stored, err := s.table.Create(ctx, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: insert %s: %w", ev.Action, err)
	}
	return stored, nil
}

// Append records ev as a side effect. Failures are logged and counted, never
// returned.
func (s *Store) Append(ctx context.Context, actx tenancy.ActingContext, ev Event) {
	if _, err := s.Insert(ctx, actx, ev); err != nil {
		s.observer.AuditWriteFailed(ev.Action)
		s.logger.Error("audit append failed",
			slog.String("action", ev.Action),
			slog.String("resource", ev.Resource),
			slog.String("resource_id", ev.ResourceID),
			slog.String("user_id", actx.UserID),
			slog.Any("error", err),
		)
	}
}

// VirtualQuery selects log-backed entities.
type VirtualQuery struct {
	Actions []string
	// Status matches newValues.status case-insensitively when set.
	Status string
	// OwnerID restricts to rows written by one user when set.
	OwnerID string
	Limit   int
	Offset  int
}

// ListVirtual returns matching rows newest first together with the total
// count ignoring Limit and Offset. Rows are confined to the acting tenant.
func (s *Store) ListVirtual(ctx context.Context, actx tenancy.ActingContext, q VirtualQuery) ([]Entry, int, error) {
	if len(q.Actions) == 0 {
		return nil, 0, errors.New("audit: virtual query needs at least one action")
	}
	where := []db.Cond{db.In("action", q.Actions...)}
	if status := strings.TrimSpace(q.Status); status != "" {
		where = append(where, db.JSONTextEqualFold("new_values", "status", status))
	}
	if q.OwnerID != "" {
		where = append(where, db.Eq("user_id", q.OwnerID))
	}
	query := db.Query{
		Where:   where,
		OrderBy: []db.Order{{Column: "created_at", Desc: true}, {Column: "id"}},
		Limit:   q.Limit,
		Offset:  q.Offset,
	}

	entries := scoped.New[Entry](s.table, entryKind, actx)
	rows, err := entries.FindMany(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list virtual: %w", err)
	}
	total, err := entries.Count(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: count virtual: %w", err)
	}
	return rows, total, nil
}
