package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/workforce-hq/workforce/internal/shared"
)

// Retention deletes audit rows past their retention window. It is only run
// by the worker; request handlers never delete audit rows.
type Retention struct {
	db shared.Execer
}

// NewRetention constructs the retention purger.
func NewRetention(db shared.Execer) *Retention {
	return &Retention{db: db}
}

// Purge removes rows created before cutoff. Virtual-entity rows that are still
// pending are kept.
func (r *Retention) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("audit: retention not configured")
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM audit_logs
WHERE created_at < $1
  AND NOT (action = ANY($2) AND lower(new_values->>'status') = 'pending')`,
		cutoff, []string{ActionVacationRequest, ActionTijdVoorTijdRequest, ActionSickLeaveRequest})
	if err != nil {
		return 0, fmt.Errorf("audit: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}
