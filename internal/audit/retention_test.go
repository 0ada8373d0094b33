package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execStub struct {
	sql  string
	args []any
	err  error
}

func (e *execStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql, e.args = sql, args
	if e.err != nil {
		return pgconn.CommandTag{}, e.err
	}
	return pgconn.NewCommandTag("DELETE 5"), nil
}

func TestPurgeKeepsPendingLeaveRows(t *testing.T) {
	stub := &execStub{}
	cutoff := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	purged, err := NewRetention(stub).Purge(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), purged)
	assert.Contains(t, stub.sql, "DELETE FROM audit_logs")
	assert.Contains(t, stub.sql, "'pending'")
	assert.Equal(t, cutoff, stub.args[0])
	assert.ElementsMatch(t, []string{ActionVacationRequest, ActionTijdVoorTijdRequest, ActionSickLeaveRequest}, stub.args[1])
}

func TestPurgeWrapsFailure(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewRetention(&execStub{err: boom}).Purge(context.Background(), time.Now())
	assert.ErrorIs(t, err, boom)

	var unconfigured *Retention
	_, err = unconfigured.Purge(context.Background(), time.Now())
	assert.Error(t, err)
}
