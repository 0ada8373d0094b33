package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	err := fmt.Errorf("wrap: %w", AccessDenied("tenant mismatch"))
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, KindAccessDenied, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	v := ValidationFailed(map[string]string{"ids": "required"})
	var typed *Error
	require.ErrorAs(t, v, &typed)
	assert.Equal(t, "required", typed.Fields["ids"])
	assert.ErrorIs(t, ErrCSRFTokenMismatch, ErrAccessDenied)
}

func TestPagination(t *testing.T) {
	p := NewPagination(0, 0, 45)
	assert.Equal(t, Pagination{Page: 1, Limit: DefaultPageLimit, Total: 45, Pages: 3}, p)
	assert.Equal(t, 0, p.Offset())

	p = NewPagination(3, 500, 250)
	assert.Equal(t, MaxPageLimit, p.Limit)
	assert.Equal(t, 200, p.Offset())
	assert.Equal(t, 0, NewPagination(1, 10, 0).Pages)
}

func TestCSRFTokenLifecycle(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "s1", values: map[string]string{}}
	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	again, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, m.VerifyToken(context.Background(), sess, token))
	assert.ErrorIs(t, m.VerifyToken(context.Background(), sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, m.VerifyToken(context.Background(), sess, "forged"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, m.VerifyToken(context.Background(), &Session{}, token), ErrCSRFTokenMissing)

	// a token lifted into another session does not verify there
	other := &Session{ID: "s2", values: map[string]string{CSRFSessionKey: token}}
	assert.ErrorIs(t, m.VerifyToken(context.Background(), other, token), ErrCSRFTokenMismatch)
}

func TestCSRFRequestCheck(t *testing.T) {
	m := NewCSRFManager("secret")
	sess := &Session{ID: "s1", values: map[string]string{}}
	token, err := m.EnsureToken(context.Background(), sess)
	require.NoError(t, err)

	assert.False(t, RequiresToken(http.MethodGet))
	assert.True(t, RequiresToken(http.MethodPost))
	assert.True(t, RequiresToken(http.MethodDelete))

	req := httptest.NewRequest(http.MethodPost, "/timesheets", nil)
	assert.ErrorIs(t, m.VerifyRequest(req, sess), ErrCSRFTokenMissing)
	req.Header.Set(CSRFHeader, " "+token+" ")
	assert.NoError(t, m.VerifyRequest(req, sess))

	ctx := ContextWithSession(context.Background(), sess)
	assert.Same(t, sess, SessionFromContext(ctx))
	assert.Empty(t, SessionUserID(ctx))
	sess.SetUser("u1")
	assert.Equal(t, "u1", SessionUserID(ctx))
	assert.Nil(t, SessionFromContext(ContextWithSession(context.Background(), nil)))
}

type execRecorder struct {
	sql  string
	args []any
	err  error
	rows int64
}

func (e *execRecorder) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.sql, e.args = sql, args
	return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", e.rows)), e.err
}

func TestIdempotencyStore(t *testing.T) {
	rec := &execRecorder{}
	store := NewIdempotencyStore(rec)
	require.NoError(t, store.CheckAndInsert(context.Background(), "k1", "t1", "VACATION_REQUEST"))
	assert.Equal(t, []any{"k1", "t1", "VACATION_REQUEST"}, rec.args[:3])

	rec.err = &pgconn.PgError{Code: "23505"}
	err := store.CheckAndInsert(context.Background(), "k1", "t1", "VACATION_REQUEST")
	assert.ErrorIs(t, err, ErrConflict)

	assert.Error(t, store.CheckAndInsert(context.Background(), "", "t1", "m"))

	rec.err, rec.rows = nil, 7
	removed, err := store.Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
}
