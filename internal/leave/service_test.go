package leave

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workforce-hq/workforce/internal/access"
	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/audit/audittest"
	"github.com/workforce-hq/workforce/internal/platform/db/dbtest"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

// memStore mirrors pgStore over an in-memory audit table.
type memStore struct {
	mu    sync.Mutex
	keys  map[string]bool
	table *dbtest.MemTable[audit.Entry]
	audit *audit.Store
}

func newMemStore() *memStore {
	table := audittest.NewTable()
	return &memStore{keys: map[string]bool{}, table: table, audit: audit.NewStore(table, nil, nil)}
}

func (s *memStore) Create(ctx context.Context, actx tenancy.ActingContext, ev audit.Event, key string) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" {
		scope := actx.TenantID + "/" + ev.Action + "/" + key
		if s.keys[scope] {
			return audit.Entry{}, shared.ErrIdempotencyConflict
		}
		s.keys[scope] = true
	}
	return s.audit.Insert(ctx, actx, ev)
}

func (s *memStore) List(ctx context.Context, actx tenancy.ActingContext, q audit.VirtualQuery) ([]audit.Entry, int, error) {
	return s.audit.ListVirtual(ctx, actx, q)
}

type stubNames map[string]string

func (s stubNames) DisplayName(ctx context.Context, userID string) (string, error) {
	name, ok := s[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return name, nil
}

var (
	employee = tenancy.ActingContext{TenantID: "t1", UserID: "u1", Role: rbac.RoleUser}
	coworker = tenancy.ActingContext{TenantID: "t1", UserID: "u2", Role: rbac.RoleUser}
	lead     = tenancy.ActingContext{TenantID: "t1", UserID: "m1", Role: rbac.RoleManager}
	foreign  = tenancy.ActingContext{TenantID: "t2", UserID: "u9", Role: rbac.RoleUser}
	root     = tenancy.ActingContext{UserID: "root", Role: rbac.RoleSuperuser, IsSuperuser: true}
)

func date(day int) time.Time {
	return time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)
}

func newService() (*Service, *memStore) {
	store := newMemStore()
	guard := access.NewGuard(nil, nil, nil)
	return NewService(store, guard, stubNames{"u1": "Ada de Vries"}, nil), store
}

func as(actx tenancy.ActingContext) context.Context {
	return tenancy.WithActor(context.Background(), actx)
}

func TestRequestVacationStoresPendingRow(t *testing.T) {
	svc, store := newService()
	created, err := svc.RequestVacation(as(employee), VacationInput{
		StartDate:   date(10),
		EndDate:     date(12),
		Description: "  family visit ",
		Type:        TypeVacation,
	}, Meta{IPAddress: "10.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, 3, created.TotalDays)
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, "family visit", created.Description)
	assert.Equal(t, "Ada de Vries", created.EmployeeName)

	rows := store.table.Rows()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, audit.ActionVacationRequest, row.Action)
	assert.Equal(t, "u1", row.UserID)
	require.NotNil(t, row.TenantID)
	assert.Equal(t, "t1", *row.TenantID)
	assert.Equal(t, created.ID, row.ID)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(row.NewValues, &doc))
	assert.Equal(t, "pending", doc["status"])
	assert.Equal(t, "2025-01-10", doc["startDate"])
	assert.Equal(t, "2025-01-12", doc["endDate"])
	assert.EqualValues(t, 3, doc["totalDays"])
}

func TestRequestTijdVoorTijdUsesOwnAction(t *testing.T) {
	svc, store := newService()
	_, err := svc.RequestVacation(as(employee), VacationInput{StartDate: date(3), EndDate: date(3), Type: TypeTijdVoorTijd}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, audit.ActionTijdVoorTijdRequest, store.table.Rows()[0].Action)
}

func TestRequestVacationValidation(t *testing.T) {
	svc, store := newService()
	_, err := svc.RequestVacation(as(employee), VacationInput{StartDate: date(12), EndDate: date(10), Type: TypeVacation}, Meta{})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RequestVacation(as(employee), VacationInput{StartDate: date(10), EndDate: date(12), Type: "sabbatical"}, Meta{})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.RequestVacation(as(root), VacationInput{StartDate: date(10), EndDate: date(12), Type: TypeVacation}, Meta{})
	assert.ErrorIs(t, err, shared.ErrValidation, "a tenant must be selected")

	_, err = svc.RequestVacation(context.Background(), VacationInput{StartDate: date(10), EndDate: date(12), Type: TypeVacation}, Meta{})
	assert.ErrorIs(t, err, shared.ErrAuthenticationRequired)
	assert.Empty(t, store.table.Rows())
}

func TestRequestVacationIdempotencyKey(t *testing.T) {
	svc, store := newService()
	in := VacationInput{StartDate: date(10), EndDate: date(12), Type: TypeVacation}
	_, err := svc.RequestVacation(as(employee), in, Meta{IdempotencyKey: "k1"})
	require.NoError(t, err)
	_, err = svc.RequestVacation(as(employee), in, Meta{IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, shared.ErrConflict)
	_, err = svc.RequestVacation(as(foreign), in, Meta{IdempotencyKey: "k1"})
	assert.NoError(t, err, "keys are tenant scoped")
	assert.Len(t, store.table.Rows(), 2)
}

func TestRequestSickLeave(t *testing.T) {
	svc, store := newService()
	end := date(14)
	ret := date(15)
	created, err := svc.RequestSickLeave(as(employee), SickLeaveInput{
		StartDate:          date(10),
		EndDate:            &end,
		Reason:             "flu",
		UWVReported:        true,
		ExpectedReturnDate: &ret,
	}, Meta{})
	require.NoError(t, err)
	require.NotNil(t, created.TotalDays)
	assert.Equal(t, 5, *created.TotalDays)
	assert.Equal(t, "2025-01-15", *created.ExpectedReturnDate)
	assert.Equal(t, audit.ActionSickLeaveRequest, store.table.Rows()[0].Action)

	open, err := svc.RequestSickLeave(as(employee), SickLeaveInput{StartDate: date(20), Reason: "back pain"}, Meta{})
	require.NoError(t, err)
	assert.Nil(t, open.EndDate)
	assert.Nil(t, open.TotalDays)

	before := date(9)
	_, err = svc.RequestSickLeave(as(employee), SickLeaveInput{StartDate: date(10), EndDate: &before, Reason: "x"}, Meta{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestListVacationsScopes(t *testing.T) {
	svc, _ := newService()
	in := VacationInput{StartDate: date(10), EndDate: date(12), Type: TypeVacation}
	for _, actx := range []tenancy.ActingContext{employee, coworker, foreign} {
		_, err := svc.RequestVacation(as(actx), in, Meta{})
		require.NoError(t, err)
	}
	_, err := svc.RequestSickLeave(as(employee), SickLeaveInput{StartDate: date(1), Reason: "flu"}, Meta{})
	require.NoError(t, err)

	own, page, err := svc.ListVacations(as(employee), ListFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "u1", own[0].EmployeeID)
	assert.Equal(t, 1, page.Total)

	team, page, err := svc.ListVacations(as(lead), ListFilter{Status: "PENDING", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, team, 1)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.Pages)

	none, _, err := svc.ListVacations(as(lead), ListFilter{Status: "approved"})
	require.NoError(t, err)
	assert.Empty(t, none)

	sick, _, err := svc.ListSickLeaves(as(lead), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, sick, 1)
}

func TestListSkipsUnreadableRows(t *testing.T) {
	svc, store := newService()
	_, err := svc.RequestVacation(as(employee), VacationInput{StartDate: date(10), EndDate: date(12), Type: TypeVacation}, Meta{})
	require.NoError(t, err)
	_, err = store.table.Create(context.Background(), audittest.Row("bad-v", "t1", "u2", audit.ActionVacationRequest, date(20),
		map[string]any{"totalDays": "3", "status": "pending"}))
	require.NoError(t, err)
	_, err = store.table.Create(context.Background(), audittest.Row("bad-s", "t1", "u2", audit.ActionSickLeaveRequest, date(20),
		map[string]any{"uwvReported": "no", "status": "pending"}))
	require.NoError(t, err)

	rows, _, err := svc.ListVacations(as(lead), ListFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "u1", rows[0].EmployeeID)

	sick, _, err := svc.ListSickLeaves(as(lead), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, sick)
}

func TestListRequiresPermission(t *testing.T) {
	store := newMemStore()
	guard := access.NewGuard(rbac.NewEngine(rbac.Matrix{rbac.RoleUser: {rbac.PermLeaveRequest}}), nil, nil)
	svc := NewService(store, guard, nil, nil)
	_, _, err := svc.ListVacations(as(employee), ListFilter{})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestNameLookupFailureIsNotFatal(t *testing.T) {
	svc, _ := newService()
	created, err := svc.RequestVacation(as(coworker), VacationInput{StartDate: date(10), EndDate: date(10), Type: TypeVacation}, Meta{})
	require.NoError(t, err)
	assert.Empty(t, created.EmployeeName)
}

func TestDecodeDefaults(t *testing.T) {
	e := audittest.Row("x", "t1", "u5", audit.ActionTijdVoorTijdRequest, date(1), map[string]any{"status": "approved"})
	rec, err := DecodeVacation(e)
	require.NoError(t, err)
	assert.Equal(t, TypeTijdVoorTijd, rec.Type)
	assert.Equal(t, "u5", rec.EmployeeID)

	e.NewValues = json.RawMessage(`{`)
	_, err = DecodeVacation(e)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, shared.ErrValidation))
}

func TestTotalDaysInclusive(t *testing.T) {
	assert.Equal(t, 1, TotalDays(date(10), date(10)))
	assert.Equal(t, 3, TotalDays(date(10), date(12)))
	first := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3652059, TotalDays(first, last))
	assert.Equal(t, 0, TotalDays(date(12), date(10)))
	across := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 32, TotalDays(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), across.AddDate(0, 0, 1)))
}
