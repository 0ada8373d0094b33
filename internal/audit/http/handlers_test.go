package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workforce-hq/workforce/internal/access"
	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/tenancy"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
	lastActor   tenancy.ActingContext
}

func (s *stubTimelineService) Timeline(ctx context.Context, actx tenancy.ActingContext, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters, s.lastActor = filters, actx
	return s.result, nil
}

func (s *stubTimelineService) Export(ctx context.Context, actx tenancy.ActingContext, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters, s.lastActor = filters, actx
	return s.exportRows, nil
}

func newRouter(service *stubTimelineService) http.Handler {
	handler := NewHandler(nil, service, access.NewGuard(nil, nil, nil))
	handler.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", handler.MountRoutes)
	return r
}

func get(t *testing.T, h http.Handler, target string, actx *tenancy.ActingContext) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if actx != nil {
		req = req.WithContext(tenancy.WithActor(req.Context(), *actx))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestTimelineRequiresPermission(t *testing.T) {
	h := newRouter(&stubTimelineService{})
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/audit", nil).Code)
	assert.Equal(t, http.StatusForbidden, get(t, h, "/audit", &tenancy.ActingContext{TenantID: "t1", UserID: "u1", Role: rbac.RoleUser}).Code)
}

func TestTimelineReturnsRows(t *testing.T) {
	rows := []audit.TimelineRow{{At: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), Actor: "auditor", Action: audit.ActionTimesheetApprove, Resource: "timesheet", ResourceID: "1"}}
	service := &stubTimelineService{result: audit.Result{Rows: rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	h := newRouter(service)

	actx := tenancy.ActingContext{TenantID: "t1", UserID: "m1", Role: rbac.RoleManager}
	rr := get(t, h, "/audit?from=2024-03-01&to=2024-03-15", &actx)
	require.Equal(t, http.StatusOK, rr.Code)

	var body audit.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "auditor", body.Rows[0].Actor)
	assert.Equal(t, "2024-03-01", service.lastFilters.From.Format("2006-01-02"))
	assert.Equal(t, "2024-03-16", service.lastFilters.To.Format("2006-01-02"))
	assert.Equal(t, actx, service.lastActor)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	h := newRouter(&stubTimelineService{})
	actx := tenancy.ActingContext{TenantID: "t1", UserID: "m1", Role: rbac.RoleManager}
	for _, target := range []string{"/audit?from=yesterday", "/audit?from=2024-03-10&to=2024-03-01", "/audit?page=0", "/audit?from=2023-01-01&to=2024-03-01"} {
		assert.Equal(t, http.StatusBadRequest, get(t, h, target, &actx).Code, target)
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []audit.TimelineRow{{Actor: "auditor"}}}
	h := newRouter(service)

	manager := tenancy.ActingContext{TenantID: "t1", UserID: "m1", Role: rbac.RoleManager}
	assert.Equal(t, http.StatusForbidden, get(t, h, "/audit/export.csv", &manager).Code)

	admin := tenancy.ActingContext{TenantID: "t1", UserID: "a1", Role: rbac.RoleTenantAdmin}
	rr := get(t, h, "/audit/export.csv?from=2024-03-01&to=2024-03-05", &admin)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(rr.Body.String(), "id,at,tenant_id"))
	assert.Contains(t, rr.Body.String(), "auditor")
}
