package approvals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workforce-hq/workforce/internal/access"
	"github.com/workforce-hq/workforce/internal/audit"
	"github.com/workforce-hq/workforce/internal/audit/audittest"
	"github.com/workforce-hq/workforce/internal/platform/db"
	"github.com/workforce-hq/workforce/internal/platform/db/dbtest"
	"github.com/workforce-hq/workforce/internal/rbac"
	"github.com/workforce-hq/workforce/internal/shared"
	"github.com/workforce-hq/workforce/internal/tenancy"
	"github.com/workforce-hq/workforce/internal/timesheets"
	"github.com/workforce-hq/workforce/internal/timesheets/timesheetstest"
)

type stubNames struct {
	names map[string]string
	err   error
	calls int
}

func (s *stubNames) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]string{}
	for _, id := range ids {
		if n, ok := s.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type fixture struct {
	sheets  *dbtest.MemTable[timesheets.Timesheet]
	log     *dbtest.MemTable[audit.Entry]
	names   *stubNames
	service *Service
}

func newFixture(engine *rbac.Engine, sheets []timesheets.Timesheet, entries []audit.Entry) fixture {
	sheetTable := timesheetstest.NewTable(sheets...)
	logTable := audittest.NewTable(entries...)
	store := audit.NewStore(logTable, nil, nil)
	guard := access.NewGuard(engine, access.TableLocator[timesheets.Timesheet](sheetTable), nil)
	ts := timesheets.NewService(sheetTable, guard, store, nil)
	names := &stubNames{names: map[string]string{"u1": "Ada", "u2": "Bram", "u3": "Cor"}}
	return fixture{
		sheets:  sheetTable,
		log:     logTable,
		names:   names,
		service: NewService(guard, ts, store, names, nil),
	}
}

var (
	base     = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	employee = tenancy.ActingContext{TenantID: "t1", UserID: "u1", Role: rbac.RoleUser}
	lead     = tenancy.ActingContext{TenantID: "t1", UserID: "m1", Role: rbac.RoleManager}
	admin2   = tenancy.ActingContext{TenantID: "t2", UserID: "a2", Role: rbac.RoleTenantAdmin}
)

func at(hours int) time.Time {
	return base.Add(time.Duration(hours) * time.Hour)
}

func as(actx tenancy.ActingContext) context.Context {
	return tenancy.WithActor(context.Background(), actx)
}

func vacation(id, tenant, user string, created time.Time, status string) audit.Entry {
	return audittest.Row(id, tenant, user, audit.ActionVacationRequest, created, map[string]any{
		"type": "vacation", "startDate": "2025-02-03", "endDate": "2025-02-05",
		"totalDays": 3, "description": "trip", "status": status, "employeeId": user,
	})
}

func sickLeave(id, tenant, user string, created time.Time, status string) audit.Entry {
	return audittest.Row(id, tenant, user, audit.ActionSickLeaveRequest, created, map[string]any{
		"startDate": "2025-01-20", "reason": "flu", "uwvReported": false, "status": status, "employeeId": user,
	})
}

func mixedFixture(engine *rbac.Engine) fixture {
	approved := timesheetstest.Pending("ts-old", "t1", "u2", at(0))
	approved.Status = timesheets.StatusApproved
	return newFixture(engine,
		[]timesheets.Timesheet{
			timesheetstest.Pending("ts1", "t1", "u1", at(1)),
			timesheetstest.Pending("ts3", "t1", "u2", at(3)),
			timesheetstest.Pending("ts9", "t2", "u9", at(4)),
			approved,
		},
		[]audit.Entry{
			vacation("v1", "t1", "u2", at(2), "pending"),
			vacation("v2", "t1", "u1", at(3), "Pending"),
			vacation("v3", "t1", "u1", at(5), "approved"),
			vacation("v9", "t2", "u9", at(6), "pending"),
			sickLeave("s1", "t1", "u3", at(4), "pending"),
		},
	)
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestQueueRequiresApprovalGate(t *testing.T) {
	f := mixedFixture(nil)
	_, err := f.service.List(as(employee), ListInput{Type: FilterTimesheet})
	assert.True(t, errors.Is(err, shared.ErrPermissionDenied))

	_, err = f.service.List(context.Background(), ListInput{})
	assert.True(t, errors.Is(err, shared.ErrAuthenticationRequired))

	_, err = f.service.Decide(as(employee), DecideInput{IDs: []string{"ts1"}, Action: ActionApprove})
	assert.True(t, errors.Is(err, shared.ErrPermissionDenied))
	got, _ := f.sheets.Get("ts1")
	assert.Equal(t, timesheets.StatusPending, got.Status)
}

func TestUserQueueIsNarrowedToOwnRows(t *testing.T) {
	// the default matrix withholds the approval gate from USER
	engine := rbac.NewEngine(rbac.Matrix{rbac.RoleUser: {rbac.PermTimesheetApprove}})
	f := mixedFixture(engine)

	page, err := f.service.List(as(employee), ListInput{Type: FilterTimesheet})
	require.NoError(t, err)
	assert.Equal(t, []string{"ts1"}, ids(page.Items))
	assert.Equal(t, 1, page.Pagination.Total)

	page, err = f.service.List(as(employee), ListInput{Type: FilterVacation})
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, ids(page.Items))
}

func TestTypedQueues(t *testing.T) {
	f := mixedFixture(nil)

	page, err := f.service.List(as(lead), ListInput{Type: FilterTimesheet, Status: "pending"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ts3", "ts1"}, ids(page.Items))
	assert.Equal(t, ItemTimesheet, page.Items[0].Type)
	assert.Equal(t, "7.50", page.Items[0].Hours)
	assert.Equal(t, "PENDING", page.Items[0].Status)

	page, err = f.service.List(as(lead), ListInput{Type: FilterVacation})
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "v1"}, ids(page.Items))
	assert.Equal(t, "PENDING", page.Items[0].Status)

	page, err = f.service.List(as(lead), ListInput{Type: FilterVacation, Status: "APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v3"}, ids(page.Items))

	page, err = f.service.List(as(lead), ListInput{Type: FilterSickLeave})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(page.Items))
	require.NotNil(t, page.Items[0].UWVReported)
	assert.Equal(t, "flu", page.Items[0].Reason)

	_, err = f.service.List(as(lead), ListInput{Status: "archived"})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestAllMergesSortsAndPaginates(t *testing.T) {
	f := mixedFixture(nil)
	page, err := f.service.List(as(lead), ListInput{Type: FilterAll})
	require.NoError(t, err)
	// ts3 and v2 share a timestamp; id breaks the tie
	assert.Equal(t, []string{"s1", "ts3", "v2", "v1", "ts1"}, ids(page.Items))

	first, err := f.service.List(as(lead), ListInput{Type: FilterAll, Page: 1, Limit: 2})
	require.NoError(t, err)
	second, err := f.service.List(as(lead), ListInput{Type: FilterAll, Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "ts3"}, ids(first.Items))
	assert.Equal(t, []string{"v2", "v1"}, ids(second.Items))
	assert.Equal(t, 5, second.Pagination.Total)
	assert.Equal(t, 3, second.Pagination.Pages)

	beyond, err := f.service.List(as(lead), ListInput{Type: FilterAll, Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.NotNil(t, beyond.Items)
}

func TestAllTotalIsSumOfTypedTotals(t *testing.T) {
	f := mixedFixture(nil)
	for _, status := range []string{"", "approved", "rejected"} {
		all, err := f.service.List(as(lead), ListInput{Type: FilterAll, Status: status, Limit: 1})
		require.NoError(t, err)
		sum := 0
		for _, typ := range []Filter{FilterTimesheet, FilterVacation, FilterSickLeave} {
			page, err := f.service.List(as(lead), ListInput{Type: typ, Status: status, Limit: 1})
			require.NoError(t, err)
			sum += page.Pagination.Total
		}
		assert.Equal(t, sum, all.Pagination.Total, "status %q", status)
	}
}

func TestQueueIsTenantIsolated(t *testing.T) {
	f := mixedFixture(nil)
	page, err := f.service.List(as(admin2), ListInput{Type: FilterAll})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ts9", "v9"}, ids(page.Items))
}

func TestNamesAreResolvedInOneBatch(t *testing.T) {
	f := mixedFixture(nil)
	page, err := f.service.List(as(lead), ListInput{Type: FilterAll})
	require.NoError(t, err)
	assert.Equal(t, 1, f.names.calls)
	for _, it := range page.Items {
		assert.NotEmpty(t, it.EmployeeName, it.ID)
	}

	f.names.err = errors.New("directory down")
	page, err = f.service.List(as(lead), ListInput{Type: FilterTimesheet})
	require.NoError(t, err)
	assert.Empty(t, page.Items[0].EmployeeName)
}

func TestBulkApproveSkipsMissing(t *testing.T) {
	f := mixedFixture(nil)
	before := f.log.Rows()

	res, err := f.service.Decide(as(lead), DecideInput{IDs: []string{"ts1", "ts2"}, Action: ActionApprove, Comment: "ok"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"ts1"}, res.ProcessedIDs)

	got, _ := f.sheets.Get("ts1")
	assert.Equal(t, timesheets.StatusApproved, got.Status)

	after := f.log.Rows()
	require.Len(t, after, len(before)+1)
	assert.Equal(t, before, after[:len(before)], "existing rows untouched")
	appended := after[len(after)-1]
	assert.Equal(t, audit.ActionTimesheetApprove, appended.Action)
	require.NotNil(t, appended.ResourceID)
	assert.Equal(t, "ts1", *appended.ResourceID)
	assert.JSONEq(t, `{"status":"PENDING"}`, string(appended.OldValues))
	assert.JSONEq(t, `{"status":"APPROVED","comment":"ok"}`, string(appended.NewValues))
}

func TestBulkSkipsDecidedForeignAndLeaveIDs(t *testing.T) {
	f := mixedFixture(nil)
	before := f.log.Rows()

	// leave ids are not processed by the bulk endpoint
	res, err := f.service.Decide(as(lead), DecideInput{
		IDs:    []string{"ts-old", "ts9", "v1", "s1", "ts3", "ts3", " "},
		Action: ActionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ts3"}, res.ProcessedIDs)
	assert.Equal(t, "1 of 5 item(s) rejected", res.Message)

	foreign, _ := f.sheets.Get("ts9")
	assert.Equal(t, timesheets.StatusPending, foreign.Status)
	after := f.log.Rows()
	require.Len(t, after, len(before)+1)
	assert.Equal(t, audit.ActionTimesheetReject, after[len(after)-1].Action)

	page, err := f.service.List(as(lead), ListInput{Type: FilterVacation})
	require.NoError(t, err)
	assert.Contains(t, ids(page.Items), "v1", "leave stays pending")

	_, err = f.service.Decide(as(lead), DecideInput{IDs: []string{"ts1"}, Action: "archive"})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

type brokenUpdates struct {
	db.Table[timesheets.Timesheet]
	err error
}

func (b brokenUpdates) Update(ctx context.Context, id string, patch db.Patch, guard ...db.Cond) (timesheets.Timesheet, error) {
	return timesheets.Timesheet{}, b.err
}

func TestBulkPropagatesStorageFailure(t *testing.T) {
	sheetTable := timesheetstest.NewTable(timesheetstest.Pending("ts1", "t1", "u1", at(1)))
	store := audit.NewStore(audittest.NewTable(), nil, nil)
	guard := access.NewGuard(nil, access.TableLocator[timesheets.Timesheet](sheetTable), nil)
	broken := brokenUpdates{Table: sheetTable, err: errors.New("connection reset by peer")}
	svc := NewService(guard, timesheets.NewService(broken, guard, store, nil), store, nil, nil)

	res, err := svc.Decide(as(lead), DecideInput{IDs: []string{"missing", "ts1"}, Action: ActionApprove})
	require.Error(t, err)
	assert.Equal(t, shared.KindInternal, shared.KindOf(err))
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Empty(t, res.ProcessedIDs)

	got, _ := sheetTable.Get("ts1")
	assert.Equal(t, timesheets.StatusPending, got.Status)
}

func TestUnreadableLeaveRowDoesNotBreakQueue(t *testing.T) {
	bad := audittest.Row("v-bad", "t1", "u2", audit.ActionVacationRequest, at(7), map[string]any{
		"type": "vacation", "startDate": "2025-02-03", "totalDays": "3", "status": "pending",
	})
	f := newFixture(nil,
		[]timesheets.Timesheet{timesheetstest.Pending("ts1", "t1", "u1", at(1))},
		[]audit.Entry{vacation("v1", "t1", "u2", at(2), "pending"), bad},
	)

	page, err := f.service.List(as(lead), ListInput{Type: FilterAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "ts1"}, ids(page.Items))

	page, err = f.service.List(as(lead), ListInput{Type: FilterVacation})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, ids(page.Items))
}

func TestSecondApprovalIsNoop(t *testing.T) {
	f := mixedFixture(nil)
	res, err := f.service.Decide(as(lead), DecideInput{IDs: []string{"ts1"}, Action: ActionApprove})
	require.NoError(t, err)
	require.Len(t, res.ProcessedIDs, 1)
	rows := len(f.log.Rows())

	res, err = f.service.Decide(as(lead), DecideInput{IDs: []string{"ts1"}, Action: ActionReject})
	require.NoError(t, err)
	assert.Empty(t, res.ProcessedIDs)
	assert.Len(t, f.log.Rows(), rows)
	got, _ := f.sheets.Get("ts1")
	assert.Equal(t, timesheets.StatusApproved, got.Status)
}

func TestProjectionIsPure(t *testing.T) {
	e := vacation("v1", "t1", "u2", at(2), "pending")
	raw := append([]byte(nil), e.NewValues...)
	a, err := FromVacation(e)
	require.NoError(t, err)
	b, err := FromVacation(e)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, raw, []byte(e.NewValues))
	assert.Equal(t, "2025-02-03", a.StartDate)
	require.NotNil(t, a.TotalDays)
	assert.Equal(t, 3, *a.TotalDays)

	tvt := audittest.Row("x", "t1", "u1", audit.ActionTijdVoorTijdRequest, at(1), map[string]any{"status": "pending"})
	item, err := FromVacation(tvt)
	require.NoError(t, err)
	assert.Equal(t, ItemTijdVoorTijd, item.Type)
	assert.Equal(t, "u1", item.EmployeeID)

	s, err := FromSickLeave(sickLeave("s1", "t1", "u3", at(4), "pending"))
	require.NoError(t, err)
	s2, err := FromSickLeave(sickLeave("s1", "t1", "u3", at(4), "pending"))
	require.NoError(t, err)
	assert.Equal(t, s, s2)
	assert.Nil(t, s.TotalDays)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)
	f, err = ParseFilter(" SickLeave ")
	require.NoError(t, err)
	assert.Equal(t, FilterSickLeave, f)
	_, err = ParseFilter("leave")
	assert.Error(t, err)
}
