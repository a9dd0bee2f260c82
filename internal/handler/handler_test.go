package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/occupancy"
	"github.com/iliyamo/golf-intranet/internal/performance"
	"github.com/iliyamo/golf-intranet/internal/repository"
)

// ----- fakes -----

type mockTracker struct{ mock.Mock }

func (m *mockTracker) AddJoin(ctx context.Context, timeID uint64, d model.JoinPersonDraft) (*occupancy.AddResult, error) {
	args := m.Called(ctx, timeID, d)
	res, _ := args.Get(0).(*occupancy.AddResult)
	return res, args.Error(1)
}

func (m *mockTracker) RemoveJoin(ctx context.Context, id uint64) (*model.CourseTime, error) {
	args := m.Called(ctx, id)
	ct, _ := args.Get(0).(*model.CourseTime)
	return ct, args.Error(1)
}

func (m *mockTracker) ChangeJoinType(ctx context.Context, id uint64, next model.JoinType) (*model.CourseTime, error) {
	args := m.Called(ctx, id, next)
	ct, _ := args.Get(0).(*model.CourseTime)
	return ct, args.Error(1)
}

func (m *mockTracker) RecomputeOccupancy(ctx context.Context, id uint64) (*model.CourseTime, error) {
	args := m.Called(ctx, id)
	ct, _ := args.Get(0).(*model.CourseTime)
	return ct, args.Error(1)
}

type mockJoins struct{ mock.Mock }

func (m *mockJoins) ListByTime(ctx context.Context, timeID uint64) ([]model.JoinPerson, error) {
	args := m.Called(ctx, timeID)
	list, _ := args.Get(0).([]model.JoinPerson)
	return list, args.Error(1)
}

func (m *mockJoins) GetByID(ctx context.Context, id uint64) (*model.JoinPerson, error) {
	args := m.Called(ctx, id)
	jp, _ := args.Get(0).(*model.JoinPerson)
	return jp, args.Error(1)
}

func (m *mockJoins) Update(ctx context.Context, id uint64, u repository.JoinPersonUpdate) (*model.JoinPerson, error) {
	args := m.Called(ctx, id, u)
	jp, _ := args.Get(0).(*model.JoinPerson)
	return jp, args.Error(1)
}

func (m *mockJoins) UpdateStatus(ctx context.Context, id uint64, from, to model.JoinStatus, reason, account *string) (*model.JoinPerson, error) {
	args := m.Called(ctx, id, from, to, reason, account)
	jp, _ := args.Get(0).(*model.JoinPerson)
	return jp, args.Error(1)
}

func (m *mockJoins) ListByStatuses(ctx context.Context, st []model.JoinStatus, managerID *uint64) ([]repository.DepositEntry, error) {
	args := m.Called(ctx, st, managerID)
	list, _ := args.Get(0).([]repository.DepositEntry)
	return list, args.Error(1)
}

type fakeBlackList map[string]bool

func (f fakeBlackList) ExistsByPhone(_ context.Context, phone string) (bool, error) {
	return f[phone], nil
}

type fakeSessions struct {
	users       map[uint64]*model.User
	invalidated []uint64
}

func (f *fakeSessions) Get(_ context.Context, id uint64) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeSessions) Invalidate(id uint64) { f.invalidated = append(f.invalidated, id) }

// ----- helpers -----

// serve routes one request through a fresh echo with the caller identity
// already set, the way JWTAuth leaves it.
func serve(t *testing.T, method, path, route string, body string, uid uint64, role string, h echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	e.Add(method, route, h, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid != 0 {
				c.Set("user_id", uid)
				c.Set("role", role)
			}
			return next(c)
		}
	})
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func newJoinHandler() (*JoinPersonHandler, *mockTracker, *mockJoins, *fakeSessions) {
	tr := &mockTracker{}
	js := &mockJoins{}
	ss := &fakeSessions{users: map[uint64]*model.User{
		7: {ID: 7, Type: model.UserManager, Name: "김매니저", ChargeRate: decimal.RequireFromString("0.1")},
	}}
	h := NewJoinPersonHandler(js, tr, fakeBlackList{"01011112222": true}, ss, zap.NewNop())
	return h, tr, js, ss
}

// ----- join persons -----

func TestAddJoinDefaultsManagerAndRate(t *testing.T) {
	h, tr, _, _ := newJoinHandler()
	ct := &model.CourseTime{ID: 3, JoinNum: 2, Status: model.CourseTimeOpen}
	tr.On("AddJoin", mock.Anything, uint64(3), mock.MatchedBy(func(d model.JoinPersonDraft) bool {
		return d.ManagerID != nil && *d.ManagerID == 7 &&
			d.ChargeRate != nil && d.ChargeRate.Equal(decimal.RequireFromString("0.1")) &&
			d.PhoneNumber == "01011112222" && d.JoinType == model.JoinMM
	})).Return(&occupancy.AddResult{JoinPerson: &model.JoinPerson{ID: 11, TimeID: 3}, CourseTime: ct}, nil)

	rec := serve(t, http.MethodPost, "/v1/course-times/3/join-persons", "/v1/course-times/:id/join-persons",
		`{"name":"홍길동","phone_number":"010-1111-2222","join_type":"MM"}`, 7, "MANAGER", h.Add)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["blacklisted"])
	assert.EqualValues(t, 2, body["course_time"].(map[string]any)["join_num"])
	tr.AssertExpectations(t)
}

func TestAddJoinCapacityExceeded(t *testing.T) {
	h, tr, _, _ := newJoinHandler()
	tr.On("AddJoin", mock.Anything, uint64(3), mock.Anything).Return(nil,
		&occupancy.CapacityError{TimeID: 3, JoinType: model.JoinMMM, Current: 2, Adding: 3, Max: 4})

	rec := serve(t, http.MethodPost, "/v1/course-times/3/join-persons", "/v1/course-times/:id/join-persons",
		`{"name":"a","phone_number":"01099998888","join_type":"남남남"}`, 7, "MANAGER", h.Add)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "capacity exceeded", body["error"])
	assert.EqualValues(t, 2, body["current"])
	assert.EqualValues(t, 3, body["adding"])
	assert.EqualValues(t, 4, body["max"])
}

func TestAddJoinPartialWrite(t *testing.T) {
	h, tr, _, _ := newJoinHandler()
	tr.On("AddJoin", mock.Anything, uint64(3), mock.Anything).Return(
		&occupancy.AddResult{JoinPerson: &model.JoinPerson{ID: 11}},
		&occupancy.PartialWriteError{Op: "add join", TimeID: 3, JoinPersonID: 11, Err: errors.New("boom")})

	rec := serve(t, http.MethodPost, "/v1/course-times/3/join-persons", "/v1/course-times/:id/join-persons",
		`{"name":"a","phone_number":"01099998888","join_type":"M"}`, 7, "MANAGER", h.Add)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["reconcile_required"])
	assert.EqualValues(t, 11, body["join_person_id"])
}

func TestAddJoinRejectsBadInput(t *testing.T) {
	h, tr, _, _ := newJoinHandler()

	rec := serve(t, http.MethodPost, "/v1/course-times/3/join-persons", "/v1/course-times/:id/join-persons",
		`{"name":"a","phone_number":"010","join_type":"XYZ"}`, 7, "MANAGER", h.Add)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodPost, "/v1/course-times/3/join-persons", "/v1/course-times/:id/join-persons",
		`{"phone_number":"010","join_type":"M"}`, 7, "MANAGER", h.Add)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "required", decode(t, rec)["fields"].(map[string]any)["name"])

	tr.AssertNotCalled(t, "AddJoin", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveJoinNotFound(t *testing.T) {
	h, tr, _, _ := newJoinHandler()
	tr.On("RemoveJoin", mock.Anything, uint64(9)).Return(nil, repository.ErrJoinPersonNotFound)

	rec := serve(t, http.MethodDelete, "/v1/join-persons/9", "/v1/join-persons/:id", "", 7, "MANAGER", h.Remove)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateJoinTypeGoesThroughTracker(t *testing.T) {
	h, tr, js, _ := newJoinHandler()
	tr.On("ChangeJoinType", mock.Anything, uint64(5), model.JoinFF).Return(&model.CourseTime{ID: 3, JoinNum: 4}, nil)
	js.On("Update", mock.Anything, uint64(5), repository.JoinPersonUpdate{}).Return(&model.JoinPerson{ID: 5, JoinType: model.JoinFF}, nil)

	rec := serve(t, http.MethodPatch, "/v1/join-persons/5", "/v1/join-persons/:id", `{"join_type":"FF"}`, 7, "MANAGER", h.Update)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, decode(t, rec), "course_time")
	tr.AssertExpectations(t)
	js.AssertExpectations(t)
}

func TestSetStatusTransitions(t *testing.T) {
	h, _, js, _ := newJoinHandler()
	js.On("GetByID", mock.Anything, uint64(5)).Return(&model.JoinPerson{ID: 5, Status: model.JoinConfirmed}, nil)

	rec := serve(t, http.MethodPost, "/v1/join-persons/5/status", "/v1/join-persons/:id/status",
		`{"status":"REFUNDED"}`, 7, "MANAGER", h.SetStatus)
	assert.Equal(t, http.StatusConflict, rec.Code)
	js.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	reason := "일정 변경"
	js.On("UpdateStatus", mock.Anything, uint64(5), model.JoinConfirmed, model.JoinRefundPending, &reason, (*string)(nil)).
		Return(&model.JoinPerson{ID: 5, Status: model.JoinRefundPending, RefundReason: &reason}, nil)
	rec = serve(t, http.MethodPost, "/v1/join-persons/5/status", "/v1/join-persons/:id/status",
		`{"status":"환불확인중","refund_reason":"일정 변경"}`, 7, "MANAGER", h.SetStatus)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(model.JoinRefundPending), decode(t, rec)["status"])
}

func TestDepositsScopedToManager(t *testing.T) {
	h, _, js, _ := newJoinHandler()
	mine := uint64(7)
	js.On("ListByStatuses", mock.Anything, []model.JoinStatus{model.JoinRefundPending}, &mine).
		Return([]repository.DepositEntry{}, nil).Once()
	js.On("ListByStatuses", mock.Anything, []model.JoinStatus{model.JoinPendingConfirm, model.JoinConfirming}, (*uint64)(nil)).
		Return([]repository.DepositEntry{}, nil).Once()

	rec := serve(t, http.MethodGet, "/v1/deposits?board=refunds", "/v1/deposits", "", 7, "MANAGER", h.Deposits)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(t, http.MethodGet, "/v1/deposits", "/v1/deposits", "", 1, "ADMIN", h.Deposits)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = serve(t, http.MethodGet, "/v1/deposits?board=nope", "/v1/deposits", "", 1, "ADMIN", h.Deposits)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	js.AssertExpectations(t)
}

// ----- course times -----

type stubTimes struct {
	courseTimeStore
	updated repository.CourseTimeUpdate
	ct      *model.CourseTime
}

func (s *stubTimes) Update(_ context.Context, _ uint64, u repository.CourseTimeUpdate) (*model.CourseTime, error) {
	s.updated = u
	return s.ct, nil
}

func TestCourseTimeUpdate(t *testing.T) {
	tr := &mockTracker{}
	st := &stubTimes{ct: &model.CourseTime{ID: 3, Status: model.CourseTimeOpen, JoinNum: 4}}
	h := NewCourseTimeHandler(st, tr, zap.NewNop())

	rec := serve(t, http.MethodPatch, "/v1/course-times/3", "/v1/course-times/:id", `{"join_num":1}`, 7, "MANAGER", h.Update)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, http.MethodPatch, "/v1/course-times/3", "/v1/course-times/:id", `{"status":"판매중"}`, 7, "MANAGER", h.Update)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// leaving 타업체마감 rederives the status from the seats
	tr.On("RecomputeOccupancy", mock.Anything, uint64(3)).
		Return(&model.CourseTime{ID: 3, Status: model.CourseTimeSoldOut, JoinNum: 4}, nil).Once()
	rec = serve(t, http.MethodPatch, "/v1/course-times/3", "/v1/course-times/:id", `{"status":"미판매","memo":"재오픈"}`, 7, "MANAGER", h.Update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(model.CourseTimeSoldOut), decode(t, rec)["status"])
	require.NotNil(t, st.updated.Memo)
	assert.Equal(t, "재오픈", *st.updated.Memo)

	// edits without a status leave occupancy alone
	rec = serve(t, http.MethodPatch, "/v1/course-times/3", "/v1/course-times/:id", `{"green_fee":150000}`, 7, "MANAGER", h.Update)
	require.Equal(t, http.StatusOK, rec.Code)
	tr.AssertNumberOfCalls(t, "RecomputeOccupancy", 1)
}

type deleteTimes struct {
	courseTimeStore
	ct      *model.CourseTime
	deleted bool
}

func (s *deleteTimes) GetByID(context.Context, uint64) (*model.CourseTime, error) { return s.ct, nil }
func (s *deleteTimes) Delete(context.Context, uint64) error                      { s.deleted = true; return nil }

func TestCourseTimeDeleteRequiresAuthorOrAdmin(t *testing.T) {
	author := uint64(7)
	st := &deleteTimes{ct: &model.CourseTime{ID: 3, AuthorID: &author}}
	h := NewCourseTimeHandler(st, &mockTracker{}, zap.NewNop())

	rec := serve(t, http.MethodDelete, "/v1/course-times/3", "/v1/course-times/:id", "", 8, "MANAGER", h.Delete)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, st.deleted)

	rec = serve(t, http.MethodDelete, "/v1/course-times/3", "/v1/course-times/:id", "", 1, "ADMIN", h.Delete)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, st.deleted)
}

// ----- performance -----

type stubReports struct {
	r         performance.Range
	managerID *uint64
}

func (s *stubReports) Build(_ context.Context, r performance.Range, managerID *uint64) (*performance.Report, error) {
	s.r, s.managerID = r, managerID
	return &performance.Report{StartDate: r.Start.Format("2006-01-02"), EndDate: r.End.Format("2006-01-02")}, nil
}

func TestPerformanceMine(t *testing.T) {
	rep := &stubReports{}
	h := NewPerformanceHandler(rep, zap.NewNop())
	h.Now = func() time.Time { return time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC) }

	rec := serve(t, http.MethodGet, "/v1/performance/me", "/v1/performance/me", "", 7, "MANAGER", h.Mine)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, rep.managerID)
	assert.Equal(t, uint64(7), *rep.managerID)
	assert.Equal(t, "2024-04-20", decode(t, rec)["start_date"])

	rec = serve(t, http.MethodGet, "/v1/admin/performance?start_date=2024-05-10&end_date=2024-05-01",
		"/v1/admin/performance", "", 1, "ADMIN", h.All)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
