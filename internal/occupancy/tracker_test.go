package occupancy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/occupancy"
	"github.com/iliyamo/golf-intranet/internal/repository"
)

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) OccupancyChanged(ctx context.Context, ct *model.CourseTime, op string) {
	m.Called(ctx, ct, op)
}

func (m *mockNotifier) ReconcileRequested(ctx context.Context, timeID uint64, cause error) {
	m.Called(ctx, timeID, cause)
}

func newTracker(s *memStore, opts ...occupancy.Option) *occupancy.Tracker {
	return occupancy.NewTracker(joinStore{s}, timeStore{s}, opts...)
}

func draft(t model.JoinType) model.JoinPersonDraft {
	return model.JoinPersonDraft{Name: "홍길동", PhoneNumber: "010-1234-5678", JoinType: t}
}

func assertInvariant(t *testing.T, s *memStore, timeID uint64) {
	t.Helper()
	rows, err := joinStore{s}.ListByTime(context.Background(), timeID)
	require.NoError(t, err)
	assert.Equal(t, occupancy.Total(rows), s.time(timeID).JoinNum)
}

func TestSeatWeight(t *testing.T) {
	cases := map[model.JoinType]int{
		model.JoinTransfer: 4,
		model.JoinMMM:      3,
		model.JoinMMF:      3,
		model.JoinMFF:      3,
		model.JoinFFF:      3,
		model.JoinMM:       2,
		model.JoinFF:       2,
		model.JoinMF:       2,
		model.JoinM:        1,
		model.JoinF:        1,
		"혼성5인":             1,
		"":                 1,
	}
	for jt, want := range cases {
		assert.Equal(t, want, occupancy.SeatWeight(jt), "join type %q", jt)
	}
}

func TestDeriveStatus(t *testing.T) {
	for total := 0; total <= 5; total++ {
		want := model.CourseTimeOpen
		if total >= 4 {
			want = model.CourseTimeSoldOut
		}
		assert.Equal(t, want, occupancy.DeriveStatus(model.CourseTimeOpen, total))
		assert.Equal(t, want, occupancy.DeriveStatus(model.CourseTimeSoldOut, total))
		assert.Equal(t, model.CourseTimeClosedByPeer, occupancy.DeriveStatus(model.CourseTimeClosedByPeer, total))
	}
}

func TestAddJoin_EmptyCourseTime(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1, GreenFee: 150000, ChargeFee: 10000})
	tr := newTracker(s)

	res, err := tr.AddJoin(context.Background(), 1, draft(model.JoinM))
	require.NoError(t, err)
	assert.Equal(t, 1, res.CourseTime.JoinNum)
	assert.Equal(t, model.CourseTimeOpen, res.CourseTime.Status)
	assert.Equal(t, model.JoinPendingConfirm, res.JoinPerson.Status)
	assert.Equal(t, "01012345678", res.JoinPerson.PhoneNumber)
	assert.Equal(t, int64(150000), res.JoinPerson.GreenFee)
	assert.Equal(t, int64(10000), res.JoinPerson.ChargeFee)
	assertInvariant(t, s, 1)
}

func TestAddJoin_DraftFeesOverrideCourseTime(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1, GreenFee: 150000, ChargeFee: 10000})
	tr := newTracker(s)

	green, charge := int64(120000), int64(0)
	rate := decimal.RequireFromString("0.3")
	d := draft(model.JoinMF)
	d.GreenFee, d.ChargeFee, d.ChargeRate = &green, &charge, &rate

	res, err := tr.AddJoin(context.Background(), 1, d)
	require.NoError(t, err)
	assert.Equal(t, green, res.JoinPerson.GreenFee)
	assert.Equal(t, charge, res.JoinPerson.ChargeFee)
	assert.True(t, rate.Equal(res.JoinPerson.ChargeRate))
}

func TestAddJoin_FillsThenRejects(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1, JoinNum: 3})
	s.seed(1, model.JoinMMM)
	tr := newTracker(s)

	res, err := tr.AddJoin(context.Background(), 1, draft(model.JoinM))
	require.NoError(t, err)
	assert.Equal(t, 4, res.CourseTime.JoinNum)
	assert.Equal(t, model.CourseTimeSoldOut, res.CourseTime.Status)

	before := s.time(1)
	_, err = tr.AddJoin(context.Background(), 1, draft(model.JoinF))
	require.Error(t, err)
	assert.ErrorIs(t, err, occupancy.ErrCapacityExceeded)

	var ce *occupancy.CapacityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint64(1), ce.TimeID)
	assert.Equal(t, model.JoinF, ce.JoinType)
	assert.Equal(t, 4, ce.Current)
	assert.Equal(t, 1, ce.Adding)
	assert.Equal(t, occupancy.Capacity, ce.Max)

	assert.Equal(t, before, s.time(1))
	rows, _ := joinStore{s}.ListByTime(context.Background(), 1)
	assert.Len(t, rows, 2)
}

func TestRemoveJoin_RecountsFromRows(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1, JoinNum: 4, Status: model.CourseTimeSoldOut})
	ids := s.seed(1, model.JoinMF, model.JoinFF)
	tr := newTracker(s)

	ct, err := tr.RemoveJoin(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, ct.JoinNum)
	assert.Equal(t, model.CourseTimeOpen, ct.Status)
	assertInvariant(t, s, 1)
}

func TestRemoveJoin_RepairsDriftedCache(t *testing.T) {
	s := newMemStore()
	// join_num understates the rows; subtracting would go negative.
	s.addTime(model.CourseTime{ID: 1, JoinNum: 1})
	ids := s.seed(1, model.JoinMM, model.JoinMM)
	tr := newTracker(s)

	ct, err := tr.RemoveJoin(context.Background(), ids[1])
	require.NoError(t, err)
	assert.Equal(t, 2, ct.JoinNum)
}

func TestAddJoin_TransferFillsAtOnce(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1})
	tr := newTracker(s)

	res, err := tr.AddJoin(context.Background(), 1, draft(model.JoinTransfer))
	require.NoError(t, err)
	assert.Equal(t, 4, res.CourseTime.JoinNum)
	assert.Equal(t, model.CourseTimeSoldOut, res.CourseTime.Status)
}

func TestAddJoin_PartialWriteThenRecompute(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1})
	s.seed(1, model.JoinM)
	n := &mockNotifier{}
	n.On("ReconcileRequested", mock.Anything, uint64(1), mock.Anything).Once()
	n.On("OccupancyChanged", mock.Anything, mock.Anything, "recompute occupancy").Once()
	tr := newTracker(s, occupancy.WithNotifier(n))

	s.failUpdate = errBoom
	res, err := tr.AddJoin(context.Background(), 1, draft(model.JoinMF))
	require.Error(t, err)
	assert.ErrorIs(t, err, occupancy.ErrPartialWrite)
	assert.ErrorIs(t, err, errBoom)

	var pe *occupancy.PartialWriteError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, uint64(1), pe.TimeID)
	require.NotNil(t, res)
	assert.Equal(t, res.JoinPerson.ID, pe.JoinPersonID)
	assert.Equal(t, 0, s.time(1).JoinNum)

	s.failUpdate = nil
	ct, err := tr.RecomputeOccupancy(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, ct.JoinNum)
	assertInvariant(t, s, 1)
	n.AssertExpectations(t)
}

func TestRecomputeOccupancy_Idempotent(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1, JoinNum: 0})
	s.seed(1, model.JoinMMF, model.JoinF)
	tr := newTracker(s)

	first, err := tr.RecomputeOccupancy(context.Background(), 1)
	require.NoError(t, err)
	calls := s.updateCalls
	second, err := tr.RecomputeOccupancy(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 4, first.JoinNum)
	assert.Equal(t, model.CourseTimeSoldOut, first.Status)
	assert.Equal(t, first.JoinNum, second.JoinNum)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, calls, s.updateCalls, "converged state should not be rewritten")
}

func TestClosedByPeerIsSticky(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1, Status: model.CourseTimeClosedByPeer})
	tr := newTracker(s)

	res, err := tr.AddJoin(context.Background(), 1, draft(model.JoinTransfer))
	require.NoError(t, err)
	assert.Equal(t, 4, res.CourseTime.JoinNum)
	assert.Equal(t, model.CourseTimeClosedByPeer, res.CourseTime.Status)

	ct, err := tr.RemoveJoin(context.Background(), res.JoinPerson.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, ct.JoinNum)
	assert.Equal(t, model.CourseTimeClosedByPeer, ct.Status)
}

func TestNotFound(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1})
	ids := s.seed(2, model.JoinM) // orphan: course time 2 is gone
	tr := newTracker(s)
	ctx := context.Background()

	_, err := tr.AddJoin(ctx, 99, draft(model.JoinM))
	assert.ErrorIs(t, err, occupancy.ErrNotFound)

	_, err = tr.RemoveJoin(ctx, 12345)
	assert.ErrorIs(t, err, occupancy.ErrNotFound)

	_, err = tr.RemoveJoin(ctx, ids[0])
	assert.ErrorIs(t, err, occupancy.ErrNotFound)

	_, err = tr.RecomputeOccupancy(ctx, 99)
	assert.ErrorIs(t, err, occupancy.ErrNotFound)
}

func TestDataStoreErrorIsWrapped(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1})
	s.failList = errBoom
	tr := newTracker(s)

	_, err := tr.AddJoin(context.Background(), 1, draft(model.JoinM))
	var dse *occupancy.DataStoreError
	require.ErrorAs(t, err, &dse)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, occupancy.ErrPartialWrite)
}

func TestVersionConflictRecounts(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1})
	s.seed(1, model.JoinM)
	s.beforeUpdate = func() { s.bumpVersion(1) }
	tr := newTracker(s)

	ct, err := tr.RecomputeOccupancy(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ct.JoinNum)
	assert.Equal(t, 2, s.updateCalls)
}

func TestVersionConflictGivesUp(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1})
	s.seed(1, model.JoinM)
	s.beforeUpdate = func() { s.bumpVersion(1) }
	tr := newTracker(s, occupancy.WithUpdateAttempts(1))

	_, err := tr.RecomputeOccupancy(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}

func TestConcurrentOverbookingIsRolledBack(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1, JoinNum: 2})
	s.seed(1, model.JoinMM)
	// another manager's insert lands between our capacity check and recount
	s.afterInsert = func() { s.seed(1, model.JoinFF) }
	tr := newTracker(s)

	res, err := tr.AddJoin(context.Background(), 1, draft(model.JoinM))
	assert.Nil(t, res)
	require.ErrorIs(t, err, occupancy.ErrCapacityExceeded)

	rows, _ := joinStore{s}.ListByTime(context.Background(), 1)
	assert.Len(t, rows, 2)
	assert.Equal(t, 4, s.time(1).JoinNum)
	assert.Equal(t, model.CourseTimeSoldOut, s.time(1).Status)
}

func TestChangeJoinType(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1, JoinNum: 3})
	ids := s.seed(1, model.JoinMM, model.JoinF)
	tr := newTracker(s)
	ctx := context.Background()

	ct, err := tr.ChangeJoinType(ctx, ids[0], model.JoinMMM)
	require.NoError(t, err)
	assert.Equal(t, 4, ct.JoinNum)
	assert.Equal(t, model.CourseTimeSoldOut, ct.Status)

	_, err = tr.ChangeJoinType(ctx, ids[1], model.JoinMM)
	assert.ErrorIs(t, err, occupancy.ErrCapacityExceeded)

	ct, err = tr.ChangeJoinType(ctx, ids[0], model.JoinM)
	require.NoError(t, err)
	assert.Equal(t, 2, ct.JoinNum)
	assert.Equal(t, model.CourseTimeOpen, ct.Status)
	assertInvariant(t, s, 1)
}

func TestInvariantHoldsAcrossSequence(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 1})
	tr := newTracker(s)
	ctx := context.Background()

	var added []uint64
	for _, jt := range []model.JoinType{model.JoinM, model.JoinMF, model.JoinF, model.JoinMM} {
		res, err := tr.AddJoin(ctx, 1, draft(jt))
		if errors.Is(err, occupancy.ErrCapacityExceeded) {
			continue
		}
		require.NoError(t, err)
		added = append(added, res.JoinPerson.ID)
		assertInvariant(t, s, 1)
		assert.LessOrEqual(t, s.time(1).JoinNum, occupancy.Capacity)
	}
	for _, id := range added {
		_, err := tr.RemoveJoin(ctx, id)
		require.NoError(t, err)
		assertInvariant(t, s, 1)
	}
	assert.Equal(t, 0, s.time(1).JoinNum)
	assert.Equal(t, model.CourseTimeOpen, s.time(1).Status)
}

type recordingLocker struct{ keys, released []string }

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	return func() { l.released = append(l.released, key) }, nil
}

func TestLockPerCourseTime(t *testing.T) {
	s := newMemStore()
	s.addTime(model.CourseTime{ID: 7})
	l := &recordingLocker{}
	tr := newTracker(s, occupancy.WithLocker(l))

	_, err := tr.AddJoin(context.Background(), 7, draft(model.JoinM))
	require.NoError(t, err)
	assert.Equal(t, []string{"occupancy:lock:7"}, l.keys)
	assert.Equal(t, l.keys, l.released)
}
