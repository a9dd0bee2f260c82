package occupancy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/repository"
)

// JoinPersonStore is the subset of join-person persistence the tracker
// needs. Get and Delete return an error matching ErrNotFound when the row
// is absent; Insert does so when the parent course time is gone.
type JoinPersonStore interface {
	ListByTime(ctx context.Context, timeID uint64) ([]model.JoinPerson, error)
	GetByID(ctx context.Context, id uint64) (*model.JoinPerson, error)
	Insert(ctx context.Context, jp *model.JoinPerson) error
	Delete(ctx context.Context, id uint64) error
	UpdateJoinType(ctx context.Context, id uint64, t model.JoinType) error
}

// CourseTimeStore is the subset of course-time persistence the tracker
// needs. UpdateOccupancy writes only when the stored version equals
// version and returns repository.ErrVersionConflict otherwise.
type CourseTimeStore interface {
	GetByID(ctx context.Context, id uint64) (*model.CourseTime, error)
	UpdateOccupancy(ctx context.Context, id uint64, joinNum int, status model.CourseTimeStatus, version uint32) (*model.CourseTime, error)
}

// Locker serializes occupancy mutations for one course time across
// processes. The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Notifier receives occupancy events. Implementations must not block the
// caller for long and handle their own delivery errors.
type Notifier interface {
	OccupancyChanged(ctx context.Context, ct *model.CourseTime, op string)
	ReconcileRequested(ctx context.Context, timeID uint64, cause error)
}

type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

type nopNotifier struct{}

func (nopNotifier) OccupancyChanged(context.Context, *model.CourseTime, string) {}
func (nopNotifier) ReconcileRequested(context.Context, uint64, error)           {}

// DefaultUpdateAttempts bounds how many times a recount is rewritten when
// the conditional course-time update loses to a concurrent writer.
const DefaultUpdateAttempts = 3

// Tracker maintains course_times.join_num and status as joins are added
// and removed.
type Tracker struct {
	joins    JoinPersonStore
	times    CourseTimeStore
	locker   Locker
	notifier Notifier
	log      *zap.Logger
	attempts int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLocker sets the per-course-time lock.
func WithLocker(l Locker) Option { return func(t *Tracker) { t.locker = l } }

// WithNotifier sets the event sink.
func WithNotifier(n Notifier) Option { return func(t *Tracker) { t.notifier = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(t *Tracker) { t.log = l } }

// WithUpdateAttempts overrides DefaultUpdateAttempts.
func WithUpdateAttempts(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.attempts = n
		}
	}
}

// NewTracker builds a tracker over the given stores.
func NewTracker(joins JoinPersonStore, times CourseTimeStore, opts ...Option) *Tracker {
	if joins == nil || times == nil {
		panic("nil store passed to NewTracker")
	}
	t := &Tracker{
		joins:    joins,
		times:    times,
		locker:   nopLocker{},
		notifier: nopNotifier{},
		log:      zap.NewNop(),
		attempts: DefaultUpdateAttempts,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// AddResult is returned by AddJoin.
type AddResult struct {
	JoinPerson *model.JoinPerson `json:"join_person"`
	CourseTime *model.CourseTime `json:"course_time"`
}

func lockKey(timeID uint64) string { return fmt.Sprintf("occupancy:lock:%d", timeID) }

// AddJoin adds a join person to the course time and rewrites its
// occupancy. It fails with a *CapacityError, without writing, when the
// join does not fit. If the join person is stored but the course-time
// write fails, a *PartialWriteError is returned together with the
// created join person.
func (t *Tracker) AddJoin(ctx context.Context, timeID uint64, draft model.JoinPersonDraft) (*AddResult, error) {
	const op = "add join"
	unlock, err := t.locker.Lock(ctx, lockKey(timeID))
	if err != nil {
		return nil, classify(op, err)
	}
	defer unlock()

	ct, err := t.times.GetByID(ctx, timeID)
	if err != nil {
		return nil, classify(op, err)
	}
	rows, err := t.joins.ListByTime(ctx, timeID)
	if err != nil {
		return nil, classify(op, err)
	}
	current := Total(rows)
	adding := SeatWeight(draft.JoinType)
	if current+adding > Capacity {
		return nil, &CapacityError{TimeID: timeID, JoinType: draft.JoinType, Current: current, Adding: adding, Max: Capacity}
	}

	jp := newJoinPerson(ct, draft)
	if err := t.joins.Insert(ctx, jp); err != nil {
		return nil, classify(op, err)
	}

	// A concurrent writer without the lock may have inserted between our
	// read and insert. Recount and undo our own row if the slot overflowed.
	rows, err = t.joins.ListByTime(ctx, timeID)
	if err != nil {
		return &AddResult{JoinPerson: jp}, t.partial(ctx, op, timeID, jp.ID, err)
	}
	if total := Total(rows); total > Capacity {
		if derr := t.joins.Delete(ctx, jp.ID); derr != nil && !errors.Is(derr, ErrNotFound) {
			return &AddResult{JoinPerson: jp}, t.partial(ctx, op, timeID, jp.ID, derr)
		}
		t.log.Warn("occupancy: concurrent overbooking rolled back",
			zap.Uint64("time_id", timeID), zap.Uint64("join_person_id", jp.ID), zap.Int("observed_total", total))
		if _, serr := t.sync(ctx, timeID); serr != nil {
			return nil, t.partial(ctx, op, timeID, jp.ID, serr)
		}
		return nil, &CapacityError{TimeID: timeID, JoinType: draft.JoinType, Current: total - adding, Adding: adding, Max: Capacity}
	}

	updated, err := t.sync(ctx, timeID)
	if err != nil {
		return &AddResult{JoinPerson: jp}, t.partial(ctx, op, timeID, jp.ID, err)
	}
	t.notifier.OccupancyChanged(ctx, updated, op)
	return &AddResult{JoinPerson: jp, CourseTime: updated}, nil
}

// RemoveJoin deletes a join person and rewrites its course time's
// occupancy from the remaining rows.
func (t *Tracker) RemoveJoin(ctx context.Context, joinPersonID uint64) (*model.CourseTime, error) {
	const op = "remove join"
	jp, err := t.joins.GetByID(ctx, joinPersonID)
	if err != nil {
		return nil, classify(op, err)
	}
	unlock, err := t.locker.Lock(ctx, lockKey(jp.TimeID))
	if err != nil {
		return nil, classify(op, err)
	}
	defer unlock()

	if _, err := t.times.GetByID(ctx, jp.TimeID); err != nil {
		return nil, classify(op, err)
	}
	if err := t.joins.Delete(ctx, jp.ID); err != nil {
		return nil, classify(op, err)
	}
	updated, err := t.sync(ctx, jp.TimeID)
	if err != nil {
		return nil, t.partial(ctx, op, jp.TimeID, jp.ID, err)
	}
	t.notifier.OccupancyChanged(ctx, updated, op)
	return updated, nil
}

// ChangeJoinType changes the composition of an existing join and
// rewrites the course time's occupancy. The new weight is checked against
// capacity with the join's current weight excluded.
func (t *Tracker) ChangeJoinType(ctx context.Context, joinPersonID uint64, next model.JoinType) (*model.CourseTime, error) {
	const op = "change join type"
	jp, err := t.joins.GetByID(ctx, joinPersonID)
	if err != nil {
		return nil, classify(op, err)
	}
	unlock, err := t.locker.Lock(ctx, lockKey(jp.TimeID))
	if err != nil {
		return nil, classify(op, err)
	}
	defer unlock()

	if _, err := t.times.GetByID(ctx, jp.TimeID); err != nil {
		return nil, classify(op, err)
	}
	rows, err := t.joins.ListByTime(ctx, jp.TimeID)
	if err != nil {
		return nil, classify(op, err)
	}
	others := 0
	for _, r := range rows {
		if r.ID != jp.ID {
			others += SeatWeight(r.JoinType)
		}
	}
	if w := SeatWeight(next); others+w > Capacity {
		return nil, &CapacityError{TimeID: jp.TimeID, JoinType: next, Current: others, Adding: w, Max: Capacity}
	}
	if err := t.joins.UpdateJoinType(ctx, jp.ID, next); err != nil {
		return nil, classify(op, err)
	}
	updated, err := t.sync(ctx, jp.TimeID)
	if err != nil {
		return nil, t.partial(ctx, op, jp.TimeID, jp.ID, err)
	}
	t.notifier.OccupancyChanged(ctx, updated, op)
	return updated, nil
}

// RecomputeOccupancy recounts the course time's join persons and rewrites
// join_num and status to match. It is idempotent.
func (t *Tracker) RecomputeOccupancy(ctx context.Context, timeID uint64) (*model.CourseTime, error) {
	const op = "recompute occupancy"
	unlock, err := t.locker.Lock(ctx, lockKey(timeID))
	if err != nil {
		return nil, classify(op, err)
	}
	defer unlock()

	before, err := t.times.GetByID(ctx, timeID)
	if err != nil {
		return nil, classify(op, err)
	}
	updated, err := t.sync(ctx, timeID)
	if err != nil {
		return nil, classify(op, err)
	}
	if before.JoinNum != updated.JoinNum || before.Status != updated.Status {
		t.log.Info("occupancy: course time repaired",
			zap.Uint64("time_id", timeID),
			zap.Int("join_num_before", before.JoinNum), zap.Int("join_num_after", updated.JoinNum),
			zap.String("status_before", string(before.Status)), zap.String("status_after", string(updated.Status)))
		t.notifier.OccupancyChanged(ctx, updated, op)
	}
	return updated, nil
}

// sync recounts the rows of timeID and writes join_num/status with a
// version-checked update. A lost race is resolved by reading both again.
func (t *Tracker) sync(ctx context.Context, timeID uint64) (*model.CourseTime, error) {
	var lastErr error
	for attempt := 0; attempt < t.attempts; attempt++ {
		ct, err := t.times.GetByID(ctx, timeID)
		if err != nil {
			return nil, err
		}
		rows, err := t.joins.ListByTime(ctx, timeID)
		if err != nil {
			return nil, err
		}
		total := Total(rows)
		status := DeriveStatus(ct.Status, total)
		if ct.JoinNum == total && ct.Status == status {
			return ct, nil
		}
		updated, err := t.times.UpdateOccupancy(ctx, timeID, total, status, ct.Version)
		if errors.Is(err, repository.ErrVersionConflict) {
			lastErr = err
			t.log.Debug("occupancy: version conflict, recounting",
				zap.Uint64("time_id", timeID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("course time %d: %d attempts: %w", timeID, t.attempts, lastErr)
}

// partial logs a divergence between join-person rows and the course-time
// cache and asks for reconciliation.
func (t *Tracker) partial(ctx context.Context, op string, timeID, joinPersonID uint64, cause error) error {
	perr := &PartialWriteError{Op: op, TimeID: timeID, JoinPersonID: joinPersonID, Err: cause}
	t.log.Error("occupancy: partial write",
		zap.String("op", op),
		zap.Uint64("time_id", timeID),
		zap.Uint64("join_person_id", joinPersonID),
		zap.Bool("reconcile_required", true),
		zap.Error(cause))
	t.notifier.ReconcileRequested(ctx, timeID, perr)
	return perr
}

func newJoinPerson(ct *model.CourseTime, d model.JoinPersonDraft) *model.JoinPerson {
	jp := &model.JoinPerson{
		TimeID:      ct.ID,
		ManagerID:   d.ManagerID,
		Name:        d.Name,
		PhoneNumber: model.NormalizePhone(d.PhoneNumber),
		JoinType:    d.JoinType,
		GreenFee:    ct.GreenFee,
		ChargeFee:   ct.ChargeFee,
		Status:      model.JoinPendingConfirm,
	}
	if d.GreenFee != nil {
		jp.GreenFee = *d.GreenFee
	}
	if d.ChargeFee != nil {
		jp.ChargeFee = *d.ChargeFee
	}
	if d.ChargeRate != nil {
		jp.ChargeRate = *d.ChargeRate
	}
	return jp
}
