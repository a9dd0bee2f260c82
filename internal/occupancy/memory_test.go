package occupancy_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/repository"
)

// memStore is an in-memory pair of join-person and course-time stores
// sharing one mutex, so a course-time delete can cascade.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	joins  map[uint64]model.JoinPerson
	times  map[uint64]model.CourseTime

	failUpdate  error
	failList    error
	updateCalls int
	// beforeUpdate runs once, unlocked, before the next UpdateOccupancy.
	beforeUpdate func()
	// afterInsert runs once, unlocked, after the next successful Insert.
	afterInsert func()
}

func newMemStore() *memStore {
	return &memStore{joins: map[uint64]model.JoinPerson{}, times: map[uint64]model.CourseTime{}}
}

func (s *memStore) addTime(ct model.CourseTime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ct.Status == "" {
		ct.Status = model.CourseTimeOpen
	}
	s.times[ct.ID] = ct
}

func (s *memStore) seed(timeID uint64, types ...model.JoinType) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, 0, len(types))
	for _, t := range types {
		s.nextID++
		s.joins[s.nextID] = model.JoinPerson{ID: s.nextID, TimeID: timeID, JoinType: t, Status: model.JoinPendingConfirm}
		ids = append(ids, s.nextID)
	}
	return ids
}

func (s *memStore) time(id uint64) model.CourseTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.times[id]
}

// joinStore adapts memStore to occupancy.JoinPersonStore.
type joinStore struct{ *memStore }

func (s joinStore) ListByTime(_ context.Context, timeID uint64) ([]model.JoinPerson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	var out []model.JoinPerson
	for _, jp := range s.joins {
		if jp.TimeID == timeID {
			out = append(out, jp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s joinStore) GetByID(_ context.Context, id uint64) (*model.JoinPerson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jp, ok := s.joins[id]
	if !ok {
		return nil, repository.ErrJoinPersonNotFound
	}
	return &jp, nil
}

func (s joinStore) Insert(_ context.Context, jp *model.JoinPerson) error {
	s.mu.Lock()
	if _, ok := s.times[jp.TimeID]; !ok {
		s.mu.Unlock()
		return repository.ErrCourseTimeNotFound
	}
	s.nextID++
	jp.ID = s.nextID
	s.joins[jp.ID] = *jp
	hook := s.afterInsert
	s.afterInsert = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (s joinStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.joins[id]; !ok {
		return repository.ErrJoinPersonNotFound
	}
	delete(s.joins, id)
	return nil
}

func (s joinStore) UpdateJoinType(_ context.Context, id uint64, t model.JoinType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jp, ok := s.joins[id]
	if !ok {
		return repository.ErrJoinPersonNotFound
	}
	jp.JoinType = t
	s.joins[id] = jp
	return nil
}

// timeStore adapts memStore to occupancy.CourseTimeStore.
type timeStore struct{ *memStore }

func (s timeStore) GetByID(_ context.Context, id uint64) (*model.CourseTime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.times[id]
	if !ok {
		return nil, repository.ErrCourseTimeNotFound
	}
	return &ct, nil
}

func (s timeStore) UpdateOccupancy(_ context.Context, id uint64, joinNum int, status model.CourseTimeStatus, version uint32) (*model.CourseTime, error) {
	if hook := s.takeHook(); hook != nil {
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.failUpdate != nil {
		return nil, s.failUpdate
	}
	ct, ok := s.times[id]
	if !ok {
		return nil, repository.ErrCourseTimeNotFound
	}
	if ct.Version != version {
		return nil, repository.ErrVersionConflict
	}
	ct.JoinNum = joinNum
	ct.Status = status
	ct.Version++
	s.times[id] = ct
	return &ct, nil
}

func (s *memStore) takeHook() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.beforeUpdate
	s.beforeUpdate = nil
	return h
}

// bumpVersion simulates another writer touching the course time.
func (s *memStore) bumpVersion(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct := s.times[id]
	ct.Version++
	s.times[id] = ct
}

var errBoom = errors.New("boom")
