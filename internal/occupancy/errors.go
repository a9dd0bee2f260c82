package occupancy

import (
	"errors"
	"fmt"

	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/repository"
)

var (
	// ErrCapacityExceeded matches every *CapacityError.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrNotFound matches missing course times and join persons.
	ErrNotFound = repository.ErrNotFound
	// ErrPartialWrite matches every *PartialWriteError.
	ErrPartialWrite = errors.New("partial write")
)

// CapacityError reports a join that would push a course time past
// Capacity. Nothing has been persisted when it is returned.
type CapacityError struct {
	TimeID   uint64
	JoinType model.JoinType
	Current  int
	Adding   int
	Max      int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("course time %d: adding %s (%d seats) to %d/%d occupied seats exceeds capacity",
		e.TimeID, e.JoinType, e.Adding, e.Current, e.Max)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacityExceeded }

// PartialWriteError reports that the join-person change was persisted but
// the course-time occupancy write failed. The course time's join_num no
// longer matches its rows until RecomputeOccupancy succeeds for TimeID.
type PartialWriteError struct {
	Op           string
	TimeID       uint64
	JoinPersonID uint64
	Err          error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: join person %d written but course time %d occupancy update failed (reconcile required): %v",
		e.Op, e.JoinPersonID, e.TimeID, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

func (e *PartialWriteError) Is(target error) bool { return target == ErrPartialWrite }

// DataStoreError wraps any store failure that is not a not-found,
// capacity or partial-write condition.
type DataStoreError struct {
	Op  string
	Err error
}

func (e *DataStoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *DataStoreError) Unwrap() error { return e.Err }

// classify keeps not-found errors visible to errors.Is and wraps the rest
// as DataStoreError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var dse *DataStoreError
	if errors.Is(err, ErrNotFound) || errors.As(err, &dse) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &DataStoreError{Op: op, Err: err}
}
