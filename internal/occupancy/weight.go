// Package occupancy keeps a course time's cached seat count and sale
// status consistent with its join-person rows.
//
// The join-person rows are the ground truth. Every mutation recounts them
// before writing course_times.join_num, and RecomputeOccupancy can be run
// at any time to repair a diverged cache.
package occupancy

import "github.com/iliyamo/golf-intranet/internal/model"

// Capacity is the number of seats on a tee time.
const Capacity = 4

// SeatWeight returns how many seats a join of type t occupies. Unknown
// types count as a single seat.
func SeatWeight(t model.JoinType) int {
	switch t {
	case model.JoinTransfer:
		return 4
	case model.JoinMMM, model.JoinMMF, model.JoinMFF, model.JoinFFF:
		return 3
	case model.JoinMM, model.JoinFF, model.JoinMF:
		return 2
	case model.JoinM, model.JoinF:
		return 1
	default:
		return 1
	}
}

// Total sums the seat weights of the given join persons.
func Total(joins []model.JoinPerson) int {
	n := 0
	for _, jp := range joins {
		n += SeatWeight(jp.JoinType)
	}
	return n
}

// DeriveStatus returns the sale status for a course time holding total
// seats. A course time closed by another vendor stays closed; only an
// explicit status update reopens it.
func DeriveStatus(current model.CourseTimeStatus, total int) model.CourseTimeStatus {
	if current == model.CourseTimeClosedByPeer {
		return current
	}
	if total >= Capacity {
		return model.CourseTimeSoldOut
	}
	return model.CourseTimeOpen
}
