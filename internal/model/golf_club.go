package model

import (
    "fmt"
    "time"
)

// Region groups golf clubs geographically.
type Region string

const (
    RegionGyeonggiNorth Region = "경기북부"
    RegionGyeonggiSouth Region = "경기남부"
    RegionChungcheong   Region = "충청도"
    RegionGyeongnam     Region = "경상남도"
    RegionGangwon       Region = "강원도"
)

// ParseRegion validates a region label.
func ParseRegion(s string) (Region, error) {
    switch Region(s) {
    case RegionGyeonggiNorth, RegionGyeonggiSouth, RegionChungcheong, RegionGyeongnam, RegionGangwon:
        return Region(s), nil
    }
    return "", fmt.Errorf("unknown region %q", s)
}

// ReservableCountType controls how reservable_count_1/2 are interpreted.
type ReservableCountType string

const (
    ReservableTotal  ReservableCountType = "TOTAL"
    ReservableDayEnd ReservableCountType = "DAYEND"
)

// Default cancellation deadline applied to newly created golf clubs:
// one day before, 18:00.
const (
    DefaultCancelDeadlineDate = 1
    DefaultCancelDeadlineHour = 18
)

// GolfClub is a golf club that owns one or more courses.
type GolfClub struct {
    ID                  uint64              `json:"id"`
    Region              Region              `json:"region"`
    Name                string              `json:"name"`
    CancelDeadlineDate  int                 `json:"cancel_deadline_date"`
    CancelDeadlineHour  int                 `json:"cancel_deadline_hour"`
    ReservableCountType ReservableCountType `json:"reservable_count_type"`
    ReservableCount1    int                 `json:"reservable_count_1"`
    ReservableCount2    int                 `json:"reservable_count_2"`
    Hidden              bool                `json:"hidden"`
    CreatedAt           time.Time           `json:"created_at"`
    UpdatedAt           time.Time           `json:"updated_at"`
    DeletedAt           *time.Time          `json:"deleted_at,omitempty"`
}

// Course is a named course of a golf club.  GolfClubName and Region are
// denormalized from the club for listing.
type Course struct {
    ID           uint64     `json:"id"`
    ClubID       *uint64    `json:"club_id"`
    Region       Region     `json:"region"`
    GolfClubName string     `json:"golf_club_name"`
    CourseName   string     `json:"course_name"`
    CreatedAt    time.Time  `json:"created_at"`
    UpdatedAt    time.Time  `json:"updated_at"`
    DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// SiteID is a booking-site account used to reserve tee times.
type SiteID struct {
    ID         uint64     `json:"id"`
    SiteID     string     `json:"site_id"`
    Name       string     `json:"name"`
    GolfClubID *uint64    `json:"golf_club_id"`
    Disabled   bool       `json:"disabled"`
    Hidden     bool       `json:"hidden"`
    CreatedAt  time.Time  `json:"created_at"`
    UpdatedAt  time.Time  `json:"updated_at"`
    DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// BlackList records a customer the managers should not sell to.
type BlackList struct {
    ID          uint64     `json:"id"`
    AuthorID    *uint64    `json:"author_id"`
    Name        string     `json:"name"`
    PhoneNumber string     `json:"phone_number"`
    Reason      string     `json:"reason"`
    CreatedAt   time.Time  `json:"created_at"`
    UpdatedAt   time.Time  `json:"updated_at"`
    DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}
