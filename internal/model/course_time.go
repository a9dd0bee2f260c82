package model

import (
    "encoding/json"
    "fmt"
    "time"
)

// CourseTimeStatus is the sale state of a course time.
type CourseTimeStatus string

const (
    CourseTimeOpen         CourseTimeStatus = "미판매"
    CourseTimeSoldOut      CourseTimeStatus = "판매완료"
    CourseTimeClosedByPeer CourseTimeStatus = "타업체마감"
)

// ParseCourseTimeStatus validates a status label.
func ParseCourseTimeStatus(s string) (CourseTimeStatus, error) {
    switch CourseTimeStatus(s) {
    case CourseTimeOpen, CourseTimeSoldOut, CourseTimeClosedByPeer:
        return CourseTimeStatus(s), nil
    }
    return "", fmt.Errorf("unknown course time status %q", s)
}

// UnmarshalJSON enforces that decoded statuses are known values.
func (s *CourseTimeStatus) UnmarshalJSON(b []byte) error {
    var raw string
    if err := json.Unmarshal(b, &raw); err != nil {
        return err
    }
    v, err := ParseCourseTimeStatus(raw)
    if err != nil {
        return err
    }
    *s = v
    return nil
}

// Requirements lists booking conditions attached to a course time.
type Requirements string

const (
    RequireNone           Requirements = "조건없음"
    RequireMembership     Requirements = "인회필"
    RequireDeposit        Requirements = "예변필"
    RequireMembershipBoth Requirements = "인회필/예변필"
)

// ParseRequirements validates a requirements label.  Empty input yields
// the default 조건없음.
func ParseRequirements(s string) (Requirements, error) {
    switch Requirements(s) {
    case "":
        return RequireNone, nil
    case RequireNone, RequireMembership, RequireDeposit, RequireMembershipBoth:
        return Requirements(s), nil
    }
    return "", fmt.Errorf("unknown requirements %q", s)
}

// CourseTime is one resold tee-time slot.  JoinNum is a cached sum of the
// seat weights of its join persons and is only written by the occupancy
// tracker.  Version is bumped by every occupancy write so that concurrent
// writers can detect each other.
type CourseTime struct {
    ID           uint64           `json:"id"`
    AuthorID     *uint64          `json:"author_id"`
    CourseID     *uint64          `json:"course_id"`
    SiteID       *uint64          `json:"site_id"`
    ReservedTime time.Time        `json:"reserved_time"`
    ReservedName string           `json:"reserved_name"`
    GreenFee     int64            `json:"green_fee"`
    ChargeFee    int64            `json:"charge_fee"`
    Requirements Requirements     `json:"requirements"`
    Flag         int              `json:"flag"`
    Memo         *string          `json:"memo"`
    Status       CourseTimeStatus `json:"status"`
    BlockUntil   *time.Time       `json:"block_until"`
    BlockerID    *uint64          `json:"blocker_id"`
    JoinNum      int              `json:"join_num"`
    Version      uint32           `json:"version"`
    CreatedAt    time.Time        `json:"created_at"`
    UpdatedAt    time.Time        `json:"updated_at"`

    // Course details are filled by list/detail queries that join courses.
    GolfClubName *string `json:"golf_club_name,omitempty"`
    CourseName   *string `json:"course_name,omitempty"`
    Region       *string `json:"region,omitempty"`
}
