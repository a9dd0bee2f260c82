package model

import (
    "encoding/json"
    "fmt"
    "time"

    "github.com/shopspring/decimal"
)

// JoinType describes the composition of a purchased seat group.  The
// value stored in the database and exchanged over JSON is the Korean
// label (e.g. "남남"), matching what managers select in the dashboard.
type JoinType string

const (
    JoinTransfer JoinType = "양도"
    JoinMF       JoinType = "남여"
    JoinM        JoinType = "남"
    JoinF        JoinType = "여"
    JoinMM       JoinType = "남남"
    JoinFF       JoinType = "여여"
    JoinMMM      JoinType = "남남남"
    JoinMMF      JoinType = "남남여"
    JoinMFF      JoinType = "남여여"
    JoinFFF      JoinType = "여여여"
)

// joinTypeCodes maps each label to its English code.  The codes are
// accepted on input so API clients may send either form.
var joinTypeCodes = map[JoinType]string{
    JoinTransfer: "TRANSFER",
    JoinMF:       "MF",
    JoinM:        "M",
    JoinF:        "F",
    JoinMM:       "MM",
    JoinFF:       "FF",
    JoinMMM:      "MMM",
    JoinMMF:      "MMF",
    JoinMFF:      "MFF",
    JoinFFF:      "FFF",
}

// JoinTypes lists every known join type in display order.
var JoinTypes = []JoinType{
    JoinTransfer, JoinMF, JoinM, JoinF, JoinMM, JoinFF, JoinMMM, JoinMMF, JoinMFF, JoinFFF,
}

// ParseJoinType accepts either the Korean label or the English code and
// returns the canonical JoinType.  Unknown values are rejected.
func ParseJoinType(s string) (JoinType, error) {
    for jt, code := range joinTypeCodes {
        if s == string(jt) || s == code {
            return jt, nil
        }
    }
    return "", fmt.Errorf("unknown join type %q", s)
}

// Code returns the English code of the join type ("MMF", "TRANSFER", ...).
func (t JoinType) Code() string { return joinTypeCodes[t] }

// Valid reports whether t is one of the known join types.
func (t JoinType) Valid() bool {
    _, ok := joinTypeCodes[t]
    return ok
}

// UnmarshalJSON enforces that decoded join types are known values.
func (t *JoinType) UnmarshalJSON(b []byte) error {
    var s string
    if err := json.Unmarshal(b, &s); err != nil {
        return err
    }
    v, err := ParseJoinType(s)
    if err != nil {
        return err
    }
    *t = v
    return nil
}

// JoinStatus is the deposit/refund workflow state of a join person.
type JoinStatus string

const (
    JoinPendingConfirm JoinStatus = "입금확인전"
    JoinConfirming     JoinStatus = "입금확인중"
    JoinConfirmed      JoinStatus = "입금완료"
    JoinRefundPending  JoinStatus = "환불확인중"
    JoinRefunded       JoinStatus = "환불완료"
)

var joinStatusCodes = map[JoinStatus]string{
    JoinPendingConfirm: "PENDING_CONFIRM",
    JoinConfirming:     "CONFIRMING",
    JoinConfirmed:      "CONFIRMED",
    JoinRefundPending:  "REFUND_PENDING",
    JoinRefunded:       "REFUNDED",
}

// ParseJoinStatus accepts the Korean label or the English code.
func ParseJoinStatus(s string) (JoinStatus, error) {
    for st, code := range joinStatusCodes {
        if s == string(st) || s == code {
            return st, nil
        }
    }
    return "", fmt.Errorf("unknown join status %q", s)
}

// Code returns the English code of the status.
func (s JoinStatus) Code() string { return joinStatusCodes[s] }

// UnmarshalJSON enforces that decoded statuses are known values.
func (s *JoinStatus) UnmarshalJSON(b []byte) error {
    var raw string
    if err := json.Unmarshal(b, &raw); err != nil {
        return err
    }
    v, err := ParseJoinStatus(raw)
    if err != nil {
        return err
    }
    *s = v
    return nil
}

// joinTransitions lists the allowed next states for each status.  The
// deposit board lets staff mark a pending deposit as completed directly,
// which is why PENDING_CONFIRM may skip CONFIRMING.
var joinTransitions = map[JoinStatus][]JoinStatus{
    JoinPendingConfirm: {JoinConfirming, JoinConfirmed},
    JoinConfirming:     {JoinConfirmed},
    JoinConfirmed:      {JoinRefundPending},
    JoinRefundPending:  {JoinRefunded},
}

// CanTransition reports whether moving from s to next is allowed.
func (s JoinStatus) CanTransition(next JoinStatus) bool {
    for _, n := range joinTransitions[s] {
        if n == next {
            return true
        }
    }
    return false
}

// JoinPerson is one purchased seat group on a course time.  It
// corresponds to a row in the `join_persons` table.
//
// Fields:
//  ID            – primary key identifier.
//  TimeID        – owning course time.
//  ManagerID     – manager who sold the join (nullable).
//  Name          – customer name.
//  PhoneNumber   – customer phone, digits only.
//  JoinType      – group composition; determines seat weight.
//  GreenFee      – price charged to the customer, in won.
//  ChargeFee     – commission earned, in won.
//  ChargeRate    – commission rate applied when the join was sold.
//  Status        – deposit/refund workflow state.
//  RefundReason  – reason recorded when a refund is requested.
//  RefundAccount – account the refund is paid to.
type JoinPerson struct {
    ID            uint64          `json:"id"`
    TimeID        uint64          `json:"time_id"`
    ManagerID     *uint64         `json:"manager_id"`
    Name          string          `json:"name"`
    PhoneNumber   string          `json:"phone_number"`
    JoinType      JoinType        `json:"join_type"`
    GreenFee      int64           `json:"green_fee"`
    ChargeFee     int64           `json:"charge_fee"`
    ChargeRate    decimal.Decimal `json:"charge_rate"`
    Status        JoinStatus      `json:"status"`
    RefundReason  *string         `json:"refund_reason"`
    RefundAccount *string         `json:"refund_account"`
    CreatedAt     time.Time       `json:"created_at"`
    UpdatedAt     time.Time       `json:"updated_at"`
}

// JoinPersonDraft carries the fields supplied when a manager adds a join.
// Nil fee fields fall back to the course time's own fees.
type JoinPersonDraft struct {
    ManagerID   *uint64
    Name        string
    PhoneNumber string
    JoinType    JoinType
    GreenFee    *int64
    ChargeFee   *int64
    ChargeRate  *decimal.Decimal
}
