package model

import (
    "fmt"
    "strings"
    "time"

    "github.com/shopspring/decimal"
)

// UserType is the role of an intranet account.
type UserType string

const (
    UserManager UserType = "manager"
    UserAdmin   UserType = "admin"
)

// ParseUserType validates a user type, case-insensitively.
func ParseUserType(s string) (UserType, error) {
    switch UserType(strings.ToLower(strings.TrimSpace(s))) {
    case UserManager:
        return UserManager, nil
    case UserAdmin:
        return UserAdmin, nil
    }
    return "", fmt.Errorf("unknown user type %q", s)
}

// Role returns the JWT role claim for the user type (ADMIN or MANAGER).
func (t UserType) Role() string { return strings.ToUpper(string(t)) }

// User represents an intranet account stored in the `users` table.
// Managers log in with their phone number.
//
// Fields:
//  ID           – primary key identifier.
//  Type         – manager or admin.
//  PhoneNumber  – digits-only phone number, unique, used as login id.
//  Name         – display name.
//  ChargeRate   – default commission rate for the manager.
//  PasswordHash – bcrypt hash.
//  DeletedAt    – soft delete marker.
type User struct {
    ID           uint64          `json:"id"`
    Type         UserType        `json:"type"`
    PhoneNumber  string          `json:"phone_number"`
    Name         string          `json:"name"`
    ChargeRate   decimal.Decimal `json:"charge_rate"`
    PasswordHash string          `json:"-"`
    CreatedAt    time.Time       `json:"created_at"`
    UpdatedAt    time.Time       `json:"updated_at"`
    DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Type == UserAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the token is stored.
type RefreshToken struct {
    ID        uint64
    UserID    uint64
    TokenHash string
    ExpiresAt time.Time
    RevokedAt *time.Time
    CreatedAt time.Time
}
