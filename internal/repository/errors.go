// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the occupancy tracker to distinguish between failure
// scenarios without inspecting driver errors. Record-specific not-found
// errors wrap ErrNotFound so callers may match either.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is wrapped by every record-specific not-found sentinel.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a create or update cannot be
// performed because of conflicting state, such as registering a
// course that already exists for the same golf club. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrNoChange indicates an UPDATE attempted to set fields equal to their
// current values.
var ErrNoChange = errors.New("no change")

// ErrVersionConflict is returned by conditional updates when the row's
// version no longer matches the version the caller read.
var ErrVersionConflict = errors.New("version conflict")

var (
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrGolfClubNotFound   = fmt.Errorf("golf club %w", ErrNotFound)
	ErrCourseNotFound     = fmt.Errorf("course %w", ErrNotFound)
	ErrSiteIDNotFound     = fmt.Errorf("site id %w", ErrNotFound)
	ErrCourseTimeNotFound = fmt.Errorf("course time %w", ErrNotFound)
	ErrJoinPersonNotFound = fmt.Errorf("join person %w", ErrNotFound)
	ErrBlackListNotFound  = fmt.Errorf("black list entry %w", ErrNotFound)
)

// isDuplicateKey reports whether err is a MySQL duplicate-entry error (1062).
func isDuplicateKey(err error) bool { return mysqlCode(err) == 1062 }

// isMissingParent reports whether err is a MySQL foreign-key failure on
// insert (1452), which happens when the referenced parent row is gone.
func isMissingParent(err error) bool { return mysqlCode(err) == 1452 }

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}
