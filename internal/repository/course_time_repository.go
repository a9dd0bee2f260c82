package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/golf-intranet/internal/model"
)

// CourseTimeRepo manages persistence for course times.
type CourseTimeRepo struct {
	db *sql.DB
}

func NewCourseTimeRepo(db *sql.DB) *CourseTimeRepo { return &CourseTimeRepo{db: db} }

// DB exposes the underlying handle for callers that need transactions.
func (r *CourseTimeRepo) DB() *sql.DB { return r.db }

const courseTimeSelect = `SELECT ct.id, ct.author_id, ct.course_id, ct.site_id, ct.reserved_time, ct.reserved_name,
	ct.green_fee, ct.charge_fee, ct.requirements, ct.flag, ct.memo, ct.status, ct.block_until, ct.blocker_id,
	ct.join_num, ct.version, ct.created_at, ct.updated_at,
	c.golf_club_name, c.course_name, c.region
	FROM course_times ct
	LEFT JOIN courses c ON c.id = ct.course_id`

func scanCourseTime(s scanner) (*model.CourseTime, error) {
	var (
		ct                     model.CourseTime
		author, course, site   sql.NullInt64
		blocker                sql.NullInt64
		memo                   sql.NullString
		blockUntil             sql.NullTime
		requirements, status   string
		clubName, name, region sql.NullString
	)
	err := s.Scan(&ct.ID, &author, &course, &site, &ct.ReservedTime, &ct.ReservedName,
		&ct.GreenFee, &ct.ChargeFee, &requirements, &ct.Flag, &memo, &status, &blockUntil, &blocker,
		&ct.JoinNum, &ct.Version, &ct.CreatedAt, &ct.UpdatedAt,
		&clubName, &name, &region)
	if err != nil {
		return nil, err
	}
	ct.AuthorID = nullID(author)
	ct.CourseID = nullID(course)
	ct.SiteID = nullID(site)
	ct.BlockerID = nullID(blocker)
	ct.Requirements = model.Requirements(requirements)
	ct.Status = model.CourseTimeStatus(status)
	if memo.Valid {
		ct.Memo = &memo.String
	}
	if blockUntil.Valid {
		ct.BlockUntil = &blockUntil.Time
	}
	if clubName.Valid {
		ct.GolfClubName = &clubName.String
	}
	if name.Valid {
		ct.CourseName = &name.String
	}
	if region.Valid {
		ct.Region = &region.String
	}
	return &ct, nil
}

func nullID(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	id := uint64(v.Int64)
	return &id
}

// Create inserts a course time with no joins. Status defaults to 미판매
// and requirements to 조건없음.
func (r *CourseTimeRepo) Create(ctx context.Context, ct *model.CourseTime) error {
	if ct.Status == "" {
		ct.Status = model.CourseTimeOpen
	}
	if ct.Requirements == "" {
		ct.Requirements = model.RequireNone
	}
	const q = `INSERT INTO course_times
		(author_id, course_id, site_id, reserved_time, reserved_name, green_fee, charge_fee,
		 requirements, flag, memo, status, join_num, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`
	res, err := r.db.ExecContext(ctx, q, ct.AuthorID, ct.CourseID, ct.SiteID, ct.ReservedTime.UTC(), ct.ReservedName,
		ct.GreenFee, ct.ChargeFee, ct.Requirements, ct.Flag, ct.Memo, ct.Status)
	if err != nil {
		if isMissingParent(err) {
			return ErrCourseNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*ct = *created
	return nil
}

// GetByID returns ErrCourseTimeNotFound when absent.
func (r *CourseTimeRepo) GetByID(ctx context.Context, id uint64) (*model.CourseTime, error) {
	ct, err := scanCourseTime(r.db.QueryRowContext(ctx, courseTimeSelect+" WHERE ct.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourseTimeNotFound
	}
	return ct, err
}

// CourseTimeFilter narrows List. Start and End bound reserved_time
// inclusively; End is extended to the end of its day.
type CourseTimeFilter struct {
	Start    *time.Time
	End      *time.Time
	Status   *model.CourseTimeStatus
	Region   *model.Region
	AuthorID *uint64
}

// List returns course times matching f ordered by reserved_time.
func (r *CourseTimeRepo) List(ctx context.Context, f CourseTimeFilter) ([]model.CourseTime, error) {
	where := []string{}
	args := []any{}
	if f.Start != nil {
		where = append(where, "ct.reserved_time >= ?")
		args = append(args, f.Start.UTC())
	}
	if f.End != nil {
		where = append(where, "ct.reserved_time < ?")
		args = append(args, f.End.UTC().Truncate(24*time.Hour).Add(24*time.Hour))
	}
	if f.Status != nil {
		where = append(where, "ct.status = ?")
		args = append(args, *f.Status)
	}
	if f.Region != nil {
		where = append(where, "c.region = ?")
		args = append(args, *f.Region)
	}
	if f.AuthorID != nil {
		where = append(where, "ct.author_id = ?")
		args = append(args, *f.AuthorID)
	}
	q := courseTimeSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ct.reserved_time ASC, ct.id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CourseTime
	for rows.Next() {
		ct, err := scanCourseTime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ct)
	}
	return out, rows.Err()
}

// CourseTimeUpdate carries the editable fields of a course time; nil
// fields are left unchanged. join_num is deliberately absent: only
// UpdateOccupancy writes it.
type CourseTimeUpdate struct {
	CourseID     *uint64
	SiteID       *uint64
	ReservedTime *time.Time
	ReservedName *string
	GreenFee     *int64
	ChargeFee    *int64
	Requirements *model.Requirements
	Flag         *int
	Memo         *string
	Status       *model.CourseTimeStatus
	BlockUntil   *time.Time
	BlockerID    *uint64
}

// Update applies u and bumps version, so that an occupancy write racing
// with it re-reads the row.
func (r *CourseTimeRepo) Update(ctx context.Context, id uint64, u CourseTimeUpdate) (*model.CourseTime, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.CourseID != nil {
		add("course_id", *u.CourseID)
	}
	if u.SiteID != nil {
		add("site_id", *u.SiteID)
	}
	if u.ReservedTime != nil {
		add("reserved_time", u.ReservedTime.UTC())
	}
	if u.ReservedName != nil {
		add("reserved_name", *u.ReservedName)
	}
	if u.GreenFee != nil {
		add("green_fee", *u.GreenFee)
	}
	if u.ChargeFee != nil {
		add("charge_fee", *u.ChargeFee)
	}
	if u.Requirements != nil {
		add("requirements", *u.Requirements)
	}
	if u.Flag != nil {
		add("flag", *u.Flag)
	}
	if u.Memo != nil {
		add("memo", *u.Memo)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.BlockUntil != nil {
		add("block_until", u.BlockUntil.UTC())
	}
	if u.BlockerID != nil {
		add("blocker_id", *u.BlockerID)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "version = version + 1")
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, "UPDATE course_times SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		if isMissingParent(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := checkAffected(res, ErrCourseTimeNotFound); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// UpdateOccupancy writes join_num and status only if the row still has
// the given version. A lost race yields ErrVersionConflict; a missing
// row yields ErrCourseTimeNotFound.
func (r *CourseTimeRepo) UpdateOccupancy(ctx context.Context, id uint64, joinNum int, status model.CourseTimeStatus, version uint32) (*model.CourseTime, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE course_times SET join_num = ?, status = ?, version = version + 1 WHERE id = ? AND version = ?",
		joinNum, status, id, version)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM course_times WHERE id = ?)", id).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrCourseTimeNotFound
		}
		return nil, ErrVersionConflict
	}
	return r.GetByID(ctx, id)
}

// Delete removes the course time together with its join persons.
func (r *CourseTimeRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM join_persons WHERE time_id = ?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM course_times WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := checkAffected(res, ErrCourseTimeNotFound); err != nil {
		return err
	}
	return tx.Commit()
}
