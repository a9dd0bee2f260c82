package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/golf-intranet/internal/model"
)

// ErrCourseExists is returned by CreateCourse for a duplicate live course.
var ErrCourseExists = fmt.Errorf("course already exists: %w", ErrConflict)

// ErrCourseNameRequired is returned when either name is blank after trimming.
var ErrCourseNameRequired = errors.New("golf club name and course name are required")

// CourseRepo manages persistence for courses.
type CourseRepo struct {
	db    *sql.DB
	clubs *GolfClubRepo
}

func NewCourseRepo(db *sql.DB, clubs *GolfClubRepo) *CourseRepo {
	return &CourseRepo{db: db, clubs: clubs}
}

const courseCols = "id, club_id, region, golf_club_name, course_name, created_at, updated_at, deleted_at"

func scanCourse(s scanner) (*model.Course, error) {
	var (
		c       model.Course
		clubID  sql.NullInt64
		region  string
		deleted sql.NullTime
	)
	if err := s.Scan(&c.ID, &clubID, &region, &c.GolfClubName, &c.CourseName, &c.CreatedAt, &c.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	if clubID.Valid {
		id := uint64(clubID.Int64)
		c.ClubID = &id
	}
	c.Region = model.Region(region)
	if deleted.Valid {
		c.DeletedAt = &deleted.Time
	}
	return &c, nil
}

// List returns live courses, optionally restricted to one region.
func (r *CourseRepo) List(ctx context.Context, region *model.Region) ([]model.Course, error) {
	q := "SELECT " + courseCols + " FROM courses WHERE deleted_at IS NULL"
	args := []any{}
	if region != nil {
		q += " AND region = ?"
		args = append(args, *region)
	}
	q += " ORDER BY region, golf_club_name, course_name"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetByID returns ErrCourseNotFound for missing or deleted courses.
func (r *CourseRepo) GetByID(ctx context.Context, id uint64) (*model.Course, error) {
	c, err := scanCourse(r.db.QueryRowContext(ctx,
		"SELECT "+courseCols+" FROM courses WHERE id = ? AND deleted_at IS NULL", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourseNotFound
	}
	return c, err
}

// CreateCourse registers a course under the golf club named clubName in
// region, creating the club first when it does not exist. Inputs are
// trimmed. A live course with the same club, name and region fails with
// ErrCourseExists.
func (r *CourseRepo) CreateCourse(ctx context.Context, region model.Region, clubName, courseName string) (*model.Course, error) {
	clubName = strings.TrimSpace(clubName)
	courseName = strings.TrimSpace(courseName)
	if clubName == "" || courseName == "" {
		return nil, ErrCourseNameRequired
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	club, err := r.clubs.FindOrCreateTx(ctx, tx, clubName, region)
	if err != nil {
		return nil, err
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM courses
		  WHERE club_id = ? AND course_name = ? AND region = ? AND deleted_at IS NULL)`,
		club.ID, courseName, region).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrCourseExists
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO courses (club_id, region, golf_club_name, course_name) VALUES (?, ?, ?, ?)",
		club.ID, region, club.Name, courseName)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrCourseExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	c, err := scanCourse(tx.QueryRowContext(ctx, "SELECT "+courseCols+" FROM courses WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// SoftDelete marks the course deleted.
func (r *CourseRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE courses SET deleted_at = NOW() WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrCourseNotFound)
}
