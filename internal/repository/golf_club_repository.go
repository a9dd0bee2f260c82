package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/golf-intranet/internal/model"
)

// GolfClubRepo manages persistence for golf clubs.
type GolfClubRepo struct {
	db *sql.DB
}

func NewGolfClubRepo(db *sql.DB) *GolfClubRepo { return &GolfClubRepo{db: db} }

const golfClubCols = `id, region, name, cancel_deadline_date, cancel_deadline_hour,
	reservable_count_type, reservable_count_1, reservable_count_2, hidden, created_at, updated_at, deleted_at`

func scanGolfClub(s scanner) (*model.GolfClub, error) {
	var (
		g       model.GolfClub
		region  string
		rtype   string
		deleted sql.NullTime
	)
	err := s.Scan(&g.ID, &region, &g.Name, &g.CancelDeadlineDate, &g.CancelDeadlineHour,
		&rtype, &g.ReservableCount1, &g.ReservableCount2, &g.Hidden, &g.CreatedAt, &g.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	g.Region = model.Region(region)
	g.ReservableCountType = model.ReservableCountType(rtype)
	if deleted.Valid {
		g.DeletedAt = &deleted.Time
	}
	return &g, nil
}

// List returns live golf clubs ordered by region and name. Hidden clubs
// are included only when includeHidden is set.
func (r *GolfClubRepo) List(ctx context.Context, includeHidden bool) ([]model.GolfClub, error) {
	q := "SELECT " + golfClubCols + " FROM golf_clubs WHERE deleted_at IS NULL"
	if !includeHidden {
		q += " AND hidden = FALSE"
	}
	q += " ORDER BY region, name"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.GolfClub
	for rows.Next() {
		g, err := scanGolfClub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// GetByID returns ErrGolfClubNotFound for missing or deleted clubs.
func (r *GolfClubRepo) GetByID(ctx context.Context, id uint64) (*model.GolfClub, error) {
	g, err := scanGolfClub(r.db.QueryRowContext(ctx,
		"SELECT "+golfClubCols+" FROM golf_clubs WHERE id = ? AND deleted_at IS NULL", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGolfClubNotFound
	}
	return g, err
}

// FindOrCreateTx looks up a live club by (name, region) inside tx and
// creates it with the default cancellation deadline when absent.
func (r *GolfClubRepo) FindOrCreateTx(ctx context.Context, tx *sql.Tx, name string, region model.Region) (*model.GolfClub, error) {
	g, err := scanGolfClub(tx.QueryRowContext(ctx,
		"SELECT "+golfClubCols+" FROM golf_clubs WHERE name = ? AND region = ? AND deleted_at IS NULL LIMIT 1 FOR UPDATE",
		name, region))
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO golf_clubs (region, name, cancel_deadline_date, cancel_deadline_hour, reservable_count_type)
		 VALUES (?, ?, ?, ?, ?)`,
		region, name, model.DefaultCancelDeadlineDate, model.DefaultCancelDeadlineHour, model.ReservableTotal)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return scanGolfClub(tx.QueryRowContext(ctx, "SELECT "+golfClubCols+" FROM golf_clubs WHERE id = ?", id))
}

// GolfClubUpdate carries editable golf club fields; nil fields are left
// unchanged.
type GolfClubUpdate struct {
	Name                *string
	Region              *model.Region
	CancelDeadlineDate  *int
	CancelDeadlineHour  *int
	ReservableCountType *model.ReservableCountType
	ReservableCount1    *int
	ReservableCount2    *int
	Hidden              *bool
}

// Update applies u and returns the stored club.
func (r *GolfClubRepo) Update(ctx context.Context, id uint64, u GolfClubUpdate) (*model.GolfClub, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.Name != nil {
		add("name", strings.TrimSpace(*u.Name))
	}
	if u.Region != nil {
		add("region", *u.Region)
	}
	if u.CancelDeadlineDate != nil {
		add("cancel_deadline_date", *u.CancelDeadlineDate)
	}
	if u.CancelDeadlineHour != nil {
		add("cancel_deadline_hour", *u.CancelDeadlineHour)
	}
	if u.ReservableCountType != nil {
		add("reservable_count_type", *u.ReservableCountType)
	}
	if u.ReservableCount1 != nil {
		add("reservable_count_1", *u.ReservableCount1)
	}
	if u.ReservableCount2 != nil {
		add("reservable_count_2", *u.ReservableCount2)
	}
	if u.Hidden != nil {
		add("hidden", *u.Hidden)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		"UPDATE golf_clubs SET "+strings.Join(sets, ", ")+" WHERE id = ? AND deleted_at IS NULL", args...)
	if err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	if err := checkAffected(res, ErrGolfClubNotFound); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}
