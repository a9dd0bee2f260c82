package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/golf-intranet/internal/model"
)

// SiteIDRepo manages booking-site accounts.
type SiteIDRepo struct {
	db *sql.DB
}

func NewSiteIDRepo(db *sql.DB) *SiteIDRepo { return &SiteIDRepo{db: db} }

const siteIDCols = "id, site_id, name, golf_club_id, disabled, hidden, created_at, updated_at, deleted_at"

func scanSiteID(s scanner) (*model.SiteID, error) {
	var (
		v       model.SiteID
		clubID  sql.NullInt64
		deleted sql.NullTime
	)
	if err := s.Scan(&v.ID, &v.SiteID, &v.Name, &clubID, &v.Disabled, &v.Hidden, &v.CreatedAt, &v.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	if clubID.Valid {
		id := uint64(clubID.Int64)
		v.GolfClubID = &id
	}
	if deleted.Valid {
		v.DeletedAt = &deleted.Time
	}
	return &v, nil
}

// List returns live site ids, optionally for one golf club.
func (r *SiteIDRepo) List(ctx context.Context, golfClubID *uint64) ([]model.SiteID, error) {
	q := "SELECT " + siteIDCols + " FROM site_ids WHERE deleted_at IS NULL"
	args := []any{}
	if golfClubID != nil {
		q += " AND golf_club_id = ?"
		args = append(args, *golfClubID)
	}
	q += " ORDER BY name, site_id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SiteID
	for rows.Next() {
		v, err := scanSiteID(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *SiteIDRepo) GetByID(ctx context.Context, id uint64) (*model.SiteID, error) {
	v, err := scanSiteID(r.db.QueryRowContext(ctx,
		"SELECT "+siteIDCols+" FROM site_ids WHERE id = ? AND deleted_at IS NULL", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteIDNotFound
	}
	return v, err
}

// Create inserts v. An unknown golf club fails with ErrGolfClubNotFound.
func (r *SiteIDRepo) Create(ctx context.Context, v *model.SiteID) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO site_ids (site_id, name, golf_club_id, disabled, hidden) VALUES (?, ?, ?, ?, ?)",
		strings.TrimSpace(v.SiteID), strings.TrimSpace(v.Name), v.GolfClubID, v.Disabled, v.Hidden)
	if err != nil {
		if isMissingParent(err) {
			return ErrGolfClubNotFound
		}
		if isDuplicateKey(err) {
			return ErrConflict
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
	*v = *created
	return nil
}

// SiteIDUpdate carries editable site id fields; nil fields are left
// unchanged.
type SiteIDUpdate struct {
	SiteID     *string
	Name       *string
	GolfClubID *uint64
	Disabled   *bool
	Hidden     *bool
}

func (r *SiteIDRepo) Update(ctx context.Context, id uint64, u SiteIDUpdate) (*model.SiteID, error) {
	sets := []string{}
	args := []any{}
	if u.SiteID != nil {
		sets, args = append(sets, "site_id = ?"), append(args, strings.TrimSpace(*u.SiteID))
	}
	if u.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, strings.TrimSpace(*u.Name))
	}
	if u.GolfClubID != nil {
		sets, args = append(sets, "golf_club_id = ?"), append(args, *u.GolfClubID)
	}
	if u.Disabled != nil {
		sets, args = append(sets, "disabled = ?"), append(args, *u.Disabled)
	}
	if u.Hidden != nil {
		sets, args = append(sets, "hidden = ?"), append(args, *u.Hidden)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		"UPDATE site_ids SET "+strings.Join(sets, ", ")+" WHERE id = ? AND deleted_at IS NULL", args...)
	if err != nil {
		if isMissingParent(err) {
			return nil, ErrGolfClubNotFound
		}
		return nil, err
	}
	if err := checkAffected(res, ErrSiteIDNotFound); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *SiteIDRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE site_ids SET deleted_at = NOW() WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrSiteIDNotFound)
}
