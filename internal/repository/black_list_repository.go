package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/golf-intranet/internal/model"
)

type BlackListRepo struct {
	db *sql.DB
}

func NewBlackListRepo(db *sql.DB) *BlackListRepo { return &BlackListRepo{db: db} }

const blackListCols = "id, author_id, name, phone_number, reason, created_at, updated_at, deleted_at"

func scanBlackList(s scanner) (*model.BlackList, error) {
	var (
		b       model.BlackList
		author  sql.NullInt64
		deleted sql.NullTime
	)
	if err := s.Scan(&b.ID, &author, &b.Name, &b.PhoneNumber, &b.Reason, &b.CreatedAt, &b.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	if author.Valid {
		id := uint64(author.Int64)
		b.AuthorID = &id
	}
	if deleted.Valid {
		b.DeletedAt = &deleted.Time
	}
	return &b, nil
}

// List returns live entries, newest first. A non-empty search matches
// name or phone number.
func (r *BlackListRepo) List(ctx context.Context, search string) ([]model.BlackList, error) {
	q := "SELECT " + blackListCols + " FROM black_lists WHERE deleted_at IS NULL"
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		q += " AND (name LIKE ? OR phone_number LIKE ?)"
		like := "%" + s + "%"
		digits := model.NormalizePhone(s)
		if digits == "" {
			digits = s
		}
		args = append(args, like, "%"+digits+"%")
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BlackList
	for rows.Next() {
		b, err := scanBlackList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *BlackListRepo) GetByID(ctx context.Context, id uint64) (*model.BlackList, error) {
	b, err := scanBlackList(r.db.QueryRowContext(ctx,
		"SELECT "+blackListCols+" FROM black_lists WHERE id = ? AND deleted_at IS NULL", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBlackListNotFound
	}
	return b, err
}

// ExistsByPhone reports whether a live entry has the phone number.
func (r *BlackListRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	digits := model.NormalizePhone(phone)
	if digits == "" {
		return false, nil
	}
	var ok bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM black_lists WHERE phone_number = ? AND deleted_at IS NULL)", digits).Scan(&ok)
	return ok, err
}

func (r *BlackListRepo) Create(ctx context.Context, b *model.BlackList) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO black_lists (author_id, name, phone_number, reason) VALUES (?, ?, ?, ?)",
		b.AuthorID, strings.TrimSpace(b.Name), model.NormalizePhone(b.PhoneNumber), strings.TrimSpace(b.Reason))
	if err != nil {
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
	*b = *created
	return nil
}

// BlackListUpdate carries editable fields; nil fields are left unchanged.
type BlackListUpdate struct {
	Name        *string
	PhoneNumber *string
	Reason      *string
}

func (r *BlackListRepo) Update(ctx context.Context, id uint64, u BlackListUpdate) (*model.BlackList, error) {
	sets := []string{}
	args := []any{}
	if u.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, strings.TrimSpace(*u.Name))
	}
	if u.PhoneNumber != nil {
		sets, args = append(sets, "phone_number = ?"), append(args, model.NormalizePhone(*u.PhoneNumber))
	}
	if u.Reason != nil {
		sets, args = append(sets, "reason = ?"), append(args, strings.TrimSpace(*u.Reason))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		"UPDATE black_lists SET "+strings.Join(sets, ", ")+" WHERE id = ? AND deleted_at IS NULL", args...)
	if err != nil {
		return nil, err
	}
	if err := checkAffected(res, ErrBlackListNotFound); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *BlackListRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE black_lists SET deleted_at = NOW() WHERE id = ? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrBlackListNotFound)
}
