package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/utils"
)

// ErrPhoneExists is returned when a live account already uses the phone number.
var ErrPhoneExists = fmt.Errorf("phone number already registered: %w", ErrConflict)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = "id,type,phone_number,name,charge_rate,password_hash,created_at,updated_at,deleted_at"

func scanUser(s scanner) (*model.User, error) {
	var (
		u       model.User
		typ     string
		deleted sql.NullTime
	)
	if err := s.Scan(&u.ID, &typ, &u.PhoneNumber, &u.Name, &u.ChargeRate, &u.PasswordHash,
		&u.CreatedAt, &u.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	u.Type = model.UserType(typ)
	if deleted.Valid {
		u.DeletedAt = &deleted.Time
	}
	return &u, nil
}

// Create hashes the password and inserts the user. The phone number is
// stored digits-only.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.PhoneNumber = model.NormalizePhone(u.PhoneNumber)
	u.Name = strings.TrimSpace(u.Name)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (type, phone_number, name, charge_rate, password_hash) VALUES (?,?,?,?,?)",
		u.Type, u.PhoneNumber, u.Name, u.ChargeRate, hash)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrPhoneExists
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
	*u = *created
	return nil
}

// GetByPhone fetches a live user by phone number in any format.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE phone_number=? AND deleted_at IS NULL LIMIT 1",
		model.NormalizePhone(phone)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches a live user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? AND deleted_at IS NULL LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// List returns live users, admins first then by name.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userCols+" FROM users WHERE deleted_at IS NULL ORDER BY type='admin' DESC, name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UserUpdate carries the admin-editable fields of a user; nil fields are
// left unchanged.
type UserUpdate struct {
	Name       *string
	Type       *model.UserType
	ChargeRate *decimal.Decimal
}

// Update applies u to the user with the given id.
func (r *UserRepo) Update(ctx context.Context, id uint64, u UserUpdate) (*model.User, error) {
	sets := []string{}
	args := []any{}
	if u.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, strings.TrimSpace(*u.Name))
	}
	if u.Type != nil {
		sets = append(sets, "type=?")
		args = append(args, *u.Type)
	}
	if u.ChargeRate != nil {
		sets = append(sets, "charge_rate=?")
		args = append(args, *u.ChargeRate)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=? AND deleted_at IS NULL", args...)
	if err != nil {
		return nil, err
	}
	if err := checkAffected(res, ErrUserNotFound); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// SetPassword replaces the stored password hash.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=? AND deleted_at IS NULL", hash, id)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrUserNotFound)
}

// SoftDelete marks the user deleted. The phone number is suffixed so it
// can be registered again.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET deleted_at=NOW(), phone_number=CONCAT(phone_number,'#',id) WHERE id=? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrUserNotFound)
}

// checkAffected maps a zero-row write to notFound. The DSN sets
// clientFoundRows so that matched but unchanged rows still count.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
