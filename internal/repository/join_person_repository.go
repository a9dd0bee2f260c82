package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/golf-intranet/internal/model"
)

// ErrStatusChanged is returned by UpdateStatus when the row no longer has
// the expected status.
var ErrStatusChanged = errors.New("join person status changed concurrently")

// JoinPersonRepo manages persistence for join persons. It satisfies the
// occupancy tracker's store contract.
type JoinPersonRepo struct {
	db *sql.DB
}

func NewJoinPersonRepo(db *sql.DB) *JoinPersonRepo { return &JoinPersonRepo{db: db} }

const joinPersonCols = `jp.id, jp.time_id, jp.manager_id, jp.name, jp.phone_number, jp.join_type,
	jp.green_fee, jp.charge_fee, jp.charge_rate, jp.status, jp.refund_reason, jp.refund_account,
	jp.created_at, jp.updated_at`

func scanJoinPersonInto(jp *model.JoinPerson, extra ...any) []any {
	return append([]any{&jp.ID, &jp.TimeID, new(sql.NullInt64), &jp.Name, &jp.PhoneNumber, new(string),
		&jp.GreenFee, &jp.ChargeFee, &jp.ChargeRate, new(string), new(sql.NullString), new(sql.NullString),
		&jp.CreatedAt, &jp.UpdatedAt}, extra...)
}

// finishJoinPerson copies the nullable and enum columns placed by
// scanJoinPersonInto into jp.
func finishJoinPerson(jp *model.JoinPerson, dest []any) {
	jp.ManagerID = nullID(*dest[2].(*sql.NullInt64))
	jp.JoinType = model.JoinType(*dest[5].(*string))
	jp.Status = model.JoinStatus(*dest[9].(*string))
	if v := dest[10].(*sql.NullString); v.Valid {
		jp.RefundReason = &v.String
	}
	if v := dest[11].(*sql.NullString); v.Valid {
		jp.RefundAccount = &v.String
	}
}

func scanJoinPerson(s scanner) (*model.JoinPerson, error) {
	var jp model.JoinPerson
	dest := scanJoinPersonInto(&jp)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	finishJoinPerson(&jp, dest)
	return &jp, nil
}

// ListByTime returns every join person of the course time in insertion order.
func (r *JoinPersonRepo) ListByTime(ctx context.Context, timeID uint64) ([]model.JoinPerson, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+joinPersonCols+" FROM join_persons jp WHERE jp.time_id = ? ORDER BY jp.id", timeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.JoinPerson
	for rows.Next() {
		jp, err := scanJoinPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *jp)
	}
	return out, rows.Err()
}

func (r *JoinPersonRepo) GetByID(ctx context.Context, id uint64) (*model.JoinPerson, error) {
	jp, err := scanJoinPerson(r.db.QueryRowContext(ctx,
		"SELECT "+joinPersonCols+" FROM join_persons jp WHERE jp.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJoinPersonNotFound
	}
	return jp, err
}

// Insert stores jp and fills its generated fields. A missing course time
// fails with ErrCourseTimeNotFound.
func (r *JoinPersonRepo) Insert(ctx context.Context, jp *model.JoinPerson) error {
	const q = `INSERT INTO join_persons
		(time_id, manager_id, name, phone_number, join_type, green_fee, charge_fee, charge_rate, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, jp.TimeID, jp.ManagerID, jp.Name, jp.PhoneNumber, jp.JoinType,
		jp.GreenFee, jp.ChargeFee, jp.ChargeRate, jp.Status)
	if err != nil {
		if isMissingParent(err) {
			return ErrCourseTimeNotFound
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
	*jp = *created
	return nil
}

func (r *JoinPersonRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM join_persons WHERE id = ?", id)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrJoinPersonNotFound)
}

func (r *JoinPersonRepo) UpdateJoinType(ctx context.Context, id uint64, t model.JoinType) error {
	res, err := r.db.ExecContext(ctx, "UPDATE join_persons SET join_type = ? WHERE id = ?", t, id)
	if err != nil {
		return err
	}
	return checkAffected(res, ErrJoinPersonNotFound)
}

// JoinPersonUpdate carries the fields of a join person that do not affect
// occupancy; nil fields are left unchanged.
type JoinPersonUpdate struct {
	ManagerID   *uint64
	Name        *string
	PhoneNumber *string
	GreenFee    *int64
	ChargeFee   *int64
	ChargeRate  *decimal.Decimal
}

func (r *JoinPersonRepo) Update(ctx context.Context, id uint64, u JoinPersonUpdate) (*model.JoinPerson, error) {
	sets := []string{}
	args := []any{}
	if u.ManagerID != nil {
		sets, args = append(sets, "manager_id = ?"), append(args, *u.ManagerID)
	}
	if u.Name != nil {
		sets, args = append(sets, "name = ?"), append(args, strings.TrimSpace(*u.Name))
	}
	if u.PhoneNumber != nil {
		sets, args = append(sets, "phone_number = ?"), append(args, model.NormalizePhone(*u.PhoneNumber))
	}
	if u.GreenFee != nil {
		sets, args = append(sets, "green_fee = ?"), append(args, *u.GreenFee)
	}
	if u.ChargeFee != nil {
		sets, args = append(sets, "charge_fee = ?"), append(args, *u.ChargeFee)
	}
	if u.ChargeRate != nil {
		sets, args = append(sets, "charge_rate = ?"), append(args, *u.ChargeRate)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, "UPDATE join_persons SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, err
	}
	if err := checkAffected(res, ErrJoinPersonNotFound); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// UpdateStatus moves the join person from status from to to. Refund
// fields are written when non-nil. If the row's status is no longer from,
// ErrStatusChanged is returned.
func (r *JoinPersonRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.JoinStatus, refundReason, refundAccount *string) (*model.JoinPerson, error) {
	sets := []string{"status = ?"}
	args := []any{to}
	if refundReason != nil {
		sets, args = append(sets, "refund_reason = ?"), append(args, *refundReason)
	}
	if refundAccount != nil {
		sets, args = append(sets, "refund_account = ?"), append(args, *refundAccount)
	}
	args = append(args, id, from)
	res, err := r.db.ExecContext(ctx,
		"UPDATE join_persons SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?", args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStatusChanged
	}
	return r.GetByID(ctx, id)
}

// DepositEntry is a join person listed on the deposit board with the
// details of its course time and manager.
type DepositEntry struct {
	model.JoinPerson
	ReservedTime time.Time `json:"reserved_time"`
	GolfClubName *string   `json:"golf_club_name"`
	CourseName   *string   `json:"course_name"`
	ManagerName  *string   `json:"manager_name"`
}

// ListByStatuses returns join persons in any of statuses, soonest tee
// time first. A non-nil managerID restricts the list to that manager.
func (r *JoinPersonRepo) ListByStatuses(ctx context.Context, statuses []model.JoinStatus, managerID *uint64) ([]DepositEntry, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses)+1)
	for _, s := range statuses {
		args = append(args, s)
	}
	q := "SELECT " + joinPersonCols + `, ct.reserved_time, c.golf_club_name, c.course_name, u.name
		FROM join_persons jp
		JOIN course_times ct ON ct.id = jp.time_id
		LEFT JOIN courses c ON c.id = ct.course_id
		LEFT JOIN users u ON u.id = jp.manager_id
		WHERE jp.status IN (` + marks + ")"
	if managerID != nil {
		q += " AND jp.manager_id = ?"
		args = append(args, *managerID)
	}
	q += " ORDER BY ct.reserved_time ASC, jp.id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DepositEntry
	for rows.Next() {
		var (
			e                         DepositEntry
			club, course, managerName sql.NullString
		)
		dest := scanJoinPersonInto(&e.JoinPerson, &e.ReservedTime, &club, &course, &managerName)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		finishJoinPerson(&e.JoinPerson, dest)
		e.GolfClubName = nullString(club)
		e.CourseName = nullString(course)
		e.ManagerName = nullString(managerName)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaleRow is one join person as seen by the performance report.
type SaleRow struct {
	ManagerID    *uint64
	ManagerName  *string
	GolfClubName *string
	GreenFee     int64
	ChargeFee    int64
}

// ListSales returns the join persons created in [start, end), optionally
// for one manager.
func (r *JoinPersonRepo) ListSales(ctx context.Context, start, end time.Time, managerID *uint64) ([]SaleRow, error) {
	q := `SELECT jp.manager_id, u.name, c.golf_club_name, jp.green_fee, jp.charge_fee
		FROM join_persons jp
		JOIN course_times ct ON ct.id = jp.time_id
		LEFT JOIN courses c ON c.id = ct.course_id
		LEFT JOIN users u ON u.id = jp.manager_id
		WHERE jp.created_at >= ? AND jp.created_at < ?`
	args := []any{start.UTC(), end.UTC()}
	if managerID != nil {
		q += " AND jp.manager_id = ?"
		args = append(args, *managerID)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaleRow
	for rows.Next() {
		var (
			s          SaleRow
			manager    sql.NullInt64
			name, club sql.NullString
		)
		if err := rows.Scan(&manager, &name, &club, &s.GreenFee, &s.ChargeFee); err != nil {
			return nil, err
		}
		s.ManagerID = nullID(manager)
		s.ManagerName = nullString(name)
		s.GolfClubName = nullString(club)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}
