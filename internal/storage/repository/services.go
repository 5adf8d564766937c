package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/calendar"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const serviceColumns = `id, user_uid, name, description, service_type, provider, paid_via,
	amount, currency, frequency, expiration_date, register_date, anchor_day,
	auto_renew, status, last_payment`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*models.Service, error) {
	var (
		svc         models.Service
		lastPayment sql.NullTime
	)
	if err := row.Scan(&svc.ID, &svc.UserUID, &svc.Name, &svc.Description, &svc.Type,
		&svc.Provider, &svc.PaidVia, &svc.Amount, &svc.Currency, &svc.Frequency,
		&svc.ExpirationDate, &svc.RegisterDate, &svc.AnchorDay, &svc.AutoRenew,
		&svc.Status, &lastPayment); err != nil {
		return nil, err
	}
	svc.ExpirationDate = calendar.Date(svc.ExpirationDate)
	svc.RegisterDate = calendar.Date(svc.RegisterDate)
	if lastPayment.Valid {
		lp := calendar.Date(lastPayment.Time)
		svc.LastPayment = &lp
	}
	return &svc, nil
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: calendar.Date(*t), Valid: true}
}

// CreateService вставляет сервис и возвращает сохранённую запись с присвоенным ID.
func (s *Storage) CreateService(ctx context.Context, svc models.Service) (*models.Service, error) {
	const op = "storage.CreateService"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO services (user_uid, name, description, service_type, provider,
				  paid_via, amount, currency, frequency, expiration_date, register_date,
				  anchor_day, auto_renew, status, last_payment)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			  RETURNING ` + serviceColumns
	row := s.DB.QueryRowContext(ctx, query,
		svc.UserUID, svc.Name, svc.Description, svc.Type, svc.Provider,
		svc.PaidVia, svc.Amount, svc.Currency, svc.Frequency,
		calendar.Date(svc.ExpirationDate), calendar.Date(svc.RegisterDate),
		svc.AnchorDay, svc.AutoRenew, svc.Status, nullDate(svc.LastPayment))

	created, err := scanService(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// ReadService возвращает сервис по ID.
func (s *Storage) ReadService(ctx context.Context, id int) (*models.Service, error) {
	const op = "storage.ReadService"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	svc, err := scanService(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrServiceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return svc, nil
}

// ListServices возвращает сервисы, подходящие под фильтр, в порядке ID.
func (s *Storage) ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error) {
	const op = "storage.ListServices"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		conds []string
		args  []any
	)
	where := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserUID != nil {
		where("user_uid = $%d", *filter.UserUID)
	}
	if filter.AutoRenew != nil {
		where("auto_renew = $%d", *filter.AutoRenew)
	}
	if filter.ExpiresOnOrBefore != nil {
		where("expiration_date <= $%d", calendar.Date(*filter.ExpiresOnOrBefore))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + serviceColumns + ` FROM services`)
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.DB.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateService применяет частичное обновление одним UPDATE и возвращает
// запись после изменения. Пустое обновление просто читает запись.
// Если задан ExpectedExpiration, а дата окончания в базе уже другая,
// возвращается ErrServiceConflict и запись не меняется.
func (s *Storage) UpdateService(ctx context.Context, id int, upd models.ServiceUpdate) (*models.Service, error) {
	const op = "storage.UpdateService"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if upd.IsEmpty() {
		svc, err := s.ReadService(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return svc, nil
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Description != nil {
		set("description", *upd.Description)
	}
	if upd.Type != nil {
		set("service_type", *upd.Type)
	}
	if upd.Provider != nil {
		set("provider", *upd.Provider)
	}
	if upd.PaidVia != nil {
		set("paid_via", *upd.PaidVia)
	}
	if upd.Amount != nil {
		set("amount", *upd.Amount)
	}
	if upd.Currency != nil {
		set("currency", *upd.Currency)
	}
	if upd.Frequency != nil {
		set("frequency", *upd.Frequency)
	}
	if upd.ExpirationDate != nil {
		set("expiration_date", calendar.Date(*upd.ExpirationDate))
	}
	if upd.RegisterDate != nil {
		set("register_date", calendar.Date(*upd.RegisterDate))
	}
	if upd.AnchorDay != nil {
		set("anchor_day", *upd.AnchorDay)
	}
	if upd.AutoRenew != nil {
		set("auto_renew", *upd.AutoRenew)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.LastPayment != nil {
		set("last_payment", nullDate(upd.LastPayment))
	}

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if upd.ExpectedExpiration != nil {
		args = append(args, calendar.Date(*upd.ExpectedExpiration))
		where += fmt.Sprintf(" AND expiration_date = $%d", len(args))
	}
	query := fmt.Sprintf(`UPDATE services SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, serviceColumns)

	svc, err := scanService(s.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		if upd.ExpectedExpiration != nil {
			return nil, fmt.Errorf("%s: %w", op, s.missingOrConflict(ctx, id))
		}
		return nil, fmt.Errorf("%s: %w", op, ErrServiceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return svc, nil
}

// missingOrConflict различает удалённый сервис и сервис, изменённый другой записью.
func (s *Storage) missingOrConflict(ctx context.Context, id int) error {
	var exists bool
	if err := s.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM services WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrServiceNotFound
	}
	return ErrServiceConflict
}

// RemoveService удаляет сервис по ID.
func (s *Storage) RemoveService(ctx context.Context, id int) error {
	const op = "storage.RemoveService"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrServiceNotFound)
	}
	return nil
}
