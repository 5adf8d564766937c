package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// CreateImportError сохраняет запись журнала ошибок импорта.
func (s *Storage) CreateImportError(ctx context.Context, e models.ImportError) error {
	const op = "storage.CreateImportError"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO import_errors (id, user_uid, error_message, row_data, created_at)
			  VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.DB.ExecContext(ctx, query,
		e.ID, e.UserUID, e.ErrorMessage, e.RowData, e.CreatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListImportErrors возвращает ошибки импорта пользователя, новые первыми.
// limit <= 0 снимает ограничение.
func (s *Storage) ListImportErrors(ctx context.Context, userUID string, limit int) ([]models.ImportError, error) {
	const op = "storage.ListImportErrors"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, error_message, row_data, created_at
			  FROM import_errors
			  WHERE user_uid = $1
			  ORDER BY created_at DESC, seq DESC`
	args := []any{userUID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]models.ImportError, 0)
	for rows.Next() {
		var item models.ImportError
		if err := rows.Scan(&item.ID, &item.UserUID, &item.ErrorMessage,
			&item.RowData, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ClearImportErrors удаляет весь журнал ошибок пользователя и возвращает
// количество удалённых записей.
func (s *Storage) ClearImportErrors(ctx context.Context, userUID string) (int, error) {
	const op = "storage.ClearImportErrors"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM import_errors WHERE user_uid = $1`, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
