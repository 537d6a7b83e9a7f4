package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"recharge_desk/internal/model"
)

// AdminLogRepository appends and lists audit entries. There is no update or delete.
type AdminLogRepository interface {
	Create(ctx context.Context, entry *model.AdminLog) error
	FindAll(ctx context.Context, filters model.AdminLogFilters) ([]model.AdminLog, error)
}

type adminLogRepository struct {
	db Querier
}

func NewAdminLogRepository(db Querier) AdminLogRepository {
	return &adminLogRepository{db: db}
}

func (r *adminLogRepository) Create(ctx context.Context, entry *model.AdminLog) error {
	sql := `INSERT INTO admin_logs (id, transaction_id, user_email, action, details, created_at)
            VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, sql, entry.ID, entry.TransactionID, entry.UserEmail, entry.Action, []byte(entry.Details), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create admin log: %w", err)
	}
	return nil
}

// FindAll returns the newest audit entries first
func (r *adminLogRepository) FindAll(ctx context.Context, filters model.AdminLogFilters) ([]model.AdminLog, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT id, transaction_id, user_email, action, details, created_at FROM admin_logs`)
	args := []interface{}{}

	if filters.TransactionID != nil {
		queryBuilder.WriteString(" WHERE transaction_id = $1")
		args = append(args, *filters.TransactionID)
	}
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args)+1))
	args = append(args, model.MaxListResults)

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin logs: %w", err)
	}
	defer rows.Close()

	logs := []model.AdminLog{}
	for rows.Next() {
		var entry model.AdminLog
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.TransactionID, &entry.UserEmail, &entry.Action, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin log row: %w", err)
		}
		entry.Details = json.RawMessage(details)
		logs = append(logs, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admin log rows: %w", err)
	}
	return logs, nil
}
