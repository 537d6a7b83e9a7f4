package repository

import (
	"context"
	"errors"
	"fmt"

	"recharge_desk/internal/model"

	"github.com/jackc/pgx/v5"
)

// AdminRepository defines operations for administrator accounts
type AdminRepository interface {
	// CreateIfAbsent inserts the admin unless the username is taken.
	// It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, admin *model.Admin) (bool, error)
	FindByUsername(ctx context.Context, username string) (*model.Admin, error)
}

type adminRepository struct {
	db Querier
}

func NewAdminRepository(db Querier) AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) CreateIfAbsent(ctx context.Context, admin *model.Admin) (bool, error) {
	sql := `INSERT INTO admins (id, username, password_hash, created_at)
            VALUES ($1, $2, $3, $4) ON CONFLICT (username) DO NOTHING`
	cmdTag, err := r.db.Exec(ctx, sql, admin.ID, admin.Username, admin.PasswordHash, admin.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create admin: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

func (r *adminRepository) FindByUsername(ctx context.Context, username string) (*model.Admin, error) {
	admin := &model.Admin{}
	sql := `SELECT id, username, password_hash, created_at FROM admins WHERE username = $1`
	err := r.db.QueryRow(ctx, sql, username).Scan(&admin.ID, &admin.Username, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find admin by username: %w", err)
	}
	return admin, nil
}
