package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recharge_desk/internal/model"
	"recharge_desk/internal/repository"

	"github.com/google/uuid"
)

// AuditService records actions on transactions in the append-only admin log
type AuditService interface {
	// Append writes through tx so the entry commits with the change it describes
	Append(ctx context.Context, tx repository.Store, transactionID, userEmail string, details model.LogDetails) error
	List(ctx context.Context, session model.Session, filters model.AdminLogFilters) ([]model.AdminLog, error)
}

type auditService struct {
	store repository.Store
}

func NewAuditService(store repository.Store) AuditService {
	return &auditService{store: store}
}

func (s *auditService) Append(ctx context.Context, tx repository.Store, transactionID, userEmail string, details model.LogDetails) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode log details: %w", err)
	}

	entry := &model.AdminLog{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		UserEmail:     userEmail,
		Action:        details.Action(),
		Details:       payload,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.AdminLogs().Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to append admin log: %w", err)
	}
	return nil
}

func (s *auditService) List(ctx context.Context, session model.Session, filters model.AdminLogFilters) ([]model.AdminLog, error) {
	if _, err := requireAdmin(session); err != nil {
		return nil, err
	}
	logs, err := s.store.AdminLogs().FindAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin logs: %w", err)
	}
	return logs, nil
}
