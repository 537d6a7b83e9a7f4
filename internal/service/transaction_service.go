package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"recharge_desk/internal/model"
	"recharge_desk/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound      = errors.New("transaction not found")
	ErrForbidden     = errors.New("forbidden: session does not have permission for this action")
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidStatus = errors.New("invalid status")
)

// TransactionService defines operations on the transaction ledger
type TransactionService interface {
	CreateVivoRecharge(ctx context.Context, session model.Session, req model.VivoRechargeRequest) (*model.Transaction, error)
	CreateTimRecharge(ctx context.Context, session model.Session, req model.TimRechargeRequest) (*model.Transaction, error)
	CreatePayBill(ctx context.Context, session model.Session, req model.PayBillRequest) (*model.Transaction, error)
	ListByUser(ctx context.Context, session model.Session) ([]model.Transaction, error)

	// Admin methods
	ListAll(ctx context.Context, session model.Session, filters model.TransactionFilters) ([]model.Transaction, error)
	GetByID(ctx context.Context, session model.Session, id string) (*model.Transaction, error)
	GetDetails(ctx context.Context, session model.Session, id string) (*model.TransactionDetails, error)
	SetStatus(ctx context.Context, session model.Session, id string, status model.Status) (*model.Transaction, error)
	Stats(ctx context.Context, session model.Session) (*model.TransactionStats, error)
	ExportCSV(ctx context.Context, session model.Session, filters model.TransactionFilters) (*bytes.Buffer, error)
}

type transactionService struct {
	store  repository.Store
	audit  AuditService
	policy StatusPolicy
	pixKey string
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(store repository.Store, audit AuditService, policy StatusPolicy, pixKey string) TransactionService {
	if policy == nil {
		policy = PermissivePolicy{}
	}
	if pixKey == "" {
		pixKey = model.DefaultPixKey
	}
	return &transactionService{store: store, audit: audit, policy: policy, pixKey: pixKey}
}

func (s *transactionService) CreateVivoRecharge(ctx context.Context, session model.Session, req model.VivoRechargeRequest) (*model.Transaction, error) {
	return s.create(ctx, session, func(t *model.Transaction) model.LogDetails {
		t.TransactionType = model.TransactionTypeRechargeVivo
		t.Operator = model.OperatorVivo
		t.PhoneNumber = req.PhoneNumber
		t.AmountPaid = req.AmountPaid
		t.AmountReceived = copyAmount(req.AmountReceived)

		return model.CreateRechargeDetails{
			Operator: model.OperatorVivo,
			Phone:    req.PhoneNumber,
			Paid:     req.AmountPaid,
			Received: derefAmount(req.AmountReceived),
		}
	})
}

func (s *transactionService) CreateTimRecharge(ctx context.Context, session model.Session, req model.TimRechargeRequest) (*model.Transaction, error) {
	return s.create(ctx, session, func(t *model.Transaction) model.LogDetails {
		t.TransactionType = model.TransactionTypeRechargeTim
		t.Operator = model.OperatorTim
		t.PhoneNumber = req.PhoneNumber
		t.AmountPaid = req.AmountPaid
		t.AmountReceived = copyAmount(req.AmountReceived)
		t.TimEmail = &req.TimEmail
		t.TimPassword = &req.TimPassword

		return model.CreateRechargeDetails{
			Operator: model.OperatorTim,
			Phone:    req.PhoneNumber,
			Paid:     req.AmountPaid,
			Received: derefAmount(req.AmountReceived),
			TimEmail: &req.TimEmail,
		}
	})
}

// CreatePayBill records a bill payment request. Nothing is charged up front, so amount_paid stays 0.
func (s *transactionService) CreatePayBill(ctx context.Context, session model.Session, req model.PayBillRequest) (*model.Transaction, error) {
	return s.create(ctx, session, func(t *model.Transaction) model.LogDetails {
		t.TransactionType = model.TransactionTypePayBill
		t.Operator = req.Operator
		t.PhoneNumber = req.PhoneNumber
		t.AccountPassword = &req.AccountPassword
		t.BillAmount = copyAmount(req.BillAmount)

		return model.CreateBillDetails{
			Phone:       req.PhoneNumber,
			Operator:    req.Operator,
			HasPassword: req.AccountPassword != "",
		}
	})
}

// create stores a pending transaction filled in by fill together with its audit entry
func (s *transactionService) create(ctx context.Context, session model.Session, fill func(t *model.Transaction) model.LogDetails) (*model.Transaction, error) {
	user, err := lookupSessionUser(ctx, s.store, session)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &model.Transaction{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Status:    model.StatusPending,
		PixKey:    s.pixKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	details := fill(t)

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Transactions().Create(ctx, t); err != nil {
			return err
		}
		return s.audit.Append(ctx, tx, t.ID, user.Email, details)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("transaction_id", t.ID).
		Str("transaction_type", string(t.TransactionType)).
		Str("user_id", user.ID).
		Msg("transaction created")
	return t, nil
}

func (s *transactionService) ListByUser(ctx context.Context, session model.Session) ([]model.Transaction, error) {
	userID, err := requireUser(session)
	if err != nil {
		return nil, err
	}
	transactions, err := s.store.Transactions().FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user transactions from repo: %w", err)
	}
	return transactions, nil
}

// --- Admin Methods ---

func (s *transactionService) ListAll(ctx context.Context, session model.Session, filters model.TransactionFilters) ([]model.Transaction, error) {
	if _, err := requireAdmin(session); err != nil {
		return nil, err
	}
	transactions, err := s.store.Transactions().FindAll(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get all transactions for admin: %w", err)
	}
	return transactions, nil
}

func (s *transactionService) GetByID(ctx context.Context, session model.Session, id string) (*model.Transaction, error) {
	if _, err := requireAdmin(session); err != nil {
		return nil, err
	}
	return s.findByID(ctx, s.store, id)
}

// GetDetails returns the transaction with its owner. User is nil when the owner no longer exists.
func (s *transactionService) GetDetails(ctx context.Context, session model.Session, id string) (*model.TransactionDetails, error) {
	t, err := s.GetByID(ctx, session, id)
	if err != nil {
		return nil, err
	}

	details := &model.TransactionDetails{Transaction: *t}
	user, err := s.store.Users().FindByID(ctx, t.UserID)
	switch {
	case err == nil:
		details.User = user
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load transaction owner: %w", err)
	}
	return details, nil
}

func (s *transactionService) SetStatus(ctx context.Context, session model.Session, id string, status model.Status) (*model.Transaction, error) {
	adminID, err := requireAdmin(session)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var updated *model.Transaction
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		t, err := s.findByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Allow(t.Status, status); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Transactions().UpdateStatus(ctx, id, status, now); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		var ownerEmail string
		if owner, err := tx.Users().FindByID(ctx, t.UserID); err == nil {
			ownerEmail = owner.Email
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		details := model.StatusChangedDetails{From: t.Status, To: status, ChangedBy: adminID}
		if err := s.audit.Append(ctx, tx, id, ownerEmail, details); err != nil {
			return err
		}

		t.Status = status
		t.UpdatedAt = now
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Str("transaction_id", id).
		Str("status", string(status)).
		Str("admin_id", adminID).
		Msg("transaction status updated")
	return updated, nil
}

func (s *transactionService) Stats(ctx context.Context, session model.Session) (*model.TransactionStats, error) {
	if _, err := requireAdmin(session); err != nil {
		return nil, err
	}
	stats, err := s.store.Transactions().Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction stats for admin: %w", err)
	}
	return stats, nil
}

func (s *transactionService) ExportCSV(ctx context.Context, session model.Session, filters model.TransactionFilters) (*bytes.Buffer, error) {
	transactions, err := s.ListAll(ctx, session, filters)
	if err != nil {
		return nil, err
	}

	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)

	// Credentials are never exported
	header := []string{"ID", "UserID", "Type", "Operator", "Phone", "AmountPaid", "AmountReceived", "BillAmount",
		"Status", "PixKey", "ReceiptFilename", "CreatedAt", "UpdatedAt"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, t := range transactions {
		row := []string{
			t.ID,
			t.UserID,
			string(t.TransactionType),
			string(t.Operator),
			t.PhoneNumber,
			formatAmount(t.AmountPaid),
			formatOptionalAmount(t.AmountReceived),
			formatOptionalAmount(t.BillAmount),
			string(t.Status),
			t.PixKey,
			derefString(t.ReceiptFilename),
			t.CreatedAt.Format(time.RFC3339),
			t.UpdatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("error flushing CSV writer: %w", err)
	}
	return buffer, nil
}

func (s *transactionService) findByID(ctx context.Context, store repository.Store, id string) (*model.Transaction, error) {
	t, err := store.Transactions().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by ID: %w", err)
	}
	return t, nil
}

// lookupSessionUser resolves a user session to the stored user
func lookupSessionUser(ctx context.Context, store repository.Store, session model.Session) (*model.User, error) {
	userID, err := requireUser(session)
	if err != nil {
		return nil, err
	}
	user, err := store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	return user, nil
}

func requireUser(session model.Session) (string, error) {
	switch s := session.(type) {
	case model.UserSession:
		return s.UserID, nil
	default:
		return "", ErrForbidden
	}
}

func requireAdmin(session model.Session) (string, error) {
	switch s := session.(type) {
	case model.AdminSession:
		return s.AdminID, nil
	default:
		return "", ErrForbidden
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptionalAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return formatAmount(*v)
}

func derefAmount(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func copyAmount(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
