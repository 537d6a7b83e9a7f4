package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"recharge_desk/internal/model"
	"recharge_desk/internal/repository"
	"recharge_desk/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidFile     = errors.New("invalid file")
	ErrFileTooLarge    = errors.New("file size exceeds limit")
	ErrReceiptNotFound = errors.New("file not found")
)

const DefaultMaxFileBytes = 10 << 20 // 10MB

// ReceiptUpload is a payment proof submitted by a user
type ReceiptUpload struct {
	Filename    string
	ContentType string
	Size        int64 // As declared by the client; the body is still capped
	Body        io.Reader
}

// ReceiptService attaches payment proofs to transactions and serves them back to admins
type ReceiptService interface {
	Attach(ctx context.Context, session model.Session, transactionID string, upload ReceiptUpload) (*model.Transaction, error)
	Open(ctx context.Context, session model.Session, filename string) (*storage.Object, error)
}

type receiptService struct {
	store    repository.Store
	files    storage.Storage
	audit    AuditService
	maxBytes int64
}

func NewReceiptService(store repository.Store, files storage.Storage, audit AuditService, maxBytes int64) ReceiptService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &receiptService{store: store, files: files, audit: audit, maxBytes: maxBytes}
}

// Attach stores the file as {transaction_id}_{base name} and marks the transaction paid.
// A transaction owned by someone else is reported as not found.
func (s *receiptService) Attach(ctx context.Context, session model.Session, transactionID string, upload ReceiptUpload) (*model.Transaction, error) {
	user, err := lookupSessionUser(ctx, s.store, session)
	if err != nil {
		return nil, err
	}

	name := baseName(upload.Filename)
	if name == "" {
		return nil, fmt.Errorf("%w: missing filename", ErrInvalidFile)
	}
	if upload.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	t, err := s.store.Transactions().FindOwned(ctx, transactionID, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transaction for receipt upload: %w", err)
	}

	// staged under a temporary key; the final key is replaced only after commit
	key := t.ID + "_" + name
	staged := key + ".upload-" + uuid.NewString()
	body := &io.LimitedReader{R: upload.Body, N: s.maxBytes + 1}
	if err := s.files.Put(ctx, staged, body, upload.ContentType); err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if body.N == 0 {
		s.removeStaged(ctx, staged)
		return nil, ErrFileTooLarge
	}

	now := time.Now().UTC()
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Transactions().AttachReceipt(ctx, t.ID, key, now); err != nil {
			return err
		}
		details := model.ReceiptUploadedDetails{Filename: key, TransactionType: t.TransactionType}
		return s.audit.Append(ctx, tx, t.ID, user.Email, details)
	})
	if err != nil {
		s.removeStaged(ctx, staged)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update transaction with receipt: %w", err)
	}

	if err := s.files.Move(ctx, staged, key); err != nil {
		s.removeStaged(ctx, staged)
		log.Ctx(ctx).Error().Err(err).Str("transaction_id", t.ID).Str("filename", key).
			Msg("receipt recorded but the file could not be published")
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	t.ReceiptFilename = &key
	t.Status = model.StatusPaid
	t.UpdatedAt = now

	log.Ctx(ctx).Info().Str("transaction_id", t.ID).Str("filename", key).Msg("receipt uploaded")
	return t, nil
}

// Open returns a stored receipt. Callers must close the object body.
func (s *receiptService) Open(ctx context.Context, session model.Session, filename string) (*storage.Object, error) {
	if _, err := requireAdmin(session); err != nil {
		return nil, err
	}
	obj, err := s.files.Get(ctx, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("failed to open receipt: %w", err)
	}
	return obj, nil
}

func (s *receiptService) removeStaged(ctx context.Context, key string) {
	if err := s.files.Delete(ctx, key); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("filename", key).Msg("failed to remove staged receipt")
	}
}

// baseName strips any client-supplied directories, including Windows ones
func baseName(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}
