package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recharge_desk/internal/model"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, user_id, transaction_type, operator, phone_number, amount_paid, amount_received, bill_amount,
       tim_email, tim_password, account_password, status, pix_key, receipt_filename, created_at, updated_at`

// TransactionRepository defines operations for transaction data
type TransactionRepository interface {
	Create(ctx context.Context, transaction *model.Transaction) error
	FindByID(ctx context.Context, id string) (*model.Transaction, error)
	// FindOwned matches only when the transaction belongs to userID
	FindOwned(ctx context.Context, id, userID string) (*model.Transaction, error)
	FindByUser(ctx context.Context, userID string) ([]model.Transaction, error)
	FindAll(ctx context.Context, filters model.TransactionFilters) ([]model.Transaction, error)
	UpdateStatus(ctx context.Context, id string, status model.Status, updatedAt time.Time) error
	AttachReceipt(ctx context.Context, id, filename string, updatedAt time.Time) error
	Stats(ctx context.Context) (*model.TransactionStats, error)
}

type transactionRepository struct {
	db Querier
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(db Querier) TransactionRepository {
	return &transactionRepository{db: db}
}

// Create inserts a new transaction into the database
func (r *transactionRepository) Create(ctx context.Context, t *model.Transaction) error {
	sql := `INSERT INTO transactions (id, user_id, transaction_type, operator, phone_number, amount_paid, amount_received,
            bill_amount, tim_email, tim_password, account_password, status, pix_key, receipt_filename, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.db.Exec(ctx, sql,
		t.ID, t.UserID, string(t.TransactionType), string(t.Operator), t.PhoneNumber, t.AmountPaid, t.AmountReceived,
		t.BillAmount, t.TimEmail, t.TimPassword, t.AccountPassword, string(t.Status), t.PixKey, t.ReceiptFilename,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// FindByID retrieves a transaction by its ID
func (r *transactionRepository) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	sql := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by ID: %w", err)
	}
	return t, nil
}

func (r *transactionRepository) FindOwned(ctx context.Context, id, userID string) (*model.Transaction, error) {
	sql := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND user_id = $2`
	t, err := scanTransaction(r.db.QueryRow(ctx, sql, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find owned transaction: %w", err)
	}
	return t, nil
}

// FindByUser retrieves the newest transactions of a specific user
func (r *transactionRepository) FindByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	sql := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1
            ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, sql, userID, model.MaxListResults)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by user: %w", err)
	}
	return collectTransactions(rows)
}

// FindAll retrieves all transactions with optional filters for admin
func (r *transactionRepository) FindAll(ctx context.Context, filters model.TransactionFilters) ([]model.Transaction, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + transactionColumns + ` FROM transactions`)

	args := []interface{}{}
	argCount := 1
	var conditions []string

	if filters.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argCount))
		args = append(args, *filters.UserID)
		argCount++
	}
	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCount))
		args = append(args, string(*filters.Status))
		argCount++
	}
	if filters.TransactionType != nil {
		conditions = append(conditions, fmt.Sprintf("transaction_type = $%d", argCount))
		args = append(args, string(*filters.TransactionType))
		argCount++
	}
	if filters.Operator != nil {
		conditions = append(conditions, fmt.Sprintf("operator = $%d", argCount))
		args = append(args, string(*filters.Operator))
		argCount++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount))
	args = append(args, model.MaxListResults)

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query all transactions: %w", err)
	}
	return collectTransactions(rows)
}

// UpdateStatus overwrites the status of a transaction
func (r *transactionRepository) UpdateStatus(ctx context.Context, id string, status model.Status, updatedAt time.Time) error {
	sql := `UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3`
	cmdTag, err := r.db.Exec(ctx, sql, string(status), updatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachReceipt records the stored receipt name and marks the transaction paid
func (r *transactionRepository) AttachReceipt(ctx context.Context, id, filename string, updatedAt time.Time) error {
	sql := `UPDATE transactions SET receipt_filename = $1, status = $2, updated_at = $3 WHERE id = $4`
	cmdTag, err := r.db.Exec(ctx, sql, filename, string(model.StatusPaid), updatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to attach receipt: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts transactions per status and sums their value. A bill
// payment is worth its bill_amount since amount_paid stays 0 for bills.
func (r *transactionRepository) Stats(ctx context.Context) (*model.TransactionStats, error) {
	stats := &model.TransactionStats{ByStatus: make(map[model.Status]int64)}
	for _, s := range model.Statuses {
		stats.ByStatus[s] = 0
	}

	sql := `SELECT status, COUNT(*),
                   COALESCE(SUM(CASE WHEN transaction_type = 'pay_bill' THEN COALESCE(bill_amount, 0) ELSE amount_paid END), 0)::float8
            FROM transactions GROUP BY status`
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		var sum float64
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan transaction stats: %w", err)
		}
		stats.ByStatus[model.Status(status)] = count
		stats.Total += count
		if model.Status(status) == model.StatusCompleted {
			stats.CompletedTotal = sum
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction stats: %w", err)
	}
	return stats, nil
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	var txType, operator, status string
	err := row.Scan(
		&t.ID, &t.UserID, &txType, &operator, &t.PhoneNumber, &t.AmountPaid, &t.AmountReceived, &t.BillAmount,
		&t.TimEmail, &t.TimPassword, &t.AccountPassword, &status, &t.PixKey, &t.ReceiptFilename,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.TransactionType = model.TransactionType(txType)
	t.Operator = model.Operator(operator)
	t.Status = model.Status(status)
	return &t, nil
}

func collectTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}
