package model

import "time"

type TransactionType string

const (
	TransactionTypeRechargeVivo TransactionType = "recharge_vivo"
	TransactionTypeRechargeTim  TransactionType = "recharge_tim"
	TransactionTypePayBill      TransactionType = "pay_bill"
)

type Operator string

const (
	OperatorVivo  Operator = "vivo"
	OperatorTim   Operator = "tim"
	OperatorClaro Operator = "claro"
)

// Valid reports whether o is one of the supported carriers
func (o Operator) Valid() bool {
	switch o {
	case OperatorVivo, OperatorTim, OperatorClaro:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every lifecycle state in dashboard order
var Statuses = []Status{StatusPending, StatusPaid, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// DefaultPixKey is the static collection key users pay into
const DefaultPixKey = "e0478dfb-0f3b-4837-977c-bc3a23622854"

// MaxListResults caps every list query
const MaxListResults = 1000

// Transaction represents a recharge or bill payment request
type Transaction struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	TransactionType TransactionType `json:"transaction_type"`
	Operator        Operator        `json:"operator"`
	PhoneNumber     string          `json:"phone_number"`
	AmountPaid      float64         `json:"amount_paid"`
	AmountReceived  *float64        `json:"amount_received"`       // Pointer for optional field
	BillAmount      *float64        `json:"bill_amount,omitempty"` // Only for pay_bill
	TimEmail        *string         `json:"tim_email"`             // Only for recharge_tim
	TimPassword     *string         `json:"tim_password"`          // Only for recharge_tim, stored as submitted
	AccountPassword *string         `json:"account_password"`      // Only for pay_bill, stored as submitted
	Status          Status          `json:"status"`
	PixKey          string          `json:"pix_key"`
	ReceiptFilename *string         `json:"receipt_filename"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Value is what the transaction is worth: amount_paid for recharges, bill_amount for bills
func (t Transaction) Value() float64 {
	if t.TransactionType == TransactionTypePayBill {
		if t.BillAmount == nil {
			return 0
		}
		return *t.BillAmount
	}
	return t.AmountPaid
}

type VivoRechargeRequest struct {
	PhoneNumber    string   `json:"phone_number" binding:"required,phone"`
	AmountPaid     float64  `json:"amount_paid" binding:"required,gt=0"`
	AmountReceived *float64 `json:"amount_received" binding:"required,gte=0"`
}

type TimRechargeRequest struct {
	PhoneNumber    string   `json:"phone_number" binding:"required,phone"`
	TimEmail       string   `json:"tim_email" binding:"required"`
	TimPassword    string   `json:"tim_password" binding:"required"`
	AmountPaid     float64  `json:"amount_paid" binding:"required,gt=0"`
	AmountReceived *float64 `json:"amount_received" binding:"required,gte=0"`
}

type PayBillRequest struct {
	PhoneNumber     string   `json:"phone_number" binding:"required,phone"`
	Operator        Operator `json:"operator" binding:"required,operator"`
	AccountPassword string   `json:"account_password" binding:"required"`
	BillAmount      *float64 `json:"bill_amount" binding:"required,gte=0"`
}

type StatusUpdateRequest struct {
	Status Status `json:"status" form:"status" binding:"required,txstatus"`
}

// TransactionFilters narrows the admin listing. Zero values mean "any".
type TransactionFilters struct {
	UserID          *string
	Status          *Status
	TransactionType *TransactionType
	Operator        *Operator
}

// TransactionDetails is the admin view of a transaction with its owner
type TransactionDetails struct {
	Transaction Transaction `json:"transaction"`
	User        *User       `json:"user"`
}

// TransactionStats feeds the admin dashboard counters
type TransactionStats struct {
	Total          int64            `json:"total"`
	ByStatus       map[Status]int64 `json:"by_status"`
	CompletedTotal float64          `json:"completed_total"` // Sum of Value() over completed transactions
}
