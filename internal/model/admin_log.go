package model

import (
	"encoding/json"
	"time"
)

// AdminLog is an append-only record of an action taken on a transaction
type AdminLog struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	UserEmail     string          `json:"user_email"` // Snapshot at the time of the action
	Action        string          `json:"action"`
	Details       json.RawMessage `json:"details"`
	CreatedAt     time.Time       `json:"created_at"`
}

type AdminLogFilters struct {
	TransactionID *string
}

// LogDetails is the typed payload of an audit entry. The set of
// implementations is closed to this package.
type LogDetails interface {
	Action() string
	isLogDetails()
}

type CreateRechargeDetails struct {
	Operator Operator `json:"-"`
	Phone    string   `json:"phone"`
	Paid     float64  `json:"paid"`
	Received float64  `json:"received"`
	TimEmail *string  `json:"tim_email,omitempty"`
}

func (d CreateRechargeDetails) Action() string {
	if d.Operator == OperatorTim {
		return "Nova recarga Tim criada"
	}
	return "Nova recarga Vivo criada"
}

type CreateBillDetails struct {
	Phone       string   `json:"phone"`
	Operator    Operator `json:"operator"`
	HasPassword bool     `json:"has_password"`
}

func (CreateBillDetails) Action() string { return "Nova solicitação de pagamento de fatura" }

type ReceiptUploadedDetails struct {
	Filename        string          `json:"filename"`
	TransactionType TransactionType `json:"transaction_type"`
}

func (ReceiptUploadedDetails) Action() string { return "Comprovante de pagamento enviado" }

type StatusChangedDetails struct {
	From      Status `json:"from"`
	To        Status `json:"to"`
	ChangedBy string `json:"changed_by"`
}

func (StatusChangedDetails) Action() string { return "Status da transação atualizado" }

func (CreateRechargeDetails) isLogDetails()  {}
func (CreateBillDetails) isLogDetails()      {}
func (ReceiptUploadedDetails) isLogDetails() {}
func (StatusChangedDetails) isLogDetails()   {}
