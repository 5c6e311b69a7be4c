package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"

	Cash Account = "cash"
	Bank Account = "bank"
)

const (
	// WithdrawalCategory marks both halves of a bank-to-cash withdrawal.
	WithdrawalCategory = "Tarik Tunai"

	WithdrawalDescription  = "Transfer bank ke cash"
	WithdrawalCounterparty = "ATM"

	// RolloverCategory labels the synthetic carry-over income line of a cutoff period.
	RolloverCategory = "Sisa Periode Lalu"
)

type (
	TxType string

	Account string

	Category struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type TxType `json:"type"`
	}

	Transaction struct {
		ID           string    `json:"id"`
		Type         TxType    `json:"type"`
		Amount       int64     `json:"amount"`
		Date         string    `json:"date"` // YYYY-MM-DD
		Account      Account   `json:"account"`
		Category     string    `json:"category"`
		Description  string    `json:"description,omitempty"`
		Counterparty string    `json:"counterparty,omitempty"`
		CreatedAt    time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidAccount  = errors.New("invalid account")
	ErrEmptyCategory   = errors.New("empty category")
	ErrEmptyName       = errors.New("empty category name")
	ErrDescriptionSize = errors.New("description too long (max 200 characters)")
)

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Opposite returns the other transaction type.
func (t TxType) Opposite() TxType {
	if t == Income {
		return Expense
	}
	return Income
}

func (a Account) Valid() bool {
	return a == Cash || a == Bank
}

// Opposite returns the other account.
func (a Account) Opposite() Account {
	if a == Cash {
		return Bank
	}
	return Cash
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if t.Amount <= 0 || t.Amount > MaxAmount {
		return ErrInvalidAmount
	}
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Account.Valid() {
		return ErrInvalidAccount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 200 {
		return ErrDescriptionSize
	}
	return nil
}

// IsWithdrawal reports whether the transaction is one half of a cash withdrawal.
func (t Transaction) IsWithdrawal() bool {
	return t.Category == WithdrawalCategory
}

// PairsWith reports whether o is the counterpart half of the withdrawal t.
// The match is inferred from amount, date, reserved label and opposite type
// and account; there is no stored link between the two rows.
func (t Transaction) PairsWith(o Transaction) bool {
	return t.ID != o.ID &&
		t.IsWithdrawal() && o.IsWithdrawal() &&
		t.Amount == o.Amount &&
		t.Date == o.Date &&
		o.Type == t.Type.Opposite() &&
		o.Account == t.Account.Opposite()
}

// Signed returns the amount with expenses negated.
func (t Transaction) Signed() int64 {
	if t.Type == Expense {
		return -t.Amount
	}
	return t.Amount
}
