package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

type (
	EntryType string

	// Money is a whole-unit currency amount. The tracked currencies have no
	// minor unit, so no cents field.
	Money struct {
		Units int64
	}

	// Entry is one financial event recorded to a shared ledger. Entries are
	// immutable once created; derived views are always recomputed from the
	// full current collection.
	Entry struct {
		ID            string
		Date          time.Time
		Type          EntryType
		Amount        Money
		Category      string
		PaymentMethod string // expense entries only
		Memo          string
		RecordedBy    string
	}
)

var (
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidType           = errors.New("invalid entry type")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrEmptyCategory         = errors.New("empty category")
	ErrEmptyRecorder         = errors.New("empty recorder")
	ErrPaymentMethodOnIncome = errors.New("payment method not allowed on income entries")
)

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

func (m Money) Validate() error {
	if m.Units <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks an entry at the input boundary. The analytics engines
// assume entries passed this check and do not re-validate.
func (e Entry) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if !e.Type.Valid() {
		return ErrInvalidType
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Category) > 100 {
		return errors.New("category too long (max 100 characters)")
	}
	if e.Type == Income && strings.TrimSpace(e.PaymentMethod) != "" {
		return ErrPaymentMethodOnIncome
	}
	if len(e.Memo) > 500 {
		return errors.New("memo too long (max 500 characters)")
	}
	if strings.TrimSpace(e.RecordedBy) == "" {
		return ErrEmptyRecorder
	}
	return nil
}
