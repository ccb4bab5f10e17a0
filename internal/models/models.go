// Package models defines the core data types shared by the rule and
// pattern matching engines: bank transactions, user-defined rules with
// their conditions and actions, learned match patterns, and the results
// produced by an evaluation.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the signed direction of a bank transaction.
type Direction string

const (
	// DirectionDebit represents money flowing out of the account.
	DirectionDebit Direction = "debit"
	// DirectionCredit represents money flowing into the account.
	DirectionCredit Direction = "credit"
)

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// ParseDirection parses and validates a transaction direction from string
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit", "d", "dr":
		return DirectionDebit, nil
	case "credit", "c", "cr":
		return DirectionCredit, nil
	default:
		return "", fmt.Errorf("invalid direction '%s': must be debit or credit", s)
	}
}

// Transaction is an immutable snapshot of one bank transaction as seen by
// the matching engines. It is passed by value into every evaluation and
// never mutated by the core.
type Transaction struct {
	Date            time.Time       `json:"date"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Direction       Direction       `json:"direction,omitempty"`
	CounterpartyRef string          `json:"counterparty_ref,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	TenantID        string          `json:"tenant_id"`
}

// NewTransaction creates a new Transaction instance
func NewTransaction(tenantID, description string, amount decimal.Decimal, direction Direction, date time.Time) Transaction {
	return Transaction{
		Date:        date,
		Description: description,
		Amount:      amount,
		Direction:   direction,
		TenantID:    tenantID,
	}
}

// Validate performs basic validation on the Transaction
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.TenantID) == "" {
		return fmt.Errorf("transaction tenant ID cannot be empty")
	}

	if t.Direction != "" && !t.Direction.IsValid() {
		return fmt.Errorf("invalid transaction direction: %s", t.Direction)
	}

	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	return nil
}

// AbsoluteAmount returns the absolute value of the transaction amount
func (t Transaction) AbsoluteAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// EffectiveDirection returns the explicit direction when set, otherwise
// derives it from the amount sign: negative amounts are debits.
func (t Transaction) EffectiveDirection() Direction {
	if t.Direction.IsValid() {
		return t.Direction
	}
	if t.Amount.IsNegative() {
		return DirectionDebit
	}
	return DirectionCredit
}

// IsDebit returns true if the transaction moves money out of the account
func (t Transaction) IsDebit() bool {
	return t.EffectiveDirection() == DirectionDebit
}

// IsCredit returns true if the transaction moves money into the account
func (t Transaction) IsCredit() bool {
	return t.EffectiveDirection() == DirectionCredit
}

// String returns a string representation of the Transaction
func (t Transaction) String() string {
	return fmt.Sprintf("Transaction{Tenant: %s, Amount: %s, Direction: %s, Description: %q}",
		t.TenantID, t.Amount.String(), t.EffectiveDirection(), t.Description)
}

// MarshalJSON implements custom JSON marshaling for Transaction
func (t Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		Alias
	}{
		Amount: t.Amount.String(),
		Date:   t.Date.Format("2006-01-02"),
		Alias:  (Alias)(t),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Transaction
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type Alias Transaction
	aux := &struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	t.Amount, err = ParseDecimalFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	t.Date, err = ParseTimeWithFormats(aux.Date)
	if err != nil {
		return fmt.Errorf("invalid date format: %w", err)
	}

	return nil
}

// ParseDecimalFromString parses a decimal value from string with validation
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// Remove common currency symbols and thousand separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTimeWithFormats attempts to parse time from string using multiple common formats
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006",
		"2006/01/02",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}
