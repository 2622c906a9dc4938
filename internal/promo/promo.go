// Package promo implements the kiosk promo-code engines. The top-up kiosk
// and the bike-return kiosk carry separate code tables; both share the
// application rules here.
package promo

import (
	"errors"
	"strings"
)

var (
	// ErrNoCode is returned when no code was entered
	ErrNoCode = errors.New("no promo code entered")

	// ErrNoAmount is returned when a code is applied before an amount is chosen
	ErrNoAmount = errors.New("no amount selected")

	// ErrUnknownCode is returned for codes missing from the table
	ErrUnknownCode = errors.New("unknown promo code")

	// ErrNotEligible is returned when the amount fails a code's threshold
	ErrNotEligible = errors.New("amount not eligible for promo code")
)

// Kind classifies how a promo code's value is applied
type Kind string

const (
	// KindPercent grants floor(amount × value / 100)
	KindPercent Kind = "PERCENT"

	// KindBonus grants a fixed bonus, gated by a minimum amount
	KindBonus Kind = "BONUS"

	// KindFixed grants a fixed discount with no threshold
	KindFixed Kind = "FIXED"
)

// Code is one entry in a promo table
type Code struct {
	Code        string
	Kind        Kind
	Value       int64
	MinAmount   int64 // bonus codes only
	Description string
}

// Applied is the result of successfully applying a code
type Applied struct {
	Code        string
	Amount      int64 // the bonus or discount granted
	Description string
}

// Table maps normalized code strings to their definitions
type Table struct {
	codes map[string]Code
}

// NewTable builds a table; lookups are case-insensitive
func NewTable(codes ...Code) *Table {
	t := &Table{codes: make(map[string]Code, len(codes))}
	for _, c := range codes {
		t.codes[strings.ToUpper(c.Code)] = c
	}
	return t
}

// Apply resolves and applies a code against the chosen amount. Unknown
// codes and failed eligibility are distinct errors; both leave it to the
// caller to zero any previously applied promo.
func (t *Table) Apply(code string, amount int64) (*Applied, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, ErrNoCode
	}
	if amount <= 0 {
		return nil, ErrNoAmount
	}

	c, ok := t.codes[normalized]
	if !ok {
		return nil, ErrUnknownCode
	}

	applied := &Applied{Code: c.Code, Description: c.Description}
	switch c.Kind {
	case KindPercent:
		applied.Amount = amount * c.Value / 100
	case KindBonus:
		if amount < c.MinAmount {
			return nil, ErrNotEligible
		}
		applied.Amount = c.Value
	case KindFixed:
		applied.Amount = c.Value
	}

	return applied, nil
}

// TopUpCodes is the demo top-up promo table
func TopUpCodes() *Table {
	return NewTable(
		Code{Code: "WELCOME100", Kind: KindBonus, Value: 100000, MinAmount: 200000,
			Description: "100.000 ₫ bonus on top-ups from 200.000 ₫"},
		Code{Code: "DISCOUNT10", Kind: KindPercent, Value: 10,
			Description: "10% bonus on the top-up amount"},
		Code{Code: "BONUS50K", Kind: KindBonus, Value: 50000, MinAmount: 100000,
			Description: "50.000 ₫ bonus on top-ups from 100.000 ₫"},
	)
}

// BikeReturnCodes is the demo bike-return promo table
func BikeReturnCodes() *Table {
	return NewTable(
		Code{Code: "SAVE10", Kind: KindPercent, Value: 10, Description: "10% off"},
		Code{Code: "FIRST20", Kind: KindPercent, Value: 20, Description: "20% off the first ride"},
		Code{Code: "FREE2K", Kind: KindFixed, Value: 2000, Description: "2.000 ₫ off"},
	)
}
