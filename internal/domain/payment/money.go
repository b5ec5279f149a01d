package payment

import (
	"strings"

	"github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// zeroDecimal lists ISO 4217 currencies whose minor unit equals the major unit.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true, "KMF": true,
	"KRW": true, "MGA": true, "PYG": true, "RWF": true, "UGX": true, "VND": true,
	"VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// Money is a decimal amount in a currency. Currency codes are always upper case.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney builds a Money value and normalizes the currency code.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToUpper(currency)}
}

// MoneyFromMinor converts an amount in minor units (as Stripe reports it) into Money.
func MoneyFromMinor(minor int64, currency string) Money {
	cur := strings.ToUpper(currency)
	return Money{Amount: decimal.New(minor, -exponent(cur)), Currency: cur}
}

// Minor returns the amount in minor units, rounding half away from zero.
func (m Money) Minor() int64 {
	return m.Amount.Shift(exponent(m.Currency)).Round(0).IntPart()
}

// Formatted returns the amount with the currency's minor-unit precision.
func (m Money) Formatted() string {
	return m.Amount.StringFixed(exponent(m.Currency))
}

func (m Money) String() string {
	return m.Formatted() + " " + m.Currency
}

// Equal reports whether both amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// Validate checks that the amount is valid.
func (m Money) Validate() error {
	if !m.Amount.IsPositive() {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if len(m.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}

func exponent(currency string) int32 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}
