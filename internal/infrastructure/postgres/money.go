package postgres

import (
	"fmt"
	"strings"

	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// Numeric columns are read as text so no precision is lost on the way to decimal.

func parseMoney(amount, currency string) (payment.Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return payment.Money{}, fmt.Errorf("parse numeric %q: %w", amount, err)
	}
	return payment.NewMoney(d, strings.TrimSpace(currency)), nil
}

func parseOptionalMoney(amount, currency *string) (*payment.Money, error) {
	if amount == nil || currency == nil {
		return nil, nil
	}
	m, err := parseMoney(*amount, *currency)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func moneyColumns(m *payment.Money) (amount, currency *string) {
	if m == nil {
		return nil, nil
	}
	a, c := m.Amount.String(), m.Currency
	return &a, &c
}
