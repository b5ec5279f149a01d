package postgres

import (
	"testing"

	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
	}{
		{"two decimals", "42.5000", "EUR", "42.50 EUR"},
		{"char padding", " 10.0000 ", "USD", "10.00 USD"},
		{"zero decimal currency", "1500.0000", "JPY", "1500 JPY"},
		{"large", "12345678901.9900", "EUR", "12345678901.99 EUR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parseMoney(tt.amount, tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.String())
		})
	}
}

func TestParseMoney_Invalid(t *testing.T) {
	_, err := parseMoney("abc", "EUR")
	assert.Error(t, err)
}

func TestOptionalMoney_RoundTrip(t *testing.T) {
	amount, currency := moneyColumns(nil)
	assert.Nil(t, amount)
	assert.Nil(t, currency)

	paid := payment.MoneyFromMinor(4250, "EUR")
	amount, currency = moneyColumns(&paid)
	back, err := parseOptionalMoney(amount, currency)
	require.NoError(t, err)
	require.NotNil(t, back)
	assert.True(t, back.Equal(paid))
}
