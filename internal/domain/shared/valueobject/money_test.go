package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money from minor units", func(t *testing.T) {
		m, err := NewMoney(150, USD)

		require.NoError(t, err)
		assert.Equal(t, int64(150), m.MinorUnits())
		assert.Equal(t, USD, m.Currency())
		assert.Equal(t, "1.50", m.StringFixed())
	})

	t.Run("fails with empty currency", func(t *testing.T) {
		_, err := NewMoney(100, "")

		assert.Error(t, err)
	})
}

func TestNewMoneyFromDecimal(t *testing.T) {
	t.Run("converts major units to minor units", func(t *testing.T) {
		m, err := NewMoneyFromDecimal(decimal.NewFromFloat(0.10), USD)

		require.NoError(t, err)
		assert.Equal(t, int64(10), m.MinorUnits())
	})

	t.Run("truncates below minor-unit precision", func(t *testing.T) {
		m, err := NewMoneyFromDecimal(decimal.RequireFromString("0.059"), USD)

		require.NoError(t, err)
		assert.Equal(t, int64(5), m.MinorUnits())
	})
}

func TestMoneyArithmetic(t *testing.T) {
	t.Run("adds same currency", func(t *testing.T) {
		a := NewMoneyFromMinorUnits(100)
		b := NewMoneyFromMinorUnits(50)

		sum, err := a.Add(b)

		require.NoError(t, err)
		assert.Equal(t, int64(150), sum.MinorUnits())
	})

	t.Run("fails to add different currencies", func(t *testing.T) {
		a, _ := NewMoney(100, USD)
		b, _ := NewMoney(100, EUR)

		_, err := a.Add(b)

		assert.Error(t, err)
	})

	t.Run("subtracts same currency", func(t *testing.T) {
		a := NewMoneyFromMinorUnits(100)
		b := NewMoneyFromMinorUnits(30)

		diff, err := a.Subtract(b)

		require.NoError(t, err)
		assert.Equal(t, int64(70), diff.MinorUnits())
	})

	t.Run("multiplies by integer", func(t *testing.T) {
		m := NewMoneyFromMinorUnits(10)

		assert.Equal(t, int64(120), m.MultiplyByInt(12).MinorUnits())
	})

	t.Run("does not mutate the receiver", func(t *testing.T) {
		m := NewMoneyFromMinorUnits(100)
		_ = m.MultiplyByInt(5)
		_, _ = m.Add(NewMoneyFromMinorUnits(1))

		assert.Equal(t, int64(100), m.MinorUnits())
	})
}

func TestMoneyComparison(t *testing.T) {
	a := NewMoneyFromMinorUnits(100)
	b := NewMoneyFromMinorUnits(200)

	t.Run("less than", func(t *testing.T) {
		less, err := a.LessThan(b)
		require.NoError(t, err)
		assert.True(t, less)
	})

	t.Run("greater than or equal", func(t *testing.T) {
		gte, err := b.GreaterThanOrEqual(a)
		require.NoError(t, err)
		assert.True(t, gte)

		gte, err = a.GreaterThanOrEqual(a)
		require.NoError(t, err)
		assert.True(t, gte)
	})

	t.Run("equals", func(t *testing.T) {
		assert.True(t, a.Equals(NewMoneyFromMinorUnits(100)))
		assert.False(t, a.Equals(b))
	})

	t.Run("sign predicates", func(t *testing.T) {
		assert.True(t, a.IsPositive())
		assert.True(t, a.Negate().IsNegative())
		assert.True(t, ZeroDefault().IsZero())
	})
}

func TestMoneyJSON(t *testing.T) {
	t.Run("marshals as integer minor units", func(t *testing.T) {
		m := NewMoneyFromMinorUnits(1234)

		data, err := json.Marshal(m)

		require.NoError(t, err)
		assert.JSONEq(t, `{"minor_units":1234,"currency":"USD"}`, string(data))
	})

	t.Run("round trips", func(t *testing.T) {
		original := NewMoneyFromMinorUnits(60)

		data, err := json.Marshal(original)
		require.NoError(t, err)

		var decoded Money
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, original.Equals(decoded))
	})
}

func TestMoneyScan(t *testing.T) {
	t.Run("scans int64", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan(int64(500)))
		assert.Equal(t, int64(500), m.MinorUnits())
		assert.Equal(t, DefaultCurrency, m.Currency())
	})

	t.Run("scans nil as zero", func(t *testing.T) {
		var m Money
		require.NoError(t, m.Scan(nil))
		assert.True(t, m.IsZero())
	})
}
