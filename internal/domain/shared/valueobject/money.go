package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD" // US Dollar (default)
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	CNY Currency = "CNY" // Chinese Yuan
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = USD

// Money is a value object representing monetary amounts as an integer number
// of minor currency units (cents). It is immutable - all operations return new
// Money instances. Integer minor units avoid the rounding drift of floating
// point, and are the only representation that crosses the API boundary.
type Money struct {
	minorUnits int64
	currency   Currency
}

// NewMoney creates a new Money from an amount in minor units
func NewMoney(minorUnits int64, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{
		minorUnits: minorUnits,
		currency:   currency,
	}, nil
}

// NewMoneyFromMinorUnits creates Money in the default currency
func NewMoneyFromMinorUnits(minorUnits int64) Money {
	return Money{minorUnits: minorUnits, currency: DefaultCurrency}
}

// NewMoneyFromDecimal creates Money from a major-unit decimal amount,
// truncating below minor-unit precision (e.g. "0.10" -> 10 cents).
func NewMoneyFromDecimal(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{
		minorUnits: amount.Shift(2).Truncate(0).IntPart(),
		currency:   currency,
	}, nil
}

// NewMoneyFromString creates Money from a major-unit string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoneyFromDecimal(d, currency)
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{minorUnits: 0, currency: currency}
}

// ZeroDefault returns a zero-value Money in the default currency
func ZeroDefault() Money {
	return Zero(DefaultCurrency)
}

// MinorUnits returns the amount as an integer number of minor units
func (m Money) MinorUnits() int64 {
	return m.minorUnits
}

// Decimal returns the amount in major units as a decimal
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.minorUnits).Shift(-2)
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.minorUnits == 0
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.minorUnits > 0
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.minorUnits < 0
}

// Add returns a new Money with the sum of both amounts
// Returns error if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		minorUnits: m.minorUnits + other.minorUnits,
		currency:   m.currency,
	}, nil
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns a new Money with the difference
// Returns error if currencies don't match
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		minorUnits: m.minorUnits - other.minorUnits,
		currency:   m.currency,
	}, nil
}

// MustSubtract subtracts two Money values, panics if currencies don't match
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// MultiplyByInt returns a new Money multiplied by an integer factor
func (m Money) MultiplyByInt(factor int64) Money {
	return Money{
		minorUnits: m.minorUnits * factor,
		currency:   m.currency,
	}
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{
		minorUnits: -m.minorUnits,
		currency:   m.currency,
	}
}

// Abs returns a new Money with the absolute value
func (m Money) Abs() Money {
	if m.minorUnits < 0 {
		return m.Negate()
	}
	return m
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.minorUnits == other.minorUnits
}

// LessThan returns true if this Money is less than the other
// Returns error if currencies don't match
func (m Money) LessThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.minorUnits < other.minorUnits, nil
}

// GreaterThanOrEqual returns true if this Money is greater than or equal to the other
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.minorUnits >= other.minorUnits, nil
}

// String returns a string representation of the Money in major units
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(2), m.currency)
}

// StringFixed returns the major-unit amount as a string with two decimal places
func (m Money) StringFixed() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON implements json.Marshaler.
// Amounts are emitted as integer minor units, never floating point.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MinorUnits int64    `json:"minor_units"`
		Currency   Currency `json:"currency"`
	}{
		MinorUnits: m.minorUnits,
		Currency:   m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler for deserialization purposes.
// An empty currency defaults to DefaultCurrency.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		MinorUnits int64    `json:"minor_units"`
		Currency   Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.minorUnits = v.MinorUnits
	m.currency = v.Currency
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}

// Value implements driver.Valuer for database storage.
// Stores the integer minor units.
func (m Money) Value() (driver.Value, error) {
	return m.minorUnits, nil
}

// Scan implements sql.Scanner for database retrieval.
// Currency defaults to DefaultCurrency if not already set; storing currency in
// a separate column is the repository's responsibility.
func (m *Money) Scan(value any) error {
	if value == nil {
		m.minorUnits = 0
		m.currency = DefaultCurrency
		return nil
	}

	switch v := value.(type) {
	case int64:
		m.minorUnits = v
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("invalid numeric value: %w", err)
		}
		m.minorUnits = d.IntPart()
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}
