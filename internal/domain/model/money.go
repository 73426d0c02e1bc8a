package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"seat-marketplace/internal/domain"
)

// Money is an immutable amount stored as minor units (2 decimal places) plus an ISO currency code.
type Money struct {
	minor    int64
	currency string
}

// NewMoney builds Money from minor units (e.g. grosze, cents).
func NewMoney(minor int64, currency string) (Money, error) {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if len(cur) != 3 {
		return Money{}, domain.Invalid("currency", "must be a 3-letter code")
	}
	return Money{minor: minor, currency: cur}, nil
}

// ParseMoney parses a decimal string such as "100", "100.5" or "100.00".
// More than two fractional digits are rejected rather than silently rounded.
func ParseMoney(amount, currency string) (Money, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return Money{}, domain.Invalid("amount", "empty")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return Money{}, domain.Invalid("amount", "more than 2 decimal places")
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Money{}, domain.Invalid("amount", "not a number")
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return Money{}, domain.Invalid("amount", "not a number")
	}
	minor := w*100 + f
	if neg {
		minor = -minor
	}
	return NewMoney(minor, currency)
}

func (m Money) Minor() int64       { return m.minor }
func (m Money) Currency() string   { return m.currency }
func (m Money) IsZero() bool       { return m.minor == 0 }
func (m Money) IsPositive() bool   { return m.minor > 0 }
func (m Money) Equal(o Money) bool { return m.minor == o.minor && m.currency == o.currency }

// Decimal renders the amount with exactly two fractional digits.
func (m Money) Decimal() string {
	sign := ""
	v := m.minor
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) String() string { return m.Decimal() + " " + m.currency }

func (m Money) Add(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", domain.ErrCurrencyMismatch, m.currency, o.currency)
	}
	return Money{minor: m.minor + o.minor, currency: m.currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if m.currency != o.currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", domain.ErrCurrencyMismatch, m.currency, o.currency)
	}
	return Money{minor: m.minor - o.minor, currency: m.currency}, nil
}

// Percent returns m*rate rounded half away from zero to 2 decimal places (rate 0.05 == 5%).
// The rate is taken at its shortest decimal form, so 0.145 means exactly 145/1000.
func (m Money) Percent(rate float64) Money {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(rate, 'f', -1, 64))
	if !ok {
		return Money{currency: m.currency}
	}
	r.Mul(r, new(big.Rat).SetInt64(m.minor))

	q, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if rem.Abs(rem).Lsh(rem, 1).Cmp(r.Denom()) >= 0 {
		q.Add(q, big.NewInt(int64(r.Num().Sign())))
	}
	return Money{minor: q.Int64(), currency: m.currency}
}

type moneyJSON struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Decimal(), Currency: m.currency})
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v.Currency == "" {
		*m = Money{}
		return nil
	}
	parsed, err := ParseMoney(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
