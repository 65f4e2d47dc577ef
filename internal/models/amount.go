package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	apperrors "fairdice-backend/internal/errors"
)

// Amount is a non-negative token quantity in the smallest unit.
type Amount struct {
	v uint256.Int
}

func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// ParseAmount accepts a base-10 string of digits only.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, apperrors.New(apperrors.CodeInvalidInput, "amount is empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return Amount{}, apperrors.WithMetadata(apperrors.CodeInvalidInput, "amount must be a base-10 integer", map[string]string{"amount": s})
		}
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, apperrors.Wrap(apperrors.CodeAmountOverflow, "amount out of range", err)
	}
	return Amount{v: *v}, nil
}

func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) (Amount, error) {
	var out Amount
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, apperrors.WithMetadata(apperrors.CodeAmountOverflow, "amount overflow", map[string]string{
			"left":  a.String(),
			"right": b.String(),
		})
	}
	return out, nil
}

// Sub returns a-b, or an INSUFFICIENT_BALANCE error when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var out Amount
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, apperrors.WithMetadata(apperrors.CodeInsufficientBalance, "insufficient balance", map[string]string{
			"available": a.String(),
			"required":  b.String(),
		})
	}
	return out, nil
}

// MulDecimal multiplies by a non-negative decimal and floors the result.
func (a Amount) MulDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, apperrors.New(apperrors.CodeInvalidInput, "negative factor")
	}

	n := new(big.Int).Mul(a.v.ToBig(), d.Coefficient())
	exp := d.Exponent()
	if exp > 0 {
		n.Mul(n, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	} else if exp < 0 {
		n.Quo(n, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil))
	}

	v, overflow := uint256.FromBig(n)
	if overflow {
		return Amount{}, apperrors.New(apperrors.CodeAmountOverflow, "amount overflow")
	}
	return Amount{v: *v}, nil
}

func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

func (a Amount) String() string {
	return a.v.Dec()
}

// Decimal is used for ratios and display only, never for ledger arithmetic.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.v.ToBig(), 0)
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	v, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "123" and 123.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return apperrors.New(apperrors.CodeInvalidInput, "amount is required")
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid amount", err)
		}
		return a.UnmarshalText([]byte(s))
	}
	return a.UnmarshalText(data)
}

// Delta is a signed change to a balance.
type Delta struct {
	Negative bool
	Abs      Amount
}

func Credit(a Amount) Delta { return Delta{Abs: a} }
func Debit(a Amount) Delta  { return Delta{Negative: !a.IsZero(), Abs: a} }

func (d Delta) IsZero() bool { return d.Abs.IsZero() }

// ApplyTo returns balance+d. A debit larger than the balance fails with
// INSUFFICIENT_BALANCE.
func (d Delta) ApplyTo(balance Amount) (Amount, error) {
	if d.Negative {
		return balance.Sub(d.Abs)
	}
	return balance.Add(d.Abs)
}

// RevertFrom returns balance-d.
func (d Delta) RevertFrom(balance Amount) (Amount, error) {
	if d.Negative {
		return balance.Add(d.Abs)
	}
	return balance.Sub(d.Abs)
}

func (d Delta) String() string {
	if d.Negative {
		return "-" + d.Abs.String()
	}
	return d.Abs.String()
}

func ParseDelta(s string) (Delta, error) {
	neg := len(s) > 0 && s[0] == '-'
	if neg {
		s = s[1:]
	}
	abs, err := ParseAmount(s)
	if err != nil {
		return Delta{}, fmt.Errorf("parse delta: %w", err)
	}
	return Delta{Negative: neg && !abs.IsZero(), Abs: abs}, nil
}

func (d Delta) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Delta) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("delta must be a string: %w", err)
	}
	v, err := ParseDelta(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
