package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "fairdice-backend/internal/errors"
)

// FlexString accepts a JSON string or number. Browser clients send the
// specific-number option as either.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "option must be a string or number", err)
	}
	*f = FlexString(n.String())
	return nil
}

type BetRequest struct {
	Address        string           `json:"address"`
	Amount         *Amount          `json:"amount"`
	Bet            *Amount          `json:"bet,omitempty"` // legacy name for amount
	ClientSeed     string           `json:"clientSeed"`
	Nonce          *uint64          `json:"nonce"`
	ServerSeedHash string           `json:"serverSeedHash,omitempty"`
	BetType        string           `json:"betType,omitempty"`
	BetVariant     string           `json:"betVariant,omitempty"`
	BetOption      FlexString       `json:"betOption,omitempty"`
	Multiplier     *decimal.Decimal `json:"multiplier,omitempty"`
}

// Stake returns the bet amount from whichever field the caller used.
func (r *BetRequest) Stake() Amount {
	if r.Amount != nil {
		return *r.Amount
	}
	if r.Bet != nil {
		return *r.Bet
	}
	return Amount{}
}

// Variant resolves the bet variant and checks a caller-supplied multiplier
// against it.
func (r *BetRequest) Variant() (BetVariant, error) {
	betType := r.BetType
	if betType == "" {
		betType = r.BetVariant
	}
	v, err := ParseVariant(betType, string(r.BetOption))
	if err != nil {
		return nil, err
	}
	if r.Multiplier != nil && !r.Multiplier.Equal(v.Multiplier()) {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidInput, "multiplier does not match bet type", map[string]string{
			"betType":    string(v.Type()),
			"multiplier": r.Multiplier.String(),
			"expected":   v.Multiplier().String(),
		})
	}
	return v, nil
}

// Validate checks the request and normalizes Address in place.
func (r *BetRequest) Validate() error {
	address, err := NormalizeAddress(r.Address)
	if err != nil {
		return err
	}
	r.Address = address

	if r.Stake().IsZero() {
		return apperrors.New(apperrors.CodeInvalidInput, "bet amount must be positive")
	}
	if strings.TrimSpace(r.ClientSeed) == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "clientSeed is required")
	}
	if r.Nonce == nil {
		return apperrors.New(apperrors.CodeInvalidInput, "nonce is required")
	}
	if _, err := r.Variant(); err != nil {
		return err
	}
	return nil
}

// MonetaryRequest is a deposit or withdrawal confirmed upstream.
type MonetaryRequest struct {
	Address string  `json:"address"`
	Amount  *Amount `json:"amount"`
	TxHash  string  `json:"txHash"`
}

func (r *MonetaryRequest) Validate() error {
	address, err := NormalizeAddress(r.Address)
	if err != nil {
		return err
	}
	r.Address = address

	if r.Amount == nil || r.Amount.IsZero() {
		return apperrors.New(apperrors.CodeInvalidInput, "amount must be positive")
	}
	if strings.TrimSpace(r.TxHash) == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "txHash is required")
	}
	return nil
}

// TokenRequest records a mint or an exchange against the token contract.
type TokenRequest struct {
	Address     string  `json:"address"`
	EthAmount   *Amount `json:"ethAmount"`
	TokenAmount *Amount `json:"tokenAmount"`
	TxHash      string  `json:"txHash"`
}

func (r *TokenRequest) Validate() error {
	address, err := NormalizeAddress(r.Address)
	if err != nil {
		return err
	}
	r.Address = address

	if r.EthAmount == nil || r.TokenAmount == nil {
		return apperrors.New(apperrors.CodeInvalidInput, "ethAmount and tokenAmount are required")
	}
	if strings.TrimSpace(r.TxHash) == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "txHash is required")
	}
	return nil
}

type VerifyRequest struct {
	ServerSeed     string     `json:"serverSeed"`
	ServerSeedHash string     `json:"serverSeedHash"`
	ClientSeed     string     `json:"clientSeed"`
	Nonce          *uint64    `json:"nonce"`
	BetType        string     `json:"betType,omitempty"`
	BetOption      FlexString `json:"betOption,omitempty"`
}

func (r *VerifyRequest) Validate() error {
	if r.ServerSeed == "" || r.ServerSeedHash == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "serverSeed and serverSeedHash are required")
	}
	if r.ClientSeed == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "clientSeed is required")
	}
	if r.Nonce == nil {
		return apperrors.New(apperrors.CodeInvalidInput, "nonce is required")
	}
	return nil
}
