package models

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "fairdice-backend/internal/errors"
)

type BetType string

const (
	BetTypeClassic  BetType = "classic"
	BetTypeSpecific BetType = "specific"
	BetTypeOddEven  BetType = "odd-even"
	BetTypeRange    BetType = "range"
)

type Parity string

const (
	ParityOdd  Parity = "odd"
	ParityEven Parity = "even"
)

type Band string

const (
	BandLow  Band = "low"
	BandMid  Band = "mid"
	BandHigh Band = "high"
)

var (
	multiplierTwo   = decimal.NewFromInt(2)
	multiplierThree = decimal.NewFromInt(3)
	multiplierSix   = decimal.NewFromInt(6)
)

// BetVariant is the rule set a bet is evaluated against. The set of
// implementations is closed: Classic, SpecificNumber, OddEven and Range.
type BetVariant interface {
	Type() BetType
	Option() string
	Multiplier() decimal.Decimal
	variant()
}

// Classic wins on 4, 5 or 6.
type Classic struct{}

// SpecificNumber wins when the roll equals N.
type SpecificNumber struct{ N int }

// OddEven wins when the roll parity matches Choice.
type OddEven struct{ Choice Parity }

// Range wins when the roll falls in Band: low {1,2}, mid {3,4}, high {5,6}.
type Range struct{ Band Band }

func (Classic) Type() BetType               { return BetTypeClassic }
func (Classic) Option() string              { return "" }
func (Classic) Multiplier() decimal.Decimal { return multiplierTwo }
func (Classic) variant()                    {}

func (SpecificNumber) Type() BetType               { return BetTypeSpecific }
func (v SpecificNumber) Option() string            { return strconv.Itoa(v.N) }
func (SpecificNumber) Multiplier() decimal.Decimal { return multiplierSix }
func (SpecificNumber) variant()                    {}

func (OddEven) Type() BetType               { return BetTypeOddEven }
func (v OddEven) Option() string            { return string(v.Choice) }
func (OddEven) Multiplier() decimal.Decimal { return multiplierTwo }
func (OddEven) variant()                    {}

func (Range) Type() BetType               { return BetTypeRange }
func (v Range) Option() string            { return string(v.Band) }
func (Range) Multiplier() decimal.Decimal { return multiplierThree }
func (Range) variant()                    {}

// ParseVariant builds a variant from its wire form. Unknown or empty bet
// types fall back to Classic; a bad option for a known type is rejected.
func ParseVariant(betType, option string) (BetVariant, error) {
	option = strings.ToLower(strings.TrimSpace(option))

	switch BetType(strings.ToLower(strings.TrimSpace(betType))) {
	case BetTypeSpecific:
		n, err := strconv.Atoi(option)
		if err != nil || n < 1 || n > 6 {
			return nil, apperrors.WithMetadata(apperrors.CodeInvalidInput, "specific bet needs a number between 1 and 6", map[string]string{"betOption": option})
		}
		return SpecificNumber{N: n}, nil

	case BetTypeOddEven:
		switch Parity(option) {
		case ParityOdd, ParityEven:
			return OddEven{Choice: Parity(option)}, nil
		}
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidInput, "odd-even bet needs \"odd\" or \"even\"", map[string]string{"betOption": option})

	case BetTypeRange:
		switch Band(option) {
		case BandLow, BandMid, BandHigh:
			return Range{Band: Band(option)}, nil
		}
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidInput, "range bet needs \"low\", \"mid\" or \"high\"", map[string]string{"betOption": option})

	default:
		return Classic{}, nil
	}
}
