package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "fairdice-backend/internal/errors"
	"fairdice-backend/internal/models"
)

const serverSeedBytes = 32

// GenerateServerSeed returns 32 random bytes as lowercase hex. The hex text,
// not the raw bytes, is both the HMAC key and the SHA-256 preimage, so
// verifiers only ever handle strings.
func GenerateServerSeed() (string, error) {
	b := make([]byte, serverSeedBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate server seed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func HashSeed(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Roll derives a die face in [1,6] from
// HMAC-SHA256(secret, clientSeed + "-" + nonce).
func Roll(secret, clientSeed string, nonce uint64) int {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(clientSeed + "-" + strconv.FormatUint(nonce, 10)))
	d := binary.BigEndian.Uint32(mac.Sum(nil)[:4])
	return int(d%6) + 1
}

func Evaluate(roll int, variant models.BetVariant) models.Outcome {
	if wins(roll, variant) {
		return models.OutcomeWin
	}
	return models.OutcomeLose
}

func wins(roll int, variant models.BetVariant) bool {
	switch v := variant.(type) {
	case models.SpecificNumber:
		return roll == v.N
	case models.OddEven:
		odd := roll%2 == 1
		return odd == (v.Choice == models.ParityOdd)
	case models.Range:
		switch v.Band {
		case models.BandLow:
			return roll == 1 || roll == 2
		case models.BandMid:
			return roll == 3 || roll == 4
		case models.BandHigh:
			return roll == 5 || roll == 6
		}
		return false
	default:
		return roll >= 4
	}
}

// Payout returns the signed profit: amount*(multiplier-1) on a win and
// -amount on a loss.
func Payout(amount models.Amount, outcome models.Outcome, multiplier decimal.Decimal) (models.Delta, error) {
	if outcome != models.OutcomeWin {
		return models.Debit(amount), nil
	}
	profit, err := amount.MulDecimal(multiplier.Sub(decimal.NewFromInt(1)))
	if err != nil {
		return models.Delta{}, err
	}
	return models.Credit(profit), nil
}

// VerifyBet recomputes the commitment hash and the roll of a revealed bet.
func VerifyBet(bet models.BetRecord) error {
	if !hashMatches(bet.ServerSeedRevealed, bet.ServerSeedHash) {
		return apperrors.WithMetadata(apperrors.CodeVerificationFailed, "server seed does not match its hash", map[string]string{
			"serverSeedHash": bet.ServerSeedHash,
		})
	}

	roll := Roll(bet.ServerSeedRevealed, bet.ClientSeed, bet.Nonce)
	if roll != bet.Roll {
		return apperrors.WithMetadata(apperrors.CodeVerificationFailed, "recorded roll does not match", map[string]string{
			"recorded":   strconv.Itoa(bet.Roll),
			"recomputed": strconv.Itoa(roll),
		})
	}

	variant, err := bet.Variant()
	if err != nil {
		return err
	}
	if Evaluate(roll, variant) != bet.Outcome {
		return apperrors.New(apperrors.CodeVerificationFailed, "recorded outcome does not match")
	}
	return nil
}

func hashMatches(secret, hash string) bool {
	want := HashSeed(secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(hash))) == 1
}

// Verify recomputes a roll from its revealed inputs. It needs no server state.
func Verify(req *models.VerifyRequest) (*models.VerifyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	variant, err := models.ParseVariant(req.BetType, string(req.BetOption))
	if err != nil {
		return nil, err
	}

	roll := Roll(req.ServerSeed, req.ClientSeed, *req.Nonce)
	matches := hashMatches(req.ServerSeed, req.ServerSeedHash)
	return &models.VerifyResult{
		Valid:       matches,
		HashMatches: matches,
		Roll:        roll,
		Outcome:     Evaluate(roll, variant),
		BetType:     variant.Type(),
		BetOption:   variant.Option(),
	}, nil
}
