package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "fairdice-backend/internal/errors"
	"fairdice-backend/internal/models"
)

func TestRollMatchesDefinition(t *testing.T) {
	secret := "5f2b1c8e0a9d4e7f3b6a1c2d8e9f0a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f"
	for nonce := uint64(0); nonce < 200; nonce++ {
		mac := hmac.New(sha256.New, []byte(secret))
		fmt.Fprintf(mac, "%s-%d", "client", nonce)
		want := int(binary.BigEndian.Uint32(mac.Sum(nil)[:4])%6) + 1

		got := Roll(secret, "client", nonce)
		if got != want {
			t.Fatalf("Roll(nonce=%d) = %d, want %d", nonce, got, want)
		}
		if again := Roll(secret, "client", nonce); again != got {
			t.Fatalf("Roll not deterministic at nonce %d: %d then %d", nonce, got, again)
		}
	}
}

func TestRollCoversAllFaces(t *testing.T) {
	seen := map[int]bool{}
	for nonce := uint64(0); nonce < 500; nonce++ {
		r := Roll("seed", "client", nonce)
		if r < 1 || r > 6 {
			t.Fatalf("roll %d out of range", r)
		}
		seen[r] = true
	}
	if len(seen) != 6 {
		t.Fatalf("saw faces %v, want all six", seen)
	}
}

func TestEvaluate(t *testing.T) {
	tcs := []struct {
		variant models.BetVariant
		wins    []int
	}{
		{models.Classic{}, []int{4, 5, 6}},
		{models.SpecificNumber{N: 3}, []int{3}},
		{models.OddEven{Choice: models.ParityOdd}, []int{1, 3, 5}},
		{models.OddEven{Choice: models.ParityEven}, []int{2, 4, 6}},
		{models.Range{Band: models.BandLow}, []int{1, 2}},
		{models.Range{Band: models.BandMid}, []int{3, 4}},
		{models.Range{Band: models.BandHigh}, []int{5, 6}},
	}

	for _, tc := range tcs {
		winning := map[int]bool{}
		for _, r := range tc.wins {
			winning[r] = true
		}
		for roll := 1; roll <= 6; roll++ {
			want := models.OutcomeLose
			if winning[roll] {
				want = models.OutcomeWin
			}
			if got := Evaluate(roll, tc.variant); got != want {
				t.Errorf("Evaluate(%d, %#v) = %s, want %s", roll, tc.variant, got, want)
			}
		}
	}
}

func TestPayoutScenarios(t *testing.T) {
	tcs := []struct {
		name    string
		variant models.BetVariant
		amount  uint64
		roll    int
		outcome models.Outcome
		profit  string
	}{
		{"classic win", models.Classic{}, 10, 5, models.OutcomeWin, "10"},
		{"classic lose", models.Classic{}, 10, 2, models.OutcomeLose, "-10"},
		{"specific win", models.SpecificNumber{N: 3}, 5, 3, models.OutcomeWin, "25"},
		{"even win", models.OddEven{Choice: models.ParityEven}, 20, 4, models.OutcomeWin, "20"},
		{"high win", models.Range{Band: models.BandHigh}, 15, 6, models.OutcomeWin, "30"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			outcome := Evaluate(tc.roll, tc.variant)
			if outcome != tc.outcome {
				t.Fatalf("outcome = %s, want %s", outcome, tc.outcome)
			}
			profit, err := Payout(models.NewAmount(tc.amount), outcome, tc.variant.Multiplier())
			if err != nil {
				t.Fatalf("Payout error = %v", err)
			}
			if profit.String() != tc.profit {
				t.Fatalf("profit = %s, want %s", profit, tc.profit)
			}
		})
	}
}

func TestPayoutFractionalMultiplier(t *testing.T) {
	profit, err := Payout(models.NewAmount(10), models.OutcomeWin, decimal.RequireFromString("1.95"))
	if err != nil {
		t.Fatalf("Payout error = %v", err)
	}
	if profit.String() != "9" {
		t.Fatalf("profit = %s, want 9", profit)
	}
}

func TestVerifyBet(t *testing.T) {
	secret, err := GenerateServerSeed()
	if err != nil {
		t.Fatalf("GenerateServerSeed: %v", err)
	}
	if len(secret) != 64 {
		t.Fatalf("secret length = %d, want 64 hex chars", len(secret))
	}

	roll := Roll(secret, "abc", 3)
	bet := models.BetRecord{
		Roll:               roll,
		Outcome:            Evaluate(roll, models.Classic{}),
		ServerSeedRevealed: secret,
		ServerSeedHash:     HashSeed(secret),
		ClientSeed:         "abc",
		Nonce:              3,
		BetType:            models.BetTypeClassic,
	}
	if err := VerifyBet(bet); err != nil {
		t.Fatalf("VerifyBet = %v", err)
	}

	tampered := bet
	tampered.Roll = bet.Roll%6 + 1
	if err := VerifyBet(tampered); !apperrors.HasCode(err, apperrors.CodeVerificationFailed) {
		t.Fatalf("tampered roll error = %v, want VERIFICATION_FAILED", err)
	}

	wrongHash := bet
	wrongHash.ServerSeedHash = HashSeed("other")
	if err := VerifyBet(wrongHash); !apperrors.HasCode(err, apperrors.CodeVerificationFailed) {
		t.Fatalf("wrong hash error = %v, want VERIFICATION_FAILED", err)
	}
}
