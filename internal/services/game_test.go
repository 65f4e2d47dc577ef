package services_test

import (
	"context"
	"testing"
	"time"

	apperrors "fairdice-backend/internal/errors"
	"fairdice-backend/internal/models"
	"fairdice-backend/internal/services"
)

const player = "0x00000000000000000000000000000000000000f1"

func setupTestEngine(t *testing.T, betLimit int) (*services.GameEngine, *services.Ledger) {
	t.Helper()
	ledger := services.NewLedger(services.NewMemoryStore())
	engine := services.NewGameEngine(services.GameEngineConfig{
		Ledger:   ledger,
		Seeds:    services.NewSeedPool(services.NewMemorySeedStore(), time.Hour, nil),
		Limiter:  services.NewMemoryRateLimiter(),
		BetLimit: betLimit,
	})
	if _, err := ledger.Deposit(context.Background(), player, models.NewAmount(1000), "0xdeposit"); err != nil {
		t.Fatalf("Failed to fund player: %v", err)
	}
	return engine, ledger
}

func amountPtr(n uint64) *models.Amount {
	a := models.NewAmount(n)
	return &a
}

func noncePtr(n uint64) *uint64 {
	return &n
}

func TestGameEngine(t *testing.T) {
	engine, ledger := setupTestEngine(t, 30)
	ctx := context.Background()

	commitment, err := engine.NewCommitment(ctx)
	if err != nil {
		t.Fatalf("Failed to get commitment: %v", err)
	}
	if commitment.ServerSeedHash == "" || commitment.SuggestedClientSeed == "" {
		t.Fatalf("Incomplete commitment: %+v", commitment)
	}

	result, err := engine.PlaceBet(ctx, &models.BetRequest{
		Address:        player,
		Amount:         amountPtr(100),
		ClientSeed:     commitment.SuggestedClientSeed,
		Nonce:          noncePtr(1),
		ServerSeedHash: commitment.ServerSeedHash,
		BetType:        "odd-even",
		BetOption:      "even",
	})
	if err != nil {
		t.Fatalf("Failed to place bet: %v", err)
	}

	if result.Roll < 1 || result.Roll > 6 {
		t.Errorf("Roll should be between 1 and 6, got %d", result.Roll)
	}
	if result.Commitment != models.CommitmentCommitted {
		t.Errorf("Expected a committed seed, got %s", result.Commitment)
	}
	if result.NextServerSeedHash == "" {
		t.Error("Result should carry the next commitment")
	}

	wantBalance := "900"
	if result.Roll%2 == 0 {
		wantBalance = "1100"
		if result.Outcome != models.OutcomeWin {
			t.Errorf("Even roll %d should win", result.Roll)
		}
	}
	if got := result.NewBalance.String(); got != wantBalance {
		t.Errorf("Expected balance %s, got %s", wantBalance, got)
	}

	verified, err := engine.VerifyGameResult(&models.VerifyRequest{
		ServerSeed:     result.ServerSeedRevealed,
		ServerSeedHash: commitment.ServerSeedHash,
		ClientSeed:     commitment.SuggestedClientSeed,
		Nonce:          noncePtr(1),
		BetType:        "odd-even",
		BetOption:      "even",
	})
	if err != nil {
		t.Fatalf("Failed to verify: %v", err)
	}
	if !verified.Valid || verified.Roll != result.Roll || verified.Outcome != result.Outcome {
		t.Errorf("Verification disagrees with the bet: %+v vs roll %d %s", verified, result.Roll, result.Outcome)
	}

	balance, err := ledger.Balance(ctx, player)
	if err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}
	if balance.String() != wantBalance {
		t.Errorf("Stored balance %s does not match result %s", balance, wantBalance)
	}
}

func TestGameEngineRejectsBadBets(t *testing.T) {
	engine, _ := setupTestEngine(t, 30)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.BetRequest
		code apperrors.Code
	}{
		{"missing nonce", models.BetRequest{Address: player, Amount: amountPtr(1), ClientSeed: "c"}, apperrors.CodeInvalidInput},
		{"zero stake", models.BetRequest{Address: player, Amount: amountPtr(0), ClientSeed: "c", Nonce: noncePtr(0)}, apperrors.CodeInvalidInput},
		{"bad option", models.BetRequest{Address: player, Amount: amountPtr(1), ClientSeed: "c", Nonce: noncePtr(0), BetType: "specific", BetOption: "7"}, apperrors.CodeInvalidInput},
		{"too large", models.BetRequest{Address: player, Amount: amountPtr(1001), ClientSeed: "c", Nonce: noncePtr(0)}, apperrors.CodeInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.PlaceBet(ctx, &tt.req)
			if !apperrors.HasCode(err, tt.code) {
				t.Errorf("Expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestGameEngineRateLimit(t *testing.T) {
	engine, _ := setupTestEngine(t, 2)
	ctx := context.Background()

	place := func() error {
		_, err := engine.PlaceBet(ctx, &models.BetRequest{
			Address:    player,
			Amount:     amountPtr(1),
			ClientSeed: "client",
			Nonce:      noncePtr(0),
		})
		return err
	}

	for i := 0; i < 2; i++ {
		if err := place(); err != nil {
			t.Fatalf("Bet %d failed: %v", i+1, err)
		}
	}
	if err := place(); !apperrors.HasCode(err, apperrors.CodeRateLimited) {
		t.Errorf("Expected RATE_LIMITED, got %v", err)
	}
}

func TestGameEngineFallbackSeed(t *testing.T) {
	engine, _ := setupTestEngine(t, 30)

	result, err := engine.PlaceBet(context.Background(), &models.BetRequest{
		Address:        player,
		Amount:         amountPtr(1),
		ClientSeed:     "client",
		Nonce:          noncePtr(0),
		ServerSeedHash: "0000000000000000000000000000000000000000000000000000000000000000",
	})
	if err != nil {
		t.Fatalf("Failed to place bet: %v", err)
	}
	if result.Commitment != models.CommitmentFallback {
		t.Errorf("Expected a fallback seed, got %s", result.Commitment)
	}
	if services.HashSeed(result.ServerSeedRevealed) != result.ServerSeedHash {
		t.Error("Fallback seed should still match its reported hash")
	}
}
