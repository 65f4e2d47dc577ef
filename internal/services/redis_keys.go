package services

import "time"

const (
	KeyLedger         = "ledger:%s"
	KeyLedgerIndex    = "ledgers"
	KeySeedCommitment = "seed:%s"
	KeyRateLimit      = "ratelimit:%s:%s"

	TTLSeedCommitment = 24 * time.Hour

	DefaultRateLimitBets = 30 // Max 30 bets per minute
	RateLimitWindow      = time.Minute
)
