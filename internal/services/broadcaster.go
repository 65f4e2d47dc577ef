package services

import "fairdice-backend/internal/models"

// Broadcaster pushes ledger changes to live subscribers of an address.
type Broadcaster interface {
	BroadcastBalance(address string, summary models.LedgerSummary)
	BroadcastBet(address string, bet models.BetRecord)
}
