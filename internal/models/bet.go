package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
)

// CommitmentKind marks whether a roll used a pre-committed server seed or a
// seed generated on the spot because the presented hash was unknown.
type CommitmentKind string

const (
	CommitmentCommitted CommitmentKind = "committed"
	CommitmentFallback  CommitmentKind = "fallback"
)

// BetRecord is immutable once appended to a ledger.
type BetRecord struct {
	ID                 string          `json:"id"`
	Amount             Amount          `json:"amount"`
	Roll               int             `json:"roll"`
	Outcome            Outcome         `json:"outcome"`
	Profit             Delta           `json:"profit"`
	ServerSeedRevealed string          `json:"serverSeedRevealed"`
	ServerSeedHash     string          `json:"serverSeedHash"`
	ClientSeed         string          `json:"clientSeed"`
	Nonce              uint64          `json:"nonce"`
	BetType            BetType         `json:"betType"`
	BetOption          string          `json:"betOption,omitempty"`
	Multiplier         decimal.Decimal `json:"multiplier"`
	Commitment         CommitmentKind  `json:"commitment"`
	Timestamp          time.Time       `json:"timestamp"`
}

func (b BetRecord) Won() bool {
	return b.Outcome == OutcomeWin
}

func (b BetRecord) Variant() (BetVariant, error) {
	return ParseVariant(string(b.BetType), b.BetOption)
}
