package models

import "time"

type EventKind string

const (
	EventDeposit    EventKind = "deposit"
	EventWithdrawal EventKind = "withdrawal"
	EventMint       EventKind = "mint"
	EventExchange   EventKind = "exchange"
	EventBet        EventKind = "bet"
)

// LedgerEvent is one entry of a user's ordered event log. Delta is the
// signed effect on the available balance; mint and exchange records carry a
// zero delta.
type LedgerEvent struct {
	ID          string     `json:"id"`
	Seq         uint64     `json:"seq"`
	Kind        EventKind  `json:"kind"`
	Delta       Delta      `json:"delta"`
	TxHash      string     `json:"txHash,omitempty"`
	EthAmount   *Amount    `json:"ethAmount,omitempty"`
	TokenAmount *Amount    `json:"tokenAmount,omitempty"`
	Bet         *BetRecord `json:"bet,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

func NewDepositEvent(amount Amount, txHash string, at time.Time) LedgerEvent {
	return LedgerEvent{
		ID:        GenerateEventID(),
		Kind:      EventDeposit,
		Delta:     Credit(amount),
		TxHash:    txHash,
		Timestamp: at,
	}
}

func NewWithdrawalEvent(amount Amount, txHash string, at time.Time) LedgerEvent {
	return LedgerEvent{
		ID:        GenerateEventID(),
		Kind:      EventWithdrawal,
		Delta:     Debit(amount),
		TxHash:    txHash,
		Timestamp: at,
	}
}

func NewMintEvent(ethAmount, tokenAmount Amount, txHash string, at time.Time) LedgerEvent {
	return LedgerEvent{
		ID:          GenerateEventID(),
		Kind:        EventMint,
		TxHash:      txHash,
		EthAmount:   &ethAmount,
		TokenAmount: &tokenAmount,
		Timestamp:   at,
	}
}

func NewExchangeEvent(tokenAmount, ethAmount Amount, txHash string, at time.Time) LedgerEvent {
	return LedgerEvent{
		ID:          GenerateEventID(),
		Kind:        EventExchange,
		TxHash:      txHash,
		EthAmount:   &ethAmount,
		TokenAmount: &tokenAmount,
		Timestamp:   at,
	}
}

func NewBetEvent(bet BetRecord) LedgerEvent {
	return LedgerEvent{
		ID:        GenerateEventID(),
		Kind:      EventBet,
		Delta:     bet.Profit,
		Bet:       &bet,
		Timestamp: bet.Timestamp,
	}
}

// Amount is the unsigned size of the event for display in audit lists.
func (e LedgerEvent) Amount() Amount {
	switch e.Kind {
	case EventMint, EventExchange:
		if e.TokenAmount != nil {
			return *e.TokenAmount
		}
		return Amount{}
	case EventBet:
		if e.Bet != nil {
			return e.Bet.Amount
		}
	}
	return e.Delta.Abs
}
