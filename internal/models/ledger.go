package models

import (
	"fmt"
	"time"

	apperrors "fairdice-backend/internal/errors"
)

// UserLedger is the balance and ordered event log of one address.
// AvailableBalance always equals the fold of all event deltas.
type UserLedger struct {
	Address          string        `json:"address"`
	AvailableBalance Amount        `json:"availableBalance"`
	DepositedTotal   Amount        `json:"depositedTotal"`
	WithdrawnTotal   Amount        `json:"withdrawnTotal"`
	Events           []LedgerEvent `json:"events"`
	Version          uint64        `json:"version"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

func NewUserLedger(address string) *UserLedger {
	return &UserLedger{
		Address: address,
		Events:  []LedgerEvent{},
	}
}

// Apply appends ev and updates the cached totals. It is the only way a
// ledger changes. On error the ledger is left untouched.
func (l *UserLedger) Apply(ev LedgerEvent) (LedgerEvent, error) {
	balance, err := ev.Delta.ApplyTo(l.AvailableBalance)
	if err != nil {
		return LedgerEvent{}, err
	}

	deposited, withdrawn := l.DepositedTotal, l.WithdrawnTotal
	switch ev.Kind {
	case EventDeposit:
		if deposited, err = deposited.Add(ev.Delta.Abs); err != nil {
			return LedgerEvent{}, err
		}
	case EventWithdrawal:
		if withdrawn, err = withdrawn.Add(ev.Delta.Abs); err != nil {
			return LedgerEvent{}, err
		}
	case EventMint, EventExchange:
		if !ev.Delta.IsZero() {
			return LedgerEvent{}, apperrors.New(apperrors.CodeInvalidInput, "token records must not move the balance")
		}
	case EventBet:
		if ev.Bet == nil {
			return LedgerEvent{}, apperrors.New(apperrors.CodeInvalidInput, "bet event without a record")
		}
	default:
		return LedgerEvent{}, apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("unknown event kind %q", ev.Kind))
	}

	// event timestamps never go backwards within a ledger
	if n := len(l.Events); n > 0 && ev.Timestamp.Before(l.Events[n-1].Timestamp) {
		ev.Timestamp = l.Events[n-1].Timestamp
	}
	if ev.Bet != nil {
		bet := *ev.Bet
		bet.Timestamp = ev.Timestamp
		ev.Bet = &bet
	}
	ev.Seq = uint64(len(l.Events)) + 1

	l.AvailableBalance = balance
	l.DepositedTotal = deposited
	l.WithdrawnTotal = withdrawn
	l.Events = append(l.Events, ev)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = ev.Timestamp
	}
	l.UpdatedAt = ev.Timestamp
	return ev, nil
}

// Fold recomputes the balance from the event log.
func (l *UserLedger) Fold() (Amount, error) {
	var balance Amount
	for _, ev := range l.Events {
		next, err := ev.Delta.ApplyTo(balance)
		if err != nil {
			return Amount{}, fmt.Errorf("fold event %d: %w", ev.Seq, err)
		}
		balance = next
	}
	return balance, nil
}

func (l *UserLedger) Clone() *UserLedger {
	c := *l
	c.Events = make([]LedgerEvent, len(l.Events))
	copy(c.Events, l.Events)
	return &c
}

// Bets returns bet records oldest first.
func (l *UserLedger) Bets() []BetRecord {
	bets := make([]BetRecord, 0, len(l.Events))
	for _, ev := range l.Events {
		if ev.Kind == EventBet && ev.Bet != nil {
			bets = append(bets, *ev.Bet)
		}
	}
	return bets
}

func (l *UserLedger) EventsOf(kind EventKind) []LedgerEvent {
	var out []LedgerEvent
	for _, ev := range l.Events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (l *UserLedger) Deposits() []LedgerEvent    { return l.EventsOf(EventDeposit) }
func (l *UserLedger) Withdrawals() []LedgerEvent { return l.EventsOf(EventWithdrawal) }
func (l *UserLedger) Mints() []LedgerEvent       { return l.EventsOf(EventMint) }
func (l *UserLedger) Exchanges() []LedgerEvent   { return l.EventsOf(EventExchange) }

// Summary is the ledger without its event log.
func (l *UserLedger) Summary() LedgerSummary {
	return LedgerSummary{
		Address:          l.Address,
		AvailableBalance: l.AvailableBalance,
		DepositedTotal:   l.DepositedTotal,
		WithdrawnTotal:   l.WithdrawnTotal,
		TotalBets:        len(l.Bets()),
		CreatedAt:        l.CreatedAt,
		UpdatedAt:        l.UpdatedAt,
	}
}
