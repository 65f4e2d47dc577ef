package services

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	apperrors "fairdice-backend/internal/errors"
	"fairdice-backend/internal/models"
)

// LedgerStore persists user ledgers with optimistic concurrency.
type LedgerStore interface {
	// Load returns the stored ledger, or an empty ledger at version 0.
	Load(ctx context.Context, address string) (*models.UserLedger, error)
	// Append writes ledger, whose newest event is ev, provided the stored
	// version still equals ledger.Version, and then bumps ledger.Version.
	// A stale version fails with LEDGER_WRITE_CONFLICT and writes nothing.
	Append(ctx context.Context, ledger *models.UserLedger, ev models.LedgerEvent) error
	List(ctx context.Context) ([]*models.UserLedger, error)
}

// CommitmentSource hands out the server seed for a bet.
type CommitmentSource interface {
	Consume(ctx context.Context, hash string) (Reveal, error)
}

// FixedSeed is a CommitmentSource for a secret that was already revealed,
// such as when replaying or testing a bet.
type FixedSeed struct {
	Secret string
	Hash   string
}

func (f FixedSeed) Consume(context.Context, string) (Reveal, error) {
	hash := f.Hash
	if hash == "" {
		hash = HashSeed(f.Secret)
	}
	return Reveal{Secret: f.Secret, Hash: hash}, nil
}

type Ledger struct {
	store       LedgerStore
	locks       *addressLocks
	now         func() time.Time
	maxRetries  int
	backoff     time.Duration
	maxBet      *models.Amount
	metrics     *Metrics
	broadcaster Broadcaster
}

type LedgerOption func(*Ledger)

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithMaxRetries bounds how many times a conflicting write is retried.
func WithMaxRetries(n int) LedgerOption {
	return func(l *Ledger) { l.maxRetries = n }
}

func WithRetryBackoff(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.backoff = d }
}

func WithMaxBet(limit models.Amount) LedgerOption {
	return func(l *Ledger) { l.maxBet = &limit }
}

func WithMetrics(m *Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = m }
}

func WithBroadcaster(b Broadcaster) LedgerOption {
	return func(l *Ledger) { l.broadcaster = b }
}

func NewLedger(store LedgerStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:      store,
		locks:      newAddressLocks(),
		now:        time.Now,
		maxRetries: 3,
		backoff:    10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Deposit(ctx context.Context, address string, amount models.Amount, txHash string) (*models.UserLedger, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	if err := requireProof(txHash); err != nil {
		return nil, err
	}
	ledger, _, err := l.mutate(ctx, address, models.EventDeposit, func(*models.UserLedger) (models.LedgerEvent, error) {
		return models.NewDepositEvent(amount, txHash, l.now()), nil
	})
	return ledger, err
}

// Withdraw fails with INSUFFICIENT_BALANCE, leaving the ledger untouched,
// when amount exceeds the available balance.
func (l *Ledger) Withdraw(ctx context.Context, address string, amount models.Amount, txHash string) (*models.UserLedger, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	if err := requireProof(txHash); err != nil {
		return nil, err
	}
	ledger, _, err := l.mutate(ctx, address, models.EventWithdrawal, func(cur *models.UserLedger) (models.LedgerEvent, error) {
		if amount.Cmp(cur.AvailableBalance) > 0 {
			return models.LedgerEvent{}, insufficientBalance(cur.AvailableBalance, amount)
		}
		return models.NewWithdrawalEvent(amount, txHash, l.now()), nil
	})
	return ledger, err
}

// RecordMint stores an audit record of a token mint. The in-game balance
// does not move.
func (l *Ledger) RecordMint(ctx context.Context, address string, ethAmount, tokenAmount models.Amount, txHash string) (*models.UserLedger, error) {
	if err := requireProof(txHash); err != nil {
		return nil, err
	}
	ledger, _, err := l.mutate(ctx, address, models.EventMint, func(*models.UserLedger) (models.LedgerEvent, error) {
		return models.NewMintEvent(ethAmount, tokenAmount, txHash, l.now()), nil
	})
	return ledger, err
}

func (l *Ledger) RecordExchange(ctx context.Context, address string, tokenAmount, ethAmount models.Amount, txHash string) (*models.UserLedger, error) {
	if err := requireProof(txHash); err != nil {
		return nil, err
	}
	ledger, _, err := l.mutate(ctx, address, models.EventExchange, func(*models.UserLedger) (models.LedgerEvent, error) {
		return models.NewExchangeEvent(tokenAmount, ethAmount, txHash, l.now()), nil
	})
	return ledger, err
}

type SettleParams struct {
	Address        string
	Amount         models.Amount
	Variant        models.BetVariant
	ClientSeed     string
	Nonce          uint64
	ServerSeedHash string
}

type Settlement struct {
	Bet    models.BetRecord
	Reveal Reveal
	Ledger *models.UserLedger
}

// SettleBet rolls and books a bet as a single ledger event. Funds are
// checked before the commitment is consumed, so a bet that cannot be paid
// for leaves the seed pool untouched.
func (l *Ledger) SettleBet(ctx context.Context, p SettleParams, seeds CommitmentSource) (*Settlement, error) {
	if err := requirePositive(p.Amount); err != nil {
		return nil, err
	}
	if l.maxBet != nil && p.Amount.Cmp(*l.maxBet) > 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidInput, "bet exceeds the maximum stake", map[string]string{
			"amount": p.Amount.String(),
			"maxBet": l.maxBet.String(),
		})
	}
	if p.ClientSeed == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "clientSeed is required")
	}
	variant := p.Variant
	if variant == nil {
		variant = models.Classic{}
	}

	// the seed is consumed at most once even if the write is retried
	var reveal *Reveal

	ledger, ev, err := l.mutate(ctx, p.Address, models.EventBet, func(cur *models.UserLedger) (models.LedgerEvent, error) {
		if p.Amount.Cmp(cur.AvailableBalance) > 0 {
			return models.LedgerEvent{}, insufficientBalance(cur.AvailableBalance, p.Amount)
		}

		if reveal == nil {
			r, err := seeds.Consume(ctx, p.ServerSeedHash)
			if err != nil {
				return models.LedgerEvent{}, err
			}
			reveal = &r
		}

		roll := Roll(reveal.Secret, p.ClientSeed, p.Nonce)
		outcome := Evaluate(roll, variant)
		profit, err := Payout(p.Amount, outcome, variant.Multiplier())
		if err != nil {
			return models.LedgerEvent{}, err
		}

		commitment := models.CommitmentCommitted
		if reveal.Fallback {
			commitment = models.CommitmentFallback
		}

		return models.NewBetEvent(models.BetRecord{
			ID:                 models.GenerateBetID(),
			Amount:             p.Amount,
			Roll:               roll,
			Outcome:            outcome,
			Profit:             profit,
			ServerSeedRevealed: reveal.Secret,
			ServerSeedHash:     reveal.Hash,
			ClientSeed:         p.ClientSeed,
			Nonce:              p.Nonce,
			BetType:            variant.Type(),
			BetOption:          variant.Option(),
			Multiplier:         variant.Multiplier(),
			Commitment:         commitment,
			Timestamp:          l.now(),
		}), nil
	})
	if err != nil {
		return nil, err
	}

	bet := *ev.Bet
	l.metrics.BetSettled(bet)
	return &Settlement{Bet: bet, Reveal: *reveal, Ledger: ledger}, nil
}

// mutate runs one read-modify-write under the address lock, retrying lost
// optimistic races up to maxRetries times.
func (l *Ledger) mutate(ctx context.Context, address string, kind models.EventKind, build func(*models.UserLedger) (models.LedgerEvent, error)) (ledger *models.UserLedger, ev models.LedgerEvent, err error) {
	address, err = models.NormalizeAddress(address)
	if err != nil {
		return nil, models.LedgerEvent{}, err
	}

	start := time.Now()
	defer func() { l.metrics.LedgerOp(kind, err, time.Since(start)) }()

	unlock := l.locks.lock(address)
	defer unlock()

	for attempt := 0; ; attempt++ {
		ledger, err = l.store.Load(ctx, address)
		if err != nil {
			return nil, models.LedgerEvent{}, transient("failed to load ledger", err)
		}

		next, err := build(ledger)
		if err != nil {
			return nil, models.LedgerEvent{}, err
		}
		applied, err := ledger.Apply(next)
		if err != nil {
			return nil, models.LedgerEvent{}, err
		}

		err = l.store.Append(ctx, ledger, applied)
		if err == nil {
			if l.broadcaster != nil {
				l.broadcaster.BroadcastBalance(address, ledger.Summary())
			}
			return ledger, applied, nil
		}

		if !apperrors.HasCode(err, apperrors.CodeWriteConflict) {
			return nil, models.LedgerEvent{}, transient("failed to write ledger", err)
		}
		l.metrics.LedgerConflict()
		if attempt >= l.maxRetries {
			log.Printf("ledger write for %s still conflicting after %d retries", address, attempt)
			return nil, models.LedgerEvent{}, transient("ledger is busy, try again", err)
		}
		log.Printf("ledger write conflict for %s (attempt %d), retrying", address, attempt+1)

		select {
		case <-ctx.Done():
			return nil, models.LedgerEvent{}, transient("ledger write cancelled", ctx.Err())
		case <-time.After(l.backoff * time.Duration(attempt+1)):
		}
	}
}

// Get returns the ledger for address. Unknown addresses get an empty
// ledger, which is not persisted until the first mutation.
func (l *Ledger) Get(ctx context.Context, address string) (*models.UserLedger, error) {
	address, err := models.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	ledger, err := l.store.Load(ctx, address)
	if err != nil {
		return nil, transient("failed to load ledger", err)
	}
	return ledger, nil
}

func (l *Ledger) Balance(ctx context.Context, address string) (models.Amount, error) {
	ledger, err := l.Get(ctx, address)
	if err != nil {
		return models.Amount{}, err
	}
	return ledger.AvailableBalance, nil
}

// GameHistory pages through bets newest first.
func (l *Ledger) GameHistory(ctx context.Context, address string, page, pageSize int) (*models.GameHistoryPage, error) {
	ledger, err := l.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	bets := ledger.Bets()
	slices.Reverse(bets)

	pageSize = max(pageSize, 1)
	start, end, current, totalPages := models.Paginate(len(bets), page, pageSize)
	return &models.GameHistoryPage{
		Bets:        bets[start:end],
		TotalBets:   len(bets),
		TotalPages:  totalPages,
		CurrentPage: current,
		PageSize:    pageSize,
	}, nil
}

func (l *Ledger) Transactions(ctx context.Context, address string) (*models.TransactionsView, error) {
	ledger, err := l.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	return &models.TransactionsView{
		Deposits:    nonNil(ledger.Deposits()),
		Withdrawals: nonNil(ledger.Withdrawals()),
		Mints:       nonNil(ledger.Mints()),
		Exchanges:   nonNil(ledger.Exchanges()),
	}, nil
}

func (l *Ledger) All(ctx context.Context) ([]*models.UserLedger, error) {
	ledgers, err := l.store.List(ctx)
	if err != nil {
		return nil, transient("failed to list ledgers", err)
	}
	return ledgers, nil
}

func requirePositive(amount models.Amount) error {
	if amount.IsZero() {
		return apperrors.New(apperrors.CodeInvalidInput, "amount must be positive")
	}
	return nil
}

func requireProof(txHash string) error {
	if txHash == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "txHash is required")
	}
	return nil
}

func insufficientBalance(available, required models.Amount) error {
	return apperrors.WithMetadata(apperrors.CodeInsufficientBalance, "insufficient balance", map[string]string{
		"available": available.String(),
		"required":  required.String(),
	})
}

func transient(msg string, err error) error {
	if apperrors.HasCode(err, apperrors.CodeTransient) {
		return err
	}
	log.Printf("%s: %v", msg, err)
	return apperrors.Wrap(apperrors.CodeTransient, msg, err)
}

func nonNil(events []models.LedgerEvent) []models.LedgerEvent {
	if events == nil {
		return []models.LedgerEvent{}
	}
	return events
}

type addressLocks struct {
	mu    sync.Mutex
	locks map[string]*addressLock
}

type addressLock struct {
	mu   sync.Mutex
	refs int
}

func newAddressLocks() *addressLocks {
	return &addressLocks{locks: make(map[string]*addressLock)}
}

// lock blocks until the caller holds address exclusively.
func (a *addressLocks) lock(address string) func() {
	a.mu.Lock()
	al, ok := a.locks[address]
	if !ok {
		al = &addressLock{}
		a.locks[address] = al
	}
	al.refs++
	a.mu.Unlock()

	al.mu.Lock()
	return func() {
		al.mu.Unlock()
		a.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(a.locks, address)
		}
		a.mu.Unlock()
	}
}
