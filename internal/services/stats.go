package services

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	apperrors "fairdice-backend/internal/errors"
	"fairdice-backend/internal/models"
)

// LedgerReader is the read side of the ledger the stats are derived from.
type LedgerReader interface {
	Get(ctx context.Context, address string) (*models.UserLedger, error)
	All(ctx context.Context) ([]*models.UserLedger, error)
}

// Stats derives balance history, betting statistics and the leaderboard
// from ledger event logs. It holds no state of its own.
type Stats struct {
	ledgers LedgerReader
	now     func() time.Time
}

func NewStats(ledgers LedgerReader, now func() time.Time) *Stats {
	if now == nil {
		now = time.Now
	}
	return &Stats{ledgers: ledgers, now: now}
}

// MaxStatsHours bounds every stats window to one year.
const MaxStatsHours = 24 * 365

func validateHours(hours int) error {
	if hours <= 0 {
		return apperrors.New(apperrors.CodeInvalidInput, "hours must be positive")
	}
	if hours > MaxStatsHours {
		return apperrors.WithMetadata(apperrors.CodeInvalidInput, "hours exceeds the maximum window", map[string]string{
			"hours": strconv.Itoa(hours),
			"max":   strconv.Itoa(MaxStatsHours),
		})
	}
	return nil
}

// BalanceHistory walks back from the current balance through the events of
// the last hours, undoing each one. Every point carries the balance just
// before the event at that time; the last point is the current balance.
// There are always at least two points.
func (s *Stats) BalanceHistory(ctx context.Context, address string, hours int) ([]models.BalancePoint, error) {
	if err := validateHours(hours); err != nil {
		return nil, err
	}
	ledger, err := s.ledgers.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	balance := ledger.AvailableBalance
	points := []models.BalancePoint{{Balance: balance, Timestamp: now}}

	for i := len(ledger.Events) - 1; i >= 0; i-- {
		ev := ledger.Events[i]
		if ev.Timestamp.Before(cutoff) {
			break
		}
		if ev.Delta.IsZero() {
			continue
		}
		balance, err = ev.Delta.RevertFrom(balance)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUnknown, "ledger history is inconsistent", err)
		}
		points = append(points, models.BalancePoint{Balance: balance, Timestamp: ev.Timestamp})
	}

	if len(points) < 2 {
		points = append(points, models.BalancePoint{Balance: balance, Timestamp: cutoff})
	}

	// collected newest first
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// BettingStats aggregates the bets of the last hours and of the window of
// equal length right before it.
func (s *Stats) BettingStats(ctx context.Context, address string, hours int) (*models.BettingStats, error) {
	if err := validateHours(hours); err != nil {
		return nil, err
	}
	ledger, err := s.ledgers.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	window := time.Duration(hours) * time.Hour
	cutoff := s.now().Add(-window)
	previousCutoff := cutoff.Add(-window)

	var current, previous models.BetTotals
	for _, bet := range ledger.Bets() {
		switch {
		case !bet.Timestamp.Before(cutoff):
			err = addBet(&current, bet)
		case !bet.Timestamp.Before(previousCutoff):
			err = addBet(&previous, bet)
		}
		if err != nil {
			return nil, err
		}
	}

	return &models.BettingStats{Current: current, Previous: previous, Hours: hours}, nil
}

// addBet counts a win by its profit and a loss by its stake.
func addBet(t *models.BetTotals, bet models.BetRecord) (err error) {
	t.TotalBets++
	if t.TotalBetAmount, err = t.TotalBetAmount.Add(bet.Amount); err != nil {
		return err
	}
	if bet.Won() {
		t.TotalWins++
		t.TotalWinAmount, err = t.TotalWinAmount.Add(bet.Profit.Abs)
	} else {
		t.TotalLosses++
		t.TotalLossAmount, err = t.TotalLossAmount.Add(bet.Amount)
	}
	return err
}

// BettingStatsHistory buckets the bets of the last hours by hour. There are
// hours+1 buckets, starting at the hour the window begins in, all present
// even when empty.
func (s *Stats) BettingStatsHistory(ctx context.Context, address string, hours int) (*models.BettingStatsHistory, error) {
	if err := validateHours(hours); err != nil {
		return nil, err
	}
	ledger, err := s.ledgers.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	first := cutoff.Truncate(time.Hour)

	buckets := make([]models.BetTotals, hours+1)
	history := &models.BettingStatsHistory{
		Bets:   make([]models.SeriesPoint, hours+1),
		Wins:   make([]models.SeriesPoint, hours+1),
		Losses: make([]models.SeriesPoint, hours+1),
	}

	for _, bet := range ledger.Bets() {
		if bet.Timestamp.Before(cutoff) {
			continue
		}
		i := int(bet.Timestamp.Truncate(time.Hour).Sub(first) / time.Hour)
		if i < 0 || i >= len(buckets) {
			continue
		}
		if err := addBet(&buckets[i], bet); err != nil {
			return nil, err
		}
	}

	for i, b := range buckets {
		ts := first.Add(time.Duration(i) * time.Hour)
		history.Bets[i] = models.SeriesPoint{Timestamp: ts, Count: b.TotalBets, Amount: b.TotalBetAmount}
		history.Wins[i] = models.SeriesPoint{Timestamp: ts, Count: b.TotalWins, Amount: b.TotalWinAmount}
		history.Losses[i] = models.SeriesPoint{Timestamp: ts, Count: b.TotalLosses, Amount: b.TotalLossAmount}
	}
	return history, nil
}

// Leaderboard ranks every address with at least one bet by metric,
// descending. Ties are broken by address.
func (s *Stats) Leaderboard(ctx context.Context, metric models.LeaderboardMetric, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "limit must be positive")
	}
	ledgers, err := s.ledgers.All(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(ledgers))
	for _, l := range ledgers {
		bets := l.Bets()
		if len(bets) == 0 {
			continue
		}

		entry := models.LeaderboardEntry{
			Address:   l.Address,
			Balance:   l.AvailableBalance,
			TotalBets: len(bets),
		}
		for _, bet := range bets {
			if !bet.Won() {
				continue
			}
			entry.TotalWins++
			if bet.Profit.Abs.Cmp(entry.HighestWin) > 0 {
				entry.HighestWin = bet.Profit.Abs
			}
		}
		entry.WinRate = decimal.NewFromInt(int64(entry.TotalWins)).
			Div(decimal.NewFromInt(int64(entry.TotalBets))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := compareBy(metric, entries[i], entries[j]); c != 0 {
			return c > 0
		}
		return entries[i].Address < entries[j].Address
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func compareBy(metric models.LeaderboardMetric, a, b models.LeaderboardEntry) int {
	switch metric {
	case models.MetricTotalBets:
		return a.TotalBets - b.TotalBets
	case models.MetricTotalWins:
		return a.TotalWins - b.TotalWins
	case models.MetricWinRate:
		return a.WinRate.Cmp(b.WinRate)
	case models.MetricHighestWin:
		return a.HighestWin.Cmp(b.HighestWin)
	default:
		return a.Balance.Cmp(b.Balance)
	}
}
