package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerSummary struct {
	Address          string    `json:"address"`
	AvailableBalance Amount    `json:"availableBalance"`
	DepositedTotal   Amount    `json:"depositedTotal"`
	WithdrawnTotal   Amount    `json:"withdrawnTotal"`
	TotalBets        int       `json:"totalBets"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type CommitmentResponse struct {
	ServerSeedHash      string `json:"serverSeedHash"`
	SuggestedClientSeed string `json:"clientSeed,omitempty"`
}

type BetResult struct {
	Roll               int            `json:"roll"`
	Outcome            Outcome        `json:"outcome"`
	ServerSeedRevealed string         `json:"serverSeedRevealed"`
	ServerSeedHash     string         `json:"serverSeedHash"`
	NextServerSeedHash string         `json:"nextServerSeedHash"`
	NewBalance         Amount         `json:"newBalance"`
	Commitment         CommitmentKind `json:"commitment"`
	Bet                BetRecord      `json:"bet"`
}

type BalanceResponse struct {
	Address          string `json:"address"`
	AvailableBalance Amount `json:"availableBalance"`
}

type GameHistoryPage struct {
	Bets        []BetRecord `json:"bets"`
	TotalBets   int         `json:"totalBets"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	PageSize    int         `json:"pageSize"`
}

type TransactionsView struct {
	Deposits    []LedgerEvent `json:"deposits"`
	Withdrawals []LedgerEvent `json:"withdrawals"`
	Mints       []LedgerEvent `json:"mints"`
	Exchanges   []LedgerEvent `json:"exchanges"`
}

type BalancePoint struct {
	Balance   Amount    `json:"balance"`
	Timestamp time.Time `json:"timestamp"`
}

type BetTotals struct {
	TotalBets       int    `json:"totalBets"`
	TotalBetAmount  Amount `json:"totalBetAmount"`
	TotalWins       int    `json:"totalWins"`
	TotalWinAmount  Amount `json:"totalWinAmount"`
	TotalLosses     int    `json:"totalLosses"`
	TotalLossAmount Amount `json:"totalLossAmount"`
}

type BettingStats struct {
	Current  BetTotals `json:"current"`
	Previous BetTotals `json:"previous"`
	Hours    int       `json:"hours"`
}

type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
	Amount    Amount    `json:"amount"`
}

type BettingStatsHistory struct {
	Bets   []SeriesPoint `json:"bets"`
	Wins   []SeriesPoint `json:"wins"`
	Losses []SeriesPoint `json:"losses"`
}

type LeaderboardMetric string

const (
	MetricBalance    LeaderboardMetric = "balance"
	MetricTotalBets  LeaderboardMetric = "totalBets"
	MetricTotalWins  LeaderboardMetric = "totalWins"
	MetricWinRate    LeaderboardMetric = "winRate"
	MetricHighestWin LeaderboardMetric = "highestWin"
)

// ParseLeaderboardMetric falls back to balance for unknown names.
func ParseLeaderboardMetric(s string) LeaderboardMetric {
	switch m := LeaderboardMetric(s); m {
	case MetricTotalBets, MetricTotalWins, MetricWinRate, MetricHighestWin:
		return m
	}
	return MetricBalance
}

type LeaderboardEntry struct {
	Rank       int             `json:"rank"`
	Address    string          `json:"address"`
	Balance    Amount          `json:"balance"`
	TotalBets  int             `json:"totalBets"`
	TotalWins  int             `json:"totalWins"`
	WinRate    decimal.Decimal `json:"winRate"`
	HighestWin Amount          `json:"highestWin"`
}

type VerifyResult struct {
	Valid       bool    `json:"valid"`
	HashMatches bool    `json:"hashMatches"`
	Roll        int     `json:"roll"`
	Outcome     Outcome `json:"outcome"`
	BetType     BetType `json:"betType"`
	BetOption   string  `json:"betOption,omitempty"`
}
