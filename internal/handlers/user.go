package handlers

import (
	"github.com/gin-gonic/gin"

	"fairdice-backend/internal/services"
)

type UserHandler struct {
	ledger *services.Ledger
}

func NewUserHandler(ledger *services.Ledger) *UserHandler {
	return &UserHandler{ledger: ledger}
}

// GetProfile returns the ledger summary with deposits and withdrawals.
func (h *UserHandler) GetProfile(c *gin.Context) {
	ledger, err := h.ledger.Get(c.Request.Context(), c.Query("address"))
	if err != nil {
		respondError(c, err)
		return
	}

	txs, err := h.ledger.Transactions(c.Request.Context(), ledger.Address)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, gin.H{
		"profile":     ledger.Summary(),
		"deposits":    txs.Deposits,
		"withdrawals": txs.Withdrawals,
	})
}

func (h *UserHandler) GetTransactions(c *gin.Context) {
	txs, err := h.ledger.Transactions(c.Request.Context(), c.Query("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, txs)
}
