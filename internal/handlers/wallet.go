package handlers

import (
	"github.com/gin-gonic/gin"

	"fairdice-backend/internal/models"
	"fairdice-backend/internal/services"
)

// WalletHandler books monetary events that were confirmed on chain
// upstream. Its routes sit behind service authentication.
type WalletHandler struct {
	ledger *services.Ledger
}

func NewWalletHandler(ledger *services.Ledger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	var req models.MonetaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	ledger, err := h.ledger.Deposit(c.Request.Context(), req.Address, *req.Amount, req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, ledger.Summary())
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req models.MonetaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	ledger, err := h.ledger.Withdraw(c.Request.Context(), req.Address, *req.Amount, req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, ledger.Summary())
}

func (h *WalletHandler) RecordMint(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	ledger, err := h.ledger.RecordMint(c.Request.Context(), req.Address, *req.EthAmount, *req.TokenAmount, req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"mints": ledger.Mints()})
}

func (h *WalletHandler) RecordExchange(c *gin.Context) {
	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	ledger, err := h.ledger.RecordExchange(c.Request.Context(), req.Address, *req.TokenAmount, *req.EthAmount, req.TxHash)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"exchanges": ledger.Exchanges()})
}
