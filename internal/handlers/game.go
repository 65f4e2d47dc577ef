package handlers

import (
	"github.com/gin-gonic/gin"

	"fairdice-backend/internal/models"
	"fairdice-backend/internal/services"
)

type GameHandler struct {
	gameEngine  *services.GameEngine
	ledger      *services.Ledger
	maxPageSize int
}

func NewGameHandler(gameEngine *services.GameEngine, ledger *services.Ledger, maxPageSize int) *GameHandler {
	return &GameHandler{
		gameEngine:  gameEngine,
		ledger:      ledger,
		maxPageSize: maxPageSize,
	}
}

func (h *GameHandler) NewSeed(c *gin.Context) {
	commitment, err := h.gameEngine.NewCommitment(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, commitment)
}

func (h *GameHandler) PlaceBet(c *gin.Context) {
	var req models.BetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.gameEngine.PlaceBet(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (h *GameHandler) VerifyGame(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.gameEngine.VerifyGameResult(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	address, err := models.NormalizeAddress(c.Query("address"))
	if err != nil {
		respondError(c, err)
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, models.BalanceResponse{Address: address, AvailableBalance: balance})
}

func (h *GameHandler) GetGameHistory(c *gin.Context) {
	page, err := intQuery(c, "page", 1, 0)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := intQuery(c, "limit", defaultPageSize, h.maxPageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := h.ledger.GameHistory(c.Request.Context(), c.Query("address"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, history)
}
