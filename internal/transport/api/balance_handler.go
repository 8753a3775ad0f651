package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BalanceHandler struct {
	svs LedgerServicer
}

func NewBalanceHandler(svs LedgerServicer) *BalanceHandler {
	return &BalanceHandler{
		svs: svs,
	}
}

// Index GET RouteGroup + BalanceRoute.
func (b *BalanceHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	account, err := b.svs.Balance(reqCtx, currentUserID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(account))
}

type LedgerEntryResponse struct {
	Delta        string              `json:"delta"`
	BalanceAfter string              `json:"balanceAfter"`
	Reason       domain.LedgerReason `json:"reason"`
	Reference    string              `json:"reference"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// Entries GET RouteGroup + BalanceEntriesRoute. Журнал изменений баланса.
func (b *BalanceHandler) Entries(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	entries, err := b.svs.Entries(reqCtx, currentUserID, limitQuery(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if len(entries) == 0 {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	response := make([]LedgerEntryResponse, len(entries))
	for i, entry := range entries {
		response[i] = LedgerEntryResponse{
			Delta:        money(entry.Delta),
			BalanceAfter: money(entry.BalanceAfter),
			Reason:       entry.Reason,
			Reference:    entry.Reference,
			CreatedAt:    entry.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, response)
}

type OpenAccountParams struct {
	UserID int64 `binding:"required,gt=0" json:"userId"`
}

// Open POST RouteGroup + AdminAccountsRoute.
func (b *BalanceHandler) Open(c *gin.Context) {
	var params OpenAccountParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	account, err := b.svs.Open(reqCtx, params.UserID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(account))
}

type GrantParams struct {
	UserID int64           `binding:"required,gt=0"  json:"userId"`
	Amount decimal.Decimal `binding:"required,money" json:"amount"`
}

// Grant POST RouteGroup + AdminGrantRoute. Ручное начисление.
func (b *BalanceHandler) Grant(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params GrantParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	account, err := b.svs.Grant(reqCtx, currentUserID, params.UserID, params.Amount)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountResponse(account))
}
