package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalHandler struct {
	svs WithdrawalServicer
}

func NewWithdrawalHandler(svs WithdrawalServicer) *WithdrawalHandler {
	return &WithdrawalHandler{svs: svs}
}

type WithdrawParams struct {
	Amount decimal.Decimal `binding:"required,money"           json:"amount"`
	Method string          `binding:"omitempty,max_bytes=32"   json:"method"`
	Notes  string          `binding:"omitempty,max_bytes=1024" json:"notes"`
}

// Create POST RouteGroup + WithdrawalsRoute.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params WithdrawParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.svs.Request(reqCtx, service.WithdrawalRequestArgs{
		UserID: currentUserID,
		Amount: params.Amount,
		Method: params.Method,
		Notes:  params.Notes,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newWithdrawalResponse(withdrawal))
}

// Index GET RouteGroup + WithdrawalsRoute.
func (h *WithdrawalHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawals, err := h.svs.ListForUser(reqCtx, currentUserID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if len(withdrawals) == 0 {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalsResponse(withdrawals))
}

type ProcessWithdrawalParams struct {
	RequestID uuid.UUID `binding:"required"                  json:"requestId"`
	Notes     string    `binding:"omitempty,max_bytes=1024" json:"notes"`
}

type RejectWithdrawalParams struct {
	RequestID uuid.UUID `binding:"required"                 json:"requestId"`
	Reason    string    `binding:"required,max_bytes=1024" json:"reason"`
}

// Approve POST RouteGroup + AdminWithdrawalApproveRoute. Списывает сумму с баланса.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	var params ProcessWithdrawalParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.svs.Approve(reqCtx, params.RequestID, getUserIDFromContext(c), params.Notes)
	h.respond(c, withdrawal, err)
}

// Reject POST RouteGroup + AdminWithdrawalRejectRoute.
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	var params RejectWithdrawalParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.svs.Reject(reqCtx, params.RequestID, getUserIDFromContext(c), params.Reason)
	h.respond(c, withdrawal, err)
}

// Complete POST RouteGroup + AdminWithdrawalCompleteRoute.
func (h *WithdrawalHandler) Complete(c *gin.Context) {
	var params ProcessWithdrawalParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.svs.Complete(reqCtx, params.RequestID, getUserIDFromContext(c))
	h.respond(c, withdrawal, err)
}

// AdminIndex GET RouteGroup + AdminWithdrawalsRoute. Фильтры ?status= и ?userId=.
func (h *WithdrawalHandler) AdminIndex(c *gin.Context) {
	filter := repoargs.WithdrawalFilter{Limit: limitQuery(c)}
	if status := c.Query("status"); status != "" {
		ws := domain.WithdrawalStatus(status)
		filter.Status = &ws
	}
	if userIDStr := c.Query("userId"); userIDStr != "" {
		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			abortWithBindError(c, errInvalidID)
			return
		}
		filter.UserID = &userID
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawals, err := h.svs.List(reqCtx, filter)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalsResponse(withdrawals))
}

func (h *WithdrawalHandler) respond(c *gin.Context, w *domain.Withdrawal, err error) {
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalResponse(w))
}
