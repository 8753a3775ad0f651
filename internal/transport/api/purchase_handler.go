package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/fsdevblog/digimarket/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	idempotencyKeyHeader   = "Idempotency-Key"
	maxIdempotencyKeyBytes = 128
)

var errIdempotencyKeyTooLong = errors.New("idempotency key too long")

type PurchaseHandler struct {
	svs SettlementServicer
}

func NewPurchaseHandler(svs SettlementServicer) *PurchaseHandler {
	return &PurchaseHandler{svs: svs}
}

type PurchaseParams struct {
	ListingID uuid.UUID `binding:"required" json:"listingId"`
}

type PurchaseResponse struct {
	OrderID  uuid.UUID `json:"orderId"`
	Replayed bool      `json:"replayed,omitempty"`
}

// Purchase POST RouteGroup + PurchaseRoute. Покупка за счет баланса.
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params PurchaseParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}
	idempotencyKey := c.GetHeader(idempotencyKeyHeader)
	if len(idempotencyKey) > maxIdempotencyKeyBytes {
		abortWithBindError(c, errIdempotencyKeyTooLong)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	receipt, err := h.svs.Purchase(reqCtx, service.PurchaseArgs{
		BuyerID:        currentUserID,
		ListingID:      params.ListingID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, PurchaseResponse{OrderID: receipt.OrderID, Replayed: receipt.Replayed})
}

// Checkout POST RouteGroup + CheckoutRoute. Резерв товара под внешнюю оплату.
func (h *PurchaseHandler) Checkout(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params PurchaseParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	order, err := h.svs.Checkout(reqCtx, currentUserID, params.ListingID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newOrderResponse(order))
}
