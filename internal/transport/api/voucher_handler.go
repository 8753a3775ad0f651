package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type VoucherHandler struct {
	svs VoucherServicer
}

func NewVoucherHandler(svs VoucherServicer) *VoucherHandler {
	return &VoucherHandler{svs: svs}
}

type RedeemParams struct {
	Code string `binding:"required,max_bytes=64" json:"code"`
}

type RedeemResponse struct {
	Amount     string `json:"amount"`
	NewBalance string `json:"newBalance"`
}

// Redeem POST RouteGroup + RedeemVoucherRoute.
func (h *VoucherHandler) Redeem(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params RedeemParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	result, err := h.svs.Redeem(reqCtx, params.Code, currentUserID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, RedeemResponse{
		Amount:     money(result.Amount),
		NewBalance: money(result.NewBalance),
	})
}

type CreateVoucherParams struct {
	Code        string          `binding:"omitempty,max_bytes=64"  json:"code"`
	Amount      decimal.Decimal `binding:"required,money"          json:"amount"`
	ExpiresAt   *time.Time      `json:"expiresAt"`
	Description string          `binding:"omitempty,max_bytes=255" json:"description"`
}

type VoucherResponse struct {
	Code        string     `json:"code"`
	Amount      string     `json:"amount"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Used        bool       `json:"used"`
	UsedBy      *int64     `json:"usedBy,omitempty"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func newVoucherResponse(v *domain.Voucher) VoucherResponse {
	return VoucherResponse{
		Code:        v.Code,
		Amount:      money(v.Amount),
		ExpiresAt:   v.ExpiresAt,
		Used:        v.Used,
		UsedBy:      v.UsedBy,
		UsedAt:      v.UsedAt,
		Description: v.Description,
		CreatedAt:   v.CreatedAt,
	}
}

// Create POST RouteGroup + AdminVouchersRoute.
func (h *VoucherHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params CreateVoucherParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	voucher, err := h.svs.Create(reqCtx, service.CreateVoucherArgs{
		Code:        params.Code,
		Amount:      params.Amount,
		ExpiresAt:   params.ExpiresAt,
		Description: params.Description,
		CreatedBy:   currentUserID,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newVoucherResponse(voucher))
}

// Index GET RouteGroup + AdminVouchersRoute.
func (h *VoucherHandler) Index(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	vouchers, err := h.svs.List(reqCtx, limitQuery(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	response := make([]VoucherResponse, len(vouchers))
	for i := range vouchers {
		response[i] = newVoucherResponse(&vouchers[i])
	}
	c.JSON(http.StatusOK, response)
}
