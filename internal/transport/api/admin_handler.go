package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type AdminHandler struct {
	settings        SettingsServicer
	reconciliations ReconciliationServicer
}

func NewAdminHandler(settings SettingsServicer, reconciliations ReconciliationServicer) *AdminHandler {
	return &AdminHandler{settings: settings, reconciliations: reconciliations}
}

type CommissionParams struct {
	Rate *decimal.Decimal `binding:"required" json:"rate"`
}

// SetCommission PUT RouteGroup + AdminCommissionRoute.
func (h *AdminHandler) SetCommission(c *gin.Context) {
	var params CommissionParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	if err := h.settings.SetCommissionRate(reqCtx, *params.Rate); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate": params.Rate.String()})
}

// Commission GET RouteGroup + AdminCommissionRoute.
func (h *AdminHandler) Commission(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	rate, err := h.settings.CommissionRate(reqCtx)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rate": rate.String()})
}

type ReconciliationResponse struct {
	ID             int64                       `json:"id"`
	Kind           string                      `json:"kind"`
	Reference      string                      `json:"reference"`
	Payload        any                         `json:"payload,omitempty"`
	Error          string                      `json:"error"`
	Status         domain.ReconciliationStatus `json:"status"`
	ResolvedBy     *int64                      `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time                  `json:"resolvedAt,omitempty"`
	ResolutionNote string                      `json:"resolutionNote,omitempty"`
	CreatedAt      time.Time                   `json:"createdAt"`
}

func newReconciliationResponse(r *domain.ReconciliationRecord) ReconciliationResponse {
	res := ReconciliationResponse{
		ID:             r.ID,
		Kind:           r.Kind,
		Reference:      r.Reference,
		Error:          r.Error,
		Status:         r.Status,
		ResolvedBy:     r.ResolvedBy,
		ResolvedAt:     r.ResolvedAt,
		ResolutionNote: r.ResolutionNote,
		CreatedAt:      r.CreatedAt,
	}
	if len(r.Payload) > 0 {
		res.Payload = r.Payload
	}
	return res
}

// Reconciliations GET RouteGroup + AdminReconciliationsRoute. По умолчанию только открытые записи.
func (h *AdminHandler) Reconciliations(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	records, err := h.reconciliations.List(reqCtx, domain.ReconciliationStatus(c.Query("status")), limitQuery(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	response := make([]ReconciliationResponse, len(records))
	for i := range records {
		response[i] = newReconciliationResponse(&records[i])
	}
	c.JSON(http.StatusOK, response)
}

type ResolveReconciliationParams struct {
	Note string `binding:"required,max_bytes=1024" json:"note"`
}

// ResolveReconciliation POST RouteGroup + AdminReconciliationResolveRoute.
func (h *AdminHandler) ResolveReconciliation(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var params ResolveReconciliationParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	record, err := h.reconciliations.Resolve(reqCtx, id, getUserIDFromContext(c), params.Note)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newReconciliationResponse(record))
}
