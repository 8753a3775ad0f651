package api

import (
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/google/uuid"
)

type OrderResponse struct {
	ID            uuid.UUID            `json:"id"`
	BuyerID       int64                `json:"buyerId"`
	SellerID      int64                `json:"sellerId"`
	ListingID     uuid.UUID            `json:"listingId"`
	Price         string               `json:"price"`
	Commission    string               `json:"commission"`
	SellerNet     string               `json:"sellerNet"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	DeliveryNote  string               `json:"deliveryNote,omitempty"`
	EscrowUntil   time.Time            `json:"escrowUntil"`
	CreatedAt     time.Time            `json:"createdAt"`
}

func newOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		BuyerID:       o.BuyerID,
		SellerID:      o.SellerID,
		ListingID:     o.ListingID,
		Price:         money(o.Price),
		Commission:    money(o.Commission),
		SellerNet:     money(o.SellerNet()),
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		DeliveryNote:  o.DeliveryNote,
		EscrowUntil:   o.EscrowUntil,
		CreatedAt:     o.CreatedAt,
	}
}

type WithdrawalResponse struct {
	ID          uuid.UUID               `json:"id"`
	UserID      int64                   `json:"userId"`
	Amount      string                  `json:"amount"`
	Status      domain.WithdrawalStatus `json:"status"`
	Method      string                  `json:"method"`
	Notes       string                  `json:"notes,omitempty"`
	AdminNotes  string                  `json:"adminNotes,omitempty"`
	ProcessedBy *int64                  `json:"processedBy,omitempty"`
	ProcessedAt *time.Time              `json:"processedAt,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
}

func newWithdrawalResponse(w *domain.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:          w.ID,
		UserID:      w.UserID,
		Amount:      money(w.Amount),
		Status:      w.Status,
		Method:      w.Method,
		Notes:       w.Notes,
		AdminNotes:  w.AdminNotes,
		ProcessedBy: w.ProcessedBy,
		ProcessedAt: w.ProcessedAt,
		CreatedAt:   w.CreatedAt,
	}
}

func newWithdrawalsResponse(list []domain.Withdrawal) []WithdrawalResponse {
	response := make([]WithdrawalResponse, len(list))
	for i := range list {
		response[i] = newWithdrawalResponse(&list[i])
	}
	return response
}

type AccountResponse struct {
	UserID     int64  `json:"userId"`
	Balance    string `json:"balance"`
	TotalSales int64  `json:"totalSales"`
	Currency   string `json:"currency"`
}

func newAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		UserID:     a.UserID,
		Balance:    money(a.Balance),
		TotalSales: a.TotalSales,
		Currency:   domain.Currency,
	}
}
