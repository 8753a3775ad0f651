package repoargs

import (
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderCreate struct {
	ID            uuid.UUID
	BuyerID       int64
	SellerID      int64
	ListingID     uuid.UUID
	Price         decimal.Decimal
	Commission    decimal.Decimal
	PaymentMethod domain.PaymentMethod
	Status        domain.OrderStatus
	PurchaseKey   *string
	EscrowUntil   time.Time
	Now           time.Time
}

// OrderTransition переход статуса заказа, выполняемый как compare-and-set по From.
type OrderTransition struct {
	ID           uuid.UUID
	From         domain.OrderStatus
	To           domain.OrderStatus
	DeliveryNote *string
	PaymentTxn   *string
	Now          time.Time
}
