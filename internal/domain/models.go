package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account баланс пользователя. Меняется только через дельты AccountLedger.
type Account struct {
	UserID     int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Balance    decimal.Decimal
	TotalSales int64
}

// LedgerEntry запись журнала изменений баланса.
type LedgerEntry struct {
	ID           int64
	CreatedAt    time.Time
	UserID       int64
	Delta        decimal.Decimal
	BalanceAfter decimal.Decimal
	Reason       LedgerReason
	Reference    string
}

type Voucher struct {
	Code        string
	CreatedAt   time.Time
	Amount      decimal.Decimal
	ExpiresAt   *time.Time
	Used        bool
	UsedBy      *int64
	UsedAt      *time.Time
	CreatedBy   *int64
	Description string
}

// IsExpired сообщает, истек ли срок действия ваучера на момент now.
func (v *Voucher) IsExpired(now time.Time) bool {
	return v.ExpiresAt != nil && !v.ExpiresAt.After(now)
}

type Listing struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	SellerID  int64
	Title     string
	Price     decimal.Decimal
	// Stock nil означает единичный товар без учета остатков.
	Stock  *int32
	Status ListingStatus
}

type Order struct {
	ID            uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
	BuyerID       int64
	SellerID      int64
	ListingID     uuid.UUID
	Price         decimal.Decimal
	Commission    decimal.Decimal
	PaymentMethod PaymentMethod
	PaymentTxn    string
	Status        OrderStatus
	DeliveryNote  string
	PurchaseKey   *string
	EscrowUntil   time.Time
	DeliveredAt   *time.Time
	CompletedAt   *time.Time
}

// SellerNet сумма, причитающаяся продавцу. Считается только из сохраненных price и commission.
func (o *Order) SellerNet() decimal.Decimal {
	return o.Price.Sub(o.Commission)
}

// IsParticipant проверяет, является ли userID покупателем или продавцом заказа.
func (o *Order) IsParticipant(userID int64) bool {
	return o.BuyerID == userID || o.SellerID == userID
}

type Withdrawal struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      int64
	Amount      decimal.Decimal
	Status      WithdrawalStatus
	Method      string
	Notes       string
	AdminNotes  string
	ProcessedBy *int64
	ProcessedAt *time.Time
}

// ReconciliationRecord фиксирует несогласованность, которую не удалось исправить автоматически.
type ReconciliationRecord struct {
	ID             int64
	CreatedAt      time.Time
	Kind           string
	Reference      string
	Payload        json.RawMessage
	Error          string
	Status         ReconciliationStatus
	ResolvedBy     *int64
	ResolvedAt     *time.Time
	ResolutionNote string
}
