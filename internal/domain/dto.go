package domain

type ListingStatus string

const (
	ListingStatusDraft    ListingStatus = "draft"
	ListingStatusActive   ListingStatus = "active"
	ListingStatusSold     ListingStatus = "sold"
	ListingStatusPaused   ListingStatus = "paused"
	ListingStatusRejected ListingStatus = "rejected"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusDisputed  OrderStatus = "disputed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal завершенные и отмененные заказы больше не меняются.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

type OrderEvent string

const (
	OrderEventPaymentConfirmed OrderEvent = "payment_confirmed"
	OrderEventDelivered        OrderEvent = "delivered"
	OrderEventConfirmed        OrderEvent = "confirmed"
	OrderEventDisputed         OrderEvent = "disputed"
	OrderEventCancelled        OrderEvent = "cancelled"
	OrderEventResolvedComplete OrderEvent = "dispute_resolved_complete"
	OrderEventResolvedCancel   OrderEvent = "dispute_resolved_cancel"
)

type PaymentMethod string

const (
	PaymentMethodBalance  PaymentMethod = "balance"
	PaymentMethodExternal PaymentMethod = "external"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusApproved  WithdrawalStatus = "approved"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
)

// Valid проверяет, что статус входит в перечисление.
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected, WithdrawalStatusCompleted:
		return true
	default:
		return false
	}
}

// LedgerReason тег аудита для каждой дельты баланса.
type LedgerReason string

const (
	ReasonPurchaseDebit    LedgerReason = "purchase-debit"
	ReasonPurchaseCredit   LedgerReason = "purchase-credit"
	ReasonPurchaseRefund   LedgerReason = "purchase-refund"
	ReasonPurchaseReversal LedgerReason = "purchase-reversal"
	ReasonVoucherRedeem    LedgerReason = "voucher-redeem"
	ReasonWithdrawalDebit  LedgerReason = "withdrawal-debit"
	ReasonAdminGrant       LedgerReason = "admin-grant"
)

type ReconciliationStatus string

const (
	ReconciliationStatusOpen     ReconciliationStatus = "open"
	ReconciliationStatusResolved ReconciliationStatus = "resolved"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)
