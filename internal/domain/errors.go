package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrDuplicateKey        = errors.New("duplicate key")
	ErrUnknown             = errors.New("unknown error")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrValidation          = errors.New("validation failed")

	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = fmt.Errorf("%w: invalid amount", ErrValidation)

	ErrVoucherNotFound    = errors.New("voucher not found")
	ErrVoucherExpired     = errors.New("voucher expired")
	ErrVoucherAlreadyUsed = errors.New("voucher already used")
	ErrInvalidVoucherCode = fmt.Errorf("%w: malformed voucher code", ErrValidation)

	// ErrListingUnavailable общий предок для всех причин, по которым листинг нельзя купить.
	ErrListingUnavailable = errors.New("listing unavailable")
	ErrListingNotFound    = fmt.Errorf("%w: listing not found", ErrListingUnavailable)
	ErrListingNotActive   = fmt.Errorf("%w: listing not active", ErrListingUnavailable)
	ErrOutOfStock         = fmt.Errorf("%w: out of stock", ErrListingUnavailable)
	ErrSelfPurchase       = fmt.Errorf("%w: self purchase", ErrValidation)

	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid order transition")
	ErrNotOrderParticipant = errors.New("user is not an order participant")
	// ErrPaymentAfterCancel оплата пришла по уже отмененному заказу, деньги ждут ручной сверки.
	ErrPaymentAfterCancel = errors.New("payment received for cancelled order")

	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrAlreadyProcessed   = errors.New("withdrawal already processed")
	ErrAmountBelowMinimum = fmt.Errorf("%w: amount below minimum", ErrValidation)
	ErrReasonRequired     = fmt.Errorf("%w: reason required", ErrValidation)

	ErrInvalidSignature      = errors.New("invalid callback signature")
	ErrInvalidCommissionRate = fmt.Errorf("%w: commission rate out of range", ErrValidation)

	// ErrSettlementFailed возвращается, когда откат покупки не удался и создана запись для сверки.
	ErrSettlementFailed = errors.New("settlement failed")

	ErrReconciliationNotFound = errors.New("reconciliation record not found")
)
