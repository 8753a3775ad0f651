package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// PaymentCallback тело уведомления платежной системы.
type PaymentCallback struct {
	OrderID       uuid.UUID       `json:"orderId"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
}

type PaymentService struct {
	orders *OrderService
	secret []byte
}

func NewPaymentService(orders *OrderService, secret []byte) *PaymentService {
	return &PaymentService{orders: orders, secret: secret}
}

// HandleCallback проверяет подпись HMAC-SHA256 над сырым телом запроса и применяет результат оплаты.
// Повтор уже обработанного callback ничего не меняет.
// Ошибки: domain.ErrInvalidSignature, domain.ErrValidation, domain.ErrOrderNotFound.
func (p *PaymentService) HandleCallback(ctx context.Context, body []byte, signature string) (*domain.Order, error) {
	if !p.verify(body, signature) {
		return nil, domain.ErrInvalidSignature
	}

	var cb PaymentCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("decoding payment callback: %w: %s", domain.ErrValidation, err.Error())
	}
	if cb.OrderID == uuid.Nil {
		return nil, fmt.Errorf("payment callback without order id: %w", domain.ErrValidation)
	}

	switch strings.ToLower(cb.Status) {
	case PaymentStatusSuccess:
		return p.orders.ConfirmExternalPayment(ctx, ConfirmPaymentArgs{
			OrderID:       cb.OrderID,
			TransactionID: cb.TransactionID,
			Amount:        cb.Amount,
		})
	case PaymentStatusFailed, PaymentStatusCancelled:
		return p.orders.FailExternalPayment(ctx, cb.OrderID, "payment_"+strings.ToLower(cb.Status))
	default:
		return nil, fmt.Errorf("payment status `%s`: %w", cb.Status, domain.ErrValidation)
	}
}

func (p *PaymentService) verify(body []byte, signature string) bool {
	if len(p.secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(got, sign(p.secret, body))
}

// SignPayload подпись тела callback в hex, как ее присылает платежная система.
func SignPayload(secret, body []byte) string {
	return hex.EncodeToString(sign(secret, body))
}

func sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
