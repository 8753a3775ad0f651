package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const subjectOrderPrefix = "market.orders."

const (
	reconciliationKindClawback    = "seller_clawback_shortfall"
	reconciliationKindLatePayment = "external_payment_after_cancel"
)

type OrderService struct {
	uow          uow.UOW
	orderRepo    OrderRepository
	events       EventPublisher
	escrowPeriod time.Duration
	pendingTTL   time.Duration
	now          func() time.Time
}

type OrderServiceConfig struct {
	// EscrowPeriod через сколько после оплаты доставленный заказ завершается автоматически.
	EscrowPeriod time.Duration
	// PendingTTL сколько заказ с внешней оплатой может ждать callback.
	PendingTTL time.Duration
}

func NewOrderService(u uow.UOW, events EventPublisher, cfg OrderServiceConfig) (*OrderService, error) {
	orderRepo, err := uow.GetRepositoryAs[OrderRepository](u, uow.RepositoryName(repoargs.OrderRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &OrderService{
		uow:          u,
		orderRepo:    orderRepo,
		events:       events,
		escrowPeriod: cfg.EscrowPeriod,
		pendingTTL:   cfg.PendingTTL,
		now:          time.Now,
	}, nil
}

// OrderChanged событие смены статуса заказа.
type OrderChanged struct {
	OrderID   uuid.UUID          `json:"orderId"`
	Status    domain.OrderStatus `json:"status"`
	BuyerID   int64              `json:"buyerId"`
	SellerID  int64              `json:"sellerId"`
	ListingID uuid.UUID          `json:"listingId"`
	Price     decimal.Decimal    `json:"price"`
	Reason    string             `json:"reason,omitempty"`
}

func (o *OrderService) publish(ctx context.Context, order *domain.Order, reason string) {
	o.events.Publish(ctx, subjectOrderPrefix+string(order.Status), OrderChanged{
		OrderID:   order.ID,
		Status:    order.Status,
		BuyerID:   order.BuyerID,
		SellerID:  order.SellerID,
		ListingID: order.ListingID,
		Price:     order.Price,
		Reason:    reason,
	})
}

type CreateOrderArgs struct {
	ID             uuid.UUID
	BuyerID        int64
	SellerID       int64
	ListingID      uuid.UUID
	Price          decimal.Decimal
	CommissionRate decimal.Decimal
	PaymentMethod  domain.PaymentMethod
	Status         domain.OrderStatus
	PurchaseKey    *string
}

// createOrder сохраняет заказ в транзакции tx. Комиссия считается один раз по текущей ставке
// и дальше берется только из заказа.
func (o *OrderService) createOrder(ctx context.Context, tx uow.TX, args CreateOrderArgs) (*domain.Order, error) {
	repo, err := uow.GetAs[OrderRepository](tx, uow.RepositoryName(repoargs.OrderRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	commission, _ := domain.SplitCommission(args.Price, args.CommissionRate)
	now := o.now()

	id := args.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return repo.Create(ctx, repoargs.OrderCreate{ //nolint:wrapcheck
		ID:            id,
		BuyerID:       args.BuyerID,
		SellerID:      args.SellerID,
		ListingID:     args.ListingID,
		Price:         args.Price,
		Commission:    commission,
		PaymentMethod: args.PaymentMethod,
		Status:        args.Status,
		PurchaseKey:   args.PurchaseKey,
		EscrowUntil:   now.Add(o.escrowPeriod),
		Now:           now,
	})
}

type transitionOpts struct {
	deliveryNote *string
	paymentTxn   *string
}

// transition переводит заказ по событию event. Запись обновляется только если статус в БД все еще равен
// order.Status, иначе заказ перечитывается и возвращается domain.ErrInvalidTransition.
func (o *OrderService) transition(
	ctx context.Context,
	tx uow.TX,
	order *domain.Order,
	event domain.OrderEvent,
	opts transitionOpts,
) (*domain.Order, error) {
	to, err := domain.NextOrderStatus(order.Status, event)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	repo, err := uow.GetAs[OrderRepository](tx, uow.RepositoryName(repoargs.OrderRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	updated, err := repo.Transition(ctx, repoargs.OrderTransition{
		ID:           order.ID,
		From:         order.Status,
		To:           to,
		DeliveryNote: opts.deliveryNote,
		PaymentTxn:   opts.paymentTxn,
		Now:          o.now(),
	})
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err //nolint:wrapcheck
	}

	current, getErr := repo.Get(ctx, order.ID)
	if getErr != nil {
		return nil, getErr //nolint:wrapcheck
	}
	return nil, fmt.Errorf("order %s moved to %s: %w", order.ID, current.Status, domain.ErrInvalidTransition)
}

func getOrder(ctx context.Context, tx uow.TX, id uuid.UUID) (*domain.Order, error) {
	repo, err := uow.GetAs[OrderRepository](tx, uow.RepositoryName(repoargs.OrderRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return repo.Get(ctx, id) //nolint:wrapcheck
}

// complete завершает заказ и увеличивает счетчик продаж продавца.
func (o *OrderService) complete(
	ctx context.Context,
	tx uow.TX,
	order *domain.Order,
	event domain.OrderEvent,
) (*domain.Order, error) {
	updated, err := o.transition(ctx, tx, order, event, transitionOpts{})
	if err != nil {
		return nil, err
	}
	accountRepo, err := uow.GetAs[AccountRepository](tx, uow.RepositoryName(repoargs.AccountRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if err = accountRepo.IncrementSales(ctx, order.SellerID); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return updated, nil
}

// cancel отменяет заказ. Если деньги уже проведены, покупателю возвращается цена, у продавца списывается
// его доля, и единица товара возвращается на склад. Возврат покупателю не зависит от баланса продавца:
// недостачу продавца см. clawBack.
func (o *OrderService) cancel(
	ctx context.Context,
	tx uow.TX,
	order *domain.Order,
	event domain.OrderEvent,
) (*domain.Order, error) {
	updated, err := o.transition(ctx, tx, order, event, transitionOpts{})
	if err != nil {
		return nil, err
	}

	if order.Status.MoneyMoved() {
		if _, err = applyDelta(ctx, tx, DeltaArgs{
			UserID:    order.BuyerID,
			Amount:    order.Price,
			Reason:    domain.ReasonPurchaseRefund,
			Reference: orderReference(order.ID),
		}); err != nil {
			return nil, fmt.Errorf("refunding buyer: %w", err)
		}
		if err = clawBack(ctx, tx, order); err != nil {
			return nil, fmt.Errorf("reversing seller credit: %w", err)
		}
	}

	if err = releaseUnit(ctx, tx, order.ListingID); err != nil {
		return nil, err
	}
	return updated, nil
}

type clawbackShortfall struct {
	OrderID   uuid.UUID       `json:"orderId"`
	SellerID  int64           `json:"sellerId"`
	SellerNet decimal.Decimal `json:"sellerNet"`
	Recovered decimal.Decimal `json:"recovered"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// clawBack списывает у продавца его долю по заказу. Если продавец уже вывел часть денег, списывается
// сколько есть, а остаток пишется в reconciliation_log.
func clawBack(ctx context.Context, tx uow.TX, order *domain.Order) error {
	net := order.SellerNet()
	if !net.IsPositive() {
		return nil
	}
	reversal := DeltaArgs{
		UserID:    order.SellerID,
		Amount:    net.Neg(),
		Reason:    domain.ReasonPurchaseReversal,
		Reference: orderReference(order.ID),
	}
	_, err := applyDelta(ctx, tx, reversal)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		return err
	}

	accountRepo, err := uow.GetAs[AccountRepository](tx, uow.RepositoryName(repoargs.AccountRepoName))
	if err != nil {
		return err //nolint:wrapcheck
	}
	account, err := accountRepo.Get(ctx, order.SellerID)
	if err != nil {
		return err //nolint:wrapcheck
	}
	recovered := decimal.Min(account.Balance, net)
	if recovered.IsPositive() {
		reversal.Amount = recovered.Neg()
		if _, err = applyDelta(ctx, tx, reversal); err != nil {
			return err
		}
	}

	return createReconciliation(ctx, tx, reconciliationKindClawback, order.ID, clawbackShortfall{
		OrderID:   order.ID,
		SellerID:  order.SellerID,
		SellerNet: net,
		Recovered: recovered,
		Shortfall: net.Sub(recovered),
	}, "seller balance below reversal amount")
}

// createReconciliation пишет запись для ручной сверки в транзакции tx.
func createReconciliation(
	ctx context.Context,
	tx uow.TX,
	kind string,
	orderID uuid.UUID,
	payload any,
	reason string,
) error {
	repo, err := uow.GetAs[ReconciliationRepository](tx, uow.RepositoryName(repoargs.ReconciliationRepoName))
	if err != nil {
		return err //nolint:wrapcheck
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling %s payload: %w", kind, err)
	}
	if _, err = repo.Create(ctx, repoargs.ReconciliationCreate{
		Kind:      kind,
		Reference: orderReference(orderID),
		Payload:   raw,
		Error:     reason,
	}); err != nil {
		return err //nolint:wrapcheck
	}
	return nil
}

// MarkDelivered продавец передал товар покупателю.
func (o *OrderService) MarkDelivered(
	ctx context.Context,
	sellerID int64,
	orderID uuid.UUID,
	note string,
) (*domain.Order, error) {
	var result *domain.Order
	err := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		order, err := getOrder(c, tx, orderID)
		if err != nil {
			return err
		}
		if order.SellerID != sellerID {
			return domain.ErrNotOrderParticipant
		}
		note = strings.TrimSpace(note)
		result, err = o.transition(c, tx, order, domain.OrderEventDelivered, transitionOpts{deliveryNote: &note})
		return err
	})
	if err != nil {
		return nil, txErr(err, "marking order %s delivered", orderID)
	}
	o.publish(ctx, result, "")
	return result, nil
}

// Confirm покупатель подтверждает получение, заказ завершается.
func (o *OrderService) Confirm(ctx context.Context, buyerID int64, orderID uuid.UUID) (*domain.Order, error) {
	var result *domain.Order
	err := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		order, err := getOrder(c, tx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return domain.ErrNotOrderParticipant
		}
		result, err = o.complete(c, tx, order, domain.OrderEventConfirmed)
		return err
	})
	if err != nil {
		return nil, txErr(err, "confirming order %s", orderID)
	}
	o.publish(ctx, result, "")
	return result, nil
}

// RaiseDispute открывает спор по заказу. Открыть его может любой участник сделки.
func (o *OrderService) RaiseDispute(
	ctx context.Context,
	userID int64,
	orderID uuid.UUID,
	reason string,
) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}

	var result *domain.Order
	err := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		order, err := getOrder(c, tx, orderID)
		if err != nil {
			return err
		}
		if !order.IsParticipant(userID) {
			return domain.ErrNotOrderParticipant
		}
		result, err = o.transition(c, tx, order, domain.OrderEventDisputed, transitionOpts{})
		return err
	})
	if err != nil {
		return nil, txErr(err, "disputing order %s", orderID)
	}
	o.publish(ctx, result, reason)
	return result, nil
}

// Cancel отмена заказа администратором с возвратом средств.
func (o *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}

	var result *domain.Order
	err := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		order, err := getOrder(c, tx, orderID)
		if err != nil {
			return err
		}
		result, err = o.cancel(c, tx, order, domain.OrderEventCancelled)
		return err
	})
	if err != nil {
		return nil, txErr(err, "cancelling order %s", orderID)
	}
	o.publish(ctx, result, reason)
	return result, nil
}

// ResolveDispute закрывает спор: complete=true завершает сделку в пользу продавца, иначе заказ отменяется
// с возвратом средств покупателю.
func (o *OrderService) ResolveDispute(
	ctx context.Context,
	orderID uuid.UUID,
	complete bool,
	note string,
) (*domain.Order, error) {
	var result *domain.Order
	err := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		order, err := getOrder(c, tx, orderID)
		if err != nil {
			return err
		}
		if complete {
			result, err = o.complete(c, tx, order, domain.OrderEventResolvedComplete)
		} else {
			result, err = o.cancel(c, tx, order, domain.OrderEventResolvedCancel)
		}
		return err
	})
	if err != nil {
		return nil, txErr(err, "resolving dispute on order %s", orderID)
	}
	o.publish(ctx, result, strings.TrimSpace(note))
	return result, nil
}

type ConfirmPaymentArgs struct {
	OrderID       uuid.UUID
	TransactionID string
	// Amount сумма из callback. Нулевая сумма не проверяется.
	Amount decimal.Decimal
}

type latePayment struct {
	OrderID       uuid.UUID       `json:"orderId"`
	BuyerID       int64           `json:"buyerId"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
}

// ConfirmExternalPayment переводит ожидающий заказ в paid и зачисляет продавцу его долю.
// Повторный callback по уже оплаченному заказу ничего не меняет. Оплата отмененного заказа
// записывается в reconciliation_log, вызывающий получает domain.ErrPaymentAfterCancel.
func (o *OrderService) ConfirmExternalPayment(ctx context.Context, args ConfirmPaymentArgs) (*domain.Order, error) {
	var (
		result      *domain.Order
		changed     bool
		afterCancel bool
	)
	err := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		order, err := getOrder(c, tx, args.OrderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderStatusCancelled {
			afterCancel = true
			amount := args.Amount
			if amount.IsZero() {
				amount = order.Price
			}
			return createReconciliation(c, tx, reconciliationKindLatePayment, order.ID, latePayment{
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				TransactionID: args.TransactionID,
				Amount:        amount,
			}, "external payment confirmed after order was cancelled")
		}
		if order.Status != domain.OrderStatusPending {
			result = order
			return nil
		}
		if !args.Amount.IsZero() && !args.Amount.Equal(order.Price) {
			return fmt.Errorf("paid %s for order priced %s: %w", args.Amount, order.Price, domain.ErrInvalidAmount)
		}

		txn := args.TransactionID
		result, err = o.transition(c, tx, order, domain.OrderEventPaymentConfirmed, transitionOpts{paymentTxn: &txn})
		if err != nil {
			return err
		}
		if _, err = applyDelta(c, tx, DeltaArgs{
			UserID:    order.SellerID,
			Amount:    order.SellerNet(),
			Reason:    domain.ReasonPurchaseCredit,
			Reference: orderReference(order.ID),
		}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, txErr(err, "confirming payment of order %s", args.OrderID)
	}
	if afterCancel {
		return nil, fmt.Errorf("confirming payment %s of order %s: %w",
			args.TransactionID, args.OrderID, domain.ErrPaymentAfterCancel)
	}
	if changed {
		o.publish(ctx, result, "")
	}
	return result, nil
}

// FailExternalPayment отменяет ожидающий заказ, если платеж не прошел. Для заказа в другом статусе ничего не делает.
func (o *OrderService) FailExternalPayment(ctx context.Context, orderID uuid.UUID, reason string) (*domain.Order, error) {
	var (
		result  *domain.Order
		changed bool
	)
	err := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		order, err := getOrder(c, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusPending {
			result = order
			return nil
		}
		result, err = o.cancel(c, tx, order, domain.OrderEventCancelled)
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, txErr(err, "failing payment of order %s", orderID)
	}
	if changed {
		o.publish(ctx, result, reason)
	}
	return result, nil
}

// Get заказ, видимый участнику сделки.
func (o *OrderService) Get(ctx context.Context, userID int64, orderID uuid.UUID) (*domain.Order, error) {
	order, err := o.orderRepo.Get(ctx, orderID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if !order.IsParticipant(userID) {
		return nil, domain.ErrNotOrderParticipant
	}
	return order, nil
}

func (o *OrderService) ListForBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	orders, err := o.orderRepo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return orders, nil
}

func (o *OrderService) ListForSeller(ctx context.Context, sellerID int64) ([]domain.Order, error) {
	orders, err := o.orderRepo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return orders, nil
}

// OrdersForEscrowRelease доставленные заказы с истекшим сроком удержания.
func (o *OrderService) OrdersForEscrowRelease(ctx context.Context, limit uint) ([]domain.Order, error) {
	orders, err := o.orderRepo.ListEscrowExpired(ctx, o.now(), limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return orders, nil
}

// StalePendingOrders заказы, оплата которых не пришла за PendingTTL.
func (o *OrderService) StalePendingOrders(ctx context.Context, limit uint) ([]domain.Order, error) {
	orders, err := o.orderRepo.ListStalePending(ctx, o.now().Add(-o.pendingTTL), limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return orders, nil
}

// ReleaseEscrow автоматически завершает заказ, который покупатель не подтвердил вовремя.
func (o *OrderService) ReleaseEscrow(ctx context.Context, order domain.Order) (*domain.Order, error) {
	var result *domain.Order
	err := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var err error
		result, err = o.complete(c, tx, &order, domain.OrderEventConfirmed)
		return err
	})
	if err != nil {
		return nil, txErr(err, "releasing escrow of order %s", order.ID)
	}
	o.publish(ctx, result, "escrow_expired")
	return result, nil
}

// ExpirePending отменяет неоплаченный заказ и возвращает товар на склад.
func (o *OrderService) ExpirePending(ctx context.Context, order domain.Order) (*domain.Order, error) {
	return o.FailExternalPayment(ctx, order.ID, "payment_timeout")
}

func orderReference(id uuid.UUID) string {
	return "order:" + id.String()
}
