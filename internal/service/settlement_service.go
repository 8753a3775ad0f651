package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/saga"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type SettlementMode string

const (
	// SettlementTransactional все шаги покупки в одной транзакции БД.
	SettlementTransactional SettlementMode = "transactional"
	// SettlementSaga каждый шаг в своей транзакции, откат компенсациями.
	SettlementSaga SettlementMode = "saga"

	reconciliationKindPurchase = "purchase_compensation"
	defaultCompensationTimeout = 15 * time.Second
)

func (m SettlementMode) Valid() bool {
	return m == SettlementTransactional || m == SettlementSaga
}

type SettlementConfig struct {
	Mode                SettlementMode
	DedupWindow         time.Duration
	CompensationTimeout time.Duration
}

type SettlementService struct {
	uow         uow.UOW
	listingRepo ListingRepository
	orderRepo   OrderRepository
	reconRepo   ReconciliationRepository
	orders      *OrderService
	settings    *SettingsService
	dedup       DedupStore
	cfg         SettlementConfig
	logger      *logrus.Entry
	newID       func() uuid.UUID
}

func NewSettlementService(
	u uow.UOW,
	orders *OrderService,
	settings *SettingsService,
	dedup DedupStore,
	cfg SettlementConfig,
	logger *logrus.Logger,
) (*SettlementService, error) {
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("unknown settlement mode `%s`", cfg.Mode)
	}
	if cfg.CompensationTimeout <= 0 {
		cfg.CompensationTimeout = defaultCompensationTimeout
	}

	listingRepo, err := uow.GetRepositoryAs[ListingRepository](u, uow.RepositoryName(repoargs.ListingRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	orderRepo, err := uow.GetRepositoryAs[OrderRepository](u, uow.RepositoryName(repoargs.OrderRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	reconRepo, err := uow.GetRepositoryAs[ReconciliationRepository](
		u, uow.RepositoryName(repoargs.ReconciliationRepoName),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &SettlementService{
		uow:         u,
		listingRepo: listingRepo,
		orderRepo:   orderRepo,
		reconRepo:   reconRepo,
		orders:      orders,
		settings:    settings,
		dedup:       dedup,
		cfg:         cfg,
		logger:      logger.WithFields(logrus.Fields{"component": "settlement", "mode": string(cfg.Mode)}),
		newID:       uuid.New,
	}, nil
}

type PurchaseArgs struct {
	BuyerID   int64
	ListingID uuid.UUID
	// IdempotencyKey ключ клиента. Если пустой, повтором считается покупка того же листинга тем же покупателем
	// в пределах окна дедупликации.
	IdempotencyKey string
}

type Receipt struct {
	OrderID uuid.UUID
	// Replayed true, если запрос оказался повтором и заказ был создан раньше.
	Replayed bool
}

// purchasePlan данные одной покупки, общие для всех шагов.
type purchasePlan struct {
	orderID     uuid.UUID
	buyerID     int64
	sellerID    int64
	listingID   uuid.UUID
	rate        decimal.Decimal
	purchaseKey *string
}

// Purchase покупка за счет баланса: резерв единицы товара, списание цены у покупателя, зачисление доли продавцу
// и создание оплаченного заказа.
// Ошибки: domain.ErrSelfPurchase, domain.ErrListingUnavailable, domain.ErrInsufficientFunds,
// domain.ErrConcurrencyConflict, domain.ErrSettlementFailed.
func (s *SettlementService) Purchase(ctx context.Context, args PurchaseArgs) (*Receipt, error) {
	listing, err := s.listingRepo.Get(ctx, args.ListingID)
	if err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}
	if listing.SellerID == args.BuyerID {
		return nil, domain.ErrSelfPurchase
	}

	// окно дедупликации проверяется до доступности листинга: повтор уже выполненной покупки
	// последней единицы должен вернуть тот же заказ, а не out_of_stock
	dedupKey := purchaseDedupKey(args)
	acquired, err := s.dedup.Acquire(ctx, dedupKey, s.cfg.DedupWindow)
	if err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}
	if !acquired.Acquired {
		if acquired.OrderID != uuid.Nil {
			return &Receipt{OrderID: acquired.OrderID, Replayed: true}, nil
		}
		return nil, fmt.Errorf("purchase %s in flight: %w", dedupKey, domain.ErrConcurrencyConflict)
	}

	plan := purchasePlan{
		orderID:   s.newID(),
		buyerID:   args.BuyerID,
		sellerID:  listing.SellerID,
		listingID: listing.ID,
	}
	if args.IdempotencyKey != "" {
		key := fmt.Sprintf("%d:%s", args.BuyerID, args.IdempotencyKey)
		plan.purchaseKey = &key
	}

	order, err := s.settle(ctx, listing, plan)
	if err != nil {
		if replay, ok := s.replayByPurchaseKey(ctx, plan, err); ok {
			s.completeDedup(ctx, dedupKey, replay.OrderID)
			return replay, nil
		}
		if releaseErr := s.dedup.Release(context.WithoutCancel(ctx), dedupKey); releaseErr != nil {
			s.logger.WithError(releaseErr).WithField("key", dedupKey).Warn("failed to release dedup key")
		}
		return nil, err
	}

	s.completeDedup(ctx, dedupKey, order.ID)
	s.orders.publish(ctx, order, "")
	return &Receipt{OrderID: order.ID}, nil
}

// settle проверяет листинг, фиксирует ставку комиссии и проводит покупку в выбранном режиме.
func (s *SettlementService) settle(
	ctx context.Context,
	listing *domain.Listing,
	plan purchasePlan,
) (*domain.Order, error) {
	if err := checkPurchasable(listing, plan.buyerID); err != nil {
		return nil, err
	}
	rate, err := s.settings.CommissionRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("purchase: %w", err)
	}
	plan.rate = rate

	if s.cfg.Mode == SettlementSaga {
		return s.purchaseSaga(ctx, plan)
	}
	return s.purchaseTx(ctx, plan)
}

// Checkout начало покупки с внешней оплатой: товар резервируется, заказ создается в статусе pending
// и ждет callback платежной системы.
func (s *SettlementService) Checkout(ctx context.Context, buyerID int64, listingID uuid.UUID) (*domain.Order, error) {
	listing, err := s.listingRepo.Get(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	if err = checkPurchasable(listing, buyerID); err != nil {
		return nil, err
	}
	rate, err := s.settings.CommissionRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	var order *domain.Order
	err = s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[ListingRepository](tx, uow.RepositoryName(repoargs.ListingRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		reserved, reserveErr := reserveUnit(c, repo, listingID)
		if reserveErr != nil {
			return reserveErr
		}
		var createErr error
		order, createErr = s.orders.createOrder(c, tx, CreateOrderArgs{
			ID:             s.newID(),
			BuyerID:        buyerID,
			SellerID:       reserved.SellerID,
			ListingID:      reserved.ID,
			Price:          reserved.Price,
			CommissionRate: rate,
			PaymentMethod:  domain.PaymentMethodExternal,
			Status:         domain.OrderStatusPending,
		})
		return createErr
	})
	if err != nil {
		return nil, txErr(err, "checkout of listing %s", listingID)
	}
	s.orders.publish(ctx, order, "")
	return order, nil
}

// purchaseTx выполняет все шаги в одной транзакции. Ошибка любого шага откатывает все.
func (s *SettlementService) purchaseTx(ctx context.Context, plan purchasePlan) (*domain.Order, error) {
	var order *domain.Order
	err := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		listing, err := s.reserve(c, tx, plan)
		if err != nil {
			return err
		}
		_, net := domain.SplitCommission(listing.Price, plan.rate)
		if err = s.debitBuyer(c, tx, plan, listing.Price); err != nil {
			return err
		}
		if err = s.creditSeller(c, tx, plan, net); err != nil {
			return err
		}
		order, err = s.createPaidOrder(c, tx, plan, listing.Price)
		return err
	})
	if err != nil {
		return nil, txErr(err, "purchase of listing %s", plan.listingID)
	}
	return order, nil
}

// purchaseSaga выполняет шаги в отдельных транзакциях. При ошибке выполненные шаги компенсируются
// в обратном порядке. Если компенсация не удалась, пишется запись для ручной сверки и возвращается
// domain.ErrSettlementFailed.
func (s *SettlementService) purchaseSaga(ctx context.Context, plan purchasePlan) (*domain.Order, error) {
	var (
		price decimal.Decimal
		net   decimal.Decimal
		order *domain.Order
	)

	inTx := func(fn func(c context.Context, tx uow.TX) error) func(context.Context) error {
		return func(c context.Context) error {
			return s.uow.Do(c, fn) //nolint:wrapcheck
		}
	}

	sg := saga.New(
		saga.WithCompensationTimeout(s.cfg.CompensationTimeout),
		saga.WithCompensationErrorHandler(func(c context.Context, step string, cause, err error) {
			s.recordCompensationFailure(c, plan, step, price, net, cause, err)
		}),
	)
	sg.AddStep(saga.Step{
		Name: "reserve_unit",
		Action: inTx(func(c context.Context, tx uow.TX) error {
			listing, err := s.reserve(c, tx, plan)
			if err != nil {
				return err
			}
			price = listing.Price
			_, net = domain.SplitCommission(price, plan.rate)
			return nil
		}),
		Compensate: inTx(func(c context.Context, tx uow.TX) error {
			return releaseUnit(c, tx, plan.listingID)
		}),
	}).AddStep(saga.Step{
		Name: "debit_buyer",
		Action: inTx(func(c context.Context, tx uow.TX) error {
			return s.debitBuyer(c, tx, plan, price)
		}),
		Compensate: inTx(func(c context.Context, tx uow.TX) error {
			_, err := applyDelta(c, tx, DeltaArgs{
				UserID:    plan.buyerID,
				Amount:    price,
				Reason:    domain.ReasonPurchaseRefund,
				Reference: orderReference(plan.orderID),
			})
			return err
		}),
	}).AddStep(saga.Step{
		Name: "credit_seller",
		Action: inTx(func(c context.Context, tx uow.TX) error {
			return s.creditSeller(c, tx, plan, net)
		}),
		Compensate: inTx(func(c context.Context, tx uow.TX) error {
			_, err := applyDelta(c, tx, DeltaArgs{
				UserID:    plan.sellerID,
				Amount:    net.Neg(),
				Reason:    domain.ReasonPurchaseReversal,
				Reference: orderReference(plan.orderID),
			})
			return err
		}),
	}).AddStep(saga.Step{
		Name: "create_order",
		Action: inTx(func(c context.Context, tx uow.TX) error {
			var err error
			order, err = s.createPaidOrder(c, tx, plan, price)
			return err
		}),
	})

	if err := sg.Run(ctx); err != nil {
		var sagaErr *saga.Error
		if errors.As(err, &sagaErr) && !sagaErr.Compensated() {
			return nil, fmt.Errorf("purchase of listing %s: %w: %w", plan.listingID, domain.ErrSettlementFailed, err)
		}
		return nil, txErr(err, "purchase of listing %s", plan.listingID)
	}
	return order, nil
}

func (s *SettlementService) reserve(ctx context.Context, tx uow.TX, plan purchasePlan) (*domain.Listing, error) {
	repo, err := uow.GetAs[ListingRepository](tx, uow.RepositoryName(repoargs.ListingRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	listing, err := reserveUnit(ctx, repo, plan.listingID)
	if err != nil {
		return nil, err
	}
	// цена и продавец берутся из строки, которую мы заблокировали, а не из предварительного чтения
	if listing.SellerID != plan.sellerID {
		return nil, fmt.Errorf("listing %s changed owner: %w", plan.listingID, domain.ErrListingNotActive)
	}
	return listing, nil
}

func (s *SettlementService) debitBuyer(ctx context.Context, tx uow.TX, plan purchasePlan, price decimal.Decimal) error {
	_, err := applyDelta(ctx, tx, DeltaArgs{
		UserID:    plan.buyerID,
		Amount:    price.Neg(),
		Reason:    domain.ReasonPurchaseDebit,
		Reference: orderReference(plan.orderID),
	})
	return err
}

func (s *SettlementService) creditSeller(ctx context.Context, tx uow.TX, plan purchasePlan, net decimal.Decimal) error {
	if net.IsZero() {
		return nil
	}
	_, err := applyDelta(ctx, tx, DeltaArgs{
		UserID:    plan.sellerID,
		Amount:    net,
		Reason:    domain.ReasonPurchaseCredit,
		Reference: orderReference(plan.orderID),
	})
	return err
}

func (s *SettlementService) createPaidOrder(
	ctx context.Context,
	tx uow.TX,
	plan purchasePlan,
	price decimal.Decimal,
) (*domain.Order, error) {
	return s.orders.createOrder(ctx, tx, CreateOrderArgs{
		ID:             plan.orderID,
		BuyerID:        plan.buyerID,
		SellerID:       plan.sellerID,
		ListingID:      plan.listingID,
		Price:          price,
		CommissionRate: plan.rate,
		PaymentMethod:  domain.PaymentMethodBalance,
		Status:         domain.OrderStatusPaid,
		PurchaseKey:    plan.purchaseKey,
	})
}

// replayByPurchaseKey если заказ с тем же ключом идемпотентности уже есть (окно дедупликации истекло или
// Redis терял ключ), возвращает его вместо ошибки. Повтор упирается либо в уникальный purchase_key,
// либо в уже проданный листинг.
func (s *SettlementService) replayByPurchaseKey(ctx context.Context, plan purchasePlan, err error) (*Receipt, bool) {
	if plan.purchaseKey == nil {
		return nil, false
	}
	if !errors.Is(err, domain.ErrDuplicateKey) && !errors.Is(err, domain.ErrListingUnavailable) {
		return nil, false
	}
	existing, findErr := s.orderRepo.FindByPurchaseKey(ctx, *plan.purchaseKey)
	if findErr != nil {
		if !errors.Is(findErr, domain.ErrOrderNotFound) {
			s.logger.WithError(findErr).Warn("failed to load order by purchase key")
		}
		return nil, false
	}
	return &Receipt{OrderID: existing.ID, Replayed: true}, true
}

func (s *SettlementService) completeDedup(ctx context.Context, key string, orderID uuid.UUID) {
	if err := s.dedup.Complete(context.WithoutCancel(ctx), key, orderID, s.cfg.DedupWindow); err != nil {
		// заказ уже создан, повтор в худшем случае упрется в purchase_key или получит conflict
		s.logger.WithError(err).WithField("key", key).Warn("failed to complete dedup key")
	}
}

type compensationPayload struct {
	OrderID   uuid.UUID       `json:"orderId"`
	Step      string          `json:"step"`
	BuyerID   int64           `json:"buyerId"`
	SellerID  int64           `json:"sellerId"`
	ListingID uuid.UUID       `json:"listingId"`
	Price     decimal.Decimal `json:"price"`
	SellerNet decimal.Decimal `json:"sellerNet"`
	Cause     string          `json:"cause"`
}

// recordCompensationFailure пишет запись для ручной сверки. Если не удалось и это, остается только лог.
func (s *SettlementService) recordCompensationFailure(
	ctx context.Context,
	plan purchasePlan,
	step string,
	price, net decimal.Decimal,
	cause, err error,
) {
	fields := logrus.Fields{
		"order_id":   plan.orderID,
		"step":       step,
		"buyer_id":   plan.buyerID,
		"seller_id":  plan.sellerID,
		"listing_id": plan.listingID,
		"price":      price.String(),
	}
	payload, marshalErr := json.Marshal(compensationPayload{
		OrderID:   plan.orderID,
		Step:      step,
		BuyerID:   plan.buyerID,
		SellerID:  plan.sellerID,
		ListingID: plan.listingID,
		Price:     price,
		SellerNet: net,
		Cause:     cause.Error(),
	})
	if marshalErr != nil {
		s.logger.WithError(marshalErr).WithFields(fields).Error("failed to marshal compensation payload")
	}

	if _, createErr := s.reconRepo.Create(ctx, repoargs.ReconciliationCreate{
		Kind:      reconciliationKindPurchase,
		Reference: orderReference(plan.orderID),
		Payload:   payload,
		Error:     err.Error(),
	}); createErr != nil {
		s.logger.WithError(errors.Join(err, createErr)).WithFields(fields).
			Error("compensation failed and reconciliation record was not saved")
		return
	}
	s.logger.WithError(err).WithFields(fields).Error("compensation failed, reconciliation record created")
}

func checkPurchasable(listing *domain.Listing, buyerID int64) error {
	switch {
	case listing.SellerID == buyerID:
		return domain.ErrSelfPurchase
	case listing.Status == domain.ListingStatusSold:
		return fmt.Errorf("listing %s: %w", listing.ID, domain.ErrOutOfStock)
	case listing.Status != domain.ListingStatusActive || !domain.IsPositiveMoney(listing.Price):
		return fmt.Errorf("listing %s is %s: %w", listing.ID, listing.Status, domain.ErrListingNotActive)
	}
	return nil
}

func purchaseDedupKey(args PurchaseArgs) string {
	if args.IdempotencyKey != "" {
		return fmt.Sprintf("%d:key:%s", args.BuyerID, args.IdempotencyKey)
	}
	return fmt.Sprintf("%d:%s", args.BuyerID, args.ListingID)
}
