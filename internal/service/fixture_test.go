package service

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/internal/service/mocks"
	"github.com/fsdevblog/digimarket/pkg/uow"
	uowmocks "github.com/fsdevblog/digimarket/pkg/uow/mocks"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
)

// memState состояние "базы" для тестов сервисов. Транзакция, завершившаяся ошибкой, откатывает его
// к снимку, снятому в начале uow.Do.
type memState struct {
	balances map[int64]decimal.Decimal
	sales    map[int64]int64
	entries  []repoargs.LedgerEntryCreate
	listings map[uuid.UUID]domain.Listing
	orders   map[uuid.UUID]domain.Order
	// withdrawals и vouchers заполняются тестами соответствующих сервисов.
	withdrawals map[uuid.UUID]domain.Withdrawal
	vouchers    map[string]domain.Voucher
}

func (m memState) clone() memState {
	return memState{
		balances: maps.Clone(m.balances),
		sales:    maps.Clone(m.sales),
		entries:  append([]repoargs.LedgerEntryCreate(nil), m.entries...),
		listings: maps.Clone(m.listings),
		orders:   maps.Clone(m.orders),

		withdrawals: maps.Clone(m.withdrawals),
		vouchers:    maps.Clone(m.vouchers),
	}
}

type published struct {
	subject string
	payload any
}

// serviceSuite общая обвязка тестов сервисов: моки uow и репозиториев поверх memState.
type serviceSuite struct {
	suite.Suite
	mockUOW     *uowmocks.MockUOW
	mockTX      *uowmocks.MockTX
	accountRepo *mocks.MockAccountRepository
	entryRepo   *mocks.MockLedgerEntryRepository
	voucherRepo *mocks.MockVoucherRepository
	listingRepo *mocks.MockListingRepository
	orderRepo   *mocks.MockOrderRepository
	wdRepo      *mocks.MockWithdrawalRepository
	settingRepo *mocks.MockSettingsRepository
	reconRepo   *mocks.MockReconciliationRepository
	dedup       *mocks.MockDedupStore
	events      *mocks.MockEventPublisher

	logger    *logrus.Logger
	logHook   *test.Hook
	state     memState
	published []published
	// commitErr если задан, каждая транзакция откатывается с этой ошибкой после выполнения fn.
	commitErr error
	// failOrderCreate, failRelease внедряют ошибки в отдельные шаги.
	failOrderCreate error
	failRelease     error
}

func (s *serviceSuite) SetupTest() {
	mockCtrl := gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(mockCtrl)
	s.mockTX = uowmocks.NewMockTX(mockCtrl)
	s.accountRepo = mocks.NewMockAccountRepository(mockCtrl)
	s.entryRepo = mocks.NewMockLedgerEntryRepository(mockCtrl)
	s.voucherRepo = mocks.NewMockVoucherRepository(mockCtrl)
	s.listingRepo = mocks.NewMockListingRepository(mockCtrl)
	s.orderRepo = mocks.NewMockOrderRepository(mockCtrl)
	s.wdRepo = mocks.NewMockWithdrawalRepository(mockCtrl)
	s.settingRepo = mocks.NewMockSettingsRepository(mockCtrl)
	s.reconRepo = mocks.NewMockReconciliationRepository(mockCtrl)
	s.dedup = mocks.NewMockDedupStore(mockCtrl)
	s.events = mocks.NewMockEventPublisher(mockCtrl)

	s.logger, s.logHook = test.NewNullLogger()

	s.state = memState{
		balances: make(map[int64]decimal.Decimal),
		sales:    make(map[int64]int64),
		listings: make(map[uuid.UUID]domain.Listing),
		orders:   make(map[uuid.UUID]domain.Order),

		withdrawals: make(map[uuid.UUID]domain.Withdrawal),
		vouchers:    make(map[string]domain.Voucher),
	}
	s.published = nil
	s.commitErr = nil
	s.failOrderCreate = nil
	s.failRelease = nil

	repos := map[uow.RepositoryName]uow.Repository{
		uow.RepositoryName(repoargs.AccountRepoName):        s.accountRepo,
		uow.RepositoryName(repoargs.LedgerEntryRepoName):    s.entryRepo,
		uow.RepositoryName(repoargs.VoucherRepoName):        s.voucherRepo,
		uow.RepositoryName(repoargs.ListingRepoName):        s.listingRepo,
		uow.RepositoryName(repoargs.OrderRepoName):          s.orderRepo,
		uow.RepositoryName(repoargs.WithdrawalRepoName):     s.wdRepo,
		uow.RepositoryName(repoargs.SettingsRepoName):       s.settingRepo,
		uow.RepositoryName(repoargs.ReconciliationRepoName): s.reconRepo,
	}
	getRepo := func(name uow.RepositoryName) (uow.Repository, error) {
		repo, ok := repos[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", uow.ErrRepositoryNotRegistered, name)
		}
		return repo, nil
	}
	s.mockUOW.EXPECT().GetRepository(gomock.Any()).DoAndReturn(getRepo).AnyTimes()
	s.mockTX.EXPECT().Get(gomock.Any()).DoAndReturn(getRepo).AnyTimes()
	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, uow.TX) error) error {
			snapshot := s.state.clone()
			err := fn(ctx, s.mockTX)
			if err == nil && s.commitErr != nil {
				err = s.commitErr
			}
			if err != nil {
				s.state = snapshot
			}
			return err
		}).AnyTimes()

	s.accountRepo.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(s.getAccount).AnyTimes()
	s.accountRepo.EXPECT().ApplyDelta(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(s.applyDelta).AnyTimes()
	s.accountRepo.EXPECT().IncrementSales(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, userID int64) error {
			s.state.sales[userID]++
			return nil
		}).AnyTimes()
	s.entryRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args repoargs.LedgerEntryCreate) (*domain.LedgerEntry, error) {
			s.state.entries = append(s.state.entries, args)
			return &domain.LedgerEntry{
				ID:           int64(len(s.state.entries)),
				UserID:       args.UserID,
				Delta:        args.Delta,
				BalanceAfter: args.BalanceAfter,
				Reason:       args.Reason,
				Reference:    args.Reference,
			}, nil
		}).AnyTimes()

	s.listingRepo.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(s.getListing).AnyTimes()
	s.listingRepo.EXPECT().ReserveUnit(gomock.Any(), gomock.Any()).DoAndReturn(s.reserveListing).AnyTimes()
	s.listingRepo.EXPECT().Release(gomock.Any(), gomock.Any()).DoAndReturn(s.releaseListing).AnyTimes()

	s.orderRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(s.createOrder).AnyTimes()
	s.orderRepo.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(s.getOrder).AnyTimes()
	s.orderRepo.EXPECT().FindByPurchaseKey(gomock.Any(), gomock.Any()).DoAndReturn(s.findOrderByKey).AnyTimes()
	s.orderRepo.EXPECT().Transition(gomock.Any(), gomock.Any()).DoAndReturn(s.transitionOrder).AnyTimes()

	s.events.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, subject string, payload any) {
			s.published = append(s.published, published{subject: subject, payload: payload})
		}).AnyTimes()
}

func (s *serviceSuite) getAccount(_ context.Context, userID int64) (*domain.Account, error) {
	balance, ok := s.state.balances[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &domain.Account{UserID: userID, Balance: balance, TotalSales: s.state.sales[userID]}, nil
}

func (s *serviceSuite) applyDelta(_ context.Context, userID int64, delta decimal.Decimal) (*domain.Account, error) {
	balance, ok := s.state.balances[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	next := balance.Add(delta)
	if next.IsNegative() {
		return nil, domain.ErrInsufficientFunds
	}
	s.state.balances[userID] = next
	return &domain.Account{UserID: userID, Balance: next, TotalSales: s.state.sales[userID]}, nil
}

func (s *serviceSuite) getListing(_ context.Context, id uuid.UUID) (*domain.Listing, error) {
	l, ok := s.state.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	return &l, nil
}

func (s *serviceSuite) reserveListing(_ context.Context, id uuid.UUID) (*domain.Listing, error) {
	l, ok := s.state.listings[id]
	if !ok || l.Status != domain.ListingStatusActive || (l.Stock != nil && *l.Stock <= 0) {
		return nil, domain.ErrRecordNotFound
	}
	if l.Stock == nil {
		l.Status = domain.ListingStatusSold
	} else {
		stock := *l.Stock - 1
		l.Stock = &stock
		if stock == 0 {
			l.Status = domain.ListingStatusSold
		}
	}
	s.state.listings[id] = l
	return &l, nil
}

func (s *serviceSuite) releaseListing(_ context.Context, id uuid.UUID) (*domain.Listing, error) {
	if s.failRelease != nil {
		return nil, s.failRelease
	}
	l, ok := s.state.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	if l.Stock != nil {
		stock := *l.Stock + 1
		l.Stock = &stock
	}
	if l.Status == domain.ListingStatusSold {
		l.Status = domain.ListingStatusActive
	}
	s.state.listings[id] = l
	return &l, nil
}

func (s *serviceSuite) createOrder(_ context.Context, args repoargs.OrderCreate) (*domain.Order, error) {
	if s.failOrderCreate != nil {
		return nil, s.failOrderCreate
	}
	if _, exists := s.state.orders[args.ID]; exists {
		return nil, domain.ErrDuplicateKey
	}
	if args.PurchaseKey != nil {
		if _, err := s.findOrderByKey(context.Background(), *args.PurchaseKey); err == nil {
			return nil, domain.ErrDuplicateKey
		}
	}
	o := domain.Order{
		ID:            args.ID,
		CreatedAt:     args.Now,
		UpdatedAt:     args.Now,
		BuyerID:       args.BuyerID,
		SellerID:      args.SellerID,
		ListingID:     args.ListingID,
		Price:         args.Price,
		Commission:    args.Commission,
		PaymentMethod: args.PaymentMethod,
		Status:        args.Status,
		PurchaseKey:   args.PurchaseKey,
		EscrowUntil:   args.EscrowUntil,
	}
	s.state.orders[o.ID] = o
	return &o, nil
}

func (s *serviceSuite) getOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := s.state.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (s *serviceSuite) findOrderByKey(_ context.Context, key string) (*domain.Order, error) {
	for _, o := range s.state.orders {
		if o.PurchaseKey != nil && *o.PurchaseKey == key {
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (s *serviceSuite) transitionOrder(_ context.Context, args repoargs.OrderTransition) (*domain.Order, error) {
	o, ok := s.state.orders[args.ID]
	if !ok || o.Status != args.From {
		return nil, domain.ErrRecordNotFound
	}
	o.Status = args.To
	o.UpdatedAt = args.Now
	if args.DeliveryNote != nil {
		o.DeliveryNote = *args.DeliveryNote
		o.DeliveredAt = &args.Now
	}
	if args.PaymentTxn != nil {
		o.PaymentTxn = *args.PaymentTxn
	}
	if args.To == domain.OrderStatusCompleted {
		o.CompletedAt = &args.Now
	}
	s.state.orders[o.ID] = o
	return &o, nil
}

func (s *serviceSuite) openAccount(userID int64, balance string) {
	s.state.balances[userID] = decimal.RequireFromString(balance)
}

func (s *serviceSuite) addListing(sellerID int64, price string, stock *int32) domain.Listing {
	l := domain.Listing{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
		SellerID:  sellerID,
		Title:     "Steam key",
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Status:    domain.ListingStatusActive,
	}
	s.state.listings[l.ID] = l
	return l
}

func (s *serviceSuite) addOrder(status domain.OrderStatus, buyerID, sellerID int64, price, commission string) domain.Order {
	listing := s.addListing(sellerID, price, nil)
	listing.Status = domain.ListingStatusSold
	s.state.listings[listing.ID] = listing

	o := domain.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		SellerID:      sellerID,
		ListingID:     listing.ID,
		Price:         decimal.RequireFromString(price),
		Commission:    decimal.RequireFromString(commission),
		PaymentMethod: domain.PaymentMethodBalance,
		Status:        status,
	}
	s.state.orders[o.ID] = o
	return o
}

// balance текущий баланс пользователя строкой с двумя знаками.
func (s *serviceSuite) balance(userID int64) string {
	return s.state.balances[userID].StringFixed(domain.CurrencyPrecision)
}

func (s *serviceSuite) subjects() []string {
	subjects := make([]string, len(s.published))
	for i, p := range s.published {
		subjects[i] = p.subject
	}
	return subjects
}

func int32Ptr(v int32) *int32 {
	return &v
}
