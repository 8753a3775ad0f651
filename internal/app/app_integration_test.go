//go:build integration

package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/pgrepo"
	"github.com/fsdevblog/digimarket/internal/service"
	"github.com/fsdevblog/digimarket/internal/transport/events"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	adminID  = int64(1)
	sellerID = int64(100)
	buyers   = 10
)

type IntegrationTestSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	services  *service.AppServices
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	ctx := s.T().Context()
	logger, _ := test.NewNullLogger()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("market"),
		postgres.WithUsername("market"),
		postgres.WithPassword("market"),
		postgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = pgrepo.Connect(ctx, pgrepo.ConnectArgs{
		DSN:           dsn,
		MigrationsDir: "../db/migrations",
		LockTimeout:   2 * time.Second,
	}, logger)
	s.Require().NoError(err)

	unitOfWork, err := initUOW(s.pool)
	s.Require().NoError(err)

	s.services, err = service.Factory(unitOfWork, pgrepo.NewPurchaseDedupRepository(s.pool), events.NewNoop(logger),
		service.FactoryConfig{
			SettlementMode:  service.SettlementTransactional,
			DedupWindow:     time.Minute,
			EscrowPeriod:    time.Hour,
			PendingOrderTTL: time.Hour,
		}, logger)
	s.Require().NoError(err)

	for id := range int64(buyers) {
		s.openAccount(id+sellerID+1, "100")
	}
	s.openAccount(sellerID, "0")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(testcontainers.TerminateContainer(s.container))
	}
}

func (s *IntegrationTestSuite) openAccount(userID int64, amount string) {
	ctx := s.T().Context()
	_, err := s.services.Ledger.Open(ctx, userID)
	s.Require().NoError(err)
	if a := decimal.RequireFromString(amount); a.IsPositive() {
		_, err = s.services.Ledger.Grant(ctx, adminID, userID, a)
		s.Require().NoError(err)
	}
}

func (s *IntegrationTestSuite) addListing(price string, stock *int32) uuid.UUID {
	id := uuid.New()
	_, err := s.pool.Exec(s.T().Context(),
		`INSERT INTO listings (id, seller_id, title, price, stock, status) VALUES ($1, $2, $3, $4, $5, 'active')`,
		id, sellerID, "Steam key", decimal.RequireFromString(price), stock,
	)
	s.Require().NoError(err)
	return id
}

// concurrently запускает fn для каждого покупателя одновременно и возвращает число успешных вызовов.
// Ошибки конкурентного доступа повторяются, как это делает клиент по Retry-After.
func (s *IntegrationTestSuite) concurrently(fn func(buyerID int64) error) (int, []error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		errs    []error
		start   = make(chan struct{})
	)
	for i := range int64(buyers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			var err error
			for range 5 {
				if err = fn(sellerID + 1 + i); !errors.Is(err, domain.ErrConcurrencyConflict) {
					break
				}
			}
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
			} else {
				errs = append(errs, err)
			}
		}()
	}
	close(start)
	wg.Wait()
	return success, errs
}

func (s *IntegrationTestSuite) TestLastUnitSoldOnce() {
	listingID := s.addListing("10", nil)
	sellerBefore, err := s.services.Ledger.Balance(s.T().Context(), sellerID)
	s.Require().NoError(err)

	success, errs := s.concurrently(func(buyerID int64) error {
		_, pErr := s.services.Settlement.Purchase(s.T().Context(), service.PurchaseArgs{
			BuyerID:   buyerID,
			ListingID: listingID,
		})
		return pErr
	})

	s.Equal(1, success)
	for _, err := range errs {
		s.ErrorIs(err, domain.ErrListingUnavailable)
	}

	sellerAfter, err := s.services.Ledger.Balance(s.T().Context(), sellerID)
	s.Require().NoError(err)
	s.Equal("9.00", sellerAfter.Balance.Sub(sellerBefore.Balance).StringFixed(2))
}

func (s *IntegrationTestSuite) TestVoucherRedeemedOnce() {
	voucher, err := s.services.Voucher.Create(s.T().Context(), service.CreateVoucherArgs{
		Code:      fmt.Sprintf("IT-%d", time.Now().UnixNano()),
		Amount:    decimal.RequireFromString("5"),
		CreatedBy: adminID,
	})
	s.Require().NoError(err)

	success, errs := s.concurrently(func(buyerID int64) error {
		_, rErr := s.services.Voucher.Redeem(s.T().Context(), voucher.Code, buyerID)
		return rErr
	})

	s.Equal(1, success)
	for _, err := range errs {
		s.ErrorIs(err, domain.ErrVoucherAlreadyUsed)
	}
}

func (s *IntegrationTestSuite) TestWithdrawalDebitedOnce() {
	const userID = sellerID + 1
	before, err := s.services.Ledger.Balance(s.T().Context(), userID)
	s.Require().NoError(err)

	wd, err := s.services.Withdrawal.Request(s.T().Context(), service.WithdrawalRequestArgs{
		UserID: userID,
		Amount: decimal.RequireFromString("50"),
		Method: "iban",
	})
	s.Require().NoError(err)

	success, errs := s.concurrently(func(int64) error {
		_, aErr := s.services.Withdrawal.Approve(s.T().Context(), wd.ID, adminID, "")
		return aErr
	})

	s.Equal(1, success)
	for _, err := range errs {
		s.ErrorIs(err, domain.ErrAlreadyProcessed)
	}

	after, err := s.services.Ledger.Balance(s.T().Context(), userID)
	s.Require().NoError(err)
	require.Equal(s.T(), "50.00", before.Balance.Sub(after.Balance).StringFixed(2))
}

func (s *IntegrationTestSuite) TestConcurrentDeltasKeepBalance() {
	const (
		userID = int64(200)
		calls  = 40
	)
	s.openAccount(userID, "30")
	initial := decimal.RequireFromString("30")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied = decimal.Zero
		errs    []error
		start   = make(chan struct{})
	)
	for i := range calls {
		// пополнения по 5, списания по 12 и 20
		amount, reason := decimal.NewFromInt(5), domain.ReasonAdminGrant
		switch i % 3 {
		case 1:
			amount, reason = decimal.NewFromInt(-12), domain.ReasonWithdrawalDebit
		case 2:
			amount, reason = decimal.NewFromInt(-20), domain.ReasonWithdrawalDebit
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			var err error
			for range 5 {
				_, err = s.services.Ledger.ApplyDelta(s.T().Context(), service.DeltaArgs{
					UserID:    userID,
					Amount:    amount,
					Reason:    reason,
					Reference: fmt.Sprintf("it:delta:%d", i),
				})
				if !errors.Is(err, domain.ErrConcurrencyConflict) {
					break
				}
			}
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				applied = applied.Add(amount)
			} else {
				errs = append(errs, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		s.True(errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrConcurrencyConflict), err)
	}
	s.NotEmpty(errs, "debits exceed the balance, some of them must be rejected")

	account, err := s.services.Ledger.Balance(s.T().Context(), userID)
	s.Require().NoError(err)
	s.False(account.Balance.IsNegative())
	s.Equal(initial.Add(applied).StringFixed(2), account.Balance.StringFixed(2))

	entries, err := s.services.Ledger.Entries(s.T().Context(), userID, 0)
	s.Require().NoError(err)
	s.Require().NotEmpty(entries)
	sum := decimal.Zero
	last := entries[0]
	for _, e := range entries {
		sum = sum.Add(e.Delta)
		s.False(e.BalanceAfter.IsNegative(), "entry %d", e.ID)
		if e.ID > last.ID {
			last = e
		}
	}
	s.Equal(account.Balance.StringFixed(2), sum.StringFixed(2))
	s.Equal(account.Balance.StringFixed(2), last.BalanceAfter.StringFixed(2))
}
