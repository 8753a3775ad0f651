package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/transport/api/middlewares"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BalanceHandlerTestSuite struct {
	handlerSuite
}

func TestBalanceHandlerSuite(t *testing.T) {
	suite.Run(t, new(BalanceHandlerTestSuite))
}

func (s *BalanceHandlerTestSuite) TestIndex() {
	var userID int64 = 5
	token := s.token(userID, domain.RoleUser)

	s.Run("balance", func() {
		s.ledger.EXPECT().Balance(gomock.Any(), userID).Return(&domain.Account{
			UserID:     userID,
			Balance:    decimal.RequireFromString("40"),
			TotalSales: 3,
		}, nil)

		status, _, body := s.do(apiRequest{method: http.MethodGet, url: BalanceRoute, token: token})
		s.Require().Equal(http.StatusOK, status)
		var res AccountResponse
		s.Require().NoError(json.Unmarshal(body, &res))
		s.Equal("40.00", res.Balance)
		s.Equal(int64(3), res.TotalSales)
		s.Equal(domain.Currency, res.Currency)
	})

	s.Run("no account", func() {
		s.ledger.EXPECT().Balance(gomock.Any(), userID).Return(nil, domain.ErrAccountNotFound)

		status, _, body := s.do(apiRequest{method: http.MethodGet, url: BalanceRoute, token: token})
		s.Equal(http.StatusNotFound, status)
		s.Equal(middlewares.CodeNotFound, s.errorCode(body))
	})
}

func (s *BalanceHandlerTestSuite) TestEntries() {
	var userID int64 = 5
	token := s.token(userID, domain.RoleUser)

	s.Run("empty journal", func() {
		s.ledger.EXPECT().Entries(gomock.Any(), userID, uint(0)).Return(nil, nil)

		status, _, _ := s.do(apiRequest{method: http.MethodGet, url: BalanceEntriesRoute, token: token})
		s.Equal(http.StatusNoContent, status)
	})

	s.Run("entries with limit", func() {
		s.ledger.EXPECT().Entries(gomock.Any(), userID, uint(10)).Return([]domain.LedgerEntry{{
			UserID:       userID,
			Delta:        decimal.RequireFromString("-60"),
			BalanceAfter: decimal.RequireFromString("40"),
			Reason:       domain.ReasonPurchaseDebit,
			Reference:    "order:x",
		}}, nil)

		status, _, body := s.do(apiRequest{method: http.MethodGet, url: BalanceEntriesRoute + "?limit=10", token: token})
		s.Require().Equal(http.StatusOK, status)
		var res []LedgerEntryResponse
		s.Require().NoError(json.Unmarshal(body, &res))
		s.Require().Len(res, 1)
		s.Equal("-60.00", res[0].Delta)
		s.Equal("40.00", res[0].BalanceAfter)
	})
}

func (s *BalanceHandlerTestSuite) TestGrant() {
	var adminID int64 = 1
	adminToken := s.token(adminID, domain.RoleAdmin)

	s.ledger.EXPECT().
		Grant(gomock.Any(), adminID, int64(9), decimal.RequireFromString("100")).
		Return(&domain.Account{UserID: 9, Balance: decimal.RequireFromString("100")}, nil)

	status, _, body := s.do(apiRequest{
		method: http.MethodPost,
		url:    AdminGroup + AdminGrantRoute,
		body:   `{"userId":9,"amount":"100"}`,
		token:  adminToken,
	})
	s.Require().Equal(http.StatusOK, status)
	var res AccountResponse
	s.Require().NoError(json.Unmarshal(body, &res))
	s.Equal("100.00", res.Balance)
}

func (s *BalanceHandlerTestSuite) TestOpen() {
	s.ledger.EXPECT().Open(gomock.Any(), int64(9)).Return(&domain.Account{UserID: 9}, nil)

	status, _, _ := s.do(apiRequest{
		method: http.MethodPost,
		url:    AdminGroup + AdminAccountsRoute,
		body:   `{"userId":9}`,
		token:  s.token(1, domain.RoleAdmin),
	})
	s.Equal(http.StatusOK, status)
}
