package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/internal/service"
	"github.com/fsdevblog/digimarket/internal/transport/api/middlewares"
	"github.com/fsdevblog/digimarket/internal/transport/api/testutils"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type WithdrawalHandlerTestSuite struct {
	handlerSuite
}

func TestWithdrawalHandlerSuite(t *testing.T) {
	suite.Run(t, new(WithdrawalHandlerTestSuite))
}

func (s *WithdrawalHandlerTestSuite) TestCreate() {
	var userID int64 = 4
	token := s.token(userID, domain.RoleUser)

	cases := []struct {
		name       string
		body       string
		mock       func()
		wantStatus int
		wantCode   string
	}{
		{
			name: "created",
			body: `{"amount":"50","notes":"iban TR00"}`,
			mock: func() {
				s.withdrawals.EXPECT().Request(gomock.Any(), service.WithdrawalRequestArgs{
					UserID: userID,
					Amount: decimal.RequireFromString("50"),
					Notes:  "iban TR00",
				}).Return(&domain.Withdrawal{
					ID:     uuid.New(),
					UserID: userID,
					Amount: decimal.RequireFromString("50"),
					Status: domain.WithdrawalStatusPending,
					Method: "bank_transfer",
				}, nil)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "below minimum",
			body: `{"amount":"10"}`,
			mock: func() {
				s.withdrawals.EXPECT().Request(gomock.Any(), gomock.Any()).Return(nil, domain.ErrAmountBelowMinimum)
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   middlewares.CodeValidation,
		},
		{
			name: "insufficient funds",
			body: `{"amount":"500"}`,
			mock: func() {
				s.withdrawals.EXPECT().Request(gomock.Any(), gomock.Any()).Return(nil, domain.ErrInsufficientFunds)
			},
			wantStatus: http.StatusPaymentRequired,
			wantCode:   middlewares.CodeInsufficientFunds,
		},
		{
			name:       "negative amount",
			body:       `{"amount":"-5"}`,
			mock:       func() {},
			wantStatus: http.StatusBadRequest,
			wantCode:   middlewares.CodeValidation,
		},
		{
			name:       "notes too long",
			body:       fmt.Sprintf(`{"amount":"50","notes":%q}`, testutils.GenerateOverBytesUnderRunes(300)),
			mock:       func() {},
			wantStatus: http.StatusBadRequest,
			wantCode:   middlewares.CodeValidation,
		},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			tt.mock()
			status, _, body := s.do(apiRequest{method: http.MethodPost, url: WithdrawalsRoute, body: tt.body, token: token})
			s.Equal(tt.wantStatus, status)
			if tt.wantCode != "" {
				s.Equal(tt.wantCode, s.errorCode(body))
				return
			}
			var res WithdrawalResponse
			s.Require().NoError(json.Unmarshal(body, &res))
			s.Equal("50.00", res.Amount)
			s.Equal(domain.WithdrawalStatusPending, res.Status)
		})
	}
}

func (s *WithdrawalHandlerTestSuite) TestAdminProcessing() {
	var adminID int64 = 1
	adminToken := s.token(adminID, domain.RoleAdmin)
	requestID := uuid.New()

	cases := []struct {
		name       string
		url        string
		body       string
		token      string
		mock       func()
		wantStatus int
		wantCode   string
	}{
		{
			name:  "approve",
			url:   AdminWithdrawalApproveRoute,
			body:  fmt.Sprintf(`{"requestId":%q,"notes":"ok"}`, requestID),
			token: adminToken,
			mock: func() {
				s.withdrawals.EXPECT().Approve(gomock.Any(), requestID, adminID, "ok").
					Return(&domain.Withdrawal{ID: requestID, Status: domain.WithdrawalStatusApproved}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "approve twice",
			url:   AdminWithdrawalApproveRoute,
			body:  fmt.Sprintf(`{"requestId":%q}`, requestID),
			token: adminToken,
			mock: func() {
				s.withdrawals.EXPECT().Approve(gomock.Any(), requestID, adminID, "").Return(nil, domain.ErrAlreadyProcessed)
			},
			wantStatus: http.StatusConflict,
			wantCode:   middlewares.CodeAlreadyProcessed,
		},
		{
			name:       "reject without reason",
			url:        AdminWithdrawalRejectRoute,
			body:       fmt.Sprintf(`{"requestId":%q}`, requestID),
			token:      adminToken,
			mock:       func() {},
			wantStatus: http.StatusBadRequest,
			wantCode:   middlewares.CodeValidation,
		},
		{
			name:  "reject",
			url:   AdminWithdrawalRejectRoute,
			body:  fmt.Sprintf(`{"requestId":%q,"reason":"kyc"}`, requestID),
			token: adminToken,
			mock: func() {
				s.withdrawals.EXPECT().Reject(gomock.Any(), requestID, adminID, "kyc").
					Return(&domain.Withdrawal{ID: requestID, Status: domain.WithdrawalStatusRejected}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "complete unknown request",
			url:   AdminWithdrawalCompleteRoute,
			body:  fmt.Sprintf(`{"requestId":%q}`, requestID),
			token: adminToken,
			mock: func() {
				s.withdrawals.EXPECT().Complete(gomock.Any(), requestID, adminID).Return(nil, domain.ErrWithdrawalNotFound)
			},
			wantStatus: http.StatusNotFound,
			wantCode:   middlewares.CodeNotFound,
		},
		{
			name:       "user cannot approve",
			url:        AdminWithdrawalApproveRoute,
			body:       fmt.Sprintf(`{"requestId":%q}`, requestID),
			token:      s.token(4, domain.RoleUser),
			mock:       func() {},
			wantStatus: http.StatusForbidden,
			wantCode:   middlewares.CodeForbidden,
		},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			tt.mock()
			status, _, body := s.do(apiRequest{
				method: http.MethodPost,
				url:    AdminGroup + tt.url,
				body:   tt.body,
				token:  tt.token,
			})
			s.Equal(tt.wantStatus, status)
			if tt.wantCode != "" {
				s.Equal(tt.wantCode, s.errorCode(body))
			}
		})
	}
}

func (s *WithdrawalHandlerTestSuite) TestAdminIndex() {
	pending := domain.WithdrawalStatusPending
	var userID int64 = 4
	s.withdrawals.EXPECT().List(gomock.Any(), repoargs.WithdrawalFilter{
		UserID: &userID,
		Status: &pending,
		Limit:  20,
	}).Return([]domain.Withdrawal{{ID: uuid.New(), UserID: userID, Status: pending}}, nil)

	status, _, body := s.do(apiRequest{
		method: http.MethodGet,
		url:    AdminGroup + AdminWithdrawalsRoute + "?status=pending&userId=4&limit=20",
		token:  s.token(1, domain.RoleAdmin),
	})
	s.Require().Equal(http.StatusOK, status)
	var res []WithdrawalResponse
	s.Require().NoError(json.Unmarshal(body, &res))
	s.Len(res, 1)
}
