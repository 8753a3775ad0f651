package service

import (
	"context"
	"testing"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type WithdrawalServiceTestSuite struct {
	serviceSuite
	service *WithdrawalService
}

func TestWithdrawalServiceSuite(t *testing.T) {
	suite.Run(t, new(WithdrawalServiceTestSuite))
}

func (s *WithdrawalServiceTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()

	s.wdRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args repoargs.WithdrawalCreate) (*domain.Withdrawal, error) {
			w := domain.Withdrawal{
				ID:     uuid.New(),
				UserID: args.UserID,
				Amount: args.Amount,
				Status: domain.WithdrawalStatusPending,
				Method: args.Method,
				Notes:  args.Notes,
			}
			s.state.withdrawals[w.ID] = w
			return &w, nil
		}).AnyTimes()
	s.wdRepo.EXPECT().Get(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id uuid.UUID) (*domain.Withdrawal, error) {
			w, ok := s.state.withdrawals[id]
			if !ok {
				return nil, domain.ErrWithdrawalNotFound
			}
			return &w, nil
		}).AnyTimes()
	s.wdRepo.EXPECT().Transition(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args repoargs.WithdrawalTransition) (*domain.Withdrawal, error) {
			w, ok := s.state.withdrawals[args.ID]
			if !ok || w.Status != args.From {
				return nil, domain.ErrRecordNotFound
			}
			w.Status = args.To
			w.ProcessedBy = &args.ProcessedBy
			w.ProcessedAt = &args.Now
			if args.AdminNotes != nil {
				w.AdminNotes = *args.AdminNotes
			}
			s.state.withdrawals[w.ID] = w
			return &w, nil
		}).AnyTimes()

	svc, err := NewWithdrawalService(s.mockUOW, s.events)
	s.Require().NoError(err)
	s.service = svc
}

func (s *WithdrawalServiceTestSuite) request(userID int64, amount string) *domain.Withdrawal {
	w, err := s.service.Request(s.T().Context(), WithdrawalRequestArgs{
		UserID: userID,
		Amount: decimal.RequireFromString(amount),
	})
	s.Require().NoError(err)
	return w
}

func (s *WithdrawalServiceTestSuite) TestRequest() {
	s.openAccount(1, "80")

	cases := []struct {
		name    string
		amount  string
		wantErr error
	}{
		{name: "ok", amount: "50"},
		{name: "below minimum", amount: "49.99", wantErr: domain.ErrAmountBelowMinimum},
		{name: "more than balance", amount: "80.01", wantErr: domain.ErrInsufficientFunds},
		{name: "sub kurus precision", amount: "60.001", wantErr: domain.ErrInvalidAmount},
		{name: "negative", amount: "-60", wantErr: domain.ErrInvalidAmount},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			w, err := s.service.Request(s.T().Context(), WithdrawalRequestArgs{
				UserID: 1,
				Amount: decimal.RequireFromString(tt.amount),
			})
			if tt.wantErr != nil {
				s.Require().ErrorIs(err, tt.wantErr)
				return
			}
			s.Require().NoError(err)
			s.Equal(domain.WithdrawalStatusPending, w.Status)
			s.Equal(defaultWithdrawalMethod, w.Method)
		})
	}
	// заявка сама по себе деньги не двигает
	s.Equal("80.00", s.balance(1))
}

func (s *WithdrawalServiceTestSuite) TestApproveDebitsOnce() {
	s.openAccount(1, "120")
	w := s.request(1, "50")

	approved, err := s.service.Approve(s.T().Context(), w.ID, 99, "paid via bank")
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalStatusApproved, approved.Status)
	s.Equal("paid via bank", approved.AdminNotes)
	s.Equal(int64(99), *approved.ProcessedBy)
	s.Equal("70.00", s.balance(1))

	_, err = s.service.Approve(s.T().Context(), w.ID, 99, "")
	s.Require().ErrorIs(err, domain.ErrAlreadyProcessed)
	s.Equal("70.00", s.balance(1))

	_, err = s.service.Reject(s.T().Context(), w.ID, 99, "late")
	s.Require().ErrorIs(err, domain.ErrAlreadyProcessed)

	debits := 0
	for _, e := range s.state.entries {
		if e.Reason == domain.ReasonWithdrawalDebit {
			debits++
			s.Equal("withdrawal:"+w.ID.String(), e.Reference)
		}
	}
	s.Equal(1, debits)
}

func (s *WithdrawalServiceTestSuite) TestApproveInsufficientFunds() {
	s.openAccount(1, "60")
	w := s.request(1, "60")
	// после заявки пользователь потратил часть денег
	s.openAccount(1, "30")

	_, err := s.service.Approve(s.T().Context(), w.ID, 99, "")
	s.Require().ErrorIs(err, domain.ErrInsufficientFunds)
	s.Equal("30.00", s.balance(1))
	s.Equal(domain.WithdrawalStatusPending, s.state.withdrawals[w.ID].Status)
}

func (s *WithdrawalServiceTestSuite) TestApproveUnknown() {
	_, err := s.service.Approve(s.T().Context(), uuid.New(), 99, "")
	s.Require().ErrorIs(err, domain.ErrWithdrawalNotFound)
}

func (s *WithdrawalServiceTestSuite) TestReject() {
	s.openAccount(1, "60")
	w := s.request(1, "55")

	_, err := s.service.Reject(s.T().Context(), w.ID, 99, "   ")
	s.Require().ErrorIs(err, domain.ErrReasonRequired)

	rejected, err := s.service.Reject(s.T().Context(), w.ID, 99, "iban mismatch")
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalStatusRejected, rejected.Status)
	s.Equal("60.00", s.balance(1))
}

func (s *WithdrawalServiceTestSuite) TestComplete() {
	s.openAccount(1, "60")
	w := s.request(1, "55")

	_, err := s.service.Complete(s.T().Context(), w.ID, 99)
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)

	_, err = s.service.Approve(s.T().Context(), w.ID, 99, "")
	s.Require().NoError(err)

	done, err := s.service.Complete(s.T().Context(), w.ID, 99)
	s.Require().NoError(err)
	s.Equal(domain.WithdrawalStatusCompleted, done.Status)
	s.Equal("5.00", s.balance(1))
	s.Equal([]string{
		"market.withdrawals.pending",
		"market.withdrawals.approved",
		"market.withdrawals.completed",
	}, s.subjects())
}

func (s *WithdrawalServiceTestSuite) TestList() {
	pending := domain.WithdrawalStatusPending
	s.wdRepo.EXPECT().List(gomock.Any(), repoargs.WithdrawalFilter{Status: &pending, Limit: defaultWithdrawalsLimit}).
		Return([]domain.Withdrawal{{ID: uuid.New(), CreatedAt: time.Now()}}, nil)

	list, err := s.service.List(s.T().Context(), repoargs.WithdrawalFilter{Status: &pending, Limit: 1000})
	s.Require().NoError(err)
	s.Len(list, 1)

	bogus := domain.WithdrawalStatus("paid")
	_, err = s.service.List(s.T().Context(), repoargs.WithdrawalFilter{Status: &bogus})
	s.Require().ErrorIs(err, domain.ErrValidation)
}
