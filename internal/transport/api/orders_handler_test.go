package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/transport/api/middlewares"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type OrderHandlerTestSuite struct {
	handlerSuite
}

func TestOrderHandlerSuite(t *testing.T) {
	suite.Run(t, new(OrderHandlerTestSuite))
}

func testOrder(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:            uuid.New(),
		BuyerID:       1,
		SellerID:      2,
		ListingID:     uuid.New(),
		Price:         decimal.RequireFromString("60"),
		Commission:    decimal.RequireFromString("6"),
		Status:        status,
		PaymentMethod: domain.PaymentMethodBalance,
	}
}

func (s *OrderHandlerTestSuite) TestIndex() {
	var userID int64 = 2
	token := s.token(userID, domain.RoleUser)

	cases := []struct {
		name       string
		url        string
		mock       func()
		wantStatus int
		wantLen    int
	}{
		{
			name: "buyer orders",
			url:  OrdersRoute,
			mock: func() {
				s.orders.EXPECT().ListForBuyer(gomock.Any(), userID).
					Return([]domain.Order{*testOrder(domain.OrderStatusPaid)}, nil)
			},
			wantStatus: http.StatusOK,
			wantLen:    1,
		},
		{
			name: "seller orders",
			url:  OrdersRoute + "?role=seller",
			mock: func() {
				s.orders.EXPECT().ListForSeller(gomock.Any(), userID).Return([]domain.Order{
					*testOrder(domain.OrderStatusPaid),
					*testOrder(domain.OrderStatusCompleted),
				}, nil)
			},
			wantStatus: http.StatusOK,
			wantLen:    2,
		},
		{
			name: "no orders",
			url:  OrdersRoute,
			mock: func() {
				s.orders.EXPECT().ListForBuyer(gomock.Any(), userID).Return(nil, nil)
			},
			wantStatus: http.StatusNoContent,
		},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			tt.mock()
			status, _, body := s.do(apiRequest{method: http.MethodGet, url: tt.url, token: token})
			s.Require().Equal(tt.wantStatus, status)
			if tt.wantLen == 0 {
				return
			}
			var res []OrderResponse
			s.Require().NoError(json.Unmarshal(body, &res))
			s.Len(res, tt.wantLen)
			s.Equal("54.00", res[0].SellerNet)
		})
	}
}

func (s *OrderHandlerTestSuite) TestTransitions() {
	order := testOrder(domain.OrderStatusPaid)
	orderURL := func(route string) string {
		return "/orders/" + order.ID.String() + route[len("/orders/:id"):]
	}

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
			name:  "seller delivers",
			url:   orderURL(OrderDeliverRoute),
			body:  `{"note":"key: XXXX"}`,
			token: s.token(order.SellerID, domain.RoleUser),
			mock: func() {
				delivered := *order
				delivered.Status = domain.OrderStatusDelivered
				s.orders.EXPECT().MarkDelivered(gomock.Any(), order.SellerID, order.ID, "key: XXXX").Return(&delivered, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "buyer confirms twice",
			url:   orderURL(OrderConfirmRoute),
			token: s.token(order.BuyerID, domain.RoleUser),
			mock: func() {
				s.orders.EXPECT().Confirm(gomock.Any(), order.BuyerID, order.ID).
					Return(nil, fmt.Errorf("%w: completed -(confirmed)->", domain.ErrInvalidTransition))
			},
			wantStatus: http.StatusConflict,
			wantCode:   middlewares.CodeInvalidTransition,
		},
		{
			name:  "stranger disputes",
			url:   orderURL(OrderDisputeRoute),
			body:  `{"reason":"not delivered"}`,
			token: s.token(99, domain.RoleUser),
			mock: func() {
				s.orders.EXPECT().RaiseDispute(gomock.Any(), int64(99), order.ID, "not delivered").
					Return(nil, domain.ErrNotOrderParticipant)
			},
			wantStatus: http.StatusForbidden,
			wantCode:   middlewares.CodeForbidden,
		},
		{
			name:       "dispute without reason",
			url:        orderURL(OrderDisputeRoute),
			body:       `{}`,
			token:      s.token(order.BuyerID, domain.RoleUser),
			mock:       func() {},
			wantStatus: http.StatusBadRequest,
			wantCode:   middlewares.CodeValidation,
		},
		{
			name:       "malformed order id",
			url:        "/orders/123/confirm",
			token:      s.token(order.BuyerID, domain.RoleUser),
			mock:       func() {},
			wantStatus: http.StatusBadRequest,
			wantCode:   middlewares.CodeValidation,
		},
		{
			name:  "admin cancels",
			url:   AdminGroup + "/orders/" + order.ID.String() + "/cancel",
			body:  `{"reason":"fraud"}`,
			token: s.token(100, domain.RoleAdmin),
			mock: func() {
				cancelled := *order
				cancelled.Status = domain.OrderStatusCancelled
				s.orders.EXPECT().Cancel(gomock.Any(), order.ID, "fraud").Return(&cancelled, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "admin resolves in favour of seller",
			url:   AdminGroup + "/orders/" + order.ID.String() + "/resolve",
			body:  `{"complete":true,"note":"delivered"}`,
			token: s.token(100, domain.RoleAdmin),
			mock: func() {
				done := *order
				done.Status = domain.OrderStatusCompleted
				s.orders.EXPECT().ResolveDispute(gomock.Any(), order.ID, true, "delivered").Return(&done, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "resolve requires decision",
			url:        AdminGroup + "/orders/" + order.ID.String() + "/resolve",
			body:       `{"note":"?"}`,
			token:      s.token(100, domain.RoleAdmin),
			mock:       func() {},
			wantStatus: http.StatusBadRequest,
			wantCode:   middlewares.CodeValidation,
		},
	}
	for _, tt := range cases {
		s.Run(tt.name, func() {
			tt.mock()
			status, _, body := s.do(apiRequest{method: http.MethodPost, url: tt.url, body: tt.body, token: tt.token})
			s.Equal(tt.wantStatus, status)
			if tt.wantCode != "" {
				s.Equal(tt.wantCode, s.errorCode(body))
			}
		})
	}
}
