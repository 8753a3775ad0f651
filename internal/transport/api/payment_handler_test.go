package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/transport/api/middlewares"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

type PaymentHandlerTestSuite struct {
	handlerSuite
}

func TestPaymentHandlerSuite(t *testing.T) {
	suite.Run(t, new(PaymentHandlerTestSuite))
}

func (s *PaymentHandlerTestSuite) TestCallback() {
	payload := `{"orderId":"x","status":"success"}`

	s.Run("signed", func() {
		order := testOrder(domain.OrderStatusPaid)
		s.payments.EXPECT().HandleCallback(gomock.Any(), []byte(payload), "abcdef").Return(order, nil)

		status, _, _ := s.do(apiRequest{
			method:  http.MethodPost,
			url:     PaymentCallbackRoute,
			body:    payload,
			headers: map[string]string{signatureHeader: "abcdef"},
		})
		s.Equal(http.StatusOK, status)
	})

	s.Run("bad signature", func() {
		s.payments.EXPECT().HandleCallback(gomock.Any(), []byte(payload), "").Return(nil, domain.ErrInvalidSignature)

		status, _, body := s.do(apiRequest{method: http.MethodPost, url: PaymentCallbackRoute, body: payload})
		s.Equal(http.StatusUnauthorized, status)
		s.Equal(middlewares.CodeUnauthorized, s.errorCode(body))
	})

	s.Run("paid after cancel", func() {
		s.payments.EXPECT().HandleCallback(gomock.Any(), []byte(payload), "abcdef").
			Return(nil, fmt.Errorf("confirming payment: %w", domain.ErrPaymentAfterCancel))

		status, _, body := s.do(apiRequest{
			method:  http.MethodPost,
			url:     PaymentCallbackRoute,
			body:    payload,
			headers: map[string]string{signatureHeader: "abcdef"},
		})
		s.Equal(http.StatusConflict, status)
		s.Equal(middlewares.CodePaymentAfterCancel, s.errorCode(body))
	})
}
