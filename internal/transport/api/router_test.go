package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/logger"
	"github.com/fsdevblog/digimarket/internal/transport/api/mocks"
	"github.com/fsdevblog/digimarket/internal/transport/api/testutils"
	"github.com/fsdevblog/digimarket/internal/transport/api/tokens"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

// handlerSuite общая обвязка для тестов хендлеров: роутер с моками всех сервисов.
type handlerSuite struct {
	suite.Suite
	router    *gin.Engine
	jwtSecret []byte

	settlement     *mocks.MockSettlementServicer
	vouchers       *mocks.MockVoucherServicer
	ledger         *mocks.MockLedgerServicer
	orders         *mocks.MockOrderServicer
	withdrawals    *mocks.MockWithdrawalServicer
	payments       *mocks.MockPaymentServicer
	settings       *mocks.MockSettingsServicer
	reconciliation *mocks.MockReconciliationServicer
}

func (s *handlerSuite) SetupTest() {
	mockCtrl := gomock.NewController(s.T())

	s.settlement = mocks.NewMockSettlementServicer(mockCtrl)
	s.vouchers = mocks.NewMockVoucherServicer(mockCtrl)
	s.ledger = mocks.NewMockLedgerServicer(mockCtrl)
	s.orders = mocks.NewMockOrderServicer(mockCtrl)
	s.withdrawals = mocks.NewMockWithdrawalServicer(mockCtrl)
	s.payments = mocks.NewMockPaymentServicer(mockCtrl)
	s.settings = mocks.NewMockSettingsServicer(mockCtrl)
	s.reconciliation = mocks.NewMockReconciliationServicer(mockCtrl)
	s.jwtSecret = []byte("super secret key")

	router, err := New(RouterArgs{
		Logger:                logger.New(io.Discard, "error"),
		SettlementService:     s.settlement,
		VoucherService:        s.vouchers,
		LedgerService:         s.ledger,
		OrderService:          s.orders,
		WithdrawalService:     s.withdrawals,
		PaymentService:        s.payments,
		SettingsService:       s.settings,
		ReconciliationService: s.reconciliation,
		JWTSecretKey:          s.jwtSecret,
	})
	s.Require().NoError(err)
	s.router = router
}

func (s *handlerSuite) token(userID int64, role domain.Role) string {
	token, err := tokens.GenerateUserJWT(userID, role, time.Hour, s.jwtSecret)
	s.Require().NoError(err)
	return token
}

type apiRequest struct {
	method  string
	url     string
	body    string
	token   string
	headers map[string]string
}

// do выполняет запрос и возвращает статус, заголовки и тело ответа.
func (s *handlerSuite) do(req apiRequest) (int, http.Header, []byte) {
	args := testutils.RequestArgs{
		Router: s.router,
		Method: req.method,
		URL:    RouteGroup + req.url,
	}
	if req.body != "" {
		args.Body = bytes.NewBufferString(req.body)
	}
	reqOpts := []func(*testutils.RequestOptions){
		testutils.WithHeader("Content-Type", "application/json"),
	}
	if req.token != "" {
		reqOpts = append(reqOpts, testutils.WithHeader("Authorization", fmt.Sprintf("Bearer %s", req.token)))
	}
	for k, v := range req.headers {
		reqOpts = append(reqOpts, testutils.WithHeader(k, v))
	}

	res := testutils.MakeRequest(args, reqOpts...)
	defer func() {
		closeErr := res.Body.Close()
		s.Require().NoError(closeErr)
	}()
	body, readErr := io.ReadAll(res.Body)
	s.Require().NoError(readErr)
	return res.StatusCode, res.Header, body
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *handlerSuite) errorCode(body []byte) string {
	var e errorBody
	s.Require().NoError(json.Unmarshal(body, &e))
	s.NotEmpty(e.Message)
	return e.Code
}
