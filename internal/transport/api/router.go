package api

import (
	"fmt"
	"time"

	"github.com/fsdevblog/digimarket/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	DefaultServiceTimeout = 3 * time.Second
)

const (
	RouteGroup = "/api"

	PurchaseRoute        = "/purchase"
	CheckoutRoute        = "/checkout"
	RedeemVoucherRoute   = "/vouchers/redeem"
	BalanceRoute         = "/balance"
	BalanceEntriesRoute  = "/balance/entries"
	OrdersRoute          = "/orders"
	OrderDeliverRoute    = "/orders/:id/deliver"
	OrderConfirmRoute    = "/orders/:id/confirm"
	OrderDisputeRoute    = "/orders/:id/dispute"
	WithdrawalsRoute     = "/withdrawals"
	PaymentCallbackRoute = "/payments/callback"

	AdminGroup                      = "/admin"
	AdminWithdrawalApproveRoute     = "/withdrawal/approve"
	AdminWithdrawalRejectRoute      = "/withdrawal/reject"
	AdminWithdrawalCompleteRoute    = "/withdrawal/complete"
	AdminWithdrawalsRoute           = "/withdrawals"
	AdminVouchersRoute              = "/vouchers"
	AdminAccountsRoute              = "/accounts"
	AdminGrantRoute                 = "/accounts/grant"
	AdminOrderCancelRoute           = "/orders/:id/cancel"
	AdminOrderResolveRoute          = "/orders/:id/resolve"
	AdminCommissionRoute            = "/settings/commission"
	AdminReconciliationsRoute       = "/reconciliations"
	AdminReconciliationResolveRoute = "/reconciliations/:id/resolve"
)

type RouterArgs struct {
	Logger                *logrus.Logger
	SettlementService     SettlementServicer
	VoucherService        VoucherServicer
	LedgerService         LedgerServicer
	OrderService          OrderServicer
	WithdrawalService     WithdrawalServicer
	PaymentService        PaymentServicer
	SettingsService       SettingsServicer
	ReconciliationService ReconciliationServicer
	JWTSecretKey          []byte
}

func New(args RouterArgs) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("new router: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger))
	}
	r.Use(middlewares.Errors())

	purchaseHandler := NewPurchaseHandler(args.SettlementService)
	voucherHandler := NewVoucherHandler(args.VoucherService)
	balanceHandler := NewBalanceHandler(args.LedgerService)
	ordersHandler := NewOrdersHandler(args.OrderService)
	withdrawalHandler := NewWithdrawalHandler(args.WithdrawalService)
	paymentHandler := NewPaymentHandler(args.PaymentService)
	adminHandler := NewAdminHandler(args.SettingsService, args.ReconciliationService)

	api := r.Group(RouteGroup)

	// колбэк процессора подписывается HMAC, JWT не нужен.
	api.POST(PaymentCallbackRoute, paymentHandler.Callback)

	api.Use(middlewares.AuthRequired(args.JWTSecretKey))
	// ниже все роуты группы требуют авторизованного пользователя.
	api.POST(PurchaseRoute, purchaseHandler.Purchase)
	api.POST(CheckoutRoute, purchaseHandler.Checkout)
	api.POST(RedeemVoucherRoute, voucherHandler.Redeem)

	api.GET(BalanceRoute, balanceHandler.Index)
	api.GET(BalanceEntriesRoute, balanceHandler.Entries)

	api.GET(OrdersRoute, ordersHandler.Index)
	api.POST(OrderDeliverRoute, ordersHandler.Deliver)
	api.POST(OrderConfirmRoute, ordersHandler.Confirm)
	api.POST(OrderDisputeRoute, ordersHandler.Dispute)

	api.POST(WithdrawalsRoute, withdrawalHandler.Create)
	api.GET(WithdrawalsRoute, withdrawalHandler.Index)

	admin := api.Group(AdminGroup, middlewares.AdminRequired())
	admin.POST(AdminWithdrawalApproveRoute, withdrawalHandler.Approve)
	admin.POST(AdminWithdrawalRejectRoute, withdrawalHandler.Reject)
	admin.POST(AdminWithdrawalCompleteRoute, withdrawalHandler.Complete)
	admin.GET(AdminWithdrawalsRoute, withdrawalHandler.AdminIndex)

	admin.POST(AdminVouchersRoute, voucherHandler.Create)
	admin.GET(AdminVouchersRoute, voucherHandler.Index)

	admin.POST(AdminAccountsRoute, balanceHandler.Open)
	admin.POST(AdminGrantRoute, balanceHandler.Grant)

	admin.POST(AdminOrderCancelRoute, ordersHandler.Cancel)
	admin.POST(AdminOrderResolveRoute, ordersHandler.Resolve)

	admin.GET(AdminCommissionRoute, adminHandler.Commission)
	admin.PUT(AdminCommissionRoute, adminHandler.SetCommission)

	admin.GET(AdminReconciliationsRoute, adminHandler.Reconciliations)
	admin.POST(AdminReconciliationResolveRoute, adminHandler.ResolveReconciliation)
	return r, nil
}
