package service

import (
	"fmt"
	"time"

	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/sirupsen/logrus"
)

type AppServices struct {
	Ledger         *LedgerService
	Voucher        *VoucherService
	Inventory      *InventoryService
	Order          *OrderService
	Settlement     *SettlementService
	Withdrawal     *WithdrawalService
	Payment        *PaymentService
	Settings       *SettingsService
	Reconciliation *ReconciliationService
}

type FactoryConfig struct {
	SettlementMode  SettlementMode
	DedupWindow     time.Duration
	EscrowPeriod    time.Duration
	PendingOrderTTL time.Duration
	PaymentSecret   []byte
}

func Factory(
	unitOfWork uow.UOW,
	dedup DedupStore,
	events EventPublisher,
	cfg FactoryConfig,
	logger *logrus.Logger,
) (*AppServices, error) {
	ledgerService, err := NewLedgerService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}
	voucherService, err := NewVoucherService(unitOfWork, events)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}
	inventoryService, err := NewInventoryService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}
	orderService, err := NewOrderService(unitOfWork, events, OrderServiceConfig{
		EscrowPeriod: cfg.EscrowPeriod,
		PendingTTL:   cfg.PendingOrderTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}
	settingsService, err := NewSettingsService(unitOfWork, logger)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}
	settlementService, err := NewSettlementService(unitOfWork, orderService, settingsService, dedup, SettlementConfig{
		Mode:        cfg.SettlementMode,
		DedupWindow: cfg.DedupWindow,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}
	withdrawalService, err := NewWithdrawalService(unitOfWork, events)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}
	reconciliationService, err := NewReconciliationService(unitOfWork)
	if err != nil {
		return nil, fmt.Errorf("service factory: %s", err.Error())
	}

	return &AppServices{
		Ledger:         ledgerService,
		Voucher:        voucherService,
		Inventory:      inventoryService,
		Order:          orderService,
		Settlement:     settlementService,
		Withdrawal:     withdrawalService,
		Payment:        NewPaymentService(orderService, cfg.PaymentSecret),
		Settings:       settingsService,
		Reconciliation: reconciliationService,
	}, nil
}
