package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const commissionRateKey = "commission_rate"

var DefaultCommissionRate = decimal.RequireFromString("0.10")

type SettingsService struct {
	settingsRepo SettingsRepository
	logger       *logrus.Entry
}

func NewSettingsService(u uow.UOW, logger *logrus.Logger) (*SettingsService, error) {
	settingsRepo, err := uow.GetRepositoryAs[SettingsRepository](u, uow.RepositoryName(repoargs.SettingsRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &SettingsService{
		settingsRepo: settingsRepo,
		logger:       logger.WithField("component", "settings"),
	}, nil
}

// CommissionRate текущая ставка комиссии площадки. Если настройка не задана или испорчена,
// используется DefaultCommissionRate.
func (s *SettingsService) CommissionRate(ctx context.Context) (decimal.Decimal, error) {
	raw, err := s.settingsRepo.Get(ctx, commissionRateKey)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return DefaultCommissionRate, nil
		}
		return decimal.Zero, fmt.Errorf("reading commission rate: %w", err)
	}

	rate, parseErr := decimal.NewFromString(raw)
	if parseErr != nil || !validCommissionRate(rate) {
		s.logger.WithField("value", raw).Warn("invalid commission_rate setting, using default")
		return DefaultCommissionRate, nil
	}
	return rate, nil
}

// SetCommissionRate меняет ставку. Она применяется только к новым заказам.
func (s *SettingsService) SetCommissionRate(ctx context.Context, rate decimal.Decimal) error {
	if !validCommissionRate(rate) {
		return fmt.Errorf("commission rate %s: %w", rate, domain.ErrInvalidCommissionRate)
	}
	if err := s.settingsRepo.Set(ctx, commissionRateKey, rate.String()); err != nil {
		return fmt.Errorf("saving commission rate: %w", err)
	}
	return nil
}

func validCommissionRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThan(decimal.NewFromInt(1))
}
