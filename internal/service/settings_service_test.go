package service

import (
	"errors"
	"testing"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type SettingsServiceTestSuite struct {
	serviceSuite
	service *SettingsService
}

func TestSettingsServiceSuite(t *testing.T) {
	suite.Run(t, new(SettingsServiceTestSuite))
}

func (s *SettingsServiceTestSuite) SetupTest() {
	s.serviceSuite.SetupTest()
	svc, err := NewSettingsService(s.mockUOW, s.logger)
	s.Require().NoError(err)
	s.service = svc
}

func (s *SettingsServiceTestSuite) TestCommissionRate() {
	tests := []struct {
		name     string
		stored   string
		getErr   error
		want     string
		wantWarn bool
		wantErr  bool
	}{
		{name: "not set", getErr: domain.ErrRecordNotFound, want: "0.1"},
		{name: "stored", stored: "0.15", want: "0.15"},
		{name: "zero", stored: "0", want: "0"},
		{name: "garbage", stored: "ten percent", want: "0.1", wantWarn: true},
		{name: "out of range", stored: "1.5", want: "0.1", wantWarn: true},
		{name: "db error", getErr: errors.New("connection reset"), wantErr: true},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.logHook.Reset()
			s.settingRepo.EXPECT().Get(gomock.Any(), commissionRateKey).Return(tt.stored, tt.getErr)

			rate, err := s.service.CommissionRate(s.T().Context())
			if tt.wantErr {
				s.Require().Error(err)
				return
			}
			s.Require().NoError(err)
			s.Equal(tt.want, rate.String())

			if tt.wantWarn {
				s.Require().NotNil(s.logHook.LastEntry())
				s.Equal(logrus.WarnLevel, s.logHook.LastEntry().Level)
				s.Equal(tt.stored, s.logHook.LastEntry().Data["value"])
			} else {
				s.Empty(s.logHook.AllEntries())
			}
		})
	}
}

func (s *SettingsServiceTestSuite) TestSetCommissionRate() {
	s.settingRepo.EXPECT().Set(gomock.Any(), commissionRateKey, "0.05").Return(nil)
	s.Require().NoError(s.service.SetCommissionRate(s.T().Context(), decimal.RequireFromString("0.05")))

	for _, rate := range []string{"-0.01", "1", "2.5"} {
		err := s.service.SetCommissionRate(s.T().Context(), decimal.RequireFromString(rate))
		s.Require().ErrorIs(err, domain.ErrInvalidCommissionRate, rate)
		s.Require().ErrorIs(err, domain.ErrValidation, rate)
	}
}
