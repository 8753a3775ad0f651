package domain

import "github.com/shopspring/decimal"

const (
	// CurrencyPrecision число знаков после запятой для TRY.
	CurrencyPrecision int32 = 2
	Currency                = "TRY"
)

// RoundMoney округляет сумму до точности валюты (половина от нуля).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPrecision)
}

// IsMoney проверяет, что у суммы не больше CurrencyPrecision знаков после запятой.
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(CurrencyPrecision))
}

// IsPositiveMoney положительная сумма с допустимой точностью.
func IsPositiveMoney(d decimal.Decimal) bool {
	return d.IsPositive() && IsMoney(d)
}

// SplitCommission делит цену на комиссию площадки и выплату продавцу.
// commission + sellerNet == price всегда, так как sellerNet вычисляется вычитанием.
func SplitCommission(price, rate decimal.Decimal) (commission, sellerNet decimal.Decimal) {
	commission = RoundMoney(price.Mul(rate))
	return commission, price.Sub(commission)
}
