package api

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var registerOnce sync.Once

// validateMaxBytes в отличии от тэга max который проверяет длину рун, - проверят длину байт в поле.
func validateMaxBytes(fl validator.FieldLevel) bool {
	param := fl.Param() // получаем значение из тега
	maxBytes, err := strconv.Atoi(param)
	if err != nil {
		return false
	}

	// нужно убедится что значение поля - строка.
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	return len([]byte(str)) <= maxBytes
}

// validateMoney положительная сумма не точнее копейки (куруша). Decimal приходит строкой через decimalTypeFunc.
func validateMoney(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	d, err := decimal.NewFromString(str)
	if err != nil {
		return false
	}
	return domain.IsPositiveMoney(d)
}

// decimalTypeFunc отдает валидатору decimal.Decimal как строку, иначе он видит только структуру.
func decimalTypeFunc(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func registerValidators() error {
	var regErr error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			regErr = fmt.Errorf("validator registration: unexpected engine %T", binding.Validator.Engine())
			return
		}
		v.RegisterCustomTypeFunc(decimalTypeFunc, decimal.Decimal{})
		if err := v.RegisterValidation("max_bytes", validateMaxBytes); err != nil {
			regErr = fmt.Errorf("validator registration: %s", err.Error())
			return
		}
		if err := v.RegisterValidation("money", validateMoney); err != nil {
			regErr = fmt.Errorf("validator registration: %s", err.Error())
		}
	})
	return regErr
}
