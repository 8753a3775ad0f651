package service

import (
	"errors"
	"fmt"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/pkg/uow"
)

// txErr добавляет контекст к ошибке транзакции. Конфликт фиксации превращается в domain.ErrConcurrencyConflict,
// чтобы транспорт мог предложить клиенту повторить запрос.
func txErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, uow.ErrTxConflict) && !errors.Is(err, domain.ErrConcurrencyConflict) {
		return fmt.Errorf("%s: %w: %w", msg, domain.ErrConcurrencyConflict, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
