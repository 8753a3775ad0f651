package pgrepo

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolationCode      = "23505"
	foreignKeyViolationCode  = "23503"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
	lockNotAvailableCode     = "55P03"
)

// convertErr преобразует ошибку к стандартному виду для слоя репозитория.
// Добавляет форматированное сообщение контекста, тип бизнес-ошибки и оригинальное сообщение.
// Особенности:
//   - pgx.ErrNoRows и нарушение внешнего ключа превращаются в domain.ErrRecordNotFound.
//   - Дубликаты ключей (uniqueViolationCode) превращаются в domain.ErrDuplicateKey.
//   - Ошибки сериализации, дедлоки и lock_timeout превращаются в domain.ErrConcurrencyConflict,
//     такой запрос клиент может повторить.
//   - Все остальные ошибки возвращаются как domain.ErrUnknown с оригинальным сообщением.
func convertErr(err error, format string, formatArgs ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, formatArgs...)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("[repository/%s] %w", msg, domain.ErrRecordNotFound)
	}

	var pgErr *pgconn.PgError
	errType := domain.ErrUnknown

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			errType = domain.ErrDuplicateKey
		case foreignKeyViolationCode:
			errType = domain.ErrRecordNotFound
		case serializationFailureCode, deadlockDetectedCode, lockNotAvailableCode:
			errType = domain.ErrConcurrencyConflict
		}
	}

	return fmt.Errorf("[repository/%s] %w: %s", msg, errType, err.Error())
}

// domainErr оборачивает доменную ошибку в формат репозитория.
func domainErr(errType error, format string, formatArgs ...any) error {
	return fmt.Errorf("[repository/%s] %w", fmt.Sprintf(format, formatArgs...), errType)
}
