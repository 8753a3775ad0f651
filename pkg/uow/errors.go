package uow

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrRepositoryNotRegistered     = errors.New("[uow] repository not registered")
	ErrRepositoryAlreadyRegistered = errors.New("[uow] repository already registered")
	ErrInvalidRepositoryType       = errors.New("[uow] invalid repository type")
	// ErrTxConflict транзакция не может быть зафиксирована из-за конкурентного доступа, её можно повторить.
	ErrTxConflict = errors.New("[uow] transaction conflict")
)

const (
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
)

// conflictErr оборачивает ошибки сериализации и дедлоков в ErrTxConflict, остальные возвращает как есть.
func conflictErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) &&
		(pgErr.Code == serializationFailureCode || pgErr.Code == deadlockDetectedCode) {
		return errors.Join(ErrTxConflict, err)
	}
	return err
}
