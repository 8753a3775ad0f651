package service

import (
	"context"
	"fmt"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/shopspring/decimal"
)

const defaultEntriesLimit uint = 100

// DeltaArgs изменение баланса. Amount со знаком: отрицательное значение списывает средства.
type DeltaArgs struct {
	UserID    int64
	Amount    decimal.Decimal
	Reason    domain.LedgerReason
	Reference string
}

type LedgerService struct {
	uow         uow.UOW
	accountRepo AccountRepository
	entryRepo   LedgerEntryRepository
}

func NewLedgerService(u uow.UOW) (*LedgerService, error) {
	accountRepo, err := uow.GetRepositoryAs[AccountRepository](u, uow.RepositoryName(repoargs.AccountRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	entryRepo, err := uow.GetRepositoryAs[LedgerEntryRepository](u, uow.RepositoryName(repoargs.LedgerEntryRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &LedgerService{
		uow:         u,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
	}, nil
}

// ApplyDelta применяет одно изменение баланса в отдельной транзакции.
// Ошибки: domain.ErrInsufficientFunds, domain.ErrAccountNotFound, domain.ErrInvalidAmount.
func (l *LedgerService) ApplyDelta(ctx context.Context, args DeltaArgs) (*domain.Account, error) {
	var account *domain.Account
	err := l.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var applyErr error
		account, applyErr = applyDelta(c, tx, args)
		return applyErr
	})
	if err != nil {
		return nil, txErr(err, "applying %s delta to account %d", args.Reason, args.UserID)
	}
	return account, nil
}

// Grant ручное начисление администратором.
func (l *LedgerService) Grant(
	ctx context.Context,
	adminID, userID int64,
	amount decimal.Decimal,
) (*domain.Account, error) {
	return l.ApplyDelta(ctx, DeltaArgs{
		UserID:    userID,
		Amount:    amount,
		Reason:    domain.ReasonAdminGrant,
		Reference: fmt.Sprintf("admin:%d", adminID),
	})
}

// Open открывает счет пользователя. Повторный вызов возвращает существующий счет.
func (l *LedgerService) Open(ctx context.Context, userID int64) (*domain.Account, error) {
	account, err := l.accountRepo.Create(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("opening account %d: %w", userID, err)
	}
	return account, nil
}

func (l *LedgerService) Balance(ctx context.Context, userID int64) (*domain.Account, error) {
	account, err := l.accountRepo.Get(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return account, nil
}

// Entries журнал изменений баланса, новые сверху.
func (l *LedgerService) Entries(ctx context.Context, userID int64, limit uint) ([]domain.LedgerEntry, error) {
	if limit == 0 || limit > defaultEntriesLimit {
		limit = defaultEntriesLimit
	}
	entries, err := l.entryRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return entries, nil
}

// applyDelta изменяет баланс и пишет запись в журнал в рамках транзакции tx.
// Им пользуются все сервисы, которые двигают деньги, поэтому журнал не может разойтись с балансом.
func applyDelta(ctx context.Context, tx uow.TX, args DeltaArgs) (*domain.Account, error) {
	if args.Amount.IsZero() || !domain.IsMoney(args.Amount) {
		return nil, fmt.Errorf("delta %s: %w", args.Amount, domain.ErrInvalidAmount)
	}

	accountRepo, err := uow.GetAs[AccountRepository](tx, uow.RepositoryName(repoargs.AccountRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	entryRepo, err := uow.GetAs[LedgerEntryRepository](tx, uow.RepositoryName(repoargs.LedgerEntryRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	account, err := accountRepo.ApplyDelta(ctx, args.UserID, args.Amount)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if _, err = entryRepo.Create(ctx, repoargs.LedgerEntryCreate{
		UserID:       args.UserID,
		Delta:        args.Amount,
		BalanceAfter: account.Balance,
		Reason:       args.Reason,
		Reference:    args.Reference,
	}); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return account, nil
}
