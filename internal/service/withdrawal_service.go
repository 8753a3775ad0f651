package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultWithdrawalMethod = "bank_transfer"
	defaultWithdrawalsLimit = uint(100)
	subjectWithdrawalPrefix = "market.withdrawals."
)

// MinWithdrawalAmount минимальная сумма заявки на вывод.
var MinWithdrawalAmount = decimal.RequireFromString("50.00")

type WithdrawalService struct {
	uow            uow.UOW
	withdrawalRepo WithdrawalRepository
	accountRepo    AccountRepository
	events         EventPublisher
	now            func() time.Time
}

func NewWithdrawalService(u uow.UOW, events EventPublisher) (*WithdrawalService, error) {
	withdrawalRepo, err := uow.GetRepositoryAs[WithdrawalRepository](u, uow.RepositoryName(repoargs.WithdrawalRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	accountRepo, err := uow.GetRepositoryAs[AccountRepository](u, uow.RepositoryName(repoargs.AccountRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &WithdrawalService{
		uow:            u,
		withdrawalRepo: withdrawalRepo,
		accountRepo:    accountRepo,
		events:         events,
		now:            time.Now,
	}, nil
}

type WithdrawalRequestArgs struct {
	UserID int64
	Amount decimal.Decimal
	Method string
	Notes  string
}

// Request создает заявку на вывод. Деньги списываются только при одобрении.
// Ошибки: domain.ErrAmountBelowMinimum, domain.ErrInvalidAmount, domain.ErrInsufficientFunds.
func (w *WithdrawalService) Request(ctx context.Context, args WithdrawalRequestArgs) (*domain.Withdrawal, error) {
	if !domain.IsPositiveMoney(args.Amount) {
		return nil, fmt.Errorf("withdrawal amount %s: %w", args.Amount, domain.ErrInvalidAmount)
	}
	if args.Amount.LessThan(MinWithdrawalAmount) {
		return nil, fmt.Errorf("withdrawal amount %s: %w", args.Amount, domain.ErrAmountBelowMinimum)
	}

	account, err := w.accountRepo.Get(ctx, args.UserID)
	if err != nil {
		return nil, fmt.Errorf("requesting withdrawal: %w", err)
	}
	if account.Balance.LessThan(args.Amount) {
		return nil, fmt.Errorf("requesting withdrawal of %s: %w", args.Amount, domain.ErrInsufficientFunds)
	}

	method := strings.TrimSpace(args.Method)
	if method == "" {
		method = defaultWithdrawalMethod
	}
	withdrawal, err := w.withdrawalRepo.Create(ctx, repoargs.WithdrawalCreate{
		UserID: args.UserID,
		Amount: args.Amount,
		Method: method,
		Notes:  strings.TrimSpace(args.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("requesting withdrawal: %w", err)
	}
	w.publish(ctx, withdrawal)
	return withdrawal, nil
}

// Approve одобряет заявку и списывает сумму с баланса. Смена статуса и списание в одной транзакции:
// при нехватке средств заявка остается в pending. Повторное одобрение возвращает domain.ErrAlreadyProcessed.
func (w *WithdrawalService) Approve(
	ctx context.Context,
	id uuid.UUID,
	adminID int64,
	notes string,
) (*domain.Withdrawal, error) {
	var result *domain.Withdrawal
	err := w.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var err error
		result, err = w.transition(c, tx, id, adminID, domain.WithdrawalStatusPending, domain.WithdrawalStatusApproved,
			optionalNote(notes))
		if err != nil {
			return err
		}
		_, err = applyDelta(c, tx, DeltaArgs{
			UserID:    result.UserID,
			Amount:    result.Amount.Neg(),
			Reason:    domain.ReasonWithdrawalDebit,
			Reference: "withdrawal:" + id.String(),
		})
		return err
	})
	if err != nil {
		return nil, txErr(err, "approving withdrawal %s", id)
	}
	w.publish(ctx, result)
	return result, nil
}

// Reject отклоняет заявку. Причина обязательна, деньги не двигаются.
func (w *WithdrawalService) Reject(
	ctx context.Context,
	id uuid.UUID,
	adminID int64,
	reason string,
) (*domain.Withdrawal, error) {
	note := optionalNote(reason)
	if note == nil {
		return nil, domain.ErrReasonRequired
	}

	var result *domain.Withdrawal
	err := w.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var err error
		result, err = w.transition(c, tx, id, adminID, domain.WithdrawalStatusPending, domain.WithdrawalStatusRejected, note)
		return err
	})
	if err != nil {
		return nil, txErr(err, "rejecting withdrawal %s", id)
	}
	w.publish(ctx, result)
	return result, nil
}

// Complete отмечает, что выплата по одобренной заявке отправлена.
func (w *WithdrawalService) Complete(ctx context.Context, id uuid.UUID, adminID int64) (*domain.Withdrawal, error) {
	var result *domain.Withdrawal
	err := w.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var err error
		result, err = w.transition(c, tx, id, adminID, domain.WithdrawalStatusApproved, domain.WithdrawalStatusCompleted, nil)
		return err
	})
	if err != nil {
		return nil, txErr(err, "completing withdrawal %s", id)
	}
	w.publish(ctx, result)
	return result, nil
}

// transition compare-and-set статуса заявки. Если заявка уже не в статусе from, возвращает
// domain.ErrAlreadyProcessed, а для еще не одобренной заявки при завершении domain.ErrInvalidTransition.
func (w *WithdrawalService) transition(
	ctx context.Context,
	tx uow.TX,
	id uuid.UUID,
	adminID int64,
	from, to domain.WithdrawalStatus,
	notes *string,
) (*domain.Withdrawal, error) {
	repo, err := uow.GetAs[WithdrawalRepository](tx, uow.RepositoryName(repoargs.WithdrawalRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	updated, err := repo.Transition(ctx, repoargs.WithdrawalTransition{
		ID:          id,
		From:        from,
		To:          to,
		ProcessedBy: adminID,
		AdminNotes:  notes,
		Now:         w.now(),
	})
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err //nolint:wrapcheck
	}

	current, getErr := repo.Get(ctx, id)
	if getErr != nil {
		return nil, getErr //nolint:wrapcheck
	}
	if current.Status == domain.WithdrawalStatusPending {
		return nil, fmt.Errorf("withdrawal %s is not approved: %w", id, domain.ErrInvalidTransition)
	}
	return nil, fmt.Errorf("withdrawal %s is %s: %w", id, current.Status, domain.ErrAlreadyProcessed)
}

// List заявки для админского аудита.
func (w *WithdrawalService) List(ctx context.Context, filter repoargs.WithdrawalFilter) ([]domain.Withdrawal, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("withdrawal status `%s`: %w", *filter.Status, domain.ErrValidation)
	}
	if filter.Limit == 0 || filter.Limit > defaultWithdrawalsLimit {
		filter.Limit = defaultWithdrawalsLimit
	}
	list, err := w.withdrawalRepo.List(ctx, filter)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return list, nil
}

func (w *WithdrawalService) ListForUser(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	return w.List(ctx, repoargs.WithdrawalFilter{UserID: &userID})
}

// WithdrawalChanged событие смены статуса заявки.
type WithdrawalChanged struct {
	ID     uuid.UUID               `json:"id"`
	UserID int64                   `json:"userId"`
	Amount decimal.Decimal         `json:"amount"`
	Status domain.WithdrawalStatus `json:"status"`
}

func (w *WithdrawalService) publish(ctx context.Context, wd *domain.Withdrawal) {
	w.events.Publish(ctx, subjectWithdrawalPrefix+string(wd.Status), WithdrawalChanged{
		ID:     wd.ID,
		UserID: wd.UserID,
		Amount: wd.Amount,
		Status: wd.Status,
	})
}

func optionalNote(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
