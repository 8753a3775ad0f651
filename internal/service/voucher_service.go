package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/shopspring/decimal"
)

const (
	voucherCodePrefix     = "BK-"
	voucherCodeRandomLen  = 8
	voucherCreateAttempts = 3
	defaultVouchersLimit  = uint(200)

	SubjectVoucherRedeemed = "market.vouchers.redeemed"
)

var voucherCodeRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{3,63}$`)

type VoucherService struct {
	uow         uow.UOW
	voucherRepo VoucherRepository
	events      EventPublisher
	now         func() time.Time
}

func NewVoucherService(u uow.UOW, events EventPublisher) (*VoucherService, error) {
	voucherRepo, err := uow.GetRepositoryAs[VoucherRepository](u, uow.RepositoryName(repoargs.VoucherRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &VoucherService{
		uow:         u,
		voucherRepo: voucherRepo,
		events:      events,
		now:         time.Now,
	}, nil
}

type RedeemResult struct {
	Amount     decimal.Decimal
	NewBalance decimal.Decimal
}

// VoucherRedeemed событие погашения ваучера.
type VoucherRedeemed struct {
	Code   string          `json:"code"`
	UserID int64           `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

// NormalizeVoucherCode приводит код к виду, в котором он хранится.
func NormalizeVoucherCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem погашает ваучер и зачисляет его сумму на баланс. Пометка ваучера и зачисление выполняются
// в одной транзакции: ваучер либо использован и деньги зачислены, либо не изменилось ничего.
// Ошибки: domain.ErrInvalidVoucherCode, domain.ErrVoucherNotFound, domain.ErrVoucherExpired,
// domain.ErrVoucherAlreadyUsed, domain.ErrAccountNotFound.
func (v *VoucherService) Redeem(ctx context.Context, code string, userID int64) (*RedeemResult, error) {
	code = NormalizeVoucherCode(code)
	if !voucherCodeRe.MatchString(code) {
		return nil, domain.ErrInvalidVoucherCode
	}

	var result RedeemResult
	err := v.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[VoucherRepository](tx, uow.RepositoryName(repoargs.VoucherRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}

		now := v.now()
		voucher, markErr := repo.MarkUsed(c, repoargs.VoucherRedeem{Code: code, UserID: userID, Now: now})
		if markErr != nil {
			if errors.Is(markErr, domain.ErrRecordNotFound) {
				return classifyVoucherMiss(c, repo, code, now)
			}
			return markErr //nolint:wrapcheck
		}

		account, applyErr := applyDelta(c, tx, DeltaArgs{
			UserID:    userID,
			Amount:    voucher.Amount,
			Reason:    domain.ReasonVoucherRedeem,
			Reference: "voucher:" + code,
		})
		if applyErr != nil {
			return applyErr
		}
		result = RedeemResult{Amount: voucher.Amount, NewBalance: account.Balance}
		return nil
	})
	if err != nil {
		return nil, txErr(err, "redeeming voucher %s", code)
	}

	v.events.Publish(ctx, SubjectVoucherRedeemed, VoucherRedeemed{Code: code, UserID: userID, Amount: result.Amount})
	return &result, nil
}

// classifyVoucherMiss объясняет, почему compare-and-set не сработал. Если ваучер выглядит годным,
// значит его только что погасил параллельный запрос.
func classifyVoucherMiss(ctx context.Context, repo VoucherRepository, code string, now time.Time) error {
	voucher, err := repo.FindByCode(ctx, code)
	if err != nil {
		return err //nolint:wrapcheck
	}
	switch {
	case voucher.Used:
		return domain.ErrVoucherAlreadyUsed
	case voucher.IsExpired(now):
		return domain.ErrVoucherExpired
	default:
		return domain.ErrVoucherAlreadyUsed
	}
}

type CreateVoucherArgs struct {
	// Code если пустой, генерируется автоматически.
	Code        string
	Amount      decimal.Decimal
	ExpiresAt   *time.Time
	Description string
	CreatedBy   int64
}

// Create выпускает ваучер. Сгенерированный код имеет вид BK-XXXXXXXX.
func (v *VoucherService) Create(ctx context.Context, args CreateVoucherArgs) (*domain.Voucher, error) {
	if !domain.IsPositiveMoney(args.Amount) {
		return nil, fmt.Errorf("voucher amount %s: %w", args.Amount, domain.ErrInvalidAmount)
	}
	if args.ExpiresAt != nil && !args.ExpiresAt.After(v.now()) {
		return nil, fmt.Errorf("voucher expiry in the past: %w", domain.ErrValidation)
	}

	explicit := args.Code != ""
	code := NormalizeVoucherCode(args.Code)
	if explicit && !voucherCodeRe.MatchString(code) {
		return nil, domain.ErrInvalidVoucherCode
	}

	createdBy := args.CreatedBy
	for attempt := 1; ; attempt++ {
		if !explicit {
			code = generateVoucherCode()
		}
		voucher, err := v.voucherRepo.Create(ctx, repoargs.VoucherCreate{
			Code:        code,
			Amount:      args.Amount,
			ExpiresAt:   args.ExpiresAt,
			CreatedBy:   &createdBy,
			Description: args.Description,
		})
		if err == nil {
			return voucher, nil
		}
		// совпадение случайного кода маловероятно, но возможно. Явно заданный код не перебираем.
		if !errors.Is(err, domain.ErrDuplicateKey) || explicit || attempt >= voucherCreateAttempts {
			return nil, fmt.Errorf("creating voucher: %w", err)
		}
	}
}

func (v *VoucherService) List(ctx context.Context, limit uint) ([]domain.Voucher, error) {
	if limit == 0 || limit > defaultVouchersLimit {
		limit = defaultVouchersLimit
	}
	vouchers, err := v.voucherRepo.List(ctx, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return vouchers, nil
}

func generateVoucherCode() string {
	return voucherCodePrefix + rand.Text()[:voucherCodeRandomLen]
}
