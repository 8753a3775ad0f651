package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
)

const defaultReconciliationLimit = uint(100)

// ReconciliationService ручной разбор несогласованностей, которые не удалось компенсировать автоматически.
type ReconciliationService struct {
	reconRepo ReconciliationRepository
}

func NewReconciliationService(u uow.UOW) (*ReconciliationService, error) {
	reconRepo, err := uow.GetRepositoryAs[ReconciliationRepository](
		u, uow.RepositoryName(repoargs.ReconciliationRepoName),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &ReconciliationService{reconRepo: reconRepo}, nil
}

func (r *ReconciliationService) List(
	ctx context.Context,
	status domain.ReconciliationStatus,
	limit uint,
) ([]domain.ReconciliationRecord, error) {
	if status == "" {
		status = domain.ReconciliationStatusOpen
	}
	if limit == 0 || limit > defaultReconciliationLimit {
		limit = defaultReconciliationLimit
	}
	records, err := r.reconRepo.List(ctx, status, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return records, nil
}

// Resolve закрывает запись. Заметка обязательна: в ней админ описывает, что было сделано вручную.
func (r *ReconciliationService) Resolve(
	ctx context.Context,
	id, adminID int64,
	note string,
) (*domain.ReconciliationRecord, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, domain.ErrReasonRequired
	}
	rec, err := r.reconRepo.Resolve(ctx, id, adminID, note)
	if err != nil {
		return nil, fmt.Errorf("resolving reconciliation record %d: %w", id, err)
	}
	return rec, nil
}
