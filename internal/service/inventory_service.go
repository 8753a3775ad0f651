package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/internal/repository/repoargs"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/google/uuid"
)

type InventoryService struct {
	listingRepo ListingRepository
}

func NewInventoryService(u uow.UOW) (*InventoryService, error) {
	listingRepo, err := uow.GetRepositoryAs[ListingRepository](u, uow.RepositoryName(repoargs.ListingRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &InventoryService{listingRepo: listingRepo}, nil
}

// ReserveUnit списывает одну единицу товара. Возвращает листинг с оставшимся остатком.
// Ошибки: domain.ErrOutOfStock, domain.ErrListingNotActive, domain.ErrListingNotFound.
func (i *InventoryService) ReserveUnit(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	return reserveUnit(ctx, i.listingRepo, listingID)
}

// Release возвращает единицу товара, зарезервированную ReserveUnit.
func (i *InventoryService) Release(ctx context.Context, listingID uuid.UUID) error {
	if _, err := i.listingRepo.Release(ctx, listingID); err != nil {
		return fmt.Errorf("releasing unit of listing %s: %w", listingID, err)
	}
	return nil
}

// reserveUnit резервирует единицу одним условным UPDATE. Если ничего не обновилось, листинг перечитывается,
// чтобы вернуть точную причину.
func reserveUnit(ctx context.Context, repo ListingRepository, listingID uuid.UUID) (*domain.Listing, error) {
	listing, err := repo.ReserveUnit(ctx, listingID)
	if err == nil {
		return listing, nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("reserving unit of listing %s: %w", listingID, err)
	}

	current, getErr := repo.Get(ctx, listingID)
	if getErr != nil {
		return nil, getErr //nolint:wrapcheck
	}
	if current.Status == domain.ListingStatusSold || (current.Stock != nil && *current.Stock <= 0) {
		return nil, fmt.Errorf("listing %s: %w", listingID, domain.ErrOutOfStock)
	}
	return nil, fmt.Errorf("listing %s is %s: %w", listingID, current.Status, domain.ErrListingNotActive)
}

func releaseUnit(ctx context.Context, tx uow.TX, listingID uuid.UUID) error {
	repo, err := uow.GetAs[ListingRepository](tx, uow.RepositoryName(repoargs.ListingRepoName))
	if err != nil {
		return err //nolint:wrapcheck
	}
	if _, err = repo.Release(ctx, listingID); err != nil {
		return fmt.Errorf("releasing unit of listing %s: %w", listingID, err)
	}
	return nil
}
