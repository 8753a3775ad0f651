package pgrepo

import (
	"context"
	"errors"

	"github.com/fsdevblog/digimarket/internal/domain"
	"github.com/fsdevblog/digimarket/pkg/uow"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const listingColumns = "id, seller_id, title, price, stock, status, created_at, updated_at"

type ListingRepository struct {
	db uow.DBTX
}

func NewListingRepository(db uow.DBTX) *ListingRepository {
	return &ListingRepository{db: db}
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	if err := row.Scan(
		&l.ID, &l.SellerID, &l.Title, &l.Price, &l.Stock, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &l, nil
}

func (r *ListingRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	listing, err := scanListing(r.db.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErr(domain.ErrListingNotFound, "getting listing %s", id)
		}
		return nil, convertErr(err, "getting listing %s", id)
	}
	return listing, nil
}

// ReserveUnit списывает одну единицу товара. Проверка status = active и stock > 0, уменьшение остатка
// и перевод в sold на нуле выполняются одним UPDATE. Листинг без учета остатков (stock IS NULL) продается
// один раз. Если условие не выполнилось, возвращается domain.ErrRecordNotFound.
func (r *ListingRepository) ReserveUnit(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	listing, err := scanListing(r.db.QueryRow(ctx,
		`UPDATE listings
		 SET stock      = CASE WHEN stock IS NULL THEN NULL ELSE stock - 1 END,
		     status     = CASE WHEN stock IS NULL OR stock = 1 THEN 'sold' ELSE status END,
		     updated_at = now()
		 WHERE id = $1 AND status = 'active' AND (stock IS NULL OR stock > 0)
		 RETURNING `+listingColumns,
		id,
	))
	if err != nil {
		return nil, convertErr(err, "reserving unit of listing %s", id)
	}
	return listing, nil
}

// Release возвращает единицу товара, обратная операция к ReserveUnit.
func (r *ListingRepository) Release(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	listing, err := scanListing(r.db.QueryRow(ctx,
		`UPDATE listings
		 SET stock      = CASE WHEN stock IS NULL THEN NULL ELSE stock + 1 END,
		     status     = CASE WHEN status = 'sold' THEN 'active' ELSE status END,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+listingColumns,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErr(domain.ErrListingNotFound, "releasing unit of listing %s", id)
		}
		return nil, convertErr(err, "releasing unit of listing %s", id)
	}
	return listing, nil
}
