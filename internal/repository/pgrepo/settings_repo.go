package pgrepo

import (
	"context"

	"github.com/fsdevblog/digimarket/pkg/uow"
)

// SettingsRepository key-value хранилище настроек площадки (site_settings).
type SettingsRepository struct {
	db uow.DBTX
}

func NewSettingsRepository(db uow.DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает значение ключа или domain.ErrRecordNotFound.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	if err := r.db.QueryRow(ctx, `SELECT value FROM site_settings WHERE key = $1`, key).Scan(&value); err != nil {
		return "", convertErr(err, "getting setting `%s`", key)
	}
	return value, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO site_settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	); err != nil {
		return convertErr(err, "setting `%s`", key)
	}
	return nil
}
