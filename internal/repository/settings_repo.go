package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type SettingsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSettingsRepository(db *pgxpool.Pool, logger *zap.Logger) *SettingsRepository {
	return &SettingsRepository{db: db, logger: logger}
}

func (r *SettingsRepository) GetSetting(ctx context.Context, owner int64, key string) (string, error) {
	var v string
	err := r.db.QueryRow(ctx, `SELECT value FROM user_settings WHERE owner_id = $1 AND key = $2`, owner, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to read setting", zap.Error(err), zap.Int64("owner", owner), zap.String("key", key))
		return "", fmt.Errorf("get setting: %w", err)
	}
	return v, nil
}

func (r *SettingsRepository) SetSetting(ctx context.Context, owner int64, key, value string) error {
	query := `
        INSERT INTO user_settings (owner_id, key, value, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (owner_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
    `
	if _, err := r.db.Exec(ctx, query, owner, key, value); err != nil {
		r.logger.Error("Failed to write setting", zap.Error(err), zap.Int64("owner", owner), zap.String("key", key))
		return fmt.Errorf("set setting: %w", err)
	}
	r.logger.Info("Setting updated", zap.Int64("owner", owner), zap.String("key", key), zap.String("value", value))
	return nil
}

func (r *SettingsRepository) AllSettings(ctx context.Context, owner int64) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM user_settings WHERE owner_id = $1`, owner)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
