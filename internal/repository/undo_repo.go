package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"secondbrain/internal/model"
)

type UndoRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUndoRepository(db *pgxpool.Pool, logger *zap.Logger) *UndoRepository {
	return &UndoRepository{db: db, logger: logger}
}

func (r *UndoRepository) Push(ctx context.Context, e *model.UndoEntry) (int64, error) {
	snapshot, err := json.Marshal(e.Snapshot)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}
	r.logger.Debug("Recording undo entry",
		zap.Int64("owner", e.Owner),
		zap.String("action", string(e.ActionType)),
		zap.String("item_id", e.ItemID),
	)

	query := `
        INSERT INTO undo_log (owner_id, action_type, bucket, item_id, previous_snapshot, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	var id int64
	if err := r.db.QueryRow(ctx, query, e.Owner, string(e.ActionType), string(e.Bucket), e.ItemID, snapshot, stamp(e.CreatedAt)).Scan(&id); err != nil {
		r.logger.Error("Failed to insert undo entry", zap.Error(err), zap.Int64("owner", e.Owner))
		return 0, fmt.Errorf("insert undo_log: %w", err)
	}
	return id, nil
}

func (r *UndoRepository) Trim(ctx context.Context, owner int64, keep int) (int64, error) {
	query := `
        DELETE FROM undo_log
        WHERE owner_id = $1
        AND id NOT IN (
            SELECT id FROM undo_log WHERE owner_id = $1 ORDER BY id DESC LIMIT $2
        )
    `
	tag, err := r.db.Exec(ctx, query, owner, keep)
	if err != nil {
		r.logger.Error("Failed to trim undo log", zap.Error(err), zap.Int64("owner", owner))
		return 0, fmt.Errorf("trim undo_log: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		r.logger.Debug("Undo log trimmed", zap.Int64("owner", owner), zap.Int64("evicted", n))
	}
	return tag.RowsAffected(), nil
}

func (r *UndoRepository) Latest(ctx context.Context, owner int64) (*model.UndoEntry, error) {
	query := `
        SELECT id, owner_id, action_type, bucket, item_id, previous_snapshot, created_at
        FROM undo_log
        WHERE owner_id = $1
        ORDER BY id DESC
        LIMIT 1
    `
	var (
		e        model.UndoEntry
		action   string
		bucket   string
		snapshot []byte
	)
	err := r.db.QueryRow(ctx, query, owner).Scan(&e.ID, &e.Owner, &action, &bucket, &e.ItemID, &snapshot, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to read undo log", zap.Error(err), zap.Int64("owner", owner))
		return nil, fmt.Errorf("latest undo_log: %w", err)
	}
	e.ActionType = model.ActionType(action)
	e.Bucket = model.Bucket(bucket)
	if len(snapshot) > 0 {
		var it model.Item
		if err := json.Unmarshal(snapshot, &it); err != nil {
			return nil, fmt.Errorf("decode snapshot %d: %w", e.ID, err)
		}
		e.Snapshot = &it
	}
	return &e, nil
}

func (r *UndoRepository) DeleteUndo(ctx context.Context, owner int64, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM undo_log WHERE id = $1 AND owner_id = $2`, id, owner)
	if err != nil {
		r.logger.Error("Failed to delete undo entry", zap.Error(err), zap.Int64("undo_id", id))
		return fmt.Errorf("delete undo_log: %w", err)
	}
	return nil
}

func (r *UndoRepository) CountUndo(ctx context.Context, owner int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM undo_log WHERE owner_id = $1`, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("count undo_log: %w", err)
	}
	return n, nil
}
