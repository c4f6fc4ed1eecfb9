package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"secondbrain/internal/model"
)

type InboxRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewInboxRepository(db *pgxpool.Pool, logger *zap.Logger) *InboxRepository {
	return &InboxRepository{db: db, logger: logger}
}

const inboxColumns = `id, owner_id, raw_message, source, category, confidence, ai_title, ai_response,
        processed, target_bucket, target_id, created_at`

func scanEntry(row pgx.Row) (*model.InboxEntry, error) {
	var (
		e        model.InboxEntry
		category string
		raw      []byte
		bucket   *string
		target   *string
	)
	if err := row.Scan(&e.ID, &e.Owner, &e.RawMessage, &e.Source, &category, &e.Confidence, &e.AITitle, &raw,
		&e.Processed, &bucket, &target, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Category = model.Bucket(category)
	e.AIResponse = raw
	if bucket != nil {
		e.TargetBucket = model.Bucket(*bucket)
	}
	if target != nil {
		e.TargetID = *target
	}
	return &e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *InboxRepository) InsertEntry(ctx context.Context, e *model.InboxEntry) (*model.InboxEntry, error) {
	row := *e
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.CreatedAt = stamp(row.CreatedAt)

	r.logger.Debug("Logging inbox entry",
		zap.Int64("owner", row.Owner),
		zap.String("source", row.Source),
		zap.String("category", string(row.Category)),
	)
	query := `
        INSERT INTO inbox_log (` + inboxColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	_, err := r.db.Exec(ctx, query,
		row.ID, row.Owner, row.RawMessage, row.Source, string(row.Category), row.Confidence, row.AITitle,
		[]byte(row.AIResponse), row.Processed, nullable(string(row.TargetBucket)), nullable(row.TargetID), row.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert inbox entry", zap.Error(err), zap.Int64("owner", row.Owner))
		return nil, fmt.Errorf("insert inbox_log: %w", err)
	}
	r.logger.Info("Inbox entry logged", zap.String("inbox_id", row.ID))
	return &row, nil
}

func (r *InboxRepository) GetEntry(ctx context.Context, owner int64, id string) (*model.InboxEntry, error) {
	query := `SELECT ` + inboxColumns + ` FROM inbox_log WHERE id = $1 AND owner_id = $2`
	e, err := scanEntry(r.db.QueryRow(ctx, query, id, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get inbox entry", zap.Error(err), zap.String("inbox_id", id))
		return nil, fmt.Errorf("get inbox_log: %w", err)
	}
	return e, nil
}

func (r *InboxRepository) UpdateEntry(ctx context.Context, e *model.InboxEntry) error {
	r.logger.Debug("Updating inbox entry",
		zap.String("inbox_id", e.ID),
		zap.String("target_bucket", string(e.TargetBucket)),
		zap.Bool("processed", e.Processed),
	)
	query := `
        UPDATE inbox_log
        SET category = $3, confidence = $4, ai_title = $5, processed = $6, target_bucket = $7, target_id = $8
        WHERE id = $1 AND owner_id = $2
    `
	tag, err := r.db.Exec(ctx, query, e.ID, e.Owner, string(e.Category), e.Confidence, e.AITitle, e.Processed,
		nullable(string(e.TargetBucket)), nullable(e.TargetID))
	if err != nil {
		r.logger.Error("Failed to update inbox entry", zap.Error(err), zap.String("inbox_id", e.ID))
		return fmt.Errorf("update inbox_log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *InboxRepository) DeleteEntry(ctx context.Context, owner int64, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM inbox_log WHERE id = $1 AND owner_id = $2`, id, owner)
	if err != nil {
		r.logger.Error("Failed to delete inbox entry", zap.Error(err), zap.String("inbox_id", id))
		return fmt.Errorf("delete inbox_log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Inbox entry deleted", zap.String("inbox_id", id))
	return nil
}

func (r *InboxRepository) FirstUnreviewed(ctx context.Context, owner int64) (*model.InboxEntry, error) {
	query := `
        SELECT ` + inboxColumns + `
        FROM inbox_log
        WHERE owner_id = $1 AND category = $2 AND processed = FALSE
        ORDER BY created_at
        LIMIT 1
    `
	e, err := scanEntry(r.db.QueryRow(ctx, query, owner, string(model.BucketNeedsReview)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to query review queue", zap.Error(err), zap.Int64("owner", owner))
		return nil, fmt.Errorf("review queue: %w", err)
	}
	return e, nil
}

func (r *InboxRepository) CountUnreviewed(ctx context.Context, owner int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM inbox_log WHERE owner_id = $1 AND category = $2 AND processed = FALSE`,
		owner, string(model.BucketNeedsReview),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count review queue: %w", err)
	}
	return n, nil
}
