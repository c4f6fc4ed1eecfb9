package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/recurrence"
)

// ItemRepository 每个 bucket 一张表，列名由 model.Schemas 决定
type ItemRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewItemRepository(db *pgxpool.Pool, logger *zap.Logger) *ItemRepository {
	return &ItemRepository{db: db, logger: logger}
}

// columns 返回该 bucket 表的列顺序，scan 与 insert 共用
func columns(s model.Schema) []string {
	cols := []string{"id", "owner_id", s.TitleColumn, s.DetailColumn, "status", "priority"}
	if s.DateBearing() {
		cols = append(cols, s.DateColumn, "is_recurring", "recurrence_pattern")
	}
	if s.HasNextAction {
		cols = append(cols, "next_action")
	}
	return append(cols, "inbox_log_id", "created_at", "completed_at")
}

func schemaFor(b model.Bucket) (model.Schema, error) {
	s, ok := model.SchemaOf(b)
	if !ok {
		return model.Schema{}, fmt.Errorf("unknown bucket %q", b)
	}
	return s, nil
}

// values 按 columns 的顺序展开条目字段
func values(s model.Schema, it *model.Item) []any {
	var inbox *string
	if it.InboxEntryID != "" {
		inbox = &it.InboxEntryID
	}
	vals := []any{it.ID, it.Owner, it.Title, it.Detail, s.StorageStatus(it.Status), string(it.Priority)}
	if s.DateBearing() {
		var pattern *string
		if it.Recurrence != nil {
			p := it.Recurrence.String()
			pattern = &p
		}
		vals = append(vals, it.ScheduledDate, it.IsRecurring(), pattern)
	}
	if s.HasNextAction {
		vals = append(vals, it.NextAction)
	}
	return append(vals, inbox, it.CreatedAt, it.CompletedAt)
}

func scanItem(row pgx.Row, b model.Bucket, s model.Schema) (*model.Item, error) {
	it := &model.Item{Bucket: b}
	var (
		status    string
		priority  string
		recurring bool
		pattern   *string
		inbox     *string
	)
	dest := []any{&it.ID, &it.Owner, &it.Title, &it.Detail, &status, &priority}
	if s.DateBearing() {
		dest = append(dest, &it.ScheduledDate, &recurring, &pattern)
	}
	if s.HasNextAction {
		dest = append(dest, &it.NextAction)
	}
	dest = append(dest, &inbox, &it.CreatedAt, &it.CompletedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	it.Status = s.UnifiedStatus(status)
	it.Priority = model.PriorityNormal
	if priority == string(model.PriorityHigh) {
		it.Priority = model.PriorityHigh
	}
	if recurring && pattern != nil {
		// 存储中的非法规则按非重复处理
		if p, err := recurrence.Parse(*pattern); err == nil {
			it.Recurrence = &p
		}
	}
	if inbox != nil {
		it.InboxEntryID = *inbox
	}
	return it, nil
}

func placeholders(n, from int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

// Insert 未指定 ID 时生成 uuid；指定 ID 时原样写入（undo 恢复删除用）
func (r *ItemRepository) Insert(ctx context.Context, it *model.Item) (*model.Item, error) {
	s, err := schemaFor(it.Bucket)
	if err != nil {
		return nil, err
	}
	row := it.Clone()
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.CreatedAt = stamp(row.CreatedAt)

	r.logger.Debug("Inserting item",
		zap.Int64("owner", row.Owner),
		zap.String("bucket", string(row.Bucket)),
		zap.String("title", row.Title),
	)

	cols := columns(s)
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.Table, strings.Join(cols, ", "), placeholders(len(cols), 1))
	if _, err := r.db.Exec(ctx, query, values(s, row)...); err != nil {
		r.logger.Error("Failed to insert item",
			zap.Error(err),
			zap.Int64("owner", row.Owner),
			zap.String("bucket", string(row.Bucket)),
		)
		return nil, fmt.Errorf("insert %s: %w", s.Table, err)
	}

	r.logger.Info("Item inserted successfully",
		zap.String("item_id", row.ID),
		zap.String("bucket", string(row.Bucket)),
	)
	return row, nil
}

func (r *ItemRepository) Get(ctx context.Context, owner int64, bucket model.Bucket, id string) (*model.Item, error) {
	s, err := schemaFor(bucket)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Getting item", zap.Int64("owner", owner), zap.String("bucket", string(bucket)), zap.String("item_id", id))

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND owner_id = $2", strings.Join(columns(s), ", "), s.Table)
	it, err := scanItem(r.db.QueryRow(ctx, query, id, owner), bucket, s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get item", zap.Error(err), zap.String("item_id", id))
		return nil, fmt.Errorf("get %s: %w", s.Table, err)
	}
	return it, nil
}

func (r *ItemRepository) Update(ctx context.Context, it *model.Item) error {
	s, err := schemaFor(it.Bucket)
	if err != nil {
		return err
	}
	r.logger.Debug("Updating item",
		zap.Int64("owner", it.Owner),
		zap.String("bucket", string(it.Bucket)),
		zap.String("item_id", it.ID),
	)

	// id/owner_id/created_at 不可变
	cols := columns(s)
	vals := values(s, it)
	sets := make([]string, 0, len(cols))
	args := []any{it.ID, it.Owner}
	for i, col := range cols {
		if col == "id" || col == "owner_id" || col == "created_at" {
			continue
		}
		args = append(args, vals[i])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 AND owner_id = $2", s.Table, strings.Join(sets, ", "))

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update item", zap.Error(err), zap.String("item_id", it.ID))
		return fmt.Errorf("update %s: %w", s.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Item updated successfully",
		zap.String("item_id", it.ID),
		zap.String("status", string(it.Status)),
	)
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, owner int64, bucket model.Bucket, id string) error {
	s, err := schemaFor(bucket)
	if err != nil {
		return err
	}
	r.logger.Debug("Deleting item", zap.Int64("owner", owner), zap.String("bucket", string(bucket)), zap.String("item_id", id))

	tag, err := r.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND owner_id = $2", s.Table), id, owner)
	if err != nil {
		r.logger.Error("Failed to delete item", zap.Error(err), zap.String("item_id", id))
		return fmt.Errorf("delete %s: %w", s.Table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.logger.Info("Item deleted", zap.String("item_id", id), zap.String("bucket", string(bucket)))
	return nil
}

func (r *ItemRepository) List(ctx context.Context, f ItemFilter) ([]*model.Item, error) {
	s, err := schemaFor(f.Bucket)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Listing items", zap.Int64("owner", f.Owner), zap.String("bucket", string(f.Bucket)))

	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = $1", strings.Join(columns(s), ", "), s.Table)
	args := []any{f.Owner}
	if len(f.Statuses) > 0 {
		stored := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			stored[i] = s.StorageStatus(st)
		}
		query += " AND status = ANY($2)"
		args = append(args, stored)
	}
	query += " ORDER BY created_at, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query items", zap.Error(err), zap.Int64("owner", f.Owner))
		return nil, fmt.Errorf("list %s: %w", s.Table, err)
	}
	defer rows.Close()

	items := []*model.Item{}
	for rows.Next() {
		it, err := scanItem(rows, f.Bucket, s)
		if err != nil {
			r.logger.Error("Failed to scan item row", zap.Error(err), zap.String("bucket", string(f.Bucket)))
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("Items listed",
		zap.Int64("owner", f.Owner),
		zap.String("bucket", string(f.Bucket)),
		zap.Int("count", len(items)),
	)
	return items, nil
}

// CompletedSince 供 recap 使用
func (r *ItemRepository) CompletedSince(ctx context.Context, owner int64, bucket model.Bucket, since time.Time) ([]*model.Item, error) {
	s, err := schemaFor(bucket)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE owner_id = $1 AND completed_at >= $2 ORDER BY completed_at",
		strings.Join(columns(s), ", "), s.Table)
	rows, err := r.db.Query(ctx, query, owner, since)
	if err != nil {
		r.logger.Error("Failed to query completed items", zap.Error(err), zap.Int64("owner", owner))
		return nil, fmt.Errorf("completed %s: %w", s.Table, err)
	}
	defer rows.Close()

	items := []*model.Item{}
	for rows.Next() {
		it, err := scanItem(rows, bucket, s)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
