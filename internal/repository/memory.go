package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"secondbrain/internal/model"
)

// Memory 进程内 Store，storage.driver=memory 和测试时使用
type Memory struct {
	mu       sync.Mutex
	seq      int64
	items    map[model.Bucket]map[string]memItem
	inbox    map[string]memEntry
	undo     []*model.UndoEntry
	undoSeq  int64
	settings map[int64]map[string]string
}

type memItem struct {
	seq  int64
	item *model.Item
}

type memEntry struct {
	seq   int64
	entry *model.InboxEntry
}

func NewMemory() *Memory {
	m := &Memory{
		items:    map[model.Bucket]map[string]memItem{},
		inbox:    map[string]memEntry{},
		settings: map[int64]map[string]string{},
	}
	for _, b := range model.Buckets {
		m.items[b] = map[string]memItem{}
	}
	return m
}

var _ Store = (*Memory)(nil)

func (m *Memory) Insert(_ context.Context, it *model.Item) (*model.Item, error) {
	if _, err := schemaFor(it.Bucket); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row := it.Clone()
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.CreatedAt = stamp(row.CreatedAt)
	m.seq++
	m.items[row.Bucket][row.ID] = memItem{seq: m.seq, item: row}
	return row.Clone(), nil
}

func (m *Memory) Get(_ context.Context, owner int64, bucket model.Bucket, id string) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.items[bucket][id]
	if !ok || row.item.Owner != owner {
		return nil, ErrNotFound
	}
	return row.item.Clone(), nil
}

func (m *Memory) Update(_ context.Context, it *model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.items[it.Bucket][it.ID]
	if !ok || row.item.Owner != it.Owner {
		return ErrNotFound
	}
	next := it.Clone()
	next.CreatedAt = row.item.CreatedAt
	m.items[it.Bucket][it.ID] = memItem{seq: row.seq, item: next}
	return nil
}

func (m *Memory) Delete(_ context.Context, owner int64, bucket model.Bucket, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.items[bucket][id]
	if !ok || row.item.Owner != owner {
		return ErrNotFound
	}
	delete(m.items[bucket], id)
	return nil
}

func (m *Memory) List(_ context.Context, f ItemFilter) ([]*model.Item, error) {
	if _, err := schemaFor(f.Bucket); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([]memItem, 0)
	for _, row := range m.items[f.Bucket] {
		if f.Matches(row.item) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]*model.Item, len(rows))
	for i, row := range rows {
		out[i] = row.item.Clone()
	}
	return out, nil
}

func (m *Memory) CompletedSince(ctx context.Context, owner int64, bucket model.Bucket, since time.Time) ([]*model.Item, error) {
	all, err := m.List(ctx, ItemFilter{Owner: owner, Bucket: bucket})
	if err != nil {
		return nil, err
	}
	out := []*model.Item{}
	for _, it := range all {
		if it.CompletedAt != nil && !it.CompletedAt.Before(since) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *Memory) InsertEntry(_ context.Context, e *model.InboxEntry) (*model.InboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := *e
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.CreatedAt = stamp(row.CreatedAt)
	m.seq++
	m.inbox[row.ID] = memEntry{seq: m.seq, entry: &row}
	out := row
	return &out, nil
}

func (m *Memory) GetEntry(_ context.Context, owner int64, id string) (*model.InboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.inbox[id]
	if !ok || row.entry.Owner != owner {
		return nil, ErrNotFound
	}
	out := *row.entry
	return &out, nil
}

func (m *Memory) UpdateEntry(_ context.Context, e *model.InboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.inbox[e.ID]
	if !ok || row.entry.Owner != e.Owner {
		return ErrNotFound
	}
	next := *e
	next.CreatedAt = row.entry.CreatedAt
	m.inbox[e.ID] = memEntry{seq: row.seq, entry: &next}
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, owner int64, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.inbox[id]
	if !ok || row.entry.Owner != owner {
		return ErrNotFound
	}
	delete(m.inbox, id)
	return nil
}

func (m *Memory) unreviewed(owner int64) []memEntry {
	rows := []memEntry{}
	for _, row := range m.inbox {
		e := row.entry
		if e.Owner == owner && e.Category == model.BucketNeedsReview && !e.Processed {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

func (m *Memory) FirstUnreviewed(_ context.Context, owner int64) (*model.InboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.unreviewed(owner)
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	out := *rows[0].entry
	return &out, nil
}

func (m *Memory) CountUnreviewed(_ context.Context, owner int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.unreviewed(owner)), nil
}

func (m *Memory) Push(_ context.Context, e *model.UndoEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.undoSeq++
	row := *e
	row.ID = m.undoSeq
	row.CreatedAt = stamp(row.CreatedAt)
	if e.Snapshot != nil {
		row.Snapshot = e.Snapshot.Clone()
	}
	m.undo = append(m.undo, &row)
	return row.ID, nil
}

func (m *Memory) Trim(_ context.Context, owner int64, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// m.undo 按 ID 递增，从尾部往前数 keep 条
	kept := 0
	var evicted int64
	out := make([]*model.UndoEntry, 0, len(m.undo))
	for i := len(m.undo) - 1; i >= 0; i-- {
		e := m.undo[i]
		if e.Owner == owner {
			if kept >= keep {
				evicted++
				continue
			}
			kept++
		}
		out = append(out, e)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	m.undo = out
	return evicted, nil
}

func (m *Memory) Latest(_ context.Context, owner int64) (*model.UndoEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.undo) - 1; i >= 0; i-- {
		if e := m.undo[i]; e.Owner == owner {
			out := *e
			if e.Snapshot != nil {
				out.Snapshot = e.Snapshot.Clone()
			}
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) DeleteUndo(_ context.Context, owner int64, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.undo {
		if e.ID == id && e.Owner == owner {
			m.undo = append(m.undo[:i], m.undo[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) CountUndo(_ context.Context, owner int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.undo {
		if e.Owner == owner {
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetSetting(_ context.Context, owner int64, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.settings[owner][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) SetSetting(_ context.Context, owner int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settings[owner] == nil {
		m.settings[owner] = map[string]string{}
	}
	m.settings[owner][key] = value
	return nil
}

func (m *Memory) AllSettings(_ context.Context, owner int64) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.settings[owner]))
	for k, v := range m.settings[owner] {
		out[k] = v
	}
	return out, nil
}
