package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres 把各表仓储组合成一个 Store
type Postgres struct {
	*ItemRepository
	*InboxRepository
	*UndoRepository
	*SettingsRepository
}

func NewPostgres(db *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{
		ItemRepository:     NewItemRepository(db, logger),
		InboxRepository:    NewInboxRepository(db, logger),
		UndoRepository:     NewUndoRepository(db, logger),
		SettingsRepository: NewSettingsRepository(db, logger),
	}
}

var _ Store = (*Postgres)(nil)
