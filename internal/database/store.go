package database

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-reservation/internal/repository"
)

// Store is the PostgreSQL-backed repository.Store
type Store struct {
	*CatalogRepository
	*InventoryRepository
	*ReservationRepository
	*PromotionRepository
	*AuditRepository
}

var _ repository.Store = (*Store)(nil)

// NewStore builds every repository over one connection pool
func NewStore(db *sqlx.DB, lockTimeout time.Duration) *Store {
	return &Store{
		CatalogRepository:     NewCatalogRepository(db),
		InventoryRepository:   NewInventoryRepository(db, lockTimeout),
		ReservationRepository: NewReservationRepository(db),
		PromotionRepository:   NewPromotionRepository(db),
		AuditRepository:       NewAuditRepository(db),
	}
}
