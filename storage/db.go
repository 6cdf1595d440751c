package storage

import (
	"context"
	"errors"

	"entity-links/models"
	"entity-links/tenant"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type txKey struct{}

// Store wraps the database handle shared by all repositories and carries
// open transactions through the context.
type Store struct {
	db *gorm.DB
}

// Open connects to PostgreSQL.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates all tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.LinkingRule{}, &models.InstanceAuthorityLink{}, &models.Authority{})
}

// Transaction runs fn in a database transaction. Repository calls made with
// the context passed to fn join the transaction. Nested calls reuse the
// outer transaction.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// scoped returns a query restricted to the tenant of ctx.
func (s *Store) scoped(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Where("tenant_id = ?", tenant.From(ctx))
}

func requireTenant(ctx context.Context) (string, error) {
	id := tenant.From(ctx)
	if id == "" {
		return "", errors.New("no tenant in context")
	}
	return id, nil
}
