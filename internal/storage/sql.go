package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVEntry is one stored value in the SQL backends.
type KVEntry struct {
	Origin    string `gorm:"primaryKey;size:255"`
	Key       string `gorm:"primaryKey;size:255"`
	Value     []byte
	UpdatedAt time.Time
}

// TableName overrides the default pluralized name.
func (KVEntry) TableName() string { return "ledger_kv" }

// SQLStore keeps values in the ledger_kv table (sqlite or postgres).
type SQLStore struct {
	db     *gorm.DB
	origin string
}

// NewSQLStore scopes db to origin. Call Migrate once per database before use.
func NewSQLStore(db *gorm.DB, origin string) *SQLStore {
	return &SQLStore{db: db, origin: Namespace(origin)}
}

// Migrate creates the ledger_kv table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return fmt.Errorf("migrate ledger_kv: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry KVEntry
	err := s.db.WithContext(ctx).
		Where("origin = ? AND key = ?", s.origin, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	entry := KVEntry{Origin: s.origin, Key: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "origin"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).
		Where("origin = ? AND key = ?", s.origin, key).
		Delete(&KVEntry{}).Error
}

// Ping checks the underlying database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
