package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVEntry is one persisted key. Value is stored as text, not jsonb, so a
// corrupt value written by some other client can still be read back and
// discarded by the caller.
type KVEntry struct {
	Key       string `gorm:"primaryKey;size:200"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (KVEntry) TableName() string { return "kv_entries" }

type KVRepo struct{ db *gorm.DB }

func NewKVRepo(db *gorm.DB) *KVRepo { return &KVRepo{db: db} }

func (r *KVRepo) Migrate() error {
	return r.db.AutoMigrate(&KVEntry{})
}

func (r *KVRepo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e KVEntry
	if err := r.db.WithContext(ctx).First(&e, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(e.Value), true, nil
}

func (r *KVRepo) Set(ctx context.Context, key string, value []byte) error {
	e := KVEntry{Key: key, Value: string(value), UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}
