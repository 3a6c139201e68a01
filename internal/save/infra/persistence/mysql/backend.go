// Package mysql 通过 GORM 把存档对象保存在 MySQL 表 save_objects 中。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"SaveKeeper/internal/save/port"
)

// SaveObject 是一行存档对象。
type SaveObject struct {
	Slot      string    `gorm:"column:slot;type:varchar(191);primaryKey;not null;comment:存档槽"`
	Name      string    `gorm:"column:name;type:varchar(191);primaryKey;not null;comment:对象名"`
	Data      []byte    `gorm:"column:data;type:longblob;not null;comment:JSON 内容"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:datetime(3);not null"`
}

func (m *SaveObject) TableName() string {
	return "save_objects"
}

type Backend struct {
	db *gorm.DB
}

var _ port.Backend = (*Backend)(nil)

// New 自动迁移表结构。
func New(db *gorm.DB) (*Backend, error) {
	if err := db.AutoMigrate(&SaveObject{}); err != nil {
		return nil, fmt.Errorf("migrate save_objects: %w", err)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Read(ctx context.Context, slot, name string) ([]byte, error) {
	var obj SaveObject
	err := b.db.WithContext(ctx).Where("slot = ? AND name = ?", slot, name).First(&obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", slot, name, port.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return obj.Data, nil
}

func (b *Backend) Write(ctx context.Context, slot, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	obj := SaveObject{Slot: slot, Name: name, Data: data, UpdatedAt: time.Now().UTC()}
	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&obj).Error
}

func (b *Backend) Remove(ctx context.Context, slot, name string) error {
	return b.db.WithContext(ctx).Where("slot = ? AND name = ?", slot, name).Delete(&SaveObject{}).Error
}

func (b *Backend) List(ctx context.Context, slot string) ([]string, error) {
	out := []string{}
	err := b.db.WithContext(ctx).Model(&SaveObject{}).Where("slot = ?", slot).Order("name").Pluck("name", &out).Error
	return out, err
}

func (b *Backend) Slots(ctx context.Context) ([]string, error) {
	out := []string{}
	err := b.db.WithContext(ctx).Model(&SaveObject{}).Distinct("slot").Order("slot").Pluck("slot", &out).Error
	return out, err
}

func (b *Backend) RemoveSlot(ctx context.Context, slot string) error {
	return b.db.WithContext(ctx).Where("slot = ?", slot).Delete(&SaveObject{}).Error
}

func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
