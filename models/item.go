package models

import (
	"context"
	"time"

	"github.com/agrifocus/mandi_backend/config"
	"github.com/agrifocus/mandi_backend/utils"
	"gorm.io/gorm"
)

type Item struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name" binding:"required"`
	Unit      Unit      `gorm:"type:enum('KGS','CRATE','BOX');not null;default:'KGS'" json:"unit" binding:"required"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewItem struct {
	Name string `json:"name" binding:"required"`
	Unit Unit   `json:"unit" binding:"required,oneof=KGS CRATE BOX"`
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {
	db := config.GetDB()
	item := Item{
		Name: input.Name,
		Unit: input.Unit,
	}
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func GetItem(ctx context.Context, id int) (*Item, error) {
	db := config.GetDB()
	var item Item
	if err := db.WithContext(ctx).First(&item, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &item, nil
}

func GetItems(ctx context.Context, search string) ([]Item, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Order("name")
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%").Limit(config.SearchLimit)
	}
	var items []Item
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetItemUnit is the item-catalog collaborator used by the line calculator.
func GetItemUnit(tx *gorm.DB, itemId int) (Unit, error) {
	var item Item
	if err := tx.First(&item, itemId).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", utils.ErrorRecordNotFound
		}
		return "", err
	}
	return item.Unit, nil
}

// GetItemUnits batches unit lookups for one invoice's lines.
func GetItemUnits(tx *gorm.DB, itemIds []int) (map[int]Unit, error) {
	units := make(map[int]Unit, len(itemIds))
	if len(itemIds) == 0 {
		return units, nil
	}
	var items []Item
	if err := tx.Where("id IN ?", itemIds).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		units[item.ID] = item.Unit
	}
	return units, nil
}
