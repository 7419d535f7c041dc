package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.DB.WithContext(ctx).
		Where("user_id = ? AND checked_out = ?", userID, false).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddToCart upserts the (user, product) line: a conditional increment
// first, a create only when no live line matched.
func (r *GormRepo) AddToCart(ctx context.Context, item *models.CartItem) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND product_id = ? AND checked_out = ?", item.UserID, item.ProductID, false).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity + ?", item.Quantity),
				"updated_at": now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("user_id = ? AND product_id = ? AND checked_out = ?", item.UserID, item.ProductID, false).
				First(item).Error
		}

		ts := now()
		item.CreatedAt = ts
		item.UpdatedAt = ts
		return tx.Create(item).Error
	})
}

// DeleteOneFromCart decrements the line by one and removes it when it
// reaches zero. Returns whether the line was deleted outright.
func (r *GormRepo) DeleteOneFromCart(ctx context.Context, productID, userID uuid.UUID) (bool, *models.CartItem, error) {
	var item models.CartItem
	deleted := false

	if err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND product_id = ? AND checked_out = ? AND quantity > 1", userID, productID, false).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity - 1"),
				"updated_at": now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("user_id = ? AND product_id = ? AND checked_out = ?", userID, productID, false).
				First(&item).Error
		}

		if err := tx.Where("user_id = ? AND product_id = ? AND checked_out = ?", userID, productID, false).
			First(&item).Error; err != nil {
			return err
		}
		if err := tx.Delete(&item).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	}); err != nil {
		return false, nil, err
	}
	return deleted, &item, nil
}

func (r *GormRepo) DeleteAllFromCart(ctx context.Context, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).
		Where("user_id = ? AND checked_out = ?", userID, false).
		Delete(&models.CartItem{}).Error
}
