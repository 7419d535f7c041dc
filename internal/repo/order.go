package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order := models.Order{}
	if err := r.DB.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus applies a conditional transition from one of the
// allowed source statuses.
func (r *GormRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, from []string, to string) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// CancelOrder flips an unshipped order to cancelled and compensates the
// committed stock decrement from its item snapshots.
func (r *GormRepo) CancelOrder(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	var order models.Order

	txErr := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").
			Where("id = ? AND user_id = ?", id, userID).
			First(&order).Error; err != nil {
			return err
		}

		cancellable := []string{models.OrderStatusPending, models.OrderStatusProcessing}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status IN ?", id, cancellable).
			Updates(map[string]any{"status": models.OrderStatusCancelled, "updated_at": now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		for _, item := range order.Items {
			if err := incrementStockTx(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		order.Status = models.OrderStatusCancelled
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return &order, nil
}
