package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) CreateIntent(ctx context.Context, intent *models.CheckoutIntent) (*models.CheckoutIntent, error) {
	ts := now()
	intent.CreatedAt = ts
	intent.UpdatedAt = ts
	if err := r.DB.WithContext(ctx).Create(intent).Error; err != nil {
		return nil, err
	}
	return intent, nil
}

func (r *GormRepo) GetIntent(ctx context.Context, id uuid.UUID) (*models.CheckoutIntent, error) {
	intent := models.CheckoutIntent{}
	if err := r.DB.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// Reserve flips the intent to reserved and decrements stock for every
// line in one transaction. Either every line is decremented or none is:
// the first conditional update that matches no row rolls the whole
// transaction back with ErrStockConflict.
func (r *GormRepo) Reserve(ctx context.Context, intent *models.CheckoutIntent) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CheckoutIntent{}).
			Where("id = ? AND status = ?", intent.ID, models.IntentStatusPending).
			Updates(map[string]any{
				"status":     models.IntentStatusReserved,
				"updated_at": now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		for _, line := range sortedByProduct(intent.Lines) {
			if err := decrementStockTx(tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		intent.Status = models.IntentStatusReserved
		return nil
	})
}

// MarkAwaitingPayment records the gateway session on a reserved intent.
func (r *GormRepo) MarkAwaitingPayment(ctx context.Context, intentID uuid.UUID, sessionRef string) error {
	res := r.DB.WithContext(ctx).Model(&models.CheckoutIntent{}).
		Where("id = ? AND status = ?", intentID, models.IntentStatusReserved).
		Updates(map[string]any{
			"status":      models.IntentStatusAwaitingPayment,
			"session_ref": sessionRef,
			"updated_at":  now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Release moves the intent to a terminal non-confirmed status and gives
// the reserved stock back. The status flip is conditional, so calling
// Release twice for the same intent restores stock exactly once; an
// intent that never reached reserved releases nothing.
func (r *GormRepo) Release(ctx context.Context, intentID uuid.UUID, toStatus, reason string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		holding := []string{models.IntentStatusReserved, models.IntentStatusAwaitingPayment}
		res := tx.Model(&models.CheckoutIntent{}).
			Where("id = ? AND status IN ?", intentID, holding).
			Updates(map[string]any{
				"status":     toStatus,
				"reason":     reason,
				"updated_at": now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			var lines []models.CheckoutLine
			if err := tx.Where("intent_id = ?", intentID).Find(&lines).Error; err != nil {
				return err
			}
			for _, line := range sortedByProduct(lines) {
				if err := incrementStockTx(tx, line.ProductID, line.Quantity); err != nil {
					return err
				}
			}
			return nil
		}

		// Not holding stock: a pending intent is just closed, anything
		// already terminal stays as it is.
		return tx.Model(&models.CheckoutIntent{}).
			Where("id = ? AND status = ?", intentID, models.IntentStatusPending).
			Updates(map[string]any{
				"status":     toStatus,
				"reason":     reason,
				"updated_at": now(),
			}).Error
	})
}

// Confirm finalizes a paid intent: one conditional flip to confirmed,
// one order created from the snapshot lines, cart lines marked checked
// out. A duplicate confirmation finds the flip already done and returns
// the existing order with created=false.
func (r *GormRepo) Confirm(ctx context.Context, intentID uuid.UUID) (*models.Order, bool, error) {
	var (
		order   models.Order
		created bool
	)

	txErr := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		intent := models.CheckoutIntent{}
		if err := tx.Preload("Lines").Where("id = ?", intentID).First(&intent).Error; err != nil {
			return err
		}

		// A confirmation can arrive while the intent is still reserved:
		// the session call timed out on our side but went through on the
		// gateway's. The idempotency key reconciles that case here.
		confirmable := []string{models.IntentStatusReserved, models.IntentStatusAwaitingPayment}
		res := tx.Model(&models.CheckoutIntent{}).
			Where("id = ? AND status IN ?", intentID, confirmable).
			Updates(map[string]any{
				"status":     models.IntentStatusConfirmed,
				"updated_at": now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if intent.Status == models.IntentStatusConfirmed {
				if err := tx.Preload("Items").Where("intent_id = ?", intentID).First(&order).Error; err != nil {
					return err
				}
				return nil
			}
			return ErrInvalidTransition
		}

		ts := now()
		order = models.Order{
			ID:        uuid.New(),
			UserID:    intent.UserID,
			IntentID:  intent.ID,
			Total:     intent.Total,
			Status:    models.OrderStatusProcessing,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		for _, line := range intent.Lines {
			order.Items = append(order.Items, models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Name:      line.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice.Sub(line.Discount),
				LineTotal: line.LineTotal(),
			})
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		productIDs := make([]uuid.UUID, 0, len(intent.Lines))
		for _, line := range intent.Lines {
			productIDs = append(productIDs, line.ProductID)
		}
		if err := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND product_id IN ? AND checked_out = ?", intent.UserID, productIDs, false).
			Updates(map[string]any{"checked_out": true, "updated_at": ts}).Error; err != nil {
			return err
		}

		created = true
		return nil
	})
	if txErr != nil {
		return nil, false, txErr
	}
	return &order, created, nil
}

// ResolveSession maps a gateway session reference back to its intent.
func (r *GormRepo) ResolveSession(ctx context.Context, sessionRef string) (*models.CheckoutIntent, error) {
	intent := models.CheckoutIntent{}
	if err := r.DB.WithContext(ctx).Where("session_ref = ?", sessionRef).First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

// ListExpired returns intents still holding stock past their deadline.
func (r *GormRepo) ListExpired(ctx context.Context, deadline time.Time, limit int) ([]models.CheckoutIntent, error) {
	holding := []string{models.IntentStatusReserved, models.IntentStatusAwaitingPayment}
	var intents []models.CheckoutIntent
	err := r.DB.WithContext(ctx).
		Where("status IN ? AND expires_at < ?", holding, deadline).
		Order("expires_at ASC").
		Limit(limit).
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

// IsNotFound reports whether err is the store's missing-row error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
