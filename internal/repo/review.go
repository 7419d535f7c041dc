package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

// UpsertReview writes the (user, product) review and recomputes the
// product's rating in the same transaction. The recompute is a single
// UPDATE over a SELECT AVG, so concurrent review writes for one product
// serialize on the product row and the last one sees every review.
func (r *GormRepo) UpsertReview(ctx context.Context, review *models.Review) (*models.Review, error) {
	txErr := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := models.Review{}
		err := tx.Where("user_id = ? AND product_id = ?", review.UserID, review.ProductID).
			First(&existing).Error
		switch {
		case err == nil:
			existing.Rating = review.Rating
			existing.Comment = review.Comment
			existing.UpdatedAt = now()
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			*review = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			ts := now()
			review.CreatedAt = ts
			review.UpdatedAt = ts
			if err := tx.Create(review).Error; err != nil {
				return err
			}
		default:
			return err
		}

		return recomputeRatingTx(tx, review.ProductID)
	})
	if txErr != nil {
		return nil, txErr
	}
	return review, nil
}

func recomputeRatingTx(tx *gorm.DB, productID uuid.UUID) error {
	return tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"rating": gorm.Expr(
				"(SELECT COALESCE(AVG(rating), 0) FROM reviews WHERE product_id = ?)",
				productID,
			),
			"updated_at": now(),
		}).Error
}

func (r *GormRepo) ListReviews(ctx context.Context, productID uuid.UUID, limit, offset int) ([]models.Review, error) {
	var reviews []models.Review
	err := r.DB.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}
