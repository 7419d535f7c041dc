package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

type ReviewService struct {
	Repo *repo.GormRepo
}

// SubmitReview creates or replaces the caller's review for a product.
// The product rating is recomputed atomically with the write.
func (s *ReviewService) SubmitReview(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*models.Review, error) {
	if rating < 0 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 0 and 5", ErrValidation)
	}

	_, err := s.Repo.GetProduct(ctx, productID)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}

	review := &models.Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
	}
	return s.Repo.UpsertReview(ctx, review)
}

func (s *ReviewService) ListReviews(ctx context.Context, productID uuid.UUID, limit, offset int) ([]models.Review, error) {
	return s.Repo.ListReviews(ctx, productID, limit, offset)
}
