package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func productRating(t *testing.T, env *testEnv, id uuid.UUID) float64 {
	t.Helper()

	var rating float64
	require.NoError(t, env.DB.Table("products").
		Select("rating").
		Where("id = ?", id).
		Scan(&rating).Error)
	return rating
}

func TestSubmitReviewRecomputesRating(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := &ReviewService{Repo: env.Repo}
	ctx := context.Background()

	product := env.createProduct(t, "kettle", "40", "0", 10)

	_, err := svc.SubmitReview(ctx, uuid.New(), product.ID, 4, "fine")
	require.NoError(t, err)
	_, err = svc.SubmitReview(ctx, uuid.New(), product.ID, 5, "great")
	require.NoError(t, err)
	require.InDelta(t, 4.5, productRating(t, env, product.ID), 0.001)

	_, err = svc.SubmitReview(ctx, uuid.New(), product.ID, 3, "meh")
	require.NoError(t, err)
	require.InDelta(t, 4.0, productRating(t, env, product.ID), 0.001)
}

func TestSubmitReviewReplacesOwn(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := &ReviewService{Repo: env.Repo}
	ctx := context.Background()
	userID := uuid.New()

	product := env.createProduct(t, "kettle", "40", "0", 10)

	_, err := svc.SubmitReview(ctx, userID, product.ID, 2, "broke fast")
	require.NoError(t, err)

	review, err := svc.SubmitReview(ctx, userID, product.ID, 5, "replacement was great")
	require.NoError(t, err)
	require.Equal(t, 5, review.Rating)

	reviews, err := svc.ListReviews(ctx, product.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, "replacement was great", reviews[0].Comment)
	require.InDelta(t, 5.0, productRating(t, env, product.ID), 0.001)
}

func TestSubmitReviewValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := &ReviewService{Repo: env.Repo}
	ctx := context.Background()

	product := env.createProduct(t, "kettle", "40", "0", 10)

	_, err := svc.SubmitReview(ctx, uuid.New(), product.ID, 6, "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SubmitReview(ctx, uuid.New(), uuid.New(), 4, "")
	require.ErrorIs(t, err, ErrNotFound)
}
