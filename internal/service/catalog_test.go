package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Standing Lamp":        "standing-lamp",
		"  Déjà   Vu!  ":       "d-j-vu",
		"USB-C Cable (2m)":     "usb-c-cable-2m",
		"ALLCAPS":              "allcaps",
		"42":                   "42",
		"---":                  "",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestCreateProductValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := &CatalogService{Repo: env.Repo}
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, CreateProductInput{Name: "", Price: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "lamp", Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name:     "lamp",
		Price:    decimal.NewFromInt(10),
		Discount: decimal.NewFromInt(11),
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name:  "lamp",
		Price: decimal.NewFromInt(10),
		Stock: -1,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateAndPatchProduct(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := &CatalogService{Repo: env.Repo}
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:        "Standing Lamp",
		Description: "warm light",
		Price:       decimal.RequireFromString("59.99"),
		Stock:       4,
	})
	require.NoError(t, err)
	require.Equal(t, "standing-lamp", product.Slug)
	require.True(t, product.IsActive)

	newName := "Floor Lamp"
	newStock := 7
	inactive := false
	patched, err := svc.PatchProduct(ctx, product.ID, PatchProductInput{
		Name:     &newName,
		Stock:    &newStock,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	require.Equal(t, "Floor Lamp", patched.Name)
	require.Equal(t, "floor-lamp", patched.Slug)
	require.Equal(t, 7, patched.Stock)
	require.False(t, patched.IsActive)

	badDiscount := decimal.RequireFromString("100")
	_, err = svc.PatchProduct(ctx, product.ID, PatchProductInput{Discount: &badDiscount})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.PatchProduct(ctx, uuid.New(), PatchProductInput{Name: &newName})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProductCascades(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := &CatalogService{Repo: env.Repo}
	ctx := context.Background()
	userID := uuid.New()

	product := env.createProduct(t, "lamp", "10", "0", 5)
	env.addToCart(t, userID, product.ID, 1)
	require.NoError(t, env.DB.Create(&models.Review{
		UserID:    userID,
		ProductID: product.ID,
		Rating:    4,
	}).Error)

	require.NoError(t, svc.DeleteProduct(ctx, product.ID))

	var carts, reviews int64
	require.NoError(t, env.DB.Model(&models.CartItem{}).Where("product_id = ?", product.ID).Count(&carts).Error)
	require.NoError(t, env.DB.Model(&models.Review{}).Where("product_id = ?", product.ID).Count(&reviews).Error)
	require.Zero(t, carts)
	require.Zero(t, reviews)

	require.ErrorIs(t, svc.DeleteProduct(ctx, product.ID), ErrNotFound)
}

func TestCategories(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := &CatalogService{Repo: env.Repo}
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, "")
	require.ErrorIs(t, err, ErrValidation)

	cat, err := svc.CreateCategory(ctx, "Lighting")
	require.NoError(t, err)
	require.Equal(t, "lighting", cat.Slug)

	product := env.createProduct(t, "lamp", "10", "0", 5)
	require.NoError(t, env.DB.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("category_id", cat.ID).Error)

	require.NoError(t, svc.DeleteCategory(ctx, cat.ID))

	// Products survive their category; the reference is cleared.
	var got models.Product
	require.NoError(t, env.DB.Where("id = ?", product.ID).First(&got).Error)
	require.Nil(t, got.CategoryID)
}
