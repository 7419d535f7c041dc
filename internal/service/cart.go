package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

type CartService struct {
	Repo *repo.GormRepo
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	return s.Repo.GetCart(ctx, userID)
}

// AddToCart upserts a line. Stock is not checked here: availability is
// enforced when the cart is committed at checkout, not at add time.
func (s *CartService) AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity uint) (*models.CartItem, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product id required", ErrValidation)
	}
	if quantity == 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	product, err := s.Repo.GetProduct(ctx, productID)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, product.Name)
	}

	item := &models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}
	if err := s.Repo.AddToCart(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CartService) DeleteOneFromCart(ctx context.Context, userID, productID uuid.UUID) (bool, *models.CartItem, error) {
	if productID == uuid.Nil {
		return false, nil, fmt.Errorf("%w: product id required", ErrValidation)
	}

	deleted, item, err := s.Repo.DeleteOneFromCart(ctx, productID, userID)
	if repo.IsNotFound(err) {
		return false, nil, fmt.Errorf("%w: cart line for product %s", ErrNotFound, productID)
	}
	return deleted, item, err
}

func (s *CartService) DeleteAllFromCart(ctx context.Context, userID uuid.UUID) error {
	return s.Repo.DeleteAllFromCart(ctx, userID)
}
