package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
)

type CouponService struct {
	Repo *repo.GormRepo
}

type CreateCouponInput struct {
	Code      string
	Amount    decimal.Decimal
	ValidFrom time.Time
	ValidTo   time.Time
}

func (s *CouponService) CreateCoupon(ctx context.Context, in CreateCouponInput) (*models.Coupon, error) {
	if in.Code == "" {
		return nil, fmt.Errorf("%w: code required", ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}
	if !in.ValidTo.After(in.ValidFrom) {
		return nil, fmt.Errorf("%w: validity window is empty", ErrValidation)
	}

	coupon := &models.Coupon{
		Code:      in.Code,
		Amount:    in.Amount,
		ValidFrom: in.ValidFrom.UTC(),
		ValidTo:   in.ValidTo.UTC(),
		IsActive:  true,
	}
	return s.Repo.CreateCoupon(ctx, coupon)
}

func (s *CouponService) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	return s.Repo.ListCoupons(ctx)
}

// Deactivate ends a coupon's lifecycle without deleting its history.
func (s *CouponService) Deactivate(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.Repo.GetCoupon(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: coupon %s", ErrNotFound, id)
		}
		return nil, err
	}
	coupon.IsActive = false
	return s.Repo.SaveCoupon(ctx, coupon)
}

func (s *CouponService) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	err := s.Repo.DeleteCoupon(ctx, id)
	if repo.IsNotFound(err) {
		return fmt.Errorf("%w: coupon %s", ErrNotFound, id)
	}
	return err
}
