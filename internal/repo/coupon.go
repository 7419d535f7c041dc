package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	coupon := models.Coupon{}
	if err := r.DB.WithContext(ctx).Where("code = ?", code).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *GormRepo) GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	coupon := models.Coupon{}
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *GormRepo) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	var coupons []models.Coupon
	if err := r.DB.WithContext(ctx).Order("created_at DESC").Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

func (r *GormRepo) CreateCoupon(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	ts := now()
	coupon.CreatedAt = ts
	coupon.UpdatedAt = ts
	if err := r.DB.WithContext(ctx).Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

func (r *GormRepo) SaveCoupon(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	coupon.UpdatedAt = now()
	if err := r.DB.WithContext(ctx).Save(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

func (r *GormRepo) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Delete(&models.Coupon{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
