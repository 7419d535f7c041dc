package service

import "errors"

var (
	ErrValidation = errors.New("validation") // 400
	ErrNotFound   = errors.New("not found")  // 404
	ErrConflict   = errors.New("conflict")   // 409

	// Checkout taxonomy. All of these are terminal for the attempt that
	// raised them; only ErrStockConflict is retried at the workflow
	// boundary, because a fresh cart snapshot may still succeed.
	ErrEmptyCart          = errors.New("empty cart")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrStockConflict      = errors.New("stock conflict")
	ErrCouponInvalid      = errors.New("coupon invalid")
)
