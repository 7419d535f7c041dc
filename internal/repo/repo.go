package repo

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrStockConflict means a conditional stock decrement matched no row:
	// either the stock was consumed by a concurrent reservation or the
	// product disappeared. Nothing is mutated when it is returned.
	ErrStockConflict = errors.New("stock conflict")

	// ErrInvalidTransition means a conditional status update matched no row.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type GormRepo struct {
	DB *gorm.DB
}

func now() time.Time {
	return time.Now().UTC()
}
