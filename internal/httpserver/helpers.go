package httpserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/internal/service"
)

// GetID returns the authenticated user id placed in the context by the
// JWT middleware.
func GetID(c echo.Context) (uuid.UUID, error) {
	v := c.Get("user_id")
	s, ok := v.(string)
	if !ok || s == "" {
		return uuid.Nil, errors.New("unauthorized")
	}

	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New("unauthorized")
	}

	return userID, nil
}

// mapError translates the service taxonomy into HTTP status codes.
// Validation-class failures keep their message; everything else gets a
// generic one so internals never leak.
func mapError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrCouponInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrStockConflict),
		errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case payment.IsDeclined(err):
		return echo.NewHTTPError(http.StatusPaymentRequired, "payment declined")
	case payment.IsTransient(err):
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
