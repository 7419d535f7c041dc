package httpserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/service"
)

type CouponHTTP struct {
	Svc *service.CouponService
}

func (h *CouponHTTP) ListCoupons(c echo.Context) error {
	coupons, err := h.Svc.ListCoupons(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, coupons)
}

func (h *CouponHTTP) CreateCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "coupon.create")

	var req struct {
		Code      string          `json:"code"`
		Amount    decimal.Decimal `json:"amount"`
		ValidFrom time.Time       `json:"valid_from"`
		ValidTo   time.Time       `json:"valid_to"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_coupon_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	coupon, err := h.Svc.CreateCoupon(ctx, service.CreateCouponInput{
		Code:      req.Code,
		Amount:    req.Amount,
		ValidFrom: req.ValidFrom,
		ValidTo:   req.ValidTo,
	})
	if err != nil {
		l.Warn("create_coupon_error", "error", err)
		return mapError(err)
	}

	l.Info("create_coupon_success", "code", coupon.Code)
	return c.JSON(http.StatusCreated, coupon)
}

func (h *CouponHTTP) DeactivateCoupon(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid coupon id")
	}

	coupon, err := h.Svc.Deactivate(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, coupon)
}

func (h *CouponHTTP) DeleteCoupon(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid coupon id")
	}
	if err := h.Svc.DeleteCoupon(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
