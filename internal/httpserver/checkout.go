package httpserver

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/internal/service"
)

type CheckoutHTTP struct {
	Svc           *service.CheckoutService
	WebhookSecret string
}

// Checkout runs the whole begin/reserve/initiate sequence and hands the
// gateway redirect URL back to the client.
func (h *CheckoutHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.begin")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("checkout_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req struct {
		CouponCode string `json:"coupon_code"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	intent, session, err := h.Svc.Checkout(ctx, userID, req.CouponCode)
	if err != nil {
		l.Warn("checkout_error", "error", err)
		return mapError(err)
	}

	l.Info("checkout_success", "intent_id", intent.ID, "session_ref", session.Ref)
	return c.JSON(http.StatusOK, map[string]any{
		"intent_id":   intent.ID,
		"total":       intent.Total,
		"expires_at":  intent.ExpiresAt,
		"payment_url": session.URL,
	})
}

func (h *CheckoutHTTP) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.cancel")

	userID, err := GetID(c)
	if err != nil {
		l.Warn("cancel_checkout_error", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	intentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("cancel_checkout_error", "status", 400, "reason", "bad id", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid checkout id")
	}

	if err := h.Svc.CancelCheckout(ctx, intentID, userID); err != nil {
		l.Warn("cancel_checkout_error", "error", err)
		return mapError(err)
	}

	l.Info("cancel_checkout_success", "intent_id", intentID)
	return c.NoContent(http.StatusNoContent)
}

// Webhook receives gateway callbacks. The payload signature is checked
// before anything is trusted; unknown event types are acknowledged and
// dropped so the gateway stops re-sending them.
func (h *CheckoutHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.webhook")

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		l.Warn("webhook_error", "status", 400, "reason", "unreadable body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	outcome, err := payment.VerifyWebhook(payload, c.Request().Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		l.Warn("webhook_error", "status", 400, "reason", "verification failed", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid signature")
	}
	if outcome == nil {
		return c.NoContent(http.StatusOK)
	}

	order, err := h.Svc.HandleGatewayOutcome(ctx, *outcome)
	if err != nil {
		l.Error("webhook_error", "key", outcome.IdempotencyKey, "error", err)
		return mapError(err)
	}

	if order != nil {
		l.Info("webhook_confirmed", "order_id", order.ID, "key", outcome.IdempotencyKey)
		return c.JSON(http.StatusOK, map[string]any{"order_id": order.ID})
	}
	l.Info("webhook_aborted", "key", outcome.IdempotencyKey)
	return c.NoContent(http.StatusOK)
}
