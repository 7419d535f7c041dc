package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/payment"
)

func newCheckoutService(env *testEnv, gw payment.Gateway) *CheckoutService {
	return &CheckoutService{
		Repo:        env.Repo,
		Gateway:     gw,
		Currency:    "usd",
		SuccessURL:  "https://shop.example.test/success",
		CancelURL:   "https://shop.example.test/cancel",
		MaxAttempts: 1,
	}
}

func TestBeginCheckoutEmptyCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})

	_, err := svc.BeginCheckout(context.Background(), uuid.New(), "")
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestBeginCheckoutSnapshotsPrices(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()

	product := env.createProduct(t, "lamp", "100", "20", 10)
	env.addToCart(t, userID, product.ID, 2)

	intent, err := svc.BeginCheckout(context.Background(), userID, "")
	require.NoError(t, err)
	require.Equal(t, models.IntentStatusPending, intent.Status)
	require.True(t, intent.Total.Equal(decimal.RequireFromString("160")),
		"want 160, got %s", intent.Total)
	require.Len(t, intent.Lines, 1)
	require.True(t, intent.Lines[0].UnitPrice.Equal(product.Price))
	require.True(t, intent.Lines[0].Discount.Equal(product.Discount))

	// A later price change must not move the snapshotted total.
	require.NoError(t, env.DB.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("price", decimal.RequireFromString("999")).Error)

	got, err := env.Repo.GetIntent(context.Background(), intent.ID)
	require.NoError(t, err)
	require.True(t, got.Total.Equal(decimal.RequireFromString("160")))
}

func TestBeginCheckoutInsufficientStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()

	product := env.createProduct(t, "lamp", "100", "0", 1)
	env.addToCart(t, userID, product.ID, 3)

	_, err := svc.BeginCheckout(context.Background(), userID, "")
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestBeginCheckoutInactiveProduct(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()

	product := env.createProduct(t, "lamp", "100", "0", 5)
	env.addToCart(t, userID, product.ID, 1)
	require.NoError(t, env.DB.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("is_active", false).Error)

	_, err := svc.BeginCheckout(context.Background(), userID, "")
	require.ErrorIs(t, err, ErrProductUnavailable)
}

func TestBeginCheckoutCoupon(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()

	product := env.createProduct(t, "lamp", "100", "0", 5)
	env.addToCart(t, userID, product.ID, 1)

	now := time.Now().UTC()
	require.NoError(t, env.DB.Create(&models.Coupon{
		Code:      "TEN-OFF",
		Amount:    decimal.RequireFromString("10"),
		ValidFrom: now.Add(-time.Hour),
		ValidTo:   now.Add(time.Hour),
		IsActive:  true,
	}).Error)
	require.NoError(t, env.DB.Create(&models.Coupon{
		Code:      "EXPIRED",
		Amount:    decimal.RequireFromString("10"),
		ValidFrom: now.Add(-2 * time.Hour),
		ValidTo:   now.Add(-time.Hour),
		IsActive:  true,
	}).Error)
	require.NoError(t, env.DB.Create(&models.Coupon{
		Code:      "HUGE",
		Amount:    decimal.RequireFromString("1000"),
		ValidFrom: now.Add(-time.Hour),
		ValidTo:   now.Add(time.Hour),
		IsActive:  true,
	}).Error)

	intent, err := svc.BeginCheckout(context.Background(), userID, "TEN-OFF")
	require.NoError(t, err)
	require.True(t, intent.Total.Equal(decimal.RequireFromString("90")))

	_, err = svc.BeginCheckout(context.Background(), userID, "EXPIRED")
	require.ErrorIs(t, err, ErrCouponInvalid)

	_, err = svc.BeginCheckout(context.Background(), userID, "NOPE")
	require.ErrorIs(t, err, ErrCouponInvalid)

	// A coupon larger than the cart floors the total at zero.
	intent, err = svc.BeginCheckout(context.Background(), userID, "HUGE")
	require.NoError(t, err)
	require.True(t, intent.Total.IsZero())
}

func TestReserveAndCancelRoundTrip(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "50", "0", 5)
	env.addToCart(t, userID, product.ID, 3)

	intent, err := svc.BeginCheckout(ctx, userID, "")
	require.NoError(t, err)

	require.NoError(t, svc.ReserveStock(ctx, intent))
	require.Equal(t, 2, env.productStock(t, product.ID))
	require.Equal(t, models.IntentStatusReserved, env.intentStatus(t, intent.ID))

	require.NoError(t, svc.CancelCheckout(ctx, intent.ID, userID))
	require.Equal(t, 5, env.productStock(t, product.ID))
	require.Equal(t, models.IntentStatusAborted, env.intentStatus(t, intent.ID))

	// A second abort must not restore stock again.
	require.NoError(t, svc.AbortCheckout(ctx, intent.ID, "again"))
	require.Equal(t, 5, env.productStock(t, product.ID))
}

func TestCancelCheckoutOwnership(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "50", "0", 5)
	env.addToCart(t, userID, product.ID, 1)

	intent, err := svc.BeginCheckout(ctx, userID, "")
	require.NoError(t, err)

	err = svc.CancelCheckout(ctx, intent.ID, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentReservationOneWins(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "50", "0", 5)

	userA, userB := uuid.New(), uuid.New()
	env.addToCart(t, userA, product.ID, 3)
	env.addToCart(t, userB, product.ID, 3)

	// Both buyers snapshot the same stock level before either reserves.
	intentA, err := svc.BeginCheckout(ctx, userA, "")
	require.NoError(t, err)
	intentB, err := svc.BeginCheckout(ctx, userB, "")
	require.NoError(t, err)

	require.NoError(t, svc.ReserveStock(ctx, intentA))

	err = svc.ReserveStock(ctx, intentB)
	require.ErrorIs(t, err, ErrStockConflict)

	// The loser's rollback must leave the winner's hold intact.
	require.Equal(t, 2, env.productStock(t, product.ID))
	require.Equal(t, models.IntentStatusReserved, env.intentStatus(t, intentA.ID))
}

func TestCheckoutSuccessOpensSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gw := &fakeGateway{}
	svc := newCheckoutService(env, gw)
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "100", "20", 10)
	env.addToCart(t, userID, product.ID, 2)

	intent, session, err := svc.Checkout(ctx, userID, "")
	require.NoError(t, err)
	require.Equal(t, 1, gw.calls)
	require.Equal(t, "sess_"+intent.ID.String(), session.Ref)
	require.Equal(t, models.IntentStatusAwaitingPayment, env.intentStatus(t, intent.ID))
	require.Equal(t, 8, env.productStock(t, product.ID))

	// The intent id travels as the idempotency key.
	require.Equal(t, intent.ID.String(), gw.lastReq.IdempotencyKey)
	require.True(t, gw.lastReq.Amount.Equal(intent.Total))
}

func TestCheckoutCouponChargesIntentTotal(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gw := &fakeGateway{}
	svc := newCheckoutService(env, gw)
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "50", "0", 5)
	env.addToCart(t, userID, product.ID, 2)

	now := time.Now().UTC()
	require.NoError(t, env.DB.Create(&models.Coupon{
		Code:      "TEN-OFF",
		Amount:    decimal.RequireFromString("10"),
		ValidFrom: now.Add(-time.Hour),
		ValidTo:   now.Add(time.Hour),
		IsActive:  true,
	}).Error)

	intent, _, err := svc.Checkout(ctx, userID, "TEN-OFF")
	require.NoError(t, err)
	require.True(t, intent.Total.Equal(decimal.RequireFromString("90")))

	// The gateway is asked for the couponed total. The itemized lines
	// still sum to the full price; the adapter owes the difference as a
	// session-level discount.
	require.True(t, gw.lastReq.Amount.Equal(intent.Total))

	linesTotal := decimal.Zero
	for _, line := range gw.lastReq.Lines {
		linesTotal = linesTotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	require.True(t, linesTotal.Equal(decimal.RequireFromString("100")))
}

func TestCheckoutRetriesAfterStockConflict(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gw := &fakeGateway{}
	svc := newCheckoutService(env, gw)
	svc.MaxAttempts = 2
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "50", "0", 5)
	env.addToCart(t, userID, product.ID, 3)

	// Simulate a concurrent shopper draining the stock between the price
	// snapshot and the reservation: the first reservation flip zeroes the
	// shelf, the decrement conflicts and rolls back, and the retry finds
	// the stock restored.
	require.NoError(t, env.DB.Exec(`
		CREATE TRIGGER drain_stock_once AFTER UPDATE ON checkout_intents
		WHEN NEW.status = 'reserved'
		 AND (SELECT COUNT(*) FROM checkout_intents WHERE status = 'aborted') = 0
		BEGIN
			UPDATE products SET stock = 0;
		END`).Error)

	intent, session, err := svc.Checkout(ctx, userID, "")
	require.NoError(t, err)
	require.Equal(t, 1, gw.calls)
	require.NotEmpty(t, session.URL)
	require.Equal(t, models.IntentStatusAwaitingPayment, env.intentStatus(t, intent.ID))
	require.Equal(t, 2, env.productStock(t, product.ID))

	// The losing attempt left a closed intent behind, nothing more.
	var aborted int64
	require.NoError(t, env.DB.Model(&models.CheckoutIntent{}).
		Where("status = ?", models.IntentStatusAborted).Count(&aborted).Error)
	require.EqualValues(t, 1, aborted)
}

func TestCheckoutDeclineReleasesStock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gw := &fakeGateway{errs: []error{declinedErr()}}
	svc := newCheckoutService(env, gw)
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "100", "0", 10)
	env.addToCart(t, userID, product.ID, 2)

	_, _, err := svc.Checkout(ctx, userID, "")
	require.Error(t, err)
	require.True(t, payment.IsDeclined(err))
	require.Equal(t, 1, gw.calls)
	require.Equal(t, 10, env.productStock(t, product.ID))

	var intent models.CheckoutIntent
	require.NoError(t, env.DB.Where("user_id = ?", userID).First(&intent).Error)
	require.Equal(t, models.IntentStatusAborted, intent.Status)
}

func TestCheckoutTransientKeepsReservation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gw := &fakeGateway{errs: []error{transientErr()}}
	svc := newCheckoutService(env, gw)
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "100", "0", 10)
	env.addToCart(t, userID, product.ID, 2)

	_, _, err := svc.Checkout(ctx, userID, "")
	require.Error(t, err)
	require.True(t, payment.IsTransient(err))

	// Outcome unknown: the hold stays for the webhook or the reaper.
	var intent models.CheckoutIntent
	require.NoError(t, env.DB.Where("user_id = ?", userID).First(&intent).Error)
	require.Equal(t, models.IntentStatusReserved, intent.Status)
	require.Equal(t, 8, env.productStock(t, product.ID))

	// The reaper settles it once the TTL elapses.
	require.NoError(t, env.DB.Model(&models.CheckoutIntent{}).
		Where("id = ?", intent.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	released, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, released)
	require.Equal(t, 10, env.productStock(t, product.ID))
	require.Equal(t, models.IntentStatusExpired, env.intentStatus(t, intent.ID))
}

func TestCheckoutRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	gw := &fakeGateway{errs: []error{transientErr(), nil}}
	svc := newCheckoutService(env, gw)
	svc.MaxAttempts = 2
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "100", "0", 10)
	env.addToCart(t, userID, product.ID, 1)

	intent, session, err := svc.Checkout(ctx, userID, "")
	require.NoError(t, err)
	require.Equal(t, 2, gw.calls)
	require.NotEmpty(t, session.URL)
	require.Equal(t, models.IntentStatusAwaitingPayment, env.intentStatus(t, intent.ID))
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "100", "0", 10)
	env.addToCart(t, userID, product.ID, 2)

	intent, _, err := svc.Checkout(ctx, userID, "")
	require.NoError(t, err)

	first, err := svc.ConfirmPayment(ctx, intent.ID.String())
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusProcessing, first.Status)
	require.Len(t, first.Items, 1)
	require.True(t, first.Total.Equal(intent.Total))

	// A replayed webhook must return the same order, not a second one.
	second, err := svc.ConfirmPayment(ctx, intent.ID.String())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, env.DB.Model(&models.Order{}).
		Where("intent_id = ?", intent.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// Stock stays decremented and the cart line is consumed.
	require.Equal(t, 8, env.productStock(t, product.ID))
	items, err := env.Repo.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestConfirmPaymentBadStates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	ctx := context.Background()

	_, err := svc.ConfirmPayment(ctx, "not-a-key")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.ConfirmPayment(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	// An aborted checkout can no longer be confirmed.
	userID := uuid.New()
	product := env.createProduct(t, "lamp", "100", "0", 10)
	env.addToCart(t, userID, product.ID, 1)

	intent, _, err := svc.Checkout(ctx, userID, "")
	require.NoError(t, err)
	require.NoError(t, svc.AbortCheckout(ctx, intent.ID, "buyer walked away"))

	_, err = svc.ConfirmPayment(ctx, intent.ID.String())
	require.ErrorIs(t, err, ErrConflict)
}

func TestHandleGatewayOutcome(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "100", "0", 10)
	env.addToCart(t, userID, product.ID, 2)

	intent, session, err := svc.Checkout(ctx, userID, "")
	require.NoError(t, err)

	order, err := svc.HandleGatewayOutcome(ctx, payment.Outcome{
		IdempotencyKey: intent.ID.String(),
		SessionRef:     session.Ref,
		Paid:           true,
	})
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, userID, order.UserID)
}

func TestHandleGatewayOutcomeSessionRefFallback(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "100", "0", 10)
	env.addToCart(t, userID, product.ID, 1)

	intent, session, err := svc.Checkout(ctx, userID, "")
	require.NoError(t, err)

	order, err := svc.HandleGatewayOutcome(ctx, payment.Outcome{
		SessionRef: session.Ref,
		Paid:       true,
	})
	require.NoError(t, err)
	require.Equal(t, intent.ID, order.IntentID)

	_, err = svc.HandleGatewayOutcome(ctx, payment.Outcome{
		SessionRef: "cs_unknown",
		Paid:       true,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHandleGatewayOutcomeExpiredSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newCheckoutService(env, &fakeGateway{})
	userID := uuid.New()
	ctx := context.Background()

	product := env.createProduct(t, "lamp", "100", "0", 10)
	env.addToCart(t, userID, product.ID, 2)

	intent, session, err := svc.Checkout(ctx, userID, "")
	require.NoError(t, err)

	order, err := svc.HandleGatewayOutcome(ctx, payment.Outcome{
		IdempotencyKey: intent.ID.String(),
		SessionRef:     session.Ref,
		Paid:           false,
	})
	require.NoError(t, err)
	require.Nil(t, order)
	require.Equal(t, models.IntentStatusAborted, env.intentStatus(t, intent.ID))
	require.Equal(t, 10, env.productStock(t, product.ID))
}
