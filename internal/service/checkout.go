package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/internal/repo"
)

const orderEventsTopic = "order_events"

type CheckoutService struct {
	Repo     *repo.GormRepo
	Gateway  payment.Gateway
	Producer *mykafka.Producer

	Currency   string
	SuccessURL string
	CancelURL  string

	// ReservationTTL bounds how long an intent may hold stock without a
	// payment outcome before the reaper gives it back.
	ReservationTTL time.Duration

	// MaxAttempts bounds stock-conflict and transient-gateway retries.
	MaxAttempts int
}

func (s *CheckoutService) ttl() time.Duration {
	if s.ReservationTTL <= 0 {
		return 15 * time.Minute
	}
	return s.ReservationTTL
}

func (s *CheckoutService) attempts() int {
	if s.MaxAttempts <= 0 {
		return 3
	}
	return s.MaxAttempts
}

// BeginCheckout re-reads every cart line against the live catalog and
// produces a priced intent. Prices and discounts are snapshotted here;
// the total is never recomputed from live products afterwards.
func (s *CheckoutService) BeginCheckout(ctx context.Context, userID uuid.UUID, couponCode string) (*models.CheckoutIntent, error) {
	items, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items to check out", ErrEmptyCart)
	}

	total := decimal.Zero
	lines := make([]models.CheckoutLine, 0, len(items))
	for _, item := range items {
		product, err := s.Repo.GetProduct(ctx, item.ProductID)
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: product %s no longer exists", ErrProductUnavailable, item.ProductID)
		}
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, product.Name)
		}
		if int(item.Quantity) > product.Stock {
			return nil, fmt.Errorf("%w: %s has %d left, %d requested",
				ErrInsufficientStock, product.Name, product.Stock, item.Quantity)
		}

		line := models.CheckoutLine{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			Discount:  product.Discount,
		}
		total = total.Add(line.LineTotal())
		lines = append(lines, line)
	}

	if couponCode != "" {
		coupon, err := s.Repo.GetCouponByCode(ctx, couponCode)
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: unknown code %q", ErrCouponInvalid, couponCode)
		}
		if err != nil {
			return nil, err
		}
		if !coupon.ValidAt(time.Now().UTC()) {
			return nil, fmt.Errorf("%w: code %q is not currently valid", ErrCouponInvalid, couponCode)
		}
		total = total.Sub(coupon.Amount)
		if total.IsNegative() {
			total = decimal.Zero
		}
	}

	intent := &models.CheckoutIntent{
		ID:         uuid.New(),
		UserID:     userID,
		Total:      total,
		CouponCode: couponCode,
		Status:     models.IntentStatusPending,
		ExpiresAt:  time.Now().UTC().Add(s.ttl()),
		Lines:      lines,
	}
	return s.Repo.CreateIntent(ctx, intent)
}

// ReserveStock atomically holds stock for every line of the intent.
// All lines succeed or none do.
func (s *CheckoutService) ReserveStock(ctx context.Context, intent *models.CheckoutIntent) error {
	err := s.Repo.Reserve(ctx, intent)
	if errors.Is(err, repo.ErrStockConflict) {
		return fmt.Errorf("%w: a concurrent checkout got there first", ErrStockConflict)
	}
	return err
}

// InitiatePayment opens a gateway session for a reserved intent. The
// intent id is the idempotency key, so retries cannot double-charge.
// Transient failures are retried with backoff; a decline aborts the
// checkout and releases stock. If every attempt times out the outcome
// is unknown: the reservation is left in place for the webhook or the
// TTL reaper to settle, never assumed failed.
func (s *CheckoutService) InitiatePayment(ctx context.Context, intent *models.CheckoutIntent) (*payment.Session, error) {
	lines := make([]payment.LineDescription, 0, len(intent.Lines))
	for _, line := range intent.Lines {
		lines = append(lines, payment.LineDescription{
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.Sub(line.Discount),
		})
	}

	req := payment.SessionRequest{
		IdempotencyKey: intent.ID.String(),
		Amount:         intent.Total,
		Currency:       s.Currency,
		Lines:          lines,
		SuccessURL:     s.SuccessURL,
		CancelURL:      s.CancelURL,
		Metadata: map[string]string{
			"intent_id": intent.ID.String(),
			"user_id":   intent.UserID.String(),
		},
	}

	var session *payment.Session
	op := func() error {
		sess, err := s.Gateway.CreateSession(ctx, req)
		if err != nil {
			if payment.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		session = sess
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.attempts()-1)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		if payment.IsTransient(err) {
			// Unknown outcome. Keep the reservation; reconcile by key.
			return nil, fmt.Errorf("payment outcome unknown, awaiting reconciliation: %w", err)
		}
		if abortErr := s.AbortCheckout(ctx, intent.ID, err.Error()); abortErr != nil {
			logging.FromContext(ctx).Error("abort after payment failure", "intent_id", intent.ID, "error", abortErr)
		}
		return nil, err
	}

	if err := s.Repo.MarkAwaitingPayment(ctx, intent.ID, session.Ref); err != nil {
		return nil, err
	}
	intent.Status = models.IntentStatusAwaitingPayment
	intent.SessionRef = session.Ref
	return session, nil
}

// Checkout is the workflow boundary: begin + reserve, retried with
// backoff when a concurrent checkout wins the stock race, then payment
// initiation.
func (s *CheckoutService) Checkout(ctx context.Context, userID uuid.UUID, couponCode string) (*models.CheckoutIntent, *payment.Session, error) {
	var intent *models.CheckoutIntent

	op := func() error {
		var err error
		intent, err = s.BeginCheckout(ctx, userID, couponCode)
		if err != nil {
			return backoff.Permanent(err)
		}

		if err = s.ReserveStock(ctx, intent); err == nil {
			return nil
		}

		// The snapshot is stale; close this intent before trying again.
		if releaseErr := s.Repo.Release(ctx, intent.ID, models.IntentStatusAborted, "stock conflict"); releaseErr != nil {
			logging.FromContext(ctx).Error("release after stock conflict", "intent_id", intent.ID, "error", releaseErr)
		}
		if errors.Is(err, ErrStockConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.attempts()-1)),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, nil, err
	}

	session, err := s.InitiatePayment(ctx, intent)
	if err != nil {
		return nil, nil, err
	}
	return intent, session, nil
}

// ConfirmPayment finalizes a checkout the gateway reported as paid.
// Duplicate confirmations for the same intent are no-ops that return
// the order created by the first one.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, idempotencyKey string) (*models.Order, error) {
	intentID, err := uuid.Parse(idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("%w: bad idempotency key", ErrValidation)
	}

	order, created, err := s.Repo.Confirm(ctx, intentID)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: no checkout for key %s", ErrNotFound, idempotencyKey)
	}
	if errors.Is(err, repo.ErrInvalidTransition) {
		return nil, fmt.Errorf("%w: checkout %s is not awaiting payment", ErrConflict, idempotencyKey)
	}
	if err != nil {
		return nil, err
	}

	if created {
		s.publish(ctx, map[string]any{
			"type":     "order_created",
			"orderID":  order.ID,
			"userID":   order.UserID,
			"intentID": order.IntentID,
			"total":    order.Total,
		})
	}
	return order, nil
}

// AbortCheckout releases any held stock and closes the intent. Safe to
// call more than once; the cart is left untouched.
func (s *CheckoutService) AbortCheckout(ctx context.Context, intentID uuid.UUID, reason string) error {
	return s.Repo.Release(ctx, intentID, models.IntentStatusAborted, reason)
}

// CancelCheckout is the user-facing abort: ownership is checked before
// the intent is closed and its stock released.
func (s *CheckoutService) CancelCheckout(ctx context.Context, intentID, userID uuid.UUID) error {
	intent, err := s.Repo.GetIntent(ctx, intentID)
	if repo.IsNotFound(err) {
		return fmt.Errorf("%w: checkout %s", ErrNotFound, intentID)
	}
	if err != nil {
		return err
	}
	if intent.UserID != userID {
		return fmt.Errorf("%w: checkout %s", ErrNotFound, intentID)
	}
	return s.AbortCheckout(ctx, intentID, "cancelled by user")
}

// HandleGatewayOutcome is the asynchronous confirmation path: a webhook
// outcome matched to its intent by idempotency key, falling back to the
// recorded session reference when the key is absent.
func (s *CheckoutService) HandleGatewayOutcome(ctx context.Context, outcome payment.Outcome) (*models.Order, error) {
	key := outcome.IdempotencyKey
	if key == "" {
		intent, err := s.Repo.ResolveSession(ctx, outcome.SessionRef)
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: no checkout for session %s", ErrNotFound, outcome.SessionRef)
		}
		if err != nil {
			return nil, err
		}
		key = intent.ID.String()
	}

	if outcome.Paid {
		return s.ConfirmPayment(ctx, key)
	}

	intentID, err := uuid.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("%w: bad idempotency key", ErrValidation)
	}
	return nil, s.AbortCheckout(ctx, intentID, "gateway session expired")
}

// ExpireStale aborts intents that held stock past their deadline. It is
// the crash-recovery safety net: reservations are persisted, so a
// restart simply finds them here.
func (s *CheckoutService) ExpireStale(ctx context.Context) (int, error) {
	const batch = 100

	intents, err := s.Repo.ListExpired(ctx, time.Now().UTC(), batch)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, intent := range intents {
		if err := s.Repo.Release(ctx, intent.ID, models.IntentStatusExpired, "reservation ttl elapsed"); err != nil {
			logging.FromContext(ctx).Error("expire reservation", "intent_id", intent.ID, "error", err)
			continue
		}
		released++
	}
	return released, nil
}

func (s *CheckoutService) publish(ctx context.Context, event map[string]any) {
	if s.Producer == nil {
		return
	}
	if err := s.Producer.PublishEvent(ctx, orderEventsTopic, fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish", "topic", orderEventsTopic, "error", err)
	}
}
