package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeConfig is injected at construction; the adapter never touches
// the package-global stripe key.
type StripeConfig struct {
	SecretKey string
	Timeout   time.Duration
}

type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(line.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(toCents(line.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.IdempotencyKey),
		LineItems:         items,
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	// The itemized lines carry per-product discounts only. Anything that
	// reduced the total below their sum, a coupon for instance, becomes a
	// one-off amount-off discount so the session charges exactly Amount.
	if gap := discountCents(req); gap > 0 {
		coupon, err := g.api.Coupons.New(&stripe.CouponParams{
			Params:    stripe.Params{Context: ctx},
			AmountOff: stripe.Int64(gap),
			Currency:  stripe.String(req.Currency),
			Duration:  stripe.String(string(stripe.CouponDurationOnce)),
		})
		if err != nil {
			return nil, classify(err)
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(coupon.ID)},
		}
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classify(err)
	}

	return &Session{Ref: sess.ID, URL: sess.URL}, nil
}

func classify(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch {
		case serr.Type == stripe.ErrorTypeCard:
			return &GatewayError{Kind: KindDeclined, Err: err}
		case serr.HTTPStatusCode == http.StatusTooManyRequests || serr.HTTPStatusCode >= 500:
			return &GatewayError{Kind: KindTransient, Err: err}
		case serr.Type == stripe.ErrorTypeAPI:
			return &GatewayError{Kind: KindTransient, Err: err}
		default:
			return &GatewayError{Kind: KindInvalid, Err: err}
		}
	}
	// No structured processor response means the outcome is unknown:
	// network failure, timeout, connection reset.
	return &GatewayError{Kind: KindTransient, Err: err}
}

func toCents(d decimal.Decimal) int64 {
	return d.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

// discountCents is the gap between the itemized lines and the total the
// checkout actually owes. Zero when the lines already add up to Amount.
func discountCents(req SessionRequest) int64 {
	var lines int64
	for _, line := range req.Lines {
		lines += toCents(line.UnitPrice) * int64(line.Quantity)
	}
	if gap := lines - toCents(req.Amount); gap > 0 {
		return gap
	}
	return 0
}
