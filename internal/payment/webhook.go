package payment

import (
	"encoding/json"
	"fmt"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// VerifyWebhook checks the signature on an inbound gateway event and,
// for the checkout lifecycle events the workflow cares about, resolves
// the idempotency key planted in the session at creation time. Events
// of any other type yield a nil Outcome.
func VerifyWebhook(payload []byte, sigHeader, secret string) (*Outcome, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature: %w", err)
	}

	var paid bool
	switch event.Type {
	case "checkout.session.completed":
		paid = true
	case "checkout.session.expired":
		paid = false
	default:
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("webhook payload: %w", err)
	}
	// Older dashboard-created sessions may lack the client reference; the
	// session id is enough to find the checkout.
	if sess.ClientReferenceID == "" && sess.ID == "" {
		return nil, fmt.Errorf("webhook payload: no way to identify the checkout")
	}

	return &Outcome{
		IdempotencyKey: sess.ClientReferenceID,
		SessionRef:     sess.ID,
		Paid:           paid,
	}, nil
}
