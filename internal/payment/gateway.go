package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies gateway failures by how the caller should react.
type ErrorKind string

const (
	// KindTransient covers timeouts, network failures and 5xx responses:
	// safe to retry with the same idempotency key.
	KindTransient ErrorKind = "transient"
	// KindDeclined is a hard decline by the processor. Not retryable.
	KindDeclined ErrorKind = "declined"
	// KindInvalid means the request itself was rejected. Not retryable.
	KindInvalid ErrorKind = "invalid"
)

type GatewayError struct {
	Kind ErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %s: %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == KindTransient
}

func IsDeclined(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == KindDeclined
}

type LineDescription struct {
	Name      string
	Quantity  uint
	UnitPrice decimal.Decimal
}

type SessionRequest struct {
	// IdempotencyKey makes a retried call return the original session
	// instead of opening a second one.
	IdempotencyKey string
	Amount         decimal.Decimal
	Currency       string
	Lines          []LineDescription
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
}

type Session struct {
	Ref string
	URL string
}

// Gateway is the outbound contract to the payment processor.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// Outcome is a confirmed result reported back by the processor, matched
// to a pending checkout by its idempotency key.
type Outcome struct {
	IdempotencyKey string
	SessionRef     string
	Paid           bool
}
