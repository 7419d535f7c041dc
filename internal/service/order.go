package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/repo"
)

// allowedOrderTransitions are the admin-driven fulfillment moves.
// Cancellation has its own path with stock compensation.
var allowedOrderTransitions = map[string][]string{
	models.OrderStatusShipped:   {models.OrderStatusProcessing},
	models.OrderStatusDelivered: {models.OrderStatusShipped},
}

type OrderService struct {
	Repo     *repo.GormRepo
	Producer *mykafka.Producer
}

func (s *OrderService) GetOrder(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, id)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return s.Repo.ListOrders(ctx, userID, limit, offset)
}

// UpdateStatus moves an order along processing -> shipped -> delivered.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Order, error) {
	from, ok := allowedOrderTransitions[status]
	if !ok {
		return nil, fmt.Errorf("%w: cannot move an order to %q", ErrValidation, status)
	}

	err := s.Repo.UpdateOrderStatus(ctx, id, from, status)
	if errors.Is(err, repo.ErrInvalidTransition) {
		return nil, fmt.Errorf("%w: order %s cannot become %s", ErrConflict, id, status)
	}
	if err != nil {
		return nil, err
	}

	order, err := s.Repo.GetOrder(ctx, id)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, map[string]any{
		"type":    "order_status_changed",
		"orderID": order.ID,
		"userID":  order.UserID,
		"status":  order.Status,
	})
	return order, nil
}

// Cancel aborts an unshipped order and gives its stock back.
func (s *OrderService) Cancel(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.CancelOrder(ctx, id, userID)
	if repo.IsNotFound(err) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if errors.Is(err, repo.ErrInvalidTransition) {
		return nil, fmt.Errorf("%w: order %s already shipped or closed", ErrConflict, id)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, map[string]any{
		"type":    "order_cancelled",
		"orderID": order.ID,
		"userID":  order.UserID,
	})
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, event map[string]any) {
	if s.Producer == nil {
		return
	}
	if err := s.Producer.PublishEvent(ctx, orderEventsTopic, fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(ctx).Error("kafka publish", "topic", orderEventsTopic, "error", err)
	}
}
