// Package inventory implements the inventory page controller: listing,
// bounded-retry deletion and persisted quantity adjustment.
package inventory

import (
	"context"

	"go.uber.org/zap"

	domain "github.com/Sachin-dot-py/Grocify/internal/domain/inventory"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/config"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/session"
	apperrors "github.com/Sachin-dot-py/Grocify/pkg/errors"
)

// Service is the inventory page controller.
type Service struct {
	client        *api.Client
	control       *session.Controller
	deleteRetries int
	logger        *zap.Logger
}

// NewService creates the inventory page controller.
func NewService(client *api.Client, control *session.Controller, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		client:        client,
		control:       control,
		deleteRetries: cfg.API.DeleteRetries,
		logger:        logger,
	}
}

// List fetches all items. An empty slice is a valid result the page renders
// as its empty state, distinct from loading and error.
func (s *Service) List(ctx context.Context, sess *session.Session) ([]domain.Item, error) {
	return s.client.Inventory(ctx, s.control.Credentials(sess))
}

// Delete removes an item, retrying up to the configured bound before
// reporting failure. Each attempt carries its own correlation ID; a 404 on
// a retry means a previous attempt landed and counts as success.
func (s *Service) Delete(ctx context.Context, sess *session.Session, id string) error {
	creds := s.control.Credentials(sess)

	var lastErr error
	for attempt := 1; attempt <= s.deleteRetries; attempt++ {
		err := s.client.DeleteItem(ctx, creds, id)
		if err == nil {
			return nil
		}
		if apperrors.Is(err, apperrors.CodeNotFound) && attempt > 1 {
			return nil
		}
		if !shouldRetryDelete(err) {
			return err
		}
		lastErr = err
		s.logger.Warn("Delete attempt failed",
			zap.String("item_id", id),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return lastErr
}

// shouldRetryDelete limits retries to failures a repeat can fix. An
// unauthorized result has already been through its one refresh attempt and
// is terminal here.
func shouldRetryDelete(err error) bool {
	switch apperrors.GetCode(err) {
	case apperrors.CodeNetworkError, apperrors.CodeServerError:
		return true
	default:
		return false
	}
}

// AdjustQuantity persists the change and returns the backend's confirmed
// item; the page reflects only the confirmed quantity, never a local guess.
// A delta that would take the quantity below zero is a local validation
// failure and makes no network call.
func (s *Service) AdjustQuantity(ctx context.Context, sess *session.Session, item domain.Item, delta int) (*domain.Item, error) {
	next := item.Quantity + delta
	if next < 0 {
		return nil, apperrors.NewValidationError("Quantity cannot go below zero")
	}
	return s.client.UpdateItemQuantity(ctx, s.control.Credentials(sess), item.ID, next)
}
