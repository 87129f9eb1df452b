// Package order implements the group order core: the order lifecycle, the
// item ledger, payment tracking and the reporting views.
//
// Every operation takes an explicit models.Caller. Commands run as one
// read-validate-write transaction on the repository port; expected failures
// are returned as *apperror.Error values and everything else is an
// unexpected failure.
package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"group-order/internal/apperror"
	"group-order/internal/logger"
	"group-order/internal/models"
	"group-order/internal/repository"
)

const defaultNotifyTimeout = 30 * time.Second

// Notifier delivers order notifications. Calls are made after the triggering
// operation has committed; their errors are logged and never returned to the caller.
type Notifier interface {
	NotifyOrderStarted(ctx context.Context, order *models.Order) error
	NotifyOrderClosed(ctx context.Context, order *models.Order) error
	SendSummaryToCloser(ctx context.Context, order *models.Order, closerID uuid.UUID) error
}

type Service struct {
	store         repository.Store
	notifier      Notifier
	logger        *logger.Logger
	now           func() time.Time
	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

// NewService creates the order service. A nil notifier disables notifications.
func NewService(store repository.Store, notifier Notifier, log *logger.Logger) *Service {
	return &Service{
		store:         store,
		notifier:      notifier,
		logger:        log,
		now:           func() time.Time { return time.Now().UTC() },
		notifyTimeout: defaultNotifyTimeout,
	}
}

// HealthCheck reports whether the backing store is reachable
func (s *Service) HealthCheck(ctx context.Context) bool {
	return s.store.Ping(ctx) == nil
}

// Wait blocks until every notification dispatched so far has finished
func (s *Service) Wait() {
	s.pending.Wait()
}

// dispatch runs fn on its own goroutine, detached from the request context
func (s *Service) dispatch(ctx context.Context, action string, fields map[string]any, fn func(ctx context.Context, n Notifier) error) {
	if s.notifier == nil {
		return
	}
	requestID := logger.RequestID(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()

		if err := fn(nctx, s.notifier); err != nil {
			s.logger.Error(action, "Notification dispatch failed", requestID, err, fields)
			return
		}
		s.logger.Debug(action, "Notification dispatched", requestID, fields)
	}()
}

// notFound converts repository.ErrNotFound into an apperror, passing other errors through
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(format, args...)
	}
	return err
}
