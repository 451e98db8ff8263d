package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

// RetryingPlaceOrderHandler re-runs placements that lost to transient store
// contention. Every other failure is returned after the first attempt.
type RetryingPlaceOrderHandler struct {
	handler     PlaceOrderHandler
	logger      *slog.Logger
	maxAttempts uint
	newBackOff  func() backoff.BackOff
}

func NewRetryingPlaceOrderHandler(handler PlaceOrderHandler, logger *slog.Logger, maxAttempts int) *RetryingPlaceOrderHandler {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryingPlaceOrderHandler{
		handler:     handler,
		logger:      logger,
		maxAttempts: uint(maxAttempts),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
	}
}

func (r *RetryingPlaceOrderHandler) Handle(ctx context.Context, cmd PlaceOrderCommand) (*domain.OrderSummary, error) {
	if r.maxAttempts == 1 {
		return r.handler.Handle(ctx, cmd)
	}

	op := func() (*domain.OrderSummary, error) {
		summary, err := r.handler.Handle(ctx, cmd)
		if err == nil {
			return summary, nil
		}
		if !errors.Is(err, domain.ErrStoreConflict) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	attempt := 0
	summary, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			attempt++
			telemetry.AddSpanEvent(trace.SpanFromContext(ctx), "placement.retry",
				attribute.Int("attempt", attempt),
				attribute.String("retry_in", next.String()),
			)
			r.logger.WarnContext(ctx, "retrying order placement after store contention",
				"buyer_id", cmd.BuyerID,
				"error", err,
				"attempt", attempt,
				"retry_in", next,
			)
		}),
	)
	if err != nil {
		return nil, unwrapPermanent(err)
	}
	return summary, nil
}

func unwrapPermanent(err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		return domain.NewStoreFailure("place order", err)
	}
	return err
}
