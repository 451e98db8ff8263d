package adapters

import (
	"errors"

	"go.opentelemetry.io/otel/trace"

	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

// recordFailure marks the span as failed only for store failures. Missing
// products, short stock, lost stock races and unknown orders are noted as
// rejections.
func recordFailure(span trace.Span, err error) {
	switch {
	case errors.Is(err, domain.ErrStockConflict):
		telemetry.RecordSpanRejection(span, "StockConflict", err)
	case errors.Is(err, domain.ErrOrderNotFound):
		telemetry.RecordSpanRejection(span, "OrderNotFound", err)
	case domain.KindOf(err) != domain.KindStoreFailure:
		telemetry.RecordSpanRejection(span, string(domain.KindOf(err)), err)
	default:
		telemetry.RecordSpanError(span, err)
	}
}
