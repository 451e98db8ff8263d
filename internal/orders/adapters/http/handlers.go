package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dejobratic/orderflow/internal/orders/app"
	"github.com/dejobratic/orderflow/internal/orders/app/queries"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/orders/validation"
)

const (
	maxBodyBytes = 1 << 20

	storeFailureMessage = "order could not be placed, try again later"
)

// Handler exposes HTTP endpoints for order operations.
type Handler struct {
	service *app.Service
	buyers  BuyerResolver
	logger  *slog.Logger
}

// NewHandler constructs a Handler. A nil resolver trusts the X-Buyer-ID header.
func NewHandler(service *app.Service, buyers BuyerResolver, logger *slog.Logger) *Handler {
	if buyers == nil {
		buyers = HeaderBuyerResolver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, buyers: buyers, logger: logger}
}

// Register binds the order handlers to the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/orders", func(r chi.Router) {
		r.Post("/", h.placeOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
	})
}

type placeOrderRequest struct {
	Items json.RawMessage `json:"items"`
}

type errorBody struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type orderListItem struct {
	ID         string             `json:"id"`
	Status     domain.OrderStatus `json:"status"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
	CreatedAt  time.Time          `json:"createdAt"`
}

type orderListResponse struct {
	Orders      []orderListItem `json:"orders"`
	Page        int             `json:"page"`
	CurrentPage int             `json:"currentPage"`
	PageSize    int             `json:"pageSize"`
	TotalPages  int             `json:"totalPages"`
	TotalOrders int             `json:"totalOrders"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	buyerID := strings.TrimSpace(h.buyers.ResolveBuyer(r))
	if buyerID == "" {
		h.writeDomainError(w, r, domain.NewUnauthorizedError())
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" {
		stored, err := h.service.GetIdempotentResponse(ctx, buyerID, idemKey)
		if err != nil {
			h.writeDomainError(w, r, domain.NewStoreFailure("idempotency lookup", err))
			return
		}
		if stored != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	}

	var payload placeOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		h.writeDomainError(w, r, domain.NewEmptyOrderError())
		return
	}

	lines, err := validation.ParseLines(payload.Items)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	summary, err := h.service.PlaceOrder(ctx, app.PlaceOrderInput{BuyerID: buyerID, Lines: lines})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	body, err := json.Marshal(map[string]any{"order": summary})
	if err != nil {
		h.writeDomainError(w, r, domain.NewStoreFailure("encode response", err))
		return
	}

	if idemKey != "" {
		stored := ports.StoredResponse{
			StatusCode: http.StatusCreated,
			Body:       body,
			OrderID:    summary.ID,
		}
		// The order is committed; a lost key only disables replay.
		if err := h.service.SaveIdempotentResponse(ctx, buyerID, idemKey, stored); err != nil {
			h.logger.ErrorContext(ctx, "failed to store idempotent response",
				"error", err,
				"order_id", summary.ID,
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	buyerID := strings.TrimSpace(h.buyers.ResolveBuyer(r))
	if buyerID == "" {
		h.writeDomainError(w, r, domain.NewUnauthorizedError())
		return
	}

	order, err := h.service.GetOrder(r.Context(), buyerID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": errorBody{Kind: "OrderNotFound", Message: "order not found"},
			})
			return
		}
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	buyerID := strings.TrimSpace(h.buyers.ResolveBuyer(r))
	if buyerID == "" {
		h.writeDomainError(w, r, domain.NewUnauthorizedError())
		return
	}

	query := queries.ListBuyerOrdersQuery{BuyerID: buyerID}
	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		if page, err := strconv.Atoi(pageParam); err == nil {
			query.Page = page
		}
	}
	if pageSizeParam := firstQueryValue(r, "page_size", "pageSize", "limit"); pageSizeParam != "" {
		if pageSize, err := strconv.Atoi(pageSizeParam); err == nil {
			query.PageSize = pageSize
		}
	}

	list, err := h.service.ListOrders(r.Context(), query)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := orderListResponse{
		Orders:      make([]orderListItem, 0, len(list.Orders)),
		Page:        list.Page,
		CurrentPage: list.Page,
		PageSize:    list.PageSize,
		TotalPages:  list.TotalPages,
		TotalOrders: list.TotalOrders,
	}
	for _, o := range list.Orders {
		resp.Orders = append(resp.Orders, orderListItem{
			ID:         o.ID,
			Status:     o.Status,
			TotalPrice: o.TotalPrice,
			CreatedAt:  o.CreatedAt.UTC(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// firstQueryValue returns the value of the first key present in the query.
func firstQueryValue(r *http.Request, keys ...string) string {
	q := r.URL.Query()
	for _, key := range keys {
		if v := q.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// writeDomainError maps a failure to its status and body. Store failures are
// logged with their cause and reported with an opaque message.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	body := errorBody{Kind: string(kind), Message: err.Error()}

	var de *domain.Error
	if errors.As(err, &de) {
		body.Message = de.Message
		body.Details = de.Details
	}

	if kind == domain.KindStoreFailure {
		h.logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		body.Message = storeFailureMessage
		body.Details = nil
	}

	writeJSON(w, statusFor(kind), map[string]any{"error": body})
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindEmptyOrder, domain.KindInvalidProductID, domain.KindInvalidQuantity:
		return http.StatusBadRequest
	case domain.KindProductNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientStock:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
