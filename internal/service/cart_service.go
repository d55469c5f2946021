package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cart-service/internal/cart"
	"cart-service/internal/catalog"
	"cart-service/internal/models"
	"cart-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultIdempotencyTTL is how long a checkout idempotency key is remembered
const DefaultIdempotencyTTL = 24 * time.Hour

var (
	ErrEmptyCart = errors.New("cart is empty")
	ErrCartBusy  = errors.New("cart operation in progress")
)

// SessionProvider resolves the engine of a session
type SessionProvider interface {
	Get(ctx context.Context, sessionID string) (*cart.Engine, error)
}

// IdempotencyStore remembers the first value written under a key
type IdempotencyStore interface {
	RememberOnce(ctx context.Context, key string, value []byte, ttl time.Duration) ([]byte, bool, error)
}

// CheckoutPublisher publishes checkout requests
type CheckoutPublisher interface {
	PublishCheckoutRequested(ctx context.Context, event *models.CheckoutRequestedEvent) error
}

// CartService handles cart business logic on top of the session engines
type CartService struct {
	sessions       SessionProvider
	catalog        catalog.Catalog
	idempotency    IdempotencyStore
	publisher      CheckoutPublisher
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewCartService creates a new cart service. publisher may be nil.
func NewCartService(
	sessions SessionProvider,
	products catalog.Catalog,
	idempotency IdempotencyStore,
	publisher CheckoutPublisher,
) *CartService {
	return &CartService{
		sessions:       sessions,
		catalog:        products,
		idempotency:    idempotency,
		publisher:      publisher,
		idempotencyTTL: DefaultIdempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// CartView is the cart state returned to API clients
type CartView struct {
	SessionID string `json:"session_id"`
	models.CartState
	ItemCount int  `json:"item_count"`
	CanUndo   bool `json:"can_undo"`
}

// AddItemRequest represents a request to add a product to the cart
type AddItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// UpdateQuantityRequest represents a request to change an item's quantity
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// ApplyDiscountRequest represents a request to apply a discount code
type ApplyDiscountRequest struct {
	Code string `json:"code"`
}

// CheckoutResponse is the result of a checkout request
type CheckoutResponse struct {
	CheckoutID     string               `json:"checkout_id"`
	SessionID      string               `json:"session_id"`
	IdempotencyKey string               `json:"idempotency_key"`
	ItemCount      int                  `json:"item_count"`
	Discount       models.DiscountState `json:"discount"`
	Totals         models.CartTotals    `json:"totals"`
	Duplicate      bool                 `json:"duplicate"`
}

// ListProducts returns the catalog
func (s *CartService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.catalog.List(ctx)
}

// GetProduct returns one catalog product
func (s *CartService) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	return s.catalog.Get(ctx, productID)
}

// GetCart returns the current cart of a session
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*CartView, error) {
	engine, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	return s.view(engine, engine.State()), nil
}

// AddItem adds a catalog product to the cart. A zero quantity means one.
func (s *CartService) AddItem(ctx context.Context, sessionID string, req *AddItemRequest) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem", sessionID)
	defer span.End()

	product, err := s.catalog.Get(ctx, req.ProductID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	return s.run(ctx, sessionID, func(e *cart.Engine) *cart.Pending {
		return e.AddItem(ctx, *product, quantity)
	})
}

// UpdateQuantity sets the quantity of an item
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity int) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity", sessionID)
	defer span.End()

	return s.run(ctx, sessionID, func(e *cart.Engine) *cart.Pending {
		return e.UpdateQuantity(ctx, itemID, quantity)
	})
}

// RemoveItem removes an item from the cart
func (s *CartService) RemoveItem(ctx context.Context, sessionID, itemID string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem", sessionID)
	defer span.End()

	return s.run(ctx, sessionID, func(e *cart.Engine) *cart.Pending {
		return e.RemoveItem(ctx, itemID)
	})
}

// ApplyDiscount applies a discount code
func (s *CartService) ApplyDiscount(ctx context.Context, sessionID, code string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.ApplyDiscount", sessionID)
	defer span.End()

	return s.run(ctx, sessionID, func(e *cart.Engine) *cart.Pending {
		return e.ApplyDiscount(ctx, code)
	})
}

// ClearCart empties the cart
func (s *CartService) ClearCart(ctx context.Context, sessionID string) (*CartView, error) {
	return s.run(ctx, sessionID, func(e *cart.Engine) *cart.Pending {
		return e.ClearCart(ctx)
	})
}

// Undo restores the previous cart state
func (s *CartService) Undo(ctx context.Context, sessionID string) (*CartView, error) {
	return s.run(ctx, sessionID, func(e *cart.Engine) *cart.Pending {
		return e.Undo(ctx)
	})
}

// Checkout snapshots the final totals of the cart and announces them. No
// payment is taken and the cart is left as it is. Repeating a request with
// the same idempotency key returns the first response.
func (s *CartService) Checkout(ctx context.Context, sessionID, idempotencyKey string) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Checkout", sessionID)
	defer span.End()

	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	engine, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	state := engine.State()
	if state.IsLoading {
		util.CheckoutsTotal.WithLabelValues("busy").Inc()
		return nil, ErrCartBusy
	}
	if len(state.Items) == 0 {
		util.CheckoutsTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyCart
	}

	resp := &CheckoutResponse{
		CheckoutID:     uuid.New().String(),
		SessionID:      sessionID,
		IdempotencyKey: idempotencyKey,
		ItemCount:      state.ItemCount(),
		Discount:       state.Discount,
		Totals:         state.Totals,
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkout: %w", err)
	}

	key := fmt.Sprintf("checkout:%s:%s", sessionID, idempotencyKey)
	existing, stored, err := s.idempotency.RememberOnce(ctx, key, payload, s.idempotencyTTL)
	if err != nil {
		util.RecordError(span, err)
		util.CheckoutsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if !stored {
		var previous CheckoutResponse
		if err := json.Unmarshal(existing, &previous); err != nil {
			return nil, fmt.Errorf("failed to decode previous checkout: %w", err)
		}
		previous.Duplicate = true

		s.logger.Info("Duplicate checkout request detected",
			zap.String("session_id", sessionID),
			zap.String("idempotency_key", idempotencyKey),
			zap.String("checkout_id", previous.CheckoutID))
		util.CheckoutsTotal.WithLabelValues("duplicate").Inc()
		return &previous, nil
	}

	util.CheckoutsTotal.WithLabelValues("requested").Inc()
	s.logger.Info("Checkout requested",
		zap.String("session_id", sessionID),
		zap.String("checkout_id", resp.CheckoutID),
		zap.String("total", resp.Totals.Total.StringFixed(2)))

	if s.publisher != nil {
		event := &models.CheckoutRequestedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   resp.CheckoutID,
				EventType: models.EventTypeCartCheckoutRequested,
				SessionID: sessionID,
				Timestamp: time.Now(),
			},
			IdempotencyKey: idempotencyKey,
			ItemCount:      resp.ItemCount,
			Total:          resp.Totals.Total,
			Totals:         resp.Totals,
		}

		if err := s.publisher.PublishCheckoutRequested(ctx, event); err != nil {
			util.EventsPublishFailedTotal.Inc()
			s.logger.Error("Failed to publish CheckoutRequested event", zap.Error(err))
		}
	}

	return resp, nil
}

// run resolves the session engine, submits one operation and waits for it
// to commit.
func (s *CartService) run(ctx context.Context, sessionID string, submit func(e *cart.Engine) *cart.Pending) (*CartView, error) {
	engine, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	state, err := submit(engine).Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("cart operation: %w", err)
	}
	return s.view(engine, state), nil
}

func (s *CartService) view(engine *cart.Engine, state models.CartState) *CartView {
	return &CartView{
		SessionID: engine.SessionID(),
		CartState: state,
		ItemCount: state.ItemCount(),
		CanUndo:   engine.CanUndo(),
	}
}
