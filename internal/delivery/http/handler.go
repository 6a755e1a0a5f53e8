package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/healthshop/clerk/internal/domain"
	"github.com/healthshop/clerk/internal/usecase"
)

const (
	serviceName    = "shopclerk"
	serviceVersion = "1.0.0"
)

// ChatService answers one chat turn
type ChatService interface {
	Respond(ctx context.Context, userID int64, history domain.Conversation, message string) (*usecase.Reply, error)
	RespondStream(ctx context.Context, userID int64, history domain.Conversation, message string) (*usecase.StreamReply, error)
}

// ProductSearcher runs hybrid product search
type ProductSearcher interface {
	Search(ctx context.Context, query string, filter *domain.PriceFilter, limit int) ([]domain.ScoredProduct, error)
}

// CartService exposes structured cart operations
type CartService interface {
	CartSummary(ctx context.Context, userID int64) (*domain.CartSummary, error)
	AddProductByID(ctx context.Context, userID, productID int64) (domain.AddOutcome, error)
	Checkout(ctx context.Context, userID int64) (int64, error)
	Orders(ctx context.Context, userID int64) ([]domain.OrderLine, error)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the handler's dependencies. Store may be nil.
type Services struct {
	Chat          ChatService
	Search        ProductSearcher
	Cart          CartService
	Store         Pinger
	DefaultUserID int64
	ResultLimit   int
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	svc    Services
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, logger *zap.Logger) *Handler {
	if svc.ResultLimit <= 0 {
		svc.ResultLimit = 5
	}
	return &Handler{svc: svc, logger: logger}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if h.svc.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.svc.Store.Ping(ctx); err != nil {
			h.logger.Warn("health check: store unreachable", zap.Error(err))
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": serviceName,
		"version": serviceVersion,
	})
}

// Chat handles one chat turn and returns the whole reply
func (h *Handler) Chat(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}

	reply, err := h.svc.Chat.Respond(c.Request.Context(), req.UserID, toConversation(req.Messages), req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Reply:     reply.Text,
		Operation: string(reply.Operation),
		Messages:  fromConversation(reply.Conversation),
	})
}

// ChatStream handles one chat turn and streams the reply as Server-Sent Events:
// "message" events carry fragments, a final "done" or "error" event ends the stream
func (h *Handler) ChatStream(c *gin.Context) {
	req, ok := h.bindChat(c)
	if !ok {
		return
	}

	reply, err := h.svc.Chat.RespondStream(c.Request.Context(), req.UserID, toConversation(req.Messages), req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		tok, ok := <-reply.Tokens
		if !ok {
			return false
		}
		switch {
		case tok.Error != nil:
			c.SSEvent("error", gin.H{"error": "the reply was interrupted, please try again"})
			return false
		case tok.Done:
			c.SSEvent("done", gin.H{"operation": string(reply.Operation)})
			return false
		}
		c.SSEvent("message", gin.H{"content": tok.Content})
		return true
	})
}

// SearchProducts runs hybrid search: GET /products/search?q=&op=&value=&limit=
func (h *Handler) SearchProducts(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query parameter q is required"})
		return
	}

	filter, err := parsePriceFilter(c.Query("op"), c.Query("value"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	limit := h.svc.ResultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and 50"})
			return
		}
		limit = n
	}

	results, err := h.svc.Search.Search(c.Request.Context(), query, filter, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SearchResponse{
		Query:   query,
		Filter:  filter.String(),
		Results: toProductsJSON(results),
	})
}

// GetCart returns the cart table and its total
func (h *Handler) GetCart(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	summary, err := h.svc.Cart.CartSummary(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// AddCartItem adds one unit of a product by id
func (h *Handler) AddCartItem(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	outcome, err := h.svc.Cart.AddProductByID(c.Request.Context(), userID, req.ProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if outcome == domain.LineIncremented {
		status = http.StatusOK
	}
	c.JSON(status, AddItemResponse{ProductID: req.ProductID, Outcome: outcomeName(outcome)})
}

// PayCart checks out every in-cart line of the user
func (h *Handler) PayCart(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	paid, err := h.svc.Cart.Checkout(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	message := "Payment complete"
	if paid == 0 {
		message = "Nothing to pay: the cart has no products with a positive quantity"
	}
	c.JSON(http.StatusOK, PayResponse{LinesPaid: paid, Message: message})
}

// GetOrders lists every line of the user with its status and arrival date
func (h *Handler) GetOrders(c *gin.Context) {
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	lines, err := h.svc.Cart.Orders(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, OrdersResponse{UserID: userID, Orders: toOrdersJSON(lines)})
}

func (h *Handler) bindChat(c *gin.Context) (*ChatRequest, bool) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return nil, false
	}
	if req.UserID == 0 {
		req.UserID = h.svc.DefaultUserID
	}
	return &req, true
}

// respondError maps domain errors to status codes. Store and unexpected failures
// are logged and hidden behind a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidPriceFilter),
		errors.Is(err, domain.ErrInvalidArguments):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrOracleFailure), errors.Is(err, domain.ErrEmbeddingFailure):
		status = http.StatusBadGateway
	}

	_ = c.Error(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("requestId", c.GetString("requestId")),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		message = "internal server error"
	}
	c.JSON(status, ErrorResponse{Error: message})
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "userID must be a positive integer"})
		return 0, false
	}
	return id, true
}

// parsePriceFilter builds a filter from the op and value query parameters. Both
// empty means no filter.
func parsePriceFilter(op, value string) (*domain.PriceFilter, error) {
	if op == "" && value == "" {
		return nil, nil
	}
	operator, err := domain.ParseComparisonOperator(op)
	if err != nil {
		return nil, err
	}
	v, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidPriceFilter, err)
	}
	return &domain.PriceFilter{Operator: operator, Value: v}, nil
}
