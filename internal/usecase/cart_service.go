package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/healthshop/clerk/internal/domain"
)

// Operation results handed to the second pass
const (
	emptyCart          = "Your shopping cart is empty."
	productAdded       = "Done. The product is in the shopping cart."
	productAddedMore   = "Done. Added more of the product to the shopping cart."
	noMatchedProducts  = "No matched products"
	operationDone      = "Done"
	productNotInCart   = "The product isn't in the cart."
	sameQuantity       = "Please validate your quantity. They are same."
	nothingToPay       = "There are no products in the shopping cart."
	noProducts         = "There are no products."
	nonPositiveQty     = "Please provide a quantity greater than zero."
	arrivalUnscheduled = "not scheduled"
)

const (
	cartNameWidth    = 50
	summaryNameWidth = 40
	dateLayout       = "2006-01-02"
)

// ProductMatcher resolves free-text product references against the catalog
type ProductMatcher interface {
	BestMatch(ctx context.Context, query string) (*domain.Product, error)
	BestMatchAmong(ctx context.Context, query string, ids []int64) (int64, bool, error)
}

// CartServiceConfig holds checkout settings
type CartServiceConfig struct {
	DeliveryDays int
}

// CartService implements the cart operations. Chat-facing methods return the status
// string for the oracle and never an error: failures become "Error: <detail>".
type CartService struct {
	carts        domain.CartRepository
	catalog      domain.CatalogRepository
	matcher      ProductMatcher
	logger       *zap.Logger
	deliveryDays int
	now          func() time.Time
}

// NewCartService creates a cart service
func NewCartService(
	carts domain.CartRepository,
	catalog domain.CatalogRepository,
	matcher ProductMatcher,
	logger *zap.Logger,
	config CartServiceConfig,
) *CartService {
	return &CartService{
		carts:        carts,
		catalog:      catalog,
		matcher:      matcher,
		logger:       logger,
		deliveryDays: config.DeliveryDays,
		now:          time.Now,
	}
}

// ShowCart lists the in-cart lines with line totals and a grand total
func (s *CartService) ShowCart(ctx context.Context, userID int64) string {
	items, err := s.carts.CartItems(ctx, userID)
	if err != nil {
		return s.failure("show cart", userID, err)
	}
	if len(items) == 0 {
		return emptyCart
	}

	var b strings.Builder
	total := decimal.Zero
	for _, item := range items {
		lineTotal := item.Total()
		total = total.Add(lineTotal)
		fmt.Fprintf(&b, "Product: %s, Price: %s, Quantity: %d, Total: %s\n",
			truncate(item.Name, cartNameWidth), item.Price.StringFixed(2), item.Quantity, lineTotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal Price: %s", total.StringFixed(2))
	return b.String()
}

// AddProduct resolves query to the best product and adds quantity of it
func (s *CartService) AddProduct(ctx context.Context, userID int64, query string, quantity int) string {
	if quantity <= 0 {
		return nonPositiveQty
	}

	product, err := s.matcher.BestMatch(ctx, query)
	if err != nil {
		return s.failure("add product", userID, err)
	}
	if product == nil {
		return noMatchedProducts
	}

	outcome, err := s.carts.AddQuantity(ctx, userID, product.ID, quantity)
	if err != nil {
		return s.failure("add product", userID, err)
	}
	s.logger.Info("product added to cart",
		zap.Int64("userId", userID),
		zap.Int64("productId", product.ID),
		zap.Int("quantity", quantity),
	)
	if outcome == domain.LineIncremented {
		return productAddedMore
	}
	return productAdded
}

// RemoveProduct deletes the in-cart line that best matches query
func (s *CartService) RemoveProduct(ctx context.Context, userID int64, query string) string {
	items, err := s.carts.CartItems(ctx, userID)
	if err != nil {
		return s.failure("remove product", userID, err)
	}

	productID, ok, err := s.matcher.BestMatchAmong(ctx, query, productIDs(items))
	if err != nil {
		return s.failure("remove product", userID, err)
	}
	if !ok {
		return productNotInCart
	}

	removed, err := s.carts.RemoveLine(ctx, userID, productID)
	if err != nil {
		return s.failure("remove product", userID, err)
	}
	if !removed {
		return productNotInCart
	}
	return operationDone
}

// UpdateQuantity overwrites the quantity of the in-cart line that best matches query
func (s *CartService) UpdateQuantity(ctx context.Context, userID int64, query string, quantity int) string {
	if quantity <= 0 {
		return nonPositiveQty
	}

	items, err := s.carts.CartItems(ctx, userID)
	if err != nil {
		return s.failure("update quantity", userID, err)
	}

	productID, ok, err := s.matcher.BestMatchAmong(ctx, query, productIDs(items))
	if err != nil {
		return s.failure("update quantity", userID, err)
	}
	if !ok {
		return productNotInCart
	}

	for _, item := range items {
		if item.ProductID == productID && item.Quantity == quantity {
			return sameQuantity
		}
	}

	updated, err := s.carts.SetQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return s.failure("update quantity", userID, err)
	}
	if !updated {
		return productNotInCart
	}
	return operationDone
}

// PayCart checks out the cart and renders the outcome
func (s *CartService) PayCart(ctx context.Context, userID int64) string {
	paid, err := s.Checkout(ctx, userID)
	if err != nil {
		return s.failure("pay cart", userID, err)
	}
	if paid == 0 {
		return nothingToPay
	}
	return operationDone
}

// Checkout moves every in-cart line to paid, stamping today and the estimated
// arrival. It returns the number of lines paid; zero means nothing was payable.
func (s *CartService) Checkout(ctx context.Context, userID int64) (int64, error) {
	today := s.today()
	arrival := today.AddDate(0, 0, s.deliveryDays)

	paid, err := s.carts.Checkout(ctx, userID, today, arrival)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}
	if paid > 0 {
		s.logger.Info("cart paid",
			zap.Int64("userId", userID),
			zap.Int64("lines", paid),
			zap.String("arrival", arrival.Format(dateLayout)),
		)
	}
	return paid, nil
}

// CheckStatus lists every line of the user with its status and arrival date
func (s *CartService) CheckStatus(ctx context.Context, userID int64) string {
	lines, err := s.Orders(ctx, userID)
	if err != nil {
		return s.failure("check status", userID, err)
	}
	if len(lines) == 0 {
		return noProducts
	}

	var b strings.Builder
	for _, line := range lines {
		arrival := arrivalUnscheduled
		if line.EstimatedArrival != nil {
			arrival = line.EstimatedArrival.Format(dateLayout)
		}
		fmt.Fprintf(&b, "Product: %s, Quantity: %d, Status: %s, Estimated Date Arrival: %s\n",
			line.Name, line.Quantity, line.Status, arrival)
	}
	return b.String()
}

// Orders returns every line of the user regardless of status
func (s *CartService) Orders(ctx context.Context, userID int64) ([]domain.OrderLine, error) {
	lines, err := s.carts.OrderLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}
	return lines, nil
}

// AddProductByID adds one unit of a known product
func (s *CartService) AddProductByID(ctx context.Context, userID, productID int64) (domain.AddOutcome, error) {
	products, err := s.catalog.ProductsByID(ctx, []int64{productID})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}
	if len(products) == 0 {
		return 0, domain.ErrProductNotFound
	}

	outcome, err := s.carts.AddQuantity(ctx, userID, productID, 1)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}
	return outcome, nil
}

// CartSummary returns the cart table shown next to the chat
func (s *CartService) CartSummary(ctx context.Context, userID int64) (*domain.CartSummary, error) {
	items, err := s.carts.CartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}

	summary := &domain.CartSummary{Rows: make([]domain.CartSummaryRow, 0, len(items)), Total: decimal.Zero}
	for _, item := range items {
		lineTotal := item.Total()
		summary.Rows = append(summary.Rows, domain.CartSummaryRow{
			Product:     truncate(item.Name, summaryNameWidth),
			PricePerQty: item.Price,
			Qty:         item.Quantity,
			Price:       lineTotal,
		})
		summary.Total = summary.Total.Add(lineTotal)
	}
	return summary, nil
}

func (s *CartService) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// failure logs err and renders it as an operation result
func (s *CartService) failure(op string, userID int64, err error) string {
	s.logger.Error("cart operation failed",
		zap.String("operation", op),
		zap.Int64("userId", userID),
		zap.Error(err),
	)
	return errorResult(err)
}

func errorResult(err error) string {
	return "Error: " + err.Error()
}

func productIDs(items []domain.CartItem) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	return ids
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
