package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthshop/clerk/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data     map[string]interface{}
	getError error
	setError error
	sets     int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string]interface{})}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (interface{}, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

// MockEmbedder returns a fixed vector and counts calls
type MockEmbedder struct {
	vector []float32
	err    error
	calls  int
	texts  []string
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	m.texts = append(m.texts, text)
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

// MockCatalog serves canned rankings and an in-memory product table
type MockCatalog struct {
	products    map[int64]domain.Product
	semantic    []int64
	lexical     []int64
	semanticErr error
	lexicalErr  error
	byIDErr     error

	lexicalQueries []string
}

func NewMockCatalog(products ...domain.Product) *MockCatalog {
	m := &MockCatalog{products: make(map[int64]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MockCatalog) SemanticRanking(ctx context.Context, embedding []float32, filter *domain.PriceFilter, limit int) ([]int64, error) {
	if m.semanticErr != nil {
		return nil, m.semanticErr
	}
	return m.filtered(m.semantic, filter, limit), nil
}

func (m *MockCatalog) LexicalRanking(ctx context.Context, query string, filter *domain.PriceFilter, limit int) ([]int64, error) {
	m.lexicalQueries = append(m.lexicalQueries, query)
	if m.lexicalErr != nil {
		return nil, m.lexicalErr
	}
	return m.filtered(m.lexical, filter, limit), nil
}

func (m *MockCatalog) filtered(ids []int64, filter *domain.PriceFilter, limit int) []int64 {
	out := []int64{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok && !filter.Matches(p.Price) {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (m *MockCatalog) ProductsByID(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if m.byIDErr != nil {
		return nil, m.byIDErr
	}
	// Deliberately unordered: callers must restore rank order
	out := []domain.Product{}
	for i := len(ids) - 1; i >= 0; i-- {
		if p, ok := m.products[ids[i]]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// MemoryCarts is an in-memory domain.CartRepository
type MemoryCarts struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	lines    []domain.CartLine
	err      error
}

func NewMemoryCarts(products ...domain.Product) *MemoryCarts {
	m := &MemoryCarts{products: make(map[int64]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MemoryCarts) inCart(userID, productID int64) int {
	for i, l := range m.lines {
		if l.UserID == userID && l.ProductID == productID && l.Status == domain.StatusInCart {
			return i
		}
	}
	return -1
}

func (m *MemoryCarts) CartItems(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	items := []domain.CartItem{}
	for _, l := range m.lines {
		if l.UserID == userID && l.Status == domain.StatusInCart {
			p := m.products[l.ProductID]
			items = append(items, domain.CartItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: l.Quantity})
		}
	}
	return items, nil
}

func (m *MemoryCarts) AddQuantity(ctx context.Context, userID, productID int64, quantity int) (domain.AddOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if i := m.inCart(userID, productID); i >= 0 {
		m.lines[i].Quantity += quantity
		return domain.LineIncremented, nil
	}
	m.lines = append(m.lines, domain.CartLine{UserID: userID, ProductID: productID, Quantity: quantity, Status: domain.StatusInCart})
	return domain.LineInserted, nil
}

func (m *MemoryCarts) RemoveLine(ctx context.Context, userID, productID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	i := m.inCart(userID, productID)
	if i < 0 {
		return false, nil
	}
	m.lines = append(m.lines[:i], m.lines[i+1:]...)
	return true, nil
}

func (m *MemoryCarts) SetQuantity(ctx context.Context, userID, productID int64, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	i := m.inCart(userID, productID)
	if i < 0 {
		return false, nil
	}
	m.lines[i].Quantity = quantity
	return true, nil
}

func (m *MemoryCarts) Checkout(ctx context.Context, userID int64, paidOn, arrival time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	payable := false
	for _, l := range m.lines {
		if l.UserID == userID && l.Status == domain.StatusInCart && l.Quantity > 0 {
			payable = true
		}
	}
	if !payable {
		return 0, nil
	}
	var n int64
	for i := range m.lines {
		l := &m.lines[i]
		if l.UserID == userID && l.Status == domain.StatusInCart {
			paid, arr := paidOn, arrival
			l.Status, l.StatusDate, l.EstimatedArrival = domain.StatusPaid, &paid, &arr
			n++
		}
	}
	return n, nil
}

func (m *MemoryCarts) OrderLines(ctx context.Context, userID int64) ([]domain.OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []domain.OrderLine{}
	for _, l := range m.lines {
		if l.UserID == userID {
			out = append(out, domain.OrderLine{
				ProductID:        l.ProductID,
				Name:             m.products[l.ProductID].Name,
				Quantity:         l.Quantity,
				Status:           l.Status,
				EstimatedArrival: l.EstimatedArrival,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// ScriptedOracle replays canned first- and second-pass answers and records requests
type ScriptedOracle struct {
	mu        sync.Mutex
	decisions []*domain.Decision
	errs      []error
	stream    []domain.StreamToken
	streamErr error
	requests  []domain.CompletionRequest
	// holdStream keeps the stream open after the scripted tokens until ctx ends
	holdStream bool
}

func (o *ScriptedOracle) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Decision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i := len(o.requests)
	o.requests = append(o.requests, req)
	if i < len(o.errs) && o.errs[i] != nil {
		return nil, o.errs[i]
	}
	if i < len(o.decisions) {
		return o.decisions[i], nil
	}
	return &domain.Decision{Text: "ok"}, nil
}

func (o *ScriptedOracle) Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamToken, error) {
	o.mu.Lock()
	o.requests = append(o.requests, req)
	o.mu.Unlock()
	if o.streamErr != nil {
		return nil, o.streamErr
	}

	ch := make(chan domain.StreamToken)
	go func() {
		defer close(ch)
		for _, tok := range o.stream {
			select {
			case ch <- tok:
			case <-ctx.Done():
				return
			}
		}
		if o.holdStream {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (o *ScriptedOracle) Requests() []domain.CompletionRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.CompletionRequest(nil), o.requests...)
}

func call(name string, args map[string]any) *domain.Decision {
	return &domain.Decision{Call: &domain.Call{Name: name, Args: args}}
}

func product(id int64, name, price string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Link:        "https://shop.example/p/" + name,
	}
}
