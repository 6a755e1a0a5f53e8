package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthshop/clerk/internal/domain"
)

// ChatRequest is one user message plus the conversation so far
type ChatRequest struct {
	UserID   int64         `json:"userId"`
	Messages []MessageJSON `json:"messages" binding:"dive"`
	Message  string        `json:"message" binding:"required"`
}

// MessageJSON is one conversation turn on the wire
type MessageJSON struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// ChatResponse carries the reply and the conversation to send back next turn
type ChatResponse struct {
	Reply     string        `json:"reply"`
	Operation string        `json:"operation,omitempty"`
	Messages  []MessageJSON `json:"messages"`
}

// ProductJSON is a search hit
type ProductJSON struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Link        string          `json:"link,omitempty"`
	Score       float64         `json:"score"`
}

// SearchResponse lists fused search results, best first
type SearchResponse struct {
	Query   string        `json:"query"`
	Filter  string        `json:"filter,omitempty"`
	Results []ProductJSON `json:"results"`
}

// AddItemRequest adds one unit of a catalog product
type AddItemRequest struct {
	ProductID int64 `json:"productId" binding:"required,gt=0"`
}

// AddItemResponse tells whether a line was created or incremented
type AddItemResponse struct {
	ProductID int64  `json:"productId"`
	Outcome   string `json:"outcome"`
}

// PayResponse reports how many lines checkout moved to paid
type PayResponse struct {
	LinesPaid int64  `json:"linesPaid"`
	Message   string `json:"message"`
}

// OrderJSON is one cart line with its status
type OrderJSON struct {
	ProductID        int64   `json:"productId"`
	Name             string  `json:"name"`
	Quantity         int     `json:"quantity"`
	Status           string  `json:"status"`
	EstimatedArrival *string `json:"estimatedArrival"`
}

// OrdersResponse lists every line of a user
type OrdersResponse struct {
	UserID int64       `json:"userId"`
	Orders []OrderJSON `json:"orders"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

func toConversation(messages []MessageJSON) domain.Conversation {
	conv := make(domain.Conversation, len(messages))
	for i, m := range messages {
		conv[i] = domain.Turn{Role: domain.Role(m.Role), Text: m.Content}
	}
	return conv
}

func fromConversation(conv domain.Conversation) []MessageJSON {
	messages := make([]MessageJSON, len(conv))
	for i, t := range conv {
		messages[i] = MessageJSON{Role: string(t.Role), Content: t.Text}
	}
	return messages
}

func toProductsJSON(results []domain.ScoredProduct) []ProductJSON {
	out := make([]ProductJSON, len(results))
	for i, r := range results {
		out[i] = ProductJSON{
			ID:          r.Product.ID,
			Name:        r.Product.Name,
			Description: r.Product.Description,
			Price:       r.Product.Price,
			Link:        r.Product.Link,
			Score:       r.Score,
		}
	}
	return out
}

func toOrdersJSON(lines []domain.OrderLine) []OrderJSON {
	out := make([]OrderJSON, len(lines))
	for i, l := range lines {
		o := OrderJSON{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			Status:    l.Status.String(),
		}
		if l.EstimatedArrival != nil {
			d := l.EstimatedArrival.Format(time.DateOnly)
			o.EstimatedArrival = &d
		}
		out[i] = o
	}
	return out
}

func outcomeName(o domain.AddOutcome) string {
	if o == domain.LineIncremented {
		return "incremented"
	}
	return "added"
}
