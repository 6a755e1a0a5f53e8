package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/healthshop/clerk/internal/domain"
)

// ChatOracle is the completion half of the oracle
type ChatOracle interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Decision, error)
	Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamToken, error)
}

// Searcher runs hybrid catalog search
type Searcher interface {
	Search(ctx context.Context, query string, filter *domain.PriceFilter, limit int) ([]domain.ScoredProduct, error)
}

// CartOperations are the chat-facing cart operations. Each returns the status string
// the second pass phrases.
type CartOperations interface {
	ShowCart(ctx context.Context, userID int64) string
	AddProduct(ctx context.Context, userID int64, query string, quantity int) string
	RemoveProduct(ctx context.Context, userID int64, query string) string
	UpdateQuantity(ctx context.Context, userID int64, query string, quantity int) string
	PayCart(ctx context.Context, userID int64) string
	CheckStatus(ctx context.Context, userID int64) string
}

// routerState tracks where a turn is in the two-pass round trip
type routerState string

const (
	stateAwaitingDecision  routerState = "awaiting_decision"
	stateInvokingOperation routerState = "invoking_operation"
	stateComposingReply    routerState = "composing_reply"
	stateDone              routerState = "done"
)

// RouterConfig holds router settings
type RouterConfig struct {
	ShopName    string
	ResultLimit int
}

// Router turns a user message into a reply: the oracle picks an operation from the
// menu, the router runs it, and the oracle phrases the result.
type Router struct {
	oracle      ChatOracle
	search      Searcher
	cart        CartOperations
	prompts     Prompts
	menu        []domain.OperationSpec
	resultLimit int
	logger      *zap.Logger
}

// NewRouter creates a router
func NewRouter(oracle ChatOracle, search Searcher, cart CartOperations, logger *zap.Logger, config RouterConfig) *Router {
	limit := config.ResultLimit
	if limit <= 0 {
		limit = 5
	}
	return &Router{
		oracle:      oracle,
		search:      search,
		cart:        cart,
		prompts:     NewPrompts(config.ShopName),
		menu:        Menu(),
		resultLimit: limit,
		logger:      logger,
	}
}

// Reply is the outcome of one turn
type Reply struct {
	Text string
	// Operation is the operation that ran, empty when none did
	Operation domain.OperationKind
	// Conversation is the input history plus this turn's user and assistant messages
	Conversation domain.Conversation
}

// StreamReply is a turn whose final text arrives as ordered fragments. The channel
// is closed after a token with Done or Error set.
type StreamReply struct {
	Operation domain.OperationKind
	Tokens    <-chan domain.StreamToken
}

// turn carries the state of one message through the round trip
type turn struct {
	userID  int64
	message string
	state   routerState
	kind    domain.OperationKind
	result  string
	text    string // set when the turn ends without a second pass
}

// Respond handles one user message and returns the whole reply
func (r *Router) Respond(ctx context.Context, userID int64, history domain.Conversation, message string) (*Reply, error) {
	t, err := r.decide(ctx, userID, history, message)
	if err != nil {
		return nil, err
	}

	if t.state == stateComposingReply {
		decision, err := r.oracle.Complete(ctx, r.secondPass(t))
		if err != nil {
			r.logger.Error("second pass failed", zap.String("operation", string(t.kind)), zap.Error(err))
			t.text = tryAgainReply
		} else {
			t.text = decision.Text
		}
		r.advance(t, stateDone)
	}

	return &Reply{
		Text:         t.text,
		Operation:    t.kind,
		Conversation: history.Append(domain.Turn{Role: domain.RoleUser, Text: message}, domain.Turn{Role: domain.RoleAssistant, Text: t.text}),
	}, nil
}

// RespondStream handles one user message and streams the reply. The operation, if
// any, has already run when RespondStream returns; cancelling ctx only stops the
// stream.
func (r *Router) RespondStream(ctx context.Context, userID int64, history domain.Conversation, message string) (*StreamReply, error) {
	t, err := r.decide(ctx, userID, history, message)
	if err != nil {
		return nil, err
	}

	if t.state == stateDone {
		return &StreamReply{Operation: t.kind, Tokens: singleToken(t.text)}, nil
	}

	upstream, err := r.oracle.Stream(ctx, r.secondPass(t))
	if err != nil {
		r.logger.Error("second pass stream failed", zap.String("operation", string(t.kind)), zap.Error(err))
		r.advance(t, stateDone)
		return &StreamReply{Operation: t.kind, Tokens: singleToken(tryAgainReply)}, nil
	}

	out := make(chan domain.StreamToken)
	go r.forward(ctx, t, upstream, out)
	return &StreamReply{Operation: t.kind, Tokens: out}, nil
}

// decide runs the first pass and, for call requests, the operation. On return the
// turn is either done with its text set or ready for the second pass.
func (r *Router) decide(ctx context.Context, userID int64, history domain.Conversation, message string) (*turn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrInvalidRequest)
	}
	if !history.Valid() {
		return nil, fmt.Errorf("%w: history contains an unknown role", domain.ErrInvalidRequest)
	}

	t := &turn{userID: userID, message: message, state: stateAwaitingDecision}

	decision, err := r.oracle.Complete(ctx, domain.CompletionRequest{
		System:  r.prompts.Priming(userID),
		History: history.Append(domain.Turn{Role: domain.RoleUser, Text: message}),
		Menu:    r.menu,
	})
	if err != nil {
		r.logger.Error("first pass failed", zap.Int64("userId", userID), zap.Error(err))
		t.text = tryAgainReply
		r.advance(t, stateDone)
		return t, nil
	}

	if decision.Call == nil {
		t.text = decision.Text
		r.advance(t, stateDone)
		return t, nil
	}

	op, err := domain.DecodeOperation(decision.Call.Name, decision.Call.Args, userID)
	switch {
	case errors.Is(err, domain.ErrUnknownOperation):
		r.logger.Warn("oracle requested unknown operation", zap.String("name", decision.Call.Name))
		t.text = unclearRequestReply
		r.advance(t, stateDone)
		return t, nil
	case err != nil:
		// Known operation with unusable arguments: the second pass explains the error
		t.kind = domain.OperationKind(decision.Call.Name)
		t.result = errorResult(err)
		r.advance(t, stateComposingReply)
		return t, nil
	}

	t.kind = op.Kind()
	r.advance(t, stateInvokingOperation)
	t.result = r.invoke(ctx, op)
	r.advance(t, stateComposingReply)
	return t, nil
}

// invoke dispatches op to the retriever or the cart operations
func (r *Router) invoke(ctx context.Context, op domain.Operation) string {
	switch op := op.(type) {
	case domain.SearchProducts:
		results, err := r.search.Search(ctx, op.Query, op.PriceFilter, r.resultLimit)
		if err != nil {
			r.logger.Error("search failed", zap.String("query", op.Query), zap.Error(err))
			return errorResult(err)
		}
		return FormatSearchResults(results)
	case domain.ShowCart:
		return r.cart.ShowCart(ctx, op.UserID)
	case domain.AddProductToCart:
		return r.cart.AddProduct(ctx, op.UserID, op.Query, op.Quantity)
	case domain.RemoveProductFromCart:
		return r.cart.RemoveProduct(ctx, op.UserID, op.Query)
	case domain.UpdateProductQuantity:
		return r.cart.UpdateQuantity(ctx, op.UserID, op.Query, op.Quantity)
	case domain.PayCart:
		return r.cart.PayCart(ctx, op.UserID)
	case domain.CheckProductsStatus:
		return r.cart.CheckStatus(ctx, op.UserID)
	default:
		panic(fmt.Sprintf("usecase: unhandled operation %T", op))
	}
}

func (r *Router) secondPass(t *turn) domain.CompletionRequest {
	return domain.CompletionRequest{
		System:  r.prompts.SecondPass(t.kind),
		History: domain.Conversation{{Role: domain.RoleUser, Text: sourcesMessage(t.message, t.result)}},
	}
}

// forward relays upstream tokens to out until a terminal token, upstream closing, or
// ctx being cancelled
func (r *Router) forward(ctx context.Context, t *turn, upstream <-chan domain.StreamToken, out chan<- domain.StreamToken) {
	defer close(out)

	send := func(tok domain.StreamToken) bool {
		select {
		case out <- tok:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("stream cancelled", zap.String("operation", string(t.kind)))
			return
		case tok, ok := <-upstream:
			if !ok {
				r.advance(t, stateDone)
				send(domain.StreamToken{Done: true})
				return
			}
			if tok.Error != nil {
				r.logger.Error("second pass stream broke", zap.String("operation", string(t.kind)), zap.Error(tok.Error))
			}
			if !send(tok) {
				return
			}
			if tok.Done || tok.Error != nil {
				r.advance(t, stateDone)
				return
			}
		}
	}
}

func (r *Router) advance(t *turn, next routerState) {
	r.logger.Debug("router state",
		zap.Int64("userId", t.userID),
		zap.String("from", string(t.state)),
		zap.String("to", string(next)),
		zap.String("operation", string(t.kind)),
	)
	t.state = next
}

// singleToken streams text as one fragment followed by completion
func singleToken(text string) <-chan domain.StreamToken {
	ch := make(chan domain.StreamToken, 2)
	ch <- domain.StreamToken{Content: text}
	ch <- domain.StreamToken{Done: true}
	close(ch)
	return ch
}
