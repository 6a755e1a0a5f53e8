package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/healthshop/clerk/internal/domain"
)

// OpenAIClient talks to the OpenAI API or any server speaking its chat and
// embeddings protocol
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	dims           int
	timeout        time.Duration
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(opts Options, logger *zap.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(cfg),
		chatModel:      opts.ChatModel,
		embeddingModel: opts.EmbeddingModel,
		dims:           opts.Dimensions,
		timeout:        opts.Timeout,
		limiter:        newLimiter(opts.RequestsPerSecond, opts.Burst),
		logger:         logger.With(zap.String("provider", "openai")),
	}
}

// Complete sends one completion request. When the menu is non-empty the model may
// answer with a tool call, which becomes Decision.Call.
func (c *OpenAIClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Decision, error) {
	if err := waitTurn(ctx, c.limiter); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, c.chatRequest(req))
	if err != nil {
		c.logger.Error("completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleFailure, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", domain.ErrOracleFailure)
	}

	decision := decisionFromMessage(resp.Choices[0].Message, c.logger)
	c.logger.Debug("completion done",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("call", decision.Call != nil),
		zap.Int("totalTokens", resp.Usage.TotalTokens),
	)
	return decision, nil
}

// Stream sends a completion request and relays the reply as fragments. The channel
// ends with a Done token, or an Error token when the stream breaks.
func (c *OpenAIClient) Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamToken, error) {
	if err := waitTurn(ctx, c.limiter); err != nil {
		return nil, err
	}

	chatReq := c.chatRequest(req)
	chatReq.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		c.logger.Error("stream request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleFailure, err)
	}

	out := make(chan domain.StreamToken)
	go func() {
		defer close(out)
		defer stream.Close()
		s := tokenSender{ctx: ctx, out: out}

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				s.send(domain.StreamToken{Done: true})
				return
			}
			if err != nil {
				s.send(domain.StreamToken{Error: fmt.Errorf("%w: %v", domain.ErrOracleFailure, err)})
				return
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !s.send(domain.StreamToken{Content: choice.Delta.Content}) {
					return
				}
			}
		}
	}()
	return out, nil
}

// Embed returns the embedding of text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := waitTurn(ctx, c.limiter); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(c.embeddingModel),
		Dimensions: c.dims,
	})
	if err != nil {
		c.logger.Error("embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailure, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", domain.ErrEmbeddingFailure)
	}

	vec := resp.Data[0].Embedding
	if c.dims > 0 && len(vec) != c.dims {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", domain.ErrEmbeddingFailure, len(vec), c.dims)
	}
	return vec, nil
}

func (c *OpenAIClient) chatRequest(req domain.CompletionRequest) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: chatMessages(req),
		Tools:    chatTools(req.Menu),
	}
}

func chatMessages(req domain.CompletionRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	return messages
}

func chatTools(menu []domain.OperationSpec) []openai.Tool {
	if len(menu) == 0 {
		return nil
	}
	tools := make([]openai.Tool, len(menu))
	for i, spec := range menu {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        string(spec.Kind),
				Description: spec.Description,
				Parameters:  spec.JSONSchema(),
			},
		}
	}
	return tools
}

// decisionFromMessage takes the first tool call, if any. Arguments that are not a
// JSON object decode to an empty map so the router reports them as invalid.
func decisionFromMessage(msg openai.ChatCompletionMessage, logger *zap.Logger) *domain.Decision {
	if len(msg.ToolCalls) == 0 {
		return &domain.Decision{Text: msg.Content}
	}

	fn := msg.ToolCalls[0].Function
	args := map[string]any{}
	if fn.Arguments != "" {
		if err := json.Unmarshal([]byte(fn.Arguments), &args); err != nil {
			logger.Warn("tool call arguments are not a JSON object",
				zap.String("operation", fn.Name), zap.Error(err))
			args = map[string]any{}
		}
	}
	return &domain.Decision{
		Text: msg.Content,
		Call: &domain.Call{Name: fn.Name, Args: args},
	}
}
