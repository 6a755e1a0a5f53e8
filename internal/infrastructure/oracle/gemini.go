package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/healthshop/clerk/internal/domain"
)

// GeminiClient talks to the Gemini API through the genai SDK
type GeminiClient struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	dims           int
	timeout        time.Duration
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, opts Options, logger *zap.Logger) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		chatModel:      opts.ChatModel,
		embeddingModel: opts.EmbeddingModel,
		dims:           opts.Dimensions,
		timeout:        opts.Timeout,
		limiter:        newLimiter(opts.RequestsPerSecond, opts.Burst),
		logger:         logger.With(zap.String("provider", "gemini")),
	}, nil
}

// Complete sends one generateContent request with the menu as function declarations
func (c *GeminiClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.Decision, error) {
	if err := waitTurn(ctx, c.limiter); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, geminiContents(req.History), geminiConfig(req))
	if err != nil {
		c.logger.Error("completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("%w: %v", domain.ErrOracleFailure, err)
	}

	decision, err := decisionFromResponse(resp)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("completion done", zap.Duration("elapsed", time.Since(start)), zap.Bool("call", decision.Call != nil))
	return decision, nil
}

// Stream relays generateContent stream chunks as fragments
func (c *GeminiClient) Stream(ctx context.Context, req domain.CompletionRequest) (<-chan domain.StreamToken, error) {
	if err := waitTurn(ctx, c.limiter); err != nil {
		return nil, err
	}

	contents := geminiContents(req.History)
	cfg := geminiConfig(req)
	out := make(chan domain.StreamToken)
	go func() {
		defer close(out)
		s := tokenSender{ctx: ctx, out: out}

		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.chatModel, contents, cfg) {
			if err != nil {
				c.logger.Error("stream broke", zap.Error(err))
				s.send(domain.StreamToken{Error: fmt.Errorf("%w: %v", domain.ErrOracleFailure, err)})
				return
			}
			if text := responseText(resp); text != "" {
				if !s.send(domain.StreamToken{Content: text}) {
					return
				}
			}
		}
		s.send(domain.StreamToken{Done: true})
	}()
	return out, nil
}

// Embed returns the retrieval-query embedding of text
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := waitTurn(ctx, c.limiter); err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"}
	if c.dims > 0 {
		dims := int32(c.dims)
		cfg.OutputDimensionality = &dims
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		c.logger.Error("embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailure, err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("%w: no embeddings returned", domain.ErrEmbeddingFailure)
	}

	vec := resp.Embeddings[0].Values
	if c.dims > 0 && len(vec) != c.dims {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", domain.ErrEmbeddingFailure, len(vec), c.dims)
	}
	return vec, nil
}

func geminiContents(history domain.Conversation) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, genai.Role(role)))
	}
	return contents
}

func geminiConfig(req domain.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Menu) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Menu))
		for i, spec := range req.Menu {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 string(spec.Kind),
				Description:          spec.Description,
				ParametersJsonSchema: spec.JSONSchema(),
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

// decisionFromResponse reads the first candidate. The first function call wins over text.
func decisionFromResponse(resp *genai.GenerateContentResponse) (*domain.Decision, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no candidates returned", domain.ErrOracleFailure)
	}

	decision := &domain.Decision{}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil && decision.Call == nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			decision.Call = &domain.Call{Name: part.FunctionCall.Name, Args: args}
		}
		text.WriteString(part.Text)
	}
	decision.Text = text.String()
	return decision, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	return text.String()
}
