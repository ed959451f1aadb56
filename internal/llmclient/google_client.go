// File: internal/llmclient/google_client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/config"
)

// uuidNewString is swappable for deterministic tests.
var uuidNewString = uuid.NewString

// GoogleClient implements schemas.LLMClient against the Gemini REST API.
type GoogleClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	config     config.LLMConfig
	// backoffFactory builds the retry policy per call; tests swap it for a
	// fast constant backoff.
	backoffFactory func() backoff.BackOff
}

// -- Gemini API Request/Response Structures (Internal to this file) --

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

// geminiPart is a union: exactly one of Text, FunctionCall or FunctionResponse
// is set.
type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	Tools             []geminiTool             `json:"tools,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig,omitempty"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

var _ schemas.LLMClient = (*GoogleClient)(nil)

// NewGoogleClient initializes the client.
func NewGoogleClient(cfg config.LLMConfig, logger *zap.Logger) (*GoogleClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return &GoogleClient{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		config:   cfg,
		limiter:  limiter,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("llm_client.google"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			b.MaxInterval = 30 * time.Second
			return b
		},
	}, nil
}

// Complete runs one multi-turn step with the tool vocabulary attached. The
// model either requests function calls or produces the final text for the
// turn.
func (c *GoogleClient) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.Completion, error) {
	payload, err := c.buildCompletionPayload(req)
	if err != nil {
		return nil, err
	}

	respPayload, err := c.call(ctx, payload)
	if err != nil {
		return nil, err
	}

	completion := &schemas.Completion{}
	for _, part := range respPayload.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args := part.FunctionCall.Args
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			completion.ToolCalls = append(completion.ToolCalls, schemas.ToolCall{
				// The wire protocol carries no call IDs; mint one so results
				// can be correlated back to their requests.
				ID:        uuidNewString(),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		case part.Text != "":
			completion.FinalText += part.Text
		}
	}
	return completion, nil
}

// Generate runs a one-shot prompt with no tool vocabulary.
func (c *GoogleClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	genConfig := geminiGenerationConfig{
		Temperature:     float64(req.Options.Temperature),
		MaxOutputTokens: c.config.MaxTokens,
	}
	if req.Options.ForceJSONFormat {
		genConfig.ResponseMimeType = "application/json"
	}

	payload := geminiRequestPayload{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.UserPrompt}}},
		},
		GenerationConfig: genConfig,
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiSystemInstruction{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}

	respPayload, err := c.call(ctx, payload)
	if err != nil {
		return "", err
	}

	var text string
	for _, part := range respPayload.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text, nil
}

func (c *GoogleClient) buildCompletionPayload(req schemas.CompletionRequest) (geminiRequestPayload, error) {
	payload := geminiRequestPayload{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     float64(c.config.Temperature),
			MaxOutputTokens: c.config.MaxTokens,
		},
	}

	if len(req.Tools) > 0 {
		decls := make([]geminiFunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, geminiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		payload.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	for _, msg := range req.Transcript {
		switch msg.Role {
		case schemas.RoleSystem:
			payload.SystemInstruction = &geminiSystemInstruction{
				Parts: []geminiPart{{Text: msg.Content}},
			}
		case schemas.RoleUser:
			payload.Contents = append(payload.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		case schemas.RoleAssistant:
			content := geminiContent{Role: "model"}
			if len(msg.ToolCalls) > 0 {
				for _, call := range msg.ToolCalls {
					content.Parts = append(content.Parts, geminiPart{
						FunctionCall: &geminiFunctionCall{
							Name: call.Name,
							Args: call.Arguments,
						},
					})
				}
			} else {
				content.Parts = []geminiPart{{Text: msg.Content}}
			}
			payload.Contents = append(payload.Contents, content)
		case schemas.RoleTool:
			// Function responses travel back under the user role.
			payload.Contents = append(payload.Contents, geminiContent{
				Role: "user",
				Parts: []geminiPart{{
					FunctionResponse: &geminiFunctionResponse{
						Name:     msg.ToolName,
						Response: msg.Result,
					},
				}},
			})
		default:
			return geminiRequestPayload{}, fmt.Errorf("unsupported transcript role %q", msg.Role)
		}
	}
	return payload, nil
}

// call executes one generateContent request with retries and returns a payload
// guaranteed to hold at least one candidate with non-empty parts.
func (c *GoogleClient) call(ctx context.Context, payload geminiRequestPayload) (*geminiResponsePayload, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	b := c.backoffFactory()

	var responsePayload geminiResponsePayload

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		responsePayload = geminiResponsePayload{}
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		if len(responsePayload.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("google API returned no candidates"))
		}

		candidate := responsePayload.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("google API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("google API returned empty content parts (Reason: %s)", candidate.FinishReason)
		}

		c.logger.Info("LLM generation complete (Google)",
			zap.Duration("duration", duration),
			zap.Int("prompt_tokens", responsePayload.UsageMetadata.PromptTokenCount),
			zap.Int("completion_tokens", responsePayload.UsageMetadata.CandidatesTokenCount),
			zap.Int("total_tokens", responsePayload.UsageMetadata.TotalTokenCount),
		)
		return nil
	}

	if err = backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return &responsePayload, nil
}

func (c *GoogleClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Google API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("google API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err) // Permanent errors.
	}
}
