// File: internal/agent/controller.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/capability"
	"github.com/xkilldash9x/conductor/internal/config"
	"github.com/xkilldash9x/conductor/internal/session"
)

// systemPrompt seeds every new session. It binds the reasoning service to the
// tool vocabulary and the tagged final-answer envelope.
const systemPrompt = `You are an assistant that operates documents, web pages and the screen on the
user's behalf through the provided tools.

Work in steps: call tools until the task is done, then answer. When a tool
fails, its result explains why; adapt instead of repeating the same call.

Your final message of a turn must be a single JSON object:
{
  "visibleResponse": "<what the user should read>",
  "thoughtProcess": "<brief reasoning summary>",
  "nextStep": "<what you would do next, if anything>",
  "permissionRequest": {
    "required": <true only when you need credentials or explicit consent>,
    "reason": "<why>",
    "fields": [{"id":"...","label":"...","type":"text|password|email"}]
  }
}

When a user message is a JSON object with "__permissionResponse": true, its
"values" carry the fields you asked for; continue the task with them.`

// ErrMaxIterations reports that a turn hit the configured iteration cap
// without the reasoning service producing a final answer. The turn is a
// terminal failure; the partial step log stays readable on the session.
var ErrMaxIterations = errors.New("agent: max iterations exceeded")

// Controller drives one conversation turn at a time: transcript to reasoning
// service, requested tool calls to the capability registry, results back into
// the transcript, until a final answer ends the turn.
type Controller struct {
	llm      schemas.LLMClient
	registry *capability.Registry
	store    session.Store
	cfg      config.AgentConfig
	logger   *zap.Logger
}

// NewController wires the loop's collaborators.
func NewController(llm schemas.LLMClient, registry *capability.Registry, store session.Store, cfg config.AgentConfig, logger *zap.Logger) *Controller {
	return &Controller{
		llm:      llm,
		registry: registry,
		store:    store,
		cfg:      cfg,
		logger:   logger.Named("agent"),
	}
}

// Store exposes the session store for read-only consumers (the steps
// endpoint and the stream).
func (c *Controller) Store() session.Store { return c.store }

// Specs exposes the declared tool vocabulary.
func (c *Controller) Specs() []schemas.ToolSpec { return c.registry.Specs() }

// FormatPermissionResponse renders collected permission values as the marker
// message the reasoning service was told to expect.
func FormatPermissionResponse(values map[string]string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		schemas.PermissionResponseKey: true,
		"values":                      values,
	})
	if err != nil {
		return "", fmt.Errorf("agent: marshal permission response: %w", err)
	}
	return string(payload), nil
}

// HandleMessage runs one full turn for the session. Tool failures are data in
// the transcript, never turn aborts; only reasoning-service transport
// failures return an error.
func (c *Controller) HandleMessage(ctx context.Context, sessionID, userText string) (*schemas.AgentResponse, error) {
	if c.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.TurnTimeout)
		defer cancel()
	}

	sess := c.store.GetOrCreate(sessionID, systemPrompt)
	sess.LockTurn()
	defer sess.UnlockTurn()

	sess.BeginTurn()
	sess.Append(schemas.Message{Role: schemas.RoleUser, Content: userText})

	logger := c.logger.With(zap.String("session_id", sess.ID()))
	toolsUsed := make([]string, 0, 4)

	for iteration := 0; iteration < c.cfg.MaxIterations; iteration++ {
		completion, err := c.llm.Complete(ctx, schemas.CompletionRequest{
			Transcript: sess.Transcript(),
			Tools:      c.registry.Specs(),
		})
		if err != nil {
			logger.Error("Reasoning service call failed", zap.Int("iteration", iteration), zap.Error(err))
			return nil, fmt.Errorf("agent: reasoning service: %w", err)
		}

		if len(completion.ToolCalls) == 0 {
			return c.finishTurn(sess, completion.FinalText, toolsUsed), nil
		}

		sess.Append(schemas.Message{
			Role:      schemas.RoleAssistant,
			ToolCalls: completion.ToolCalls,
		})
		sess.LogStep(schemas.StepLogEntry{
			Type:      schemas.StepToolCall,
			Timestamp: time.Now(),
			Calls:     completion.ToolCalls,
		})

		results := c.executeBatch(ctx, completion.ToolCalls)

		// Reattach results strictly in request order, one tool message per
		// call, correlated by call ID.
		for i, call := range completion.ToolCalls {
			payload, err := json.Marshal(results[i])
			if err != nil {
				payload = []byte(fmt.Sprintf(`{"status":"failed","error_code":"SURFACE_FAILURE","error":%q}`, err.Error()))
			}
			sess.Append(schemas.Message{
				Role:       schemas.RoleTool,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Result:     payload,
			})
			sess.LogStep(schemas.StepLogEntry{
				Type:      schemas.StepToolResult,
				Timestamp: time.Now(),
				Name:      call.Name,
				Args:      call.Arguments,
				Result:    payload,
			})
			toolsUsed = append(toolsUsed, call.Name)
		}

		logger.Debug("Tool batch complete",
			zap.Int("iteration", iteration),
			zap.Int("calls", len(completion.ToolCalls)),
		)
	}

	logger.Warn("Iteration budget exhausted", zap.Int("max_iterations", c.cfg.MaxIterations))
	return nil, fmt.Errorf("%w after %d iterations", ErrMaxIterations, c.cfg.MaxIterations)
}

// executeBatch runs one batch of tool calls and returns results positionally
// aligned with the requests. Failures are result values.
func (c *Controller) executeBatch(ctx context.Context, calls []schemas.ToolCall) []schemas.CapabilityResult {
	results := make([]schemas.CapabilityResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ToolConcurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = c.registry.Invoke(gctx, call.Name, call.Arguments)
			return nil
		})
	}
	// Workers never return errors; Wait is for completion only.
	_ = g.Wait()

	return results
}

// finishTurn records the final assistant message and assembles the response
// envelope.
func (c *Controller) finishTurn(sess *session.Session, raw string, toolsUsed []string) *schemas.AgentResponse {
	sess.Append(schemas.Message{Role: schemas.RoleAssistant, Content: raw})
	sess.LogStep(schemas.StepLogEntry{
		Type:      schemas.StepAssistantFinal,
		Timestamp: time.Now(),
		Content:   raw,
	})

	answer, structured := parseFinalAnswer(raw)
	if !structured {
		c.logger.Debug("Final answer was not structured; returning raw text",
			zap.String("session_id", sess.ID()))
	}

	return &schemas.AgentResponse{
		SessionID:         sess.ID(),
		VisibleResponse:   answer.VisibleResponse,
		ThoughtProcess:    answer.ThoughtProcess,
		NextStep:          answer.NextStep,
		PermissionRequest: answer.PermissionRequest,
		ToolsUsed:         dedupe(toolsUsed),
		StepLog:           sess.Steps(),
	}
}

// dedupe keeps the first occurrence of each tool name in order.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
