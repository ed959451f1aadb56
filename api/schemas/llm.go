package schemas

import (
	"context"
	"encoding/json"
)

// -- Reasoning-Service Schemas --

// ToolSpec declares one capability to the reasoning service: its name, what
// it does, and a JSON-schema description of its arguments.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// CompletionRequest asks the reasoning service for its next move given the
// full transcript and the available tool vocabulary.
type CompletionRequest struct {
	Transcript []Message
	Tools      []ToolSpec
}

// Completion is the reasoning service's answer to a CompletionRequest.
// Either ToolCalls is non-empty (the service wants capabilities executed and
// their results replayed) or FinalText carries the plain answer that ends
// the turn. Both empty is treated as an empty final answer.
type Completion struct {
	ToolCalls []ToolCall
	FinalText string
}

// GenerationOptions tunes a one-shot generation call.
type GenerationOptions struct {
	Temperature     float32
	ForceJSONFormat bool
}

// GenerationRequest is a single system+user prompt pair used for the
// planner's structured decisions and the extract QA sub-call.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}

// LLMClient is the contract for driving an external reasoning service. The
// orchestration loop depends only on this interface so alternate providers
// can be substituted.
type LLMClient interface {
	// Complete runs one multi-turn step: it may request tool calls or
	// produce the final text for the turn.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	// Generate runs a one-shot prompt with no tool vocabulary.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
