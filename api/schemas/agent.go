package schemas

import (
	"encoding/json"
	"time"
)

// -- Conversation Schemas --

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"    // Seed instruction injected when a session is created.
	RoleUser      Role = "user"      // Free-text instruction from the caller.
	RoleAssistant Role = "assistant" // Reasoning-service output (text or tool calls).
	RoleTool      Role = "tool"      // Result of a single tool call, correlated by call ID.
)

// Message is one entry in a session transcript. Exactly one of Content or
// ToolCalls is populated for assistant messages; tool messages carry the
// result payload for the call identified by ToolCallID.
type Message struct {
	Role       Role            `json:"role"`
	Content    string          `json:"content,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// ToolCall is a single capability invocation requested by the reasoning
// service. The ID is unique within a turn and correlates the eventual result
// back to this request.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// StepType tags the variant of a StepLogEntry.
type StepType string

const (
	StepToolCall       StepType = "tool_call"
	StepToolResult     StepType = "tool_result"
	StepAssistantFinal StepType = "assistant_final"
)

// StepLogEntry is one record in the per-turn step log. It is consumed
// read-only by progress reporting (the steps endpoint and the WebSocket
// stream); which fields are set depends on Type.
type StepLogEntry struct {
	Type      StepType        `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Calls     []ToolCall      `json:"calls,omitempty"`   // tool_call: the whole batch, in request order.
	Name      string          `json:"name,omitempty"`    // tool_result: capability name.
	Args      json.RawMessage `json:"args,omitempty"`    // tool_result: arguments as requested.
	Result    json.RawMessage `json:"result,omitempty"`  // tool_result: normalized result or failure.
	Content   string          `json:"content,omitempty"` // assistant_final: raw answer text.
}

// PermissionField describes one input the caller must collect before
// resubmitting a permission response.
type PermissionField struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Placeholder string `json:"placeholder,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}

// PermissionRequest is produced by the reasoning service's final answer and
// surfaced verbatim to the caller. When Required is true the caller collects
// the declared fields and resubmits them as a PermissionResponse marker.
type PermissionRequest struct {
	Required bool              `json:"required"`
	Reason   string            `json:"reason,omitempty"`
	Fields   []PermissionField `json:"fields,omitempty"`
}

// PermissionResponseKey is the marker property of a follow-up prompt whose
// entire body is a permission response. The loop treats such prompts as
// ordinary user input; recognizing the marker is the reasoning service's job.
const PermissionResponseKey = "__permissionResponse"

// AgentResponse is the structured envelope returned for one completed turn.
type AgentResponse struct {
	SessionID         string            `json:"sessionId"`
	VisibleResponse   string            `json:"visibleResponse"`
	ThoughtProcess    string            `json:"thoughtProcess,omitempty"`
	NextStep          string            `json:"nextStep,omitempty"`
	PermissionRequest PermissionRequest `json:"permissionRequest"`
	ToolsUsed         []string          `json:"toolsUsed"`
	StepLog           []StepLogEntry    `json:"stepLog"`
}
