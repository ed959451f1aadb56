// File: internal/capability/registry.go
package capability

import (
	"context"
	encodingjson "encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/planner"
	"github.com/xkilldash9x/conductor/internal/resolve"
)

// HandlerFunc executes one capability. Handlers return domain errors; the
// registry maps them onto the uniform result envelope.
type HandlerFunc func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error)

// entry pairs a tool declaration with its executor.
type entry struct {
	spec    schemas.ToolSpec
	handler HandlerFunc
}

// Registry stores the capability vocabulary keyed by tool name. The set is
// fixed at startup; Invoke never returns a Go error because every failure is
// data the reasoning service must see.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  *zap.Logger
}

// NewRegistry creates an empty capability registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]entry),
		logger:  logger.Named("capability"),
	}
}

// Register adds a capability. Duplicate names are a programming error.
func (r *Registry) Register(spec schemas.ToolSpec, handler HandlerFunc) error {
	if spec.Name == "" {
		return fmt.Errorf("capability: tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("capability: handler is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[spec.Name]; exists {
		return fmt.Errorf("capability: %s already registered", spec.Name)
	}
	r.entries[spec.Name] = entry{spec: spec, handler: handler}
	return nil
}

// MustRegister adds a capability or panics. Used during startup wiring.
func (r *Registry) MustRegister(spec schemas.ToolSpec, handler HandlerFunc) {
	if err := r.Register(spec, handler); err != nil {
		panic(err)
	}
}

// Specs returns the declared tool vocabulary sorted by name.
func (r *Registry) Specs() []schemas.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]schemas.ToolSpec, 0, len(r.entries))
	for _, e := range r.entries {
		specs = append(specs, e.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Invoke runs one capability and always produces a result envelope. Unknown
// names, bad parameters and surface failures all come back as failed results
// so the conversation can continue.
func (r *Registry) Invoke(ctx context.Context, name string, args encodingjson.RawMessage) schemas.CapabilityResult {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("Unknown capability requested", zap.String("tool", name))
		return failure(schemas.ErrCodeUnknownCapability, fmt.Sprintf("unknown capability %q", name))
	}

	data, err := e.handler(ctx, args)
	if err != nil {
		code := classify(err)
		r.logger.Warn("Capability failed",
			zap.String("tool", name),
			zap.String("error_code", string(code)),
			zap.Error(err),
		)
		return failure(code, err.Error())
	}

	return schemas.CapabilityResult{
		Status: schemas.CapabilityOK,
		Data:   data,
	}
}

// errInvalidParams marks argument decoding or validation failures inside
// handlers.
var errInvalidParams = errors.New("invalid parameters")

// classify maps a handler error onto the structured failure code reported to
// the reasoning service.
func classify(err error) schemas.ErrorCode {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return schemas.ErrCodeTimeout
	case errors.Is(err, errInvalidParams):
		return schemas.ErrCodeInvalidParameters
	case errors.Is(err, resolve.ErrNotFound):
		return schemas.ErrCodeTargetNotFound
	case errors.Is(err, planner.ErrInvalidPlan):
		return schemas.ErrCodeInvalidPlan
	default:
		return schemas.ErrCodeSurfaceFailure
	}
}

func failure(code schemas.ErrorCode, msg string) schemas.CapabilityResult {
	return schemas.CapabilityResult{
		Status:    schemas.CapabilityFailed,
		ErrorCode: code,
		Error:     msg,
	}
}
