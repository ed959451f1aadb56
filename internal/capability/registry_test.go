package capability

import (
	"context"
	encodingjson "encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/planner"
	"github.com/xkilldash9x/conductor/internal/resolve"
)

func testSpec(name string) schemas.ToolSpec {
	return schemas.ToolSpec{
		Name:        name,
		Description: "test tool",
		Parameters:  encodingjson.RawMessage(`{"type":"object","properties":{}}`),
	}
}

func TestRegistry_RegisterAndSpecs(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	noop := func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		return encodingjson.RawMessage(`{}`), nil
	}

	require.NoError(t, r.Register(testSpec("zeta"), noop))
	require.NoError(t, r.Register(testSpec("alpha"), noop))

	specs := r.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name, "specs must be sorted by name")
	assert.Equal(t, "zeta", specs[1].Name)
}

func TestRegistry_RejectsDuplicatesAndBlanks(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	noop := func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) { return nil, nil }

	require.NoError(t, r.Register(testSpec("dup"), noop))
	assert.Error(t, r.Register(testSpec("dup"), noop))
	assert.Error(t, r.Register(testSpec(""), noop))
	assert.Error(t, r.Register(testSpec("nil_handler"), nil))
}

func TestRegistry_InvokeSuccess(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.MustRegister(testSpec("echo"), func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		return args, nil
	})

	result := r.Invoke(context.Background(), "echo", encodingjson.RawMessage(`{"x":1}`))

	assert.True(t, result.OK())
	assert.JSONEq(t, `{"x":1}`, string(result.Data))
	assert.Empty(t, result.ErrorCode)
}

func TestRegistry_InvokeUnknownCapability(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	result := r.Invoke(context.Background(), "teleport", nil)

	assert.False(t, result.OK())
	assert.Equal(t, schemas.ErrCodeUnknownCapability, result.ErrorCode)
	assert.Contains(t, result.Error, "teleport")
}

func TestRegistry_InvokeClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode schemas.ErrorCode
	}{
		{"timeout", fmt.Errorf("call: %w", context.DeadlineExceeded), schemas.ErrCodeTimeout},
		{"invalid params", fmt.Errorf("%w: label missing", errInvalidParams), schemas.ErrCodeInvalidParameters},
		{"target not found", fmt.Errorf("%w: label \"x\"", resolve.ErrNotFound), schemas.ErrCodeTargetNotFound},
		{"invalid plan", fmt.Errorf("%w: bad intent", planner.ErrInvalidPlan), schemas.ErrCodeInvalidPlan},
		{"surface failure", errors.New("connection refused"), schemas.ErrCodeSurfaceFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(zaptest.NewLogger(t))
			r.MustRegister(testSpec("broken"), func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
				return nil, tt.err
			})

			result := r.Invoke(context.Background(), "broken", nil)

			assert.False(t, result.OK())
			assert.Equal(t, tt.wantCode, result.ErrorCode)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestRegistry_InvokeNeverPanicsOnNilArgs(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.MustRegister(testSpec("nilok"), func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		return encodingjson.RawMessage(`{"ok":true}`), nil
	})

	result := r.Invoke(context.Background(), "nilok", nil)
	assert.True(t, result.OK())
}
