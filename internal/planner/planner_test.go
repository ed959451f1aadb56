package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/config"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Complete(ctx context.Context, req schemas.CompletionRequest) (*schemas.Completion, error) {
	args := m.Called(ctx, req)
	if c, ok := args.Get(0).(*schemas.Completion); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLLM) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func testPlannerConfig() config.PlannerConfig {
	return config.PlannerConfig{
		MaxEnumerated: 220,
		MaxCandidates: 120,
		AboveFoldY:    800,
	}
}

func newTestPlanner(t *testing.T, llm schemas.LLMClient) *Planner {
	t.Helper()
	return NewPlanner(llm, testPlannerConfig(), zaptest.NewLogger(t))
}

func visibleCandidate(index int, role, label string, y float64) schemas.Candidate {
	return schemas.Candidate{
		Index:   index,
		Role:    role,
		Label:   label,
		Box:     schemas.BoundingBox{Y: y, Width: 100, Height: 20},
		Visible: true,
	}
}

func testPage(candidates ...schemas.Candidate) schemas.PageContext {
	return schemas.PageContext{
		URL:        "https://example.com/products",
		Title:      "Products",
		Candidates: candidates,
	}
}

// -- Candidate Ranking --

func TestRankCandidates_AboveFoldBonus(t *testing.T) {
	p := newTestPlanner(t, &mockLLM{})

	// Identical labels; only fold position differs.
	below := visibleCandidate(0, "link", "Pricing", 2000)
	above := visibleCandidate(1, "link", "Pricing", 100)

	ranked := p.rankCandidates("Pricing", []schemas.Candidate{below, above})

	require.Len(t, ranked, 2)
	assert.Equal(t, 1, ranked[0].Index, "above-fold candidate must rank first")
	assert.Equal(t, ranked[1].score+aboveFoldBonus, ranked[0].score)
}

func TestRankCandidates_TruncatesToCap(t *testing.T) {
	cfg := testPlannerConfig()
	cfg.MaxCandidates = 5
	cfg.MaxEnumerated = 10
	p := NewPlanner(&mockLLM{}, cfg, zaptest.NewLogger(t))

	var candidates []schemas.Candidate
	for i := 0; i < 50; i++ {
		candidates = append(candidates, visibleCandidate(i, "link", fmt.Sprintf("Item %d", i), 100))
	}
	// A strong match enumerated past the cap never reaches ranking.
	candidates[40].Label = "Checkout"

	ranked := p.rankCandidates("Checkout", candidates)

	assert.Len(t, ranked, 5)
	for _, c := range ranked {
		assert.Less(t, c.Index, 10, "candidates past the enumeration cap must be dropped before ranking")
	}
}

func TestRankCandidates_PreservesSnapshotIndices(t *testing.T) {
	p := newTestPlanner(t, &mockLLM{})

	ranked := p.rankCandidates("Checkout", []schemas.Candidate{
		visibleCandidate(0, "link", "Home", 10),
		visibleCandidate(1, "button", "Checkout", 10),
	})

	require.Len(t, ranked, 2)
	assert.Equal(t, 1, ranked[0].Index)
	assert.Equal(t, "Checkout", ranked[0].Label)
}

// -- PlanAction --

func TestPlanAction_ClickSuccess(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(`{"intent":"click","targetIndex":1,"rationale":"Pricing link matches"}`, nil)

	p := newTestPlanner(t, llm)
	plan, err := p.PlanAction(context.Background(), "open pricing", testPage(
		visibleCandidate(0, "link", "Home", 10),
		visibleCandidate(1, "link", "Pricing", 10),
	))

	require.NoError(t, err)
	target := 1
	want := &schemas.Plan{
		Intent:      schemas.IntentClick,
		TargetIndex: &target,
		Rationale:   "Pricing link matches",
	}
	if diff := cmp.Diff(want, plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	llm.AssertExpectations(t)
}

func TestPlanAction_FencedJSONAccepted(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).
		Return("Here is the action:\n```json\n{\"intent\":\"scroll\",\"scrollDirection\":\"down\",\"rationale\":\"look further\"}\n```", nil)

	p := newTestPlanner(t, llm)
	plan, err := p.PlanAction(context.Background(), "find the footer", testPage())

	require.NoError(t, err)
	assert.Equal(t, schemas.IntentScroll, plan.Intent)
	assert.Equal(t, "down", plan.ScrollDirection)
}

func TestPlanAction_TypeRequiresText(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(`{"intent":"type","targetIndex":0,"textToType":"  ","rationale":"fill search"}`, nil)

	p := newTestPlanner(t, llm)
	_, err := p.PlanAction(context.Background(), "search for shoes", testPage(
		visibleCandidate(0, "input", "Search", 10),
	))

	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestPlanAction_DanglingTargetIndex(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(`{"intent":"click","targetIndex":99,"rationale":"phantom"}`, nil)

	p := newTestPlanner(t, llm)
	_, err := p.PlanAction(context.Background(), "open pricing", testPage(
		visibleCandidate(0, "link", "Pricing", 10),
	))

	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.Contains(t, err.Error(), "targetIndex 99")
}

func TestPlanAction_TargetIndexOutsideSentSet(t *testing.T) {
	// With the candidate cap at 1, only the best-ranked element reaches the
	// reasoning service. An index that exists on the page but was truncated
	// away must be rejected like any other invented index.
	cfg := testPlannerConfig()
	cfg.MaxCandidates = 1

	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(`{"intent":"click","targetIndex":1,"rationale":"the FAQ link"}`, nil)

	p := NewPlanner(llm, cfg, zaptest.NewLogger(t))
	_, err := p.PlanAction(context.Background(), "open pricing", testPage(
		visibleCandidate(0, "link", "Pricing", 10),
		visibleCandidate(1, "link", "About", 10),
	))

	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.Contains(t, err.Error(), "targetIndex 1")
}

func TestPlanAction_UnknownIntent(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).
		Return(`{"intent":"hover","targetIndex":0,"rationale":"?"}`, nil)

	p := newTestPlanner(t, llm)
	_, err := p.PlanAction(context.Background(), "open pricing", testPage(
		visibleCandidate(0, "link", "Pricing", 10),
	))

	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.Contains(t, err.Error(), "unknown intent")
}

func TestPlanAction_MalformedJSON(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).
		Return("I think you should click the pricing link.", nil)

	p := newTestPlanner(t, llm)
	_, err := p.PlanAction(context.Background(), "open pricing", testPage(
		visibleCandidate(0, "link", "Pricing", 10),
	))

	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestPlanAction_EmptyInstruction(t *testing.T) {
	llm := &mockLLM{}
	p := newTestPlanner(t, llm)

	_, err := p.PlanAction(context.Background(), "   ", testPage())

	assert.ErrorIs(t, err, ErrInvalidPlan)
	llm.AssertNotCalled(t, "Generate")
}

func TestPlanAction_GenerationErrorPropagates(t *testing.T) {
	boom := errors.New("model offline")
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).Return("", boom)

	p := newTestPlanner(t, llm)
	_, err := p.PlanAction(context.Background(), "open pricing", testPage())

	assert.ErrorIs(t, err, boom)
}

func TestPlanAction_PromptListsRankedCandidates(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Options.ForceJSONFormat
	})).Run(func(args mock.Arguments) {
		req := args.Get(1).(schemas.GenerationRequest)
		assert.Contains(t, req.UserPrompt, `[1] link "Pricing"`)
		assert.Contains(t, req.UserPrompt, "Instruction: open pricing")
	}).Return(`{"intent":"click","targetIndex":1,"rationale":"match"}`, nil)

	p := newTestPlanner(t, llm)
	_, err := p.PlanAction(context.Background(), "open pricing", testPage(
		visibleCandidate(0, "link", "Home", 10),
		visibleCandidate(1, "link", "Pricing", 10),
	))
	require.NoError(t, err)
	llm.AssertExpectations(t)
}

// -- ExtractAnswer --

func TestExtractAnswer_TrimsResponse(t *testing.T) {
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Options.Temperature == 0.0 && !req.Options.ForceJSONFormat
	})).Return("\n  The plan costs $12/month.  \n", nil)

	p := newTestPlanner(t, llm)
	answer, err := p.ExtractAnswer(context.Background(), "how much is the plan?", "Plan: $12/month")

	require.NoError(t, err)
	assert.Equal(t, "The plan costs $12/month.", answer)
}

func TestExtractAnswer_ErrorPropagates(t *testing.T) {
	boom := errors.New("model offline")
	llm := &mockLLM{}
	llm.On("Generate", mock.Anything, mock.Anything).Return("", boom)

	p := newTestPlanner(t, llm)
	_, err := p.ExtractAnswer(context.Background(), "q", "text")

	assert.ErrorIs(t, err, boom)
}
