// File: internal/planner/planner.go
package planner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/config"
	"github.com/xkilldash9x/conductor/internal/resolve"
)

// ErrInvalidPlan reports that the reasoning service produced a plan the
// executor must not act on: unknown intent, dangling target index, or missing
// required parameters.
var ErrInvalidPlan = errors.New("planner: invalid plan")

// aboveFoldBonus rewards candidates visible without scrolling during
// pre-scoring. It stacks on top of the label score.
const aboveFoldBonus = 10

// Planner turns one coarse natural-language instruction into a single
// validated action against a page snapshot. Each call is independent: the
// candidate list is consumed for this one decision and discarded.
type Planner struct {
	llm    schemas.LLMClient
	cfg    config.PlannerConfig
	logger *zap.Logger
}

// NewPlanner builds a planner on top of the given reasoning client.
func NewPlanner(llm schemas.LLMClient, cfg config.PlannerConfig, logger *zap.Logger) *Planner {
	return &Planner{
		llm:    llm,
		cfg:    cfg,
		logger: logger.Named("planner"),
	}
}

// scoredCandidate pairs a candidate with its pre-score for ranking. The
// original snapshot index stays attached so the plan can reference it.
type scoredCandidate struct {
	schemas.Candidate
	score int
}

// PlanAction ranks the page's candidates against the instruction, asks the
// reasoning service for one action, and validates it before returning. The
// returned plan's TargetIndex always references page.Candidates.
func (p *Planner) PlanAction(ctx context.Context, instruction string, page schemas.PageContext) (*schemas.Plan, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("%w: empty instruction", ErrInvalidPlan)
	}

	ranked := p.rankCandidates(instruction, page.Candidates)

	raw, err := p.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: planSystemPrompt,
		UserPrompt:   p.buildPlanPrompt(instruction, page, ranked),
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planner: generation failed: %w", err)
	}

	plan, err := parsePlanResponse(raw)
	if err != nil {
		p.logger.Warn("Failed to parse plan response",
			zap.String("raw_response", raw),
			zap.Error(err))
		return nil, err
	}

	if err := validatePlan(plan, ranked); err != nil {
		p.logger.Warn("Plan rejected by validation",
			zap.String("intent", string(plan.Intent)),
			zap.Error(err))
		return nil, err
	}

	p.logger.Debug("Plan accepted",
		zap.String("intent", string(plan.Intent)),
		zap.String("rationale", plan.Rationale))
	return plan, nil
}

// ExtractAnswer runs the read-only QA sub-call for extract plans: it answers
// the question strictly from the supplied page text.
func (p *Planner) ExtractAnswer(ctx context.Context, question, pageText string) (string, error) {
	answer, err := p.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: extractSystemPrompt,
		UserPrompt:   fmt.Sprintf("Page content:\n%s\n\nQuestion: %s", pageText, question),
		Options: schemas.GenerationOptions{
			Temperature: 0.0,
		},
	})
	if err != nil {
		return "", fmt.Errorf("planner: extraction failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// rankCandidates pre-scores candidates against the instruction and keeps the
// most promising ones, bounded by the configured caps. The sort is stable so
// equal scores preserve enumeration order.
func (p *Planner) rankCandidates(instruction string, candidates []schemas.Candidate) []scoredCandidate {
	limit := len(candidates)
	if p.cfg.MaxEnumerated > 0 && limit > p.cfg.MaxEnumerated {
		limit = p.cfg.MaxEnumerated
	}

	scored := make([]scoredCandidate, 0, limit)
	for _, c := range candidates[:limit] {
		s := resolve.Score(c.Label, instruction)
		if c.Visible && c.Box.Y < p.cfg.AboveFoldY {
			s += aboveFoldBonus
		}
		scored = append(scored, scoredCandidate{Candidate: c, score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if p.cfg.MaxCandidates > 0 && len(scored) > p.cfg.MaxCandidates {
		scored = scored[:p.cfg.MaxCandidates]
	}
	return scored
}

func (p *Planner) buildPlanPrompt(instruction string, page schemas.PageContext, ranked []scoredCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instruction: %s\n\n", instruction)
	fmt.Fprintf(&b, "Page URL: %s\nPage title: %s\n", page.URL, page.Title)
	if page.Heading != "" {
		fmt.Fprintf(&b, "Main heading: %s\n", page.Heading)
	}
	b.WriteString("\nInteractive elements (index, role, label):\n")
	for _, c := range ranked {
		fmt.Fprintf(&b, "[%d] %s %q\n", c.Index, c.Role, c.Label)
	}
	b.WriteString("\nChoose exactly one action. Respond with a single JSON object.")
	return b.String()
}

const planSystemPrompt = `You control a web page on behalf of a user. Given one instruction and the
page's interactive elements, choose exactly one next action.

Respond with a single JSON object:
{
  "intent": "click" | "type" | "scroll" | "extract",
  "targetIndex": <element index, required for click and type>,
  "textToType": "<text, required for type>",
  "scrollDirection": "up" | "down" (scroll only),
  "rationale": "<one sentence>"
}

Rules:
- Use "click" to follow links or press buttons.
- Use "type" to fill an input; targetIndex must be an input element.
- Use "scroll" when the needed element is probably off-screen.
- Use "extract" when the instruction asks a question answerable from the page.
- Never invent an index that is not listed.`

const extractSystemPrompt = `Answer the question using only the supplied page content. Be concise. If the
content does not contain the answer, say so plainly.`

// jsonBlockRegex extracts a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// parsePlanResponse extracts and decodes the plan JSON, handling markdown
// code fences or raw JSON.
func parsePlanResponse(response string) (*schemas.Plan, error) {
	response = strings.TrimSpace(response)
	var jsonStringToParse string

	matches := jsonBlockRegex.FindStringSubmatch(response)
	if len(matches) > 1 {
		jsonStringToParse = strings.TrimSpace(matches[1])
	} else {
		firstBracket := strings.Index(response, "{")
		lastBracket := strings.LastIndex(response, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			jsonStringToParse = response[firstBracket : lastBracket+1]
		} else {
			jsonStringToParse = response
		}
	}

	if jsonStringToParse == "" {
		return nil, fmt.Errorf("%w: no JSON in response", ErrInvalidPlan)
	}

	var plan schemas.Plan
	if err := json.Unmarshal([]byte(jsonStringToParse), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return &plan, nil
}

// validatePlan enforces the action contract before anything touches the page.
// Target indices are checked against the ranked set the reasoning service was
// actually shown, not the full enumeration: an index outside that set was
// invented, even if some element on the page happens to carry it.
func validatePlan(plan *schemas.Plan, sent []scoredCandidate) error {
	switch plan.Intent {
	case schemas.IntentClick, schemas.IntentType:
		if plan.TargetIndex == nil {
			return fmt.Errorf("%w: %s requires targetIndex", ErrInvalidPlan, plan.Intent)
		}
		if !indexExists(sent, *plan.TargetIndex) {
			return fmt.Errorf("%w: targetIndex %d not in candidate set", ErrInvalidPlan, *plan.TargetIndex)
		}
		if plan.Intent == schemas.IntentType && strings.TrimSpace(plan.TextToType) == "" {
			return fmt.Errorf("%w: type requires non-empty textToType", ErrInvalidPlan)
		}
	case schemas.IntentScroll:
		switch plan.ScrollDirection {
		case "", "down", "up":
		default:
			return fmt.Errorf("%w: unknown scroll direction %q", ErrInvalidPlan, plan.ScrollDirection)
		}
	case schemas.IntentExtract:
		// No parameters beyond the instruction itself.
	default:
		return fmt.Errorf("%w: unknown intent %q", ErrInvalidPlan, plan.Intent)
	}
	return nil
}

func indexExists(sent []scoredCandidate, index int) bool {
	for _, c := range sent {
		if c.Index == index {
			return true
		}
	}
	return false
}
