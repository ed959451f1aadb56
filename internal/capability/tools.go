// File: internal/capability/tools.go
package capability

import (
	"context"
	encodingjson "encoding/json"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/planner"
	"github.com/xkilldash9x/conductor/internal/resolve"
)

// Toolset bundles the collaborators the standard capability vocabulary needs.
type Toolset struct {
	Doc    *SurfaceClient
	Page   *SurfaceClient
	Screen *SurfaceClient

	Planner  *planner.Planner
	Resolver *resolve.Resolver

	// ScrollIncrement is the pixel step used by scroll actions.
	ScrollIncrement int
}

// RegisterStandard wires the fixed capability vocabulary into the registry.
// The set is the whole tool surface exposed to the reasoning service.
func RegisterStandard(r *Registry, ts Toolset) {
	page := &pageSurface{client: ts.Page}

	// -- Document surface --

	r.MustRegister(schemas.ToolSpec{
		Name:        "doc_open",
		Description: "Opens a document at the given path in the document editor.",
		Parameters:  objSchema(`"path":{"type":"string","description":"Document path"}`, "path"),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		var p struct {
			Path string `json:"path"`
		}
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Path) == "" {
			return nil, fmt.Errorf("%w: path is required", errInvalidParams)
		}
		return ts.Doc.Post(ctx, "open", p)
	})

	r.MustRegister(schemas.ToolSpec{
		Name:        "doc_save",
		Description: "Saves the currently open document.",
		Parameters:  objSchema(""),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		return ts.Doc.Post(ctx, "save", struct{}{})
	})

	r.MustRegister(schemas.ToolSpec{
		Name:        "doc_read",
		Description: "Reads the full text of the currently open document.",
		Parameters:  objSchema(""),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		return ts.Doc.Get(ctx, "read")
	})

	r.MustRegister(schemas.ToolSpec{
		Name:        "doc_insert_text",
		Description: "Inserts text into the currently open document at the cursor.",
		Parameters:  objSchema(`"text":{"type":"string","description":"Text to insert"}`, "text"),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		var p struct {
			Text string `json:"text"`
		}
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		if p.Text == "" {
			return nil, fmt.Errorf("%w: text is required", errInvalidParams)
		}
		return ts.Doc.Post(ctx, "insert_text", p)
	})

	// -- Page surface --

	r.MustRegister(schemas.ToolSpec{
		Name:        "page_navigate",
		Description: "Navigates the page to the given URL.",
		Parameters:  objSchema(`"url":{"type":"string","description":"Absolute URL"}`, "url"),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		var p struct {
			URL string `json:"url"`
		}
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.URL) == "" {
			return nil, fmt.Errorf("%w: url is required", errInvalidParams)
		}
		return ts.Page.Post(ctx, "navigate", p)
	})

	r.MustRegister(schemas.ToolSpec{
		Name:        "page_read",
		Description: "Reads the current page: URL, title, main heading and visible text.",
		Parameters:  objSchema(""),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		return ts.Page.Get(ctx, "read")
	})

	r.MustRegister(schemas.ToolSpec{
		Name: "page_click",
		Description: "Clicks the element whose label best matches. " +
			"Scrolls to find off-screen targets automatically.",
		Parameters: objSchema(
			`"label":{"type":"string","description":"Visible label of the target"},`+
				`"role":{"type":"string","description":"Optional role filter: link, button, input"},`+
				`"exact":{"type":"boolean","description":"Require whole-label equality"}`,
			"label"),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		target, err := resolveTarget(ctx, ts.Resolver, page, args)
		if err != nil {
			return nil, err
		}
		return ts.Page.Post(ctx, "click", map[string]int{"index": target.Index})
	})

	r.MustRegister(schemas.ToolSpec{
		Name:        "page_type",
		Description: "Types text into the input whose label best matches.",
		Parameters: objSchema(
			`"label":{"type":"string","description":"Visible label of the input"},`+
				`"text":{"type":"string","description":"Text to type"},`+
				`"role":{"type":"string","description":"Optional role filter"},`+
				`"exact":{"type":"boolean","description":"Require whole-label equality"}`,
			"label", "text"),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		var p struct {
			Text string `json:"text"`
		}
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		if p.Text == "" {
			return nil, fmt.Errorf("%w: text is required", errInvalidParams)
		}
		target, err := resolveTarget(ctx, ts.Resolver, page, args)
		if err != nil {
			return nil, err
		}
		return ts.Page.Post(ctx, "type", map[string]any{
			"index": target.Index,
			"text":  p.Text,
		})
	})

	r.MustRegister(schemas.ToolSpec{
		Name:        "page_scroll",
		Description: "Scrolls the page up or down by one step.",
		Parameters:  objSchema(`"direction":{"type":"string","enum":["up","down"],"description":"Scroll direction"}`),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		var p struct {
			Direction string `json:"direction"`
		}
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		dy, err := scrollDelta(p.Direction, ts.ScrollIncrement)
		if err != nil {
			return nil, err
		}
		return ts.Page.Post(ctx, "scroll", map[string]int{"dy": dy})
	})

	r.MustRegister(schemas.ToolSpec{
		Name:        "page_screenshot",
		Description: "Captures a screenshot of the current page viewport.",
		Parameters:  objSchema(""),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		return ts.Page.Get(ctx, "screenshot")
	})

	r.MustRegister(schemas.ToolSpec{
		Name: "page_act",
		Description: "Performs one coarse instruction on the page, e.g. " +
			"\"open the pricing page\" or \"what does the plan cost?\".",
		Parameters: objSchema(`"instruction":{"type":"string","description":"Natural-language instruction"}`, "instruction"),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		return actOnPage(ctx, ts, page, args)
	})

	// -- Screen surface --

	r.MustRegister(schemas.ToolSpec{
		Name:        "screen_screenshot",
		Description: "Captures a screenshot of the whole screen.",
		Parameters:  objSchema(""),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		return ts.Screen.Get(ctx, "screenshot")
	})

	r.MustRegister(schemas.ToolSpec{
		Name:        "screen_click",
		Description: "Clicks the screen at absolute coordinates.",
		Parameters: objSchema(
			`"x":{"type":"integer","description":"X coordinate"},`+
				`"y":{"type":"integer","description":"Y coordinate"}`,
			"x", "y"),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		var p struct {
			X *int `json:"x"`
			Y *int `json:"y"`
		}
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		if p.X == nil || p.Y == nil {
			return nil, fmt.Errorf("%w: x and y are required", errInvalidParams)
		}
		return ts.Screen.Post(ctx, "click", map[string]int{"x": *p.X, "y": *p.Y})
	})

	r.MustRegister(schemas.ToolSpec{
		Name:        "screen_type",
		Description: "Types text using the system keyboard.",
		Parameters:  objSchema(`"text":{"type":"string","description":"Text to type"}`, "text"),
	}, func(ctx context.Context, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
		var p struct {
			Text string `json:"text"`
		}
		if err := decodeArgs(args, &p); err != nil {
			return nil, err
		}
		if p.Text == "" {
			return nil, fmt.Errorf("%w: text is required", errInvalidParams)
		}
		return ts.Screen.Post(ctx, "type", p)
	})
}

// actOnPage runs the plan-one-action pipeline: snapshot the page, let the
// planner pick an action, then execute it against the page surface.
func actOnPage(ctx context.Context, ts Toolset, page *pageSurface, args encodingjson.RawMessage) (encodingjson.RawMessage, error) {
	var p struct {
		Instruction string `json:"instruction"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Instruction) == "" {
		return nil, fmt.Errorf("%w: instruction is required", errInvalidParams)
	}

	snapshot, err := page.readPage(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := page.Elements(ctx)
	if err != nil {
		return nil, err
	}

	pageCtx := schemas.PageContext{
		URL:        snapshot.URL,
		Title:      snapshot.Title,
		Heading:    snapshot.Heading,
		Candidates: candidates,
	}

	plan, err := ts.Planner.PlanAction(ctx, p.Instruction, pageCtx)
	if err != nil {
		return nil, err
	}

	switch plan.Intent {
	case schemas.IntentClick:
		if _, err := ts.Page.Post(ctx, "click", map[string]int{"index": *plan.TargetIndex}); err != nil {
			return nil, err
		}
	case schemas.IntentType:
		if _, err := ts.Page.Post(ctx, "type", map[string]any{
			"index": *plan.TargetIndex,
			"text":  plan.TextToType,
		}); err != nil {
			return nil, err
		}
	case schemas.IntentScroll:
		dy, err := scrollDelta(plan.ScrollDirection, ts.ScrollIncrement)
		if err != nil {
			return nil, err
		}
		if err := page.Scroll(ctx, dy); err != nil {
			return nil, err
		}
	case schemas.IntentExtract:
		answer, err := ts.Planner.ExtractAnswer(ctx, p.Instruction, snapshot.Text)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{
			"intent": string(plan.Intent),
			"answer": answer,
		})
	}

	return json.Marshal(map[string]string{
		"intent":    string(plan.Intent),
		"rationale": plan.Rationale,
	})
}

// resolveTarget decodes the shared label query parameters and resolves them
// to one concrete element.
func resolveTarget(ctx context.Context, r *resolve.Resolver, page *pageSurface, args encodingjson.RawMessage) (schemas.Candidate, error) {
	var p struct {
		Label string `json:"label"`
		Role  string `json:"role"`
		Exact bool   `json:"exact"`
	}
	if err := decodeArgs(args, &p); err != nil {
		return schemas.Candidate{}, err
	}
	if strings.TrimSpace(p.Label) == "" {
		return schemas.Candidate{}, fmt.Errorf("%w: label is required", errInvalidParams)
	}
	return r.Resolve(ctx, page, resolve.Query{
		Role:  p.Role,
		Label: p.Label,
		Exact: p.Exact,
	})
}

func scrollDelta(direction string, increment int) (int, error) {
	switch direction {
	case "", "down":
		return increment, nil
	case "up":
		return -increment, nil
	default:
		return 0, fmt.Errorf("%w: unknown scroll direction %q", errInvalidParams, direction)
	}
}

func decodeArgs(args encodingjson.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

// objSchema builds a JSON-schema object declaration from property snippets.
func objSchema(props string, required ...string) encodingjson.RawMessage {
	s := `{"type":"object","properties":{` + props + `}`
	if len(required) > 0 {
		reqJSON, _ := json.Marshal(required)
		s += `,"required":` + string(reqJSON)
	}
	s += `}`
	return encodingjson.RawMessage(s)
}
