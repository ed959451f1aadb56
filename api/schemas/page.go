package schemas

// -- Page / Candidate Schemas --

// BoundingBox is the viewport-relative geometry of an enumerated element.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Candidate is one enumerated, potentially actionable element. Candidates are
// produced fresh for a single resolution or planning request; Index is only
// meaningful within that one enumeration and must never be persisted or
// reused across requests.
type Candidate struct {
	Index int    `json:"index"`
	Role  string `json:"role"` // "link", "button", "input", ...
	// Label is the normalized concatenation of visible text, aria-label and
	// title, computed by the enumeration primitive.
	Label   string      `json:"label"`
	Box     BoundingBox `json:"box"`
	Visible bool        `json:"visible"`
}

// PageContext is the page snapshot handed to the Instruction Planner.
type PageContext struct {
	URL        string      `json:"url"`
	Title      string      `json:"title"`
	Heading    string      `json:"heading,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

// PlanIntent is the action vocabulary the planner accepts from the reasoning
// service. Anything else is a validation failure.
type PlanIntent string

const (
	IntentClick   PlanIntent = "click"
	IntentType    PlanIntent = "type"
	IntentScroll  PlanIntent = "scroll"
	IntentExtract PlanIntent = "extract"
)

// Plan is the single action chosen by the Instruction Planner for one coarse
// instruction. It is transient: produced once, consumed once.
type Plan struct {
	Intent          PlanIntent `json:"intent"`
	TargetIndex     *int       `json:"targetIndex,omitempty"`
	TextToType      string     `json:"textToType,omitempty"`
	ScrollDirection string     `json:"scrollDirection,omitempty"`
	Rationale       string     `json:"rationale"`
}
