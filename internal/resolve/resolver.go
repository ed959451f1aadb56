// File: internal/resolve/resolver.go
package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/xkilldash9x/conductor/api/schemas"
	"github.com/xkilldash9x/conductor/internal/config"
)

// ErrNotFound reports that no candidate satisfied the query after every
// matching tier and the scroll fallback were exhausted.
var ErrNotFound = errors.New("resolve: no matching target found")

// Surface is the minimal view of a controllable surface the resolver needs:
// a fresh enumeration of actionable elements and a way to scroll new content
// into view.
type Surface interface {
	// Elements enumerates the currently actionable candidates. Every call
	// returns a fresh snapshot; indices are only valid within that snapshot.
	Elements(ctx context.Context) ([]schemas.Candidate, error)
	// Scroll moves the viewport down by dy pixels.
	Scroll(ctx context.Context, dy int) error
}

// Query describes the element to locate.
type Query struct {
	// Role filters candidates ("link", "button", ...). Empty skips the
	// role-filtered tier.
	Role string
	// Label is the wanted visible label.
	Label string
	// Exact requires whole-label equality in the regex tiers instead of
	// substring containment.
	Exact bool
}

// Resolver locates one concrete element for a coarse query. Matching runs in
// strict tier order: role-filtered label match, plain label match, fuzzy
// scoring, then scroll-and-retry. The first tier that produces a candidate
// wins.
type Resolver struct {
	cfg    config.ResolverConfig
	logger *zap.Logger
}

// NewResolver builds a resolver with the given fallback tuning.
func NewResolver(cfg config.ResolverConfig, logger *zap.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		logger: logger.Named("resolver"),
	}
}

// Resolve finds the single best candidate for the query, scrolling for more
// content when the visible set has no acceptable match. It never returns an
// index from a stale enumeration: every attempt re-enumerates.
func (r *Resolver) Resolve(ctx context.Context, surface Surface, q Query) (schemas.Candidate, error) {
	if Normalize(q.Label) == "" {
		return schemas.Candidate{}, fmt.Errorf("resolve: empty label in query")
	}

	exactRe, looseRe, err := compileQuery(q)
	if err != nil {
		return schemas.Candidate{}, err
	}

	// First pass plus the configured number of scroll retries. Fuzzy scoring
	// runs only on the first pass; retries after a scroll re-attempt the
	// label tiers alone.
	for attempt := 0; attempt <= r.cfg.ScrollRetries; attempt++ {
		if attempt > 0 {
			if err := surface.Scroll(ctx, r.cfg.ScrollIncrement); err != nil {
				return schemas.Candidate{}, fmt.Errorf("resolve: scroll fallback failed: %w", err)
			}
		}

		candidate, found, err := r.attempt(ctx, surface, q, exactRe, looseRe, attempt == 0)
		if err != nil {
			return schemas.Candidate{}, err
		}
		if found {
			r.logger.Debug("Target resolved",
				zap.String("label", q.Label),
				zap.Int("index", candidate.Index),
				zap.Int("attempt", attempt),
			)
			return candidate, nil
		}

		r.logger.Debug("No acceptable match in current view",
			zap.String("label", q.Label),
			zap.Int("attempt", attempt),
		)
	}

	return schemas.Candidate{}, fmt.Errorf("%w: label %q", ErrNotFound, q.Label)
}

// attempt runs the matching tiers against one fresh enumeration.
func (r *Resolver) attempt(ctx context.Context, surface Surface, q Query, exactRe, looseRe *regexp.Regexp, fuzzy bool) (schemas.Candidate, bool, error) {
	attemptCtx := ctx
	if r.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.AttemptTimeout)
		defer cancel()
	}

	candidates, err := surface.Elements(attemptCtx)
	if err != nil {
		return schemas.Candidate{}, false, fmt.Errorf("resolve: enumeration failed: %w", err)
	}

	// Tier 1: role-filtered label match.
	if q.Role != "" {
		if c, ok := matchByLabel(candidates, q.Role, exactRe, looseRe); ok {
			return c, true, nil
		}
	}

	// Tier 2: label match across all roles.
	if c, ok := matchByLabel(candidates, "", exactRe, looseRe); ok {
		return c, true, nil
	}

	// Tier 3: fuzzy scoring over the visible set, first pass only.
	if fuzzy {
		if c, ok := bestFuzzyMatch(candidates, q.Label); ok {
			return c, true, nil
		}
	}

	return schemas.Candidate{}, false, nil
}

// compileQuery builds the anchored whole-label pattern and, unless the query
// demands exactness, the substring pattern. Both are case-insensitive.
func compileQuery(q Query) (exactRe, looseRe *regexp.Regexp, err error) {
	quoted := regexp.QuoteMeta(Normalize(q.Label))

	exactRe, err = regexp.Compile(`(?i)^` + quoted + `$`)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve: bad label pattern: %w", err)
	}
	if !q.Exact {
		looseRe, err = regexp.Compile(`(?i)` + quoted)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve: bad label pattern: %w", err)
		}
	}
	return exactRe, looseRe, nil
}

// matchByLabel scans candidates in enumeration order. Whole-label equality is
// checked across the full set before substring containment so "Pricing"
// prefers a candidate labeled exactly "Pricing" over one labeled
// "Pricing FAQ".
func matchByLabel(candidates []schemas.Candidate, role string, exactRe, looseRe *regexp.Regexp) (schemas.Candidate, bool) {
	for _, c := range candidates {
		if !eligible(c, role) {
			continue
		}
		if exactRe.MatchString(Normalize(c.Label)) {
			return c, true
		}
	}
	if looseRe == nil {
		return schemas.Candidate{}, false
	}
	for _, c := range candidates {
		if !eligible(c, role) {
			continue
		}
		if looseRe.MatchString(Normalize(c.Label)) {
			return c, true
		}
	}
	return schemas.Candidate{}, false
}

// bestFuzzyMatch scores every visible candidate and returns the highest
// scorer at or above the acceptance threshold. Ties resolve to the earliest
// enumerated candidate.
func bestFuzzyMatch(candidates []schemas.Candidate, label string) (schemas.Candidate, bool) {
	best := schemas.Candidate{}
	bestScore := 0
	for _, c := range candidates {
		if !c.Visible {
			continue
		}
		if s := Score(c.Label, label); s > bestScore {
			best = c
			bestScore = s
		}
	}
	if bestScore < AcceptThreshold {
		return schemas.Candidate{}, false
	}
	return best, true
}

func eligible(c schemas.Candidate, role string) bool {
	if !c.Visible {
		return false
	}
	return role == "" || c.Role == role
}
