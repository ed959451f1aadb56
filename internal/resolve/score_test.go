package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "pricing", Normalize("  Pricing  "))
	assert.Equal(t, "contact us now", Normalize("Contact \t Us\n  NOW"))
	assert.Equal(t, "", Normalize("   \t\n"))
}

func TestScore_RuleTable(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		wanted    string
		want      int
	}{
		{"exact", "Pricing", "Pricing", 100},
		{"exact after normalization", " Pricing ", "pricing", 100},
		{"prefix", "Pricing FAQ", "Pricing", 90},
		{"substring", "See Pricing Page", "pricing", 80},
		{"contained single token", "pricing details here", "details", 80},
		{"no overlap", "Contact Us", "Pricing", 0},
		{"empty wanted", "Pricing", "", 0},
		{"empty candidate", "", "Pricing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.candidate, tt.wanted))
		})
	}
}

func TestScore_TokenOverlap(t *testing.T) {
	// No containment either way, but shared tokens exist.
	assert.Equal(t, 65, Score("annual pricing", "pricing monthly"))           // 1 shared
	assert.Equal(t, 70, Score("annual pricing plans", "pricing plans today")) // 2 shared
	assert.Equal(t, 80, Score("a b c d x", "d c b a y"))                      // 4 shared, capped bonus
	assert.Equal(t, 80, Score("a b c d e x", "e d c b a y"))                  // 5 shared, still capped
}

func TestScore_Ordering(t *testing.T) {
	wanted := "pricing plans"
	exact := Score("Pricing Plans", wanted)
	prefix := Score("Pricing Plans 2026", wanted)
	substring := Score("Our Pricing Plans", wanted)
	tokens := Score("plans for pricing", wanted)

	assert.Greater(t, exact, prefix)
	assert.Greater(t, prefix, substring)
	assert.Greater(t, substring, tokens)
	assert.GreaterOrEqual(t, tokens, AcceptThreshold)
}

func TestScore_ThresholdBoundary(t *testing.T) {
	// One shared token scores 65: below the acceptance threshold.
	one := Score("annual pricing", "pricing monthly")
	assert.Less(t, one, AcceptThreshold)

	// Two shared tokens score exactly 70: accepted.
	two := Score("annual pricing plans", "pricing plans today")
	assert.Equal(t, AcceptThreshold, two)
}

func TestScore_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.Equal(t, 90, Score("Pricing FAQ", "Pricing"))
	}
}
