package agent

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFinalAnswer_BareJSON(t *testing.T) {
	raw := `{"visibleResponse":"Done.","thoughtProcess":"clicked the link","nextStep":"none"}`

	answer, structured := parseFinalAnswer(raw)

	assert.True(t, structured)
	assert.Equal(t, "Done.", answer.VisibleResponse)
	assert.Equal(t, "clicked the link", answer.ThoughtProcess)
	assert.Equal(t, "none", answer.NextStep)
	assert.False(t, answer.PermissionRequest.Required)
}

func TestParseFinalAnswer_FencedJSON(t *testing.T) {
	raw := "Sure, here you go:\n```json\n{\"visibleResponse\":\"The plan costs $12.\"}\n```"

	answer, structured := parseFinalAnswer(raw)

	assert.True(t, structured)
	assert.Equal(t, "The plan costs $12.", answer.VisibleResponse)
}

func TestParseFinalAnswer_PermissionRequest(t *testing.T) {
	raw := `{
		"visibleResponse":"I need your login to continue.",
		"permissionRequest":{
			"required":true,
			"reason":"the page asks for credentials",
			"fields":[{"id":"email","label":"Email","type":"email"}]
		}
	}`

	answer, structured := parseFinalAnswer(raw)

	require.True(t, structured)
	assert.True(t, answer.PermissionRequest.Required)
	assert.Equal(t, "the page asks for credentials", answer.PermissionRequest.Reason)
	require.Len(t, answer.PermissionRequest.Fields, 1)
	assert.Equal(t, "email", answer.PermissionRequest.Fields[0].ID)
}

func TestParseFinalAnswer_PlainTextDegrades(t *testing.T) {
	raw := "  I clicked the pricing link and the page loaded.  "

	answer, structured := parseFinalAnswer(raw)

	assert.False(t, structured)
	assert.Equal(t, "I clicked the pricing link and the page loaded.", answer.VisibleResponse)
}

func TestParseFinalAnswer_MalformedJSONDegrades(t *testing.T) {
	raw := `{"visibleResponse":"unterminated`

	answer, structured := parseFinalAnswer(raw)

	assert.False(t, structured)
	assert.Equal(t, raw, answer.VisibleResponse, "the raw text must survive as the visible response")
}

func TestParseFinalAnswer_JSONWithoutTagDegrades(t *testing.T) {
	// Valid JSON, but not the tagged envelope.
	raw := `{"result":"ok","note":"wrong shape"}`

	answer, structured := parseFinalAnswer(raw)

	assert.False(t, structured)
	assert.Equal(t, raw, answer.VisibleResponse)
}

func TestParseFinalAnswer_EmptyInput(t *testing.T) {
	answer, structured := parseFinalAnswer("")

	assert.False(t, structured)
	assert.Empty(t, answer.VisibleResponse)
}

// Feeds arbitrary bytes through the parser: it must never panic and must
// always hand back something renderable.
func TestParseFinalAnswer_ArbitraryInput(t *testing.T) {
	seed := []byte("fuzz-seed-for-final-answer-parser-0123456789")
	consumer := fuzz.NewConsumer(seed)

	for i := 0; i < 200; i++ {
		s, err := consumer.GetString()
		if err != nil {
			// Consumer ran out of entropy; refill and continue.
			consumer = fuzz.NewConsumer(append(seed, byte(i)))
			continue
		}
		assert.NotPanics(t, func() {
			parseFinalAnswer(s)
		})
	}
}
