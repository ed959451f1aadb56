// File: internal/agent/answer.go
package agent

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/conductor/api/schemas"
)

// finalAnswer is the tagged envelope the reasoning service is instructed to
// emit as its last message of a turn.
type finalAnswer struct {
	VisibleResponse   string                    `json:"visibleResponse"`
	ThoughtProcess    string                    `json:"thoughtProcess"`
	NextStep          string                    `json:"nextStep"`
	PermissionRequest schemas.PermissionRequest `json:"permissionRequest"`
}

// jsonBlockRegex extracts a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// parseFinalAnswer decodes the reasoning service's final message. The decode
// is strict: the extracted JSON must carry the visibleResponse tag (or an
// active permission request) to count as structured. Anything else degrades
// gracefully to a raw-text answer so the caller always gets something to
// show.
func parseFinalAnswer(response string) (finalAnswer, bool) {
	trimmed := strings.TrimSpace(response)

	var jsonStringToParse string
	matches := jsonBlockRegex.FindStringSubmatch(trimmed)
	if len(matches) > 1 {
		jsonStringToParse = strings.TrimSpace(matches[1])
	} else if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		jsonStringToParse = trimmed
	}

	if jsonStringToParse != "" {
		var answer finalAnswer
		if err := json.Unmarshal([]byte(jsonStringToParse), &answer); err == nil {
			if answer.VisibleResponse != "" || answer.PermissionRequest.Required {
				return answer, true
			}
		}
	}

	return finalAnswer{VisibleResponse: trimmed}, false
}
