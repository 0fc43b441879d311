package summary

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceOpen    = regexp.MustCompile("^```[a-zA-Z]*\\r?\\n")
	fenceClose   = regexp.MustCompile("\\r?\\n?```\\s*$")
	arrayPattern = regexp.MustCompile(`(?s)^\[.*\]$`)
)

// ExtractSummaries runs the best-effort repair pipeline over a raw model
// response and builds the guid-to-summary mapping. Anything that cannot be
// recovered into exactly one JSON array yields an empty map; malformed rows
// inside a valid array are skipped individually.
func ExtractSummaries(raw string) map[string]string {
	summaries := map[string]string{}

	text := strings.TrimSpace(raw)
	if text == "" {
		return summaries
	}

	// Models often wrap structured output in a fenced code block.
	text = fenceOpen.ReplaceAllString(text, "")
	text = fenceClose.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	// Recover a truncated array by closing the outer bracket. The row cut off
	// mid-object still fails to parse below; only a clean cut after a row is
	// recoverable.
	if strings.HasPrefix(text, "[") && !strings.HasSuffix(text, "]") {
		text += "]"
	}

	// The entire remaining text must be one JSON array.
	if !arrayPattern.MatchString(text) {
		return summaries
	}

	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(text), &rows); err != nil {
		return summaries
	}

	for _, row := range rows {
		var item struct {
			Guid    string `json:"guid"`
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal(row, &item); err != nil {
			continue
		}
		if item.Guid == "" || item.Summary == "" {
			continue
		}
		summaries[item.Guid] = item.Summary
	}

	return summaries
}
