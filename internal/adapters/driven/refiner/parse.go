package refiner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/memex/internal/core/domain"
)

// parseChunks reads a JSON array of strings from model output. It accepts
// a code fence around the array, prose before or after it, and an object
// wrapping the array under "chunks".
func parseChunks(out string) ([]string, error) {
	body := stripFences(out)

	var chunks []string
	if err := json.Unmarshal([]byte(body), &chunks); err == nil {
		return chunks, nil
	}

	var wrapped struct {
		Chunks []string `json:"chunks"`
	}
	if err := json.Unmarshal([]byte(body), &wrapped); err == nil && wrapped.Chunks != nil {
		return wrapped.Chunks, nil
	}

	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(body[start:end+1]), &chunks); err == nil {
			return chunks, nil
		}
	}
	return nil, fmt.Errorf("%w: output is not a JSON array of strings", domain.ErrValidation)
}

// stripFences removes a surrounding ``` fence, with or without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// cleanRewrite trims the wrapping a model tends to add around a rewrite.
func cleanRewrite(s string) string {
	s = stripFences(s)
	for _, prefix := range []string{"Rewritten chunk:", "Rewritten:", "Chunk:"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
		}
	}
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
