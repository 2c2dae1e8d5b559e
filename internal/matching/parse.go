package matching

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/campusconnect/internal/campus"
)

var errParse = errors.New("malformed suggestion list")

// parseSuggestions decodes the remote answer. Empty text and "[]" both mean
// no suggestions. Providers that only emit JSON objects may wrap the array in
// an object with a single array-valued field.
func parseSuggestions(text string) ([]campus.MatchSuggestion, error) {
	raw := []byte(strings.TrimSpace(stripCodeFence(text)))
	if len(raw) == 0 {
		return []campus.MatchSuggestion{}, nil
	}

	var list []campus.MatchSuggestion
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", errParse, err)
		}
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", errParse, err)
		}
		found := false
		for _, v := range wrapper {
			v = bytes.TrimSpace(v)
			if len(v) == 0 || v[0] != '[' {
				continue
			}
			if found {
				return nil, fmt.Errorf("%w: more than one array field", errParse)
			}
			if err := json.Unmarshal(v, &list); err != nil {
				return nil, fmt.Errorf("%w: %v", errParse, err)
			}
			found = true
		}
		if !found {
			return nil, fmt.Errorf("%w: no array field", errParse)
		}
	default:
		return nil, fmt.Errorf("%w: expected a JSON array", errParse)
	}

	out := make([]campus.MatchSuggestion, 0, len(list))
	for _, m := range list {
		m.ActivityID = strings.TrimSpace(m.ActivityID)
		if m.ActivityID == "" {
			continue
		}
		m.Reason = strings.TrimSpace(m.Reason)
		m.CompatibilityScore = clampScore(m.CompatibilityScore, 0, 100)
		out = append(out, m)
	}
	sortByScore(out)
	return out, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(t), "```")
}

func clampScore(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sortByScore orders descending; ties keep their input order.
func sortByScore(m []campus.MatchSuggestion) {
	sort.SliceStable(m, func(i, j int) bool {
		return m[i].CompatibilityScore > m[j].CompatibilityScore
	})
}
