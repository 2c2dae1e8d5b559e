package matching

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/campusconnect/internal/campus"
	"github.com/fyrsmithlabs/campusconnect/internal/genai"
)

// matchPrompt embeds the user's major and interests and each activity's id,
// title and description. Free text passes through the scrubber; ids do not.
func (s *Service) matchPrompt(user campus.User, activities []campus.Activity) string {
	interests := make([]string, len(user.Interests))
	for i, in := range user.Interests {
		interests[i] = s.scrub(in)
	}

	entries := make([]string, len(activities))
	for i, a := range activities {
		entries[i] = fmt.Sprintf("ID: %s, Title: %s, Desc: %s", a.ID, s.scrub(a.Title), s.scrub(a.Description))
	}

	var b strings.Builder
	b.WriteString("Analyze for student interaction matching:\n")
	fmt.Fprintf(&b, "User: Major %s, Interests %s\n", s.scrub(user.Major), strings.Join(interests, ", "))
	fmt.Fprintf(&b, "Activities: %s\n", strings.Join(entries, "; "))
	b.WriteString("Return JSON array of Suggestions {activityId, reason, compatibilityScore}.")
	return b.String()
}

func (s *Service) greetingPrompt(user campus.User) string {
	return fmt.Sprintf("Welcome %s to Campus Connect. Short, cool, high-energy (max 5 words).", s.scrub(user.Name))
}

func (s *Service) scrub(text string) string {
	if text == "" || !s.scrubber.IsEnabled() {
		return text
	}
	return s.scrubber.Scrub(text).Scrubbed
}

// suggestionSchema asks for an array of objects with three required fields.
func suggestionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"activityId":         {Type: genai.TypeString},
				"reason":             {Type: genai.TypeString},
				"compatibilityScore": {Type: genai.TypeNumber},
			},
			Required: []string{"activityId", "reason", "compatibilityScore"},
		},
	}
}
