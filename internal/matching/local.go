package matching

import (
	"strings"

	"github.com/fyrsmithlabs/campusconnect/internal/campus"
)

const (
	baseScore      = 50
	interestBonus  = 25
	studyBonus     = 15
	projectsBonus  = 20
	maxLocalScore  = 95
	maxLocalResult = 3

	// LocalReason is attached to every locally scored suggestion.
	LocalReason = "Matched based on your profile specialization and major."
)

// LocalMatches scores activities without any remote call. The result is
// deterministic, holds at most three entries and no score above 95.
func LocalMatches(user campus.User, activities []campus.Activity) []campus.MatchSuggestion {
	interests := make([]string, len(user.Interests))
	for i, in := range user.Interests {
		interests[i] = strings.ToLower(in)
	}
	major := strings.ToLower(user.Major)

	out := make([]campus.MatchSuggestion, 0, len(activities))
	for _, a := range activities {
		out = append(out, campus.MatchSuggestion{
			ActivityID:         a.ID,
			Reason:             LocalReason,
			CompatibilityScore: float64(localScore(interests, major, a)),
		})
	}

	sortByScore(out)
	if len(out) > maxLocalResult {
		out = out[:maxLocalResult]
	}
	return out
}

// localScore expects interests and major already lower-cased.
func localScore(interests []string, major string, a campus.Activity) int {
	title := strings.ToLower(a.Title)
	desc := strings.ToLower(a.Description)

	score := baseScore
	for _, in := range interests {
		if strings.Contains(title, in) || strings.Contains(desc, in) {
			score += interestBonus
		}
	}

	switch a.Category {
	case campus.CategoryStudy:
		if anyContains(interests, "study", "learn") || strings.Contains(desc, major) {
			score += studyBonus
		}
	case campus.CategoryProjects:
		if anyContains(interests, "code", "dev", "hack") {
			score += projectsBonus
		}
	}

	return min(score, maxLocalScore)
}

func anyContains(values []string, needles ...string) bool {
	for _, v := range values {
		for _, n := range needles {
			if strings.Contains(v, n) {
				return true
			}
		}
	}
	return false
}
