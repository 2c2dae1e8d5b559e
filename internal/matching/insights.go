package matching

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/campusconnect/internal/campus"
	"github.com/fyrsmithlabs/campusconnect/internal/retry"
)

// Insights is the dashboard view for one user.
type Insights struct {
	Greeting       string                   `json:"greeting"`
	Matches        []campus.MatchSuggestion `json:"matches"`
	QuotaExhausted bool                     `json:"quotaExhausted"`
}

// Insights fetches the greeting and the matches concurrently. Quota
// exhaustion on either side sets QuotaExhausted instead of failing: the
// greeting degrades to "Welcome back, <first name>!" and the matches to an
// empty list. Any other error is returned.
func (s *Service) Insights(ctx context.Context, user campus.User, activities []campus.Activity) (Insights, error) {
	ctx, span := s.tracer.Start(ctx, "matching.Insights")
	defer span.End()

	var (
		greeting      string
		matches       []campus.MatchSuggestion
		greetingQuota bool
		matchesQuota  bool
	)

	// Each goroutine writes only its own variables.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := s.GetQuickGreeting(gctx, user)
		if retry.IsQuotaExhausted(err) {
			greeting, greetingQuota = welcomeBack(user), true
			return nil
		}
		greeting = text
		return err
	})
	g.Go(func() error {
		list, err := s.GetSmartMatches(gctx, user, activities)
		if retry.IsQuotaExhausted(err) {
			matches, matchesQuota = []campus.MatchSuggestion{}, true
			return nil
		}
		matches = list
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return Insights{}, err
	}

	out := Insights{
		Greeting:       greeting,
		Matches:        matches,
		QuotaExhausted: greetingQuota || matchesQuota,
	}
	span.SetAttributes(attribute.Bool("quota.exhausted", out.QuotaExhausted))
	return out, nil
}

func welcomeBack(user campus.User) string {
	if first := user.FirstName(); first != "" {
		return "Welcome back, " + first + "!"
	}
	return "Welcome back!"
}
