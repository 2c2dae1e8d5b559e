package secrets

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Scrubber redacts sensitive spans from text.
type Scrubber interface {
	Scrub(content string) *Result
	IsEnabled() bool
}

type scrubber struct {
	config *Config

	// gitleaks detectors are not documented as safe for concurrent use.
	deepMu sync.Mutex
	deep   *detect.Detector
}

type redaction struct {
	start, end int
}

// New creates a Scrubber. A nil cfg uses DefaultConfig.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &scrubber{config: cfg}
	if cfg.Enabled && cfg.Deep {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return nil, fmt.Errorf("loading gitleaks rules: %w", err)
		}
		s.deep = d
	}
	return s, nil
}

// Scrub replaces every detected span with the redaction string. Overlapping
// spans are merged first.
func (s *scrubber) Scrub(content string) *Result {
	result := &Result{
		Scrubbed: content,
		ByRule:   make(map[string]int),
	}
	if !s.config.Enabled || content == "" {
		return result
	}

	var spans []redaction
	add := func(f Finding) {
		result.Findings = append(result.Findings, f)
		result.ByRule[f.RuleID]++
		spans = append(spans, redaction{start: f.StartIndex, end: f.EndIndex})
	}

	for _, rule := range s.config.compiledRules {
		if !rule.hasKeyword(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.isAllowed(content[m[0]:m[1]]) {
				continue
			}
			add(Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Severity:    rule.Severity,
				StartIndex:  m[0],
				EndIndex:    m[1],
			})
		}
	}

	for _, f := range s.deepFindings(content) {
		add(f)
	}

	result.TotalFindings = len(result.Findings)
	if len(spans) > 0 {
		result.Scrubbed = applyRedactions(content, spans, s.config.RedactionString)
	}
	return result
}

// deepFindings runs gitleaks and locates every occurrence of each secret.
func (s *scrubber) deepFindings(content string) []Finding {
	if s.deep == nil {
		return nil
	}

	s.deepMu.Lock()
	leaks := s.deep.DetectString(content)
	s.deepMu.Unlock()

	var out []Finding
	for _, leak := range leaks {
		if leak.Secret == "" || s.isAllowed(leak.Secret) {
			continue
		}
		for offset := 0; ; {
			idx := strings.Index(content[offset:], leak.Secret)
			if idx < 0 {
				break
			}
			start := offset + idx
			out = append(out, Finding{
				RuleID:      "gitleaks:" + leak.RuleID,
				Description: leak.Description,
				Severity:    SeverityHigh,
				StartIndex:  start,
				EndIndex:    start + len(leak.Secret),
			})
			offset = start + len(leak.Secret)
		}
	}
	return out
}

func (s *scrubber) IsEnabled() bool {
	return s.config.Enabled
}

func (s *scrubber) isAllowed(match string) bool {
	for _, pattern := range s.config.compiledAllowList {
		if pattern.MatchString(match) {
			return true
		}
	}
	return false
}

func (r *compiledRule) hasKeyword(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func applyRedactions(content string, spans []redaction, replacement string) string {
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})

	merged := []redaction{spans[0]}
	for _, curr := range spans[1:] {
		last := &merged[len(merged)-1]
		if curr.start <= last.end {
			if curr.end > last.end {
				last.end = curr.end
			}
			continue
		}
		merged = append(merged, curr)
	}

	var sb strings.Builder
	prev := 0
	for _, r := range merged {
		sb.WriteString(content[prev:r.start])
		sb.WriteString(replacement)
		prev = r.end
	}
	sb.WriteString(content[prev:])
	return sb.String()
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

func (NoopScrubber) IsEnabled() bool {
	return false
}

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
