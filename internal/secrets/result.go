package secrets

// Result is the outcome of scrubbing one string.
type Result struct {
	Scrubbed      string         `json:"scrubbed"`
	Findings      []Finding      `json:"findings,omitempty"`
	TotalFindings int            `json:"total_findings"`
	ByRule        map[string]int `json:"by_rule,omitempty"`
}

// Finding locates a redacted span. The matched text is never stored.
type Finding struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	StartIndex  int    `json:"start_index"`
	EndIndex    int    `json:"end_index"`
}

// HasFindings reports whether anything was redacted.
func (r *Result) HasFindings() bool {
	return r.TotalFindings > 0
}
