package secrets

// DefaultRules returns the built-in detection rules.
func DefaultRules() []Rule {
	return []Rule{
		// Contact details
		{
			ID:          "email",
			Description: "Email address",
			Pattern:     `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
			Keywords:    []string{"@"},
			Severity:    SeverityMedium,
		},
		{
			ID:          "phone-number",
			Description: "Phone number",
			Pattern:     `(?:\+\d{1,3}[\s\-]?)?\(?\b\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4}\b`,
			Severity:    SeverityMedium,
		},
		{
			ID:          "phone-number-intl",
			Description: "International phone number",
			Pattern:     `\+\d{1,3}[\s\-]?\d{5}[\s\-]?\d{5}\b`,
			Keywords:    []string{"+"},
			Severity:    SeverityMedium,
		},

		// Credentials
		{
			ID:          "google-api-key",
			Description: "Google API key",
			Pattern:     `AIza[0-9A-Za-z_\-]{35}`,
			Severity:    SeverityHigh,
		},
		{
			ID:          "openai-api-key",
			Description: "OpenAI API key",
			Pattern:     `sk-(?:proj-)?[A-Za-z0-9_\-]{20,}`,
			Keywords:    []string{"sk-"},
			Severity:    SeverityHigh,
		},
		{
			ID:          "github-token",
			Description: "GitHub personal access token",
			Pattern:     `gh[pous]_[A-Za-z0-9]{36}`,
			Severity:    SeverityHigh,
		},
		{
			ID:          "bearer-token",
			Description: "Bearer token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9._~+/\-]{8,}=*`,
			Keywords:    []string{"bearer"},
			Severity:    SeverityHigh,
		},
		{
			ID:          "generic-api-key",
			Description: "Generic API key assignment",
			Pattern:     `(?i)(?:api[_-]?key|apikey|token)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords:    []string{"key", "token"},
			Severity:    SeverityHigh,
		},
		{
			ID:          "private-key",
			Description: "Private key block",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
			Severity:    SeverityHigh,
		},
	}
}
