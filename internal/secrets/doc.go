// Package secrets scrubs contact details and credentials out of free text
// before it is embedded in a prompt for the remote generation service.
//
// Profile and activity text is user supplied, so it can contain email
// addresses, phone numbers or pasted API keys. Regex rules cover the common
// cases. Deep mode adds the gitleaks default rule set for credentials.
package secrets
