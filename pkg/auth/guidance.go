package auth

import (
	"fmt"
	"strings"
)

// GuidanceInput names where a vendor's credential comes from so the setup
// guide can point at the right dashboard and environment variable.
type GuidanceInput struct {
	Vendor       string // human-readable vendor name, e.g. "Stripe"
	EnvVar       string // environment variable the credential is read from
	DashboardURL string // where to create or copy the credential
	SandboxHint  string // optional note about sandbox credentials
}

// MissingCredentialGuidance builds the multi-line setup guide shown when a
// required credential is absent. This is a deliberate UX contract: a
// missing credential gets remediation steps, not a bare error string.
func MissingCredentialGuidance(in GuidanceInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "No %s credential found.\n\n", in.Vendor)
	fmt.Fprintf(&b, "To set one up:\n")
	fmt.Fprintf(&b, "  1. Open %s and create an API key\n", in.DashboardURL)
	fmt.Fprintf(&b, "  2. Export it in your shell:\n")
	fmt.Fprintf(&b, "       export %s=<your key>\n", in.EnvVar)
	fmt.Fprintf(&b, "  3. Re-run the command\n")
	if in.SandboxHint != "" {
		fmt.Fprintf(&b, "\n%s\n", in.SandboxHint)
	}
	return b.String()
}
