// Package auth classifies vendor API credentials from their lexical form
// and builds the Authorization header they require. Classification is pure
// string inspection so it can run before any network call.
package auth

import "strings"

// Mode is the operating environment a credential targets.
type Mode string

const (
	ModeSandbox    Mode = "sandbox"
	ModeProduction Mode = "production"
	ModeUnknown    Mode = "unknown"
)

// Tier is the capability level a credential grants.
type Tier string

const (
	TierSecret     Tier = "secret"
	TierRestricted Tier = "restricted"
	TierUnknown    Tier = "unknown"
)

// Classification is the result of inspecting a credential. Valid is false
// when no known prefix matches; callers decide whether to proceed.
type Classification struct {
	Valid bool
	Mode  Mode
	Tier  Tier
}

type prefixRule struct {
	prefix string
	mode   Mode
	tier   Tier
}

// prefixTable drives classification. First match wins, so longer or more
// specific prefixes must come before shorter ones sharing a stem.
var prefixTable = []prefixRule{
	{prefix: "sk_test_", mode: ModeSandbox, tier: TierSecret},
	{prefix: "sk_live_", mode: ModeProduction, tier: TierSecret},
	{prefix: "rk_test_", mode: ModeSandbox, tier: TierRestricted},
	{prefix: "rk_live_", mode: ModeProduction, tier: TierRestricted},
}

// Classify inspects credential and reports its mode and tier. It never
// errors; an unrecognized or empty credential comes back with Valid=false
// and both dimensions unknown.
func Classify(credential string) Classification {
	for _, rule := range prefixTable {
		if strings.HasPrefix(credential, rule.prefix) {
			return Classification{Valid: true, Mode: rule.mode, Tier: rule.tier}
		}
	}
	return Classification{Valid: false, Mode: ModeUnknown, Tier: TierUnknown}
}

// Scheme names the Authorization header scheme a vendor expects.
type Scheme string

const (
	SchemeBearer Scheme = "Bearer"
)

// Header renders the Authorization header value for credential under the
// given scheme.
func Header(scheme Scheme, credential string) string {
	return string(scheme) + " " + credential
}

// Redact shortens a credential for log output. Credentials are never
// logged in full.
func Redact(credential string) string {
	if len(credential) <= 12 {
		return "****"
	}
	return credential[:8] + "..." + credential[len(credential)-4:]
}
