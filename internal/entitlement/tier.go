// internal/entitlement/tier.go

// Package entitlement implements subscription state reconciliation and the
// promotional entitlement exchange workflow. The billing provider is the only
// source of truth for the effective tier; the mirror store and local cache
// are visibility and availability copies, never authoritative.
package entitlement

// Tier is the effective subscription level, ordered by entitlement
// precedence: pro > premium > free.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// Entitlement identifiers recognized by the precedence rule. Anything else
// in the provider's entitlement set is ignored.
const (
	EntitlementPro     = "pro"
	EntitlementPremium = "premium"
)

// rank orders tiers for comparison; higher wins.
func (t Tier) rank() int {
	switch t {
	case TierPro:
		return 2
	case TierPremium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether t grants at least the capabilities of other.
func (t Tier) AtLeast(other Tier) bool {
	return t.rank() >= other.rank()
}

// ParseTier maps a stored string onto a Tier, defaulting to free for
// anything unrecognized so a corrupted cache or mirror entry can never
// manufacture an upgrade.
func ParseTier(s string) Tier {
	switch s {
	case string(TierPro):
		return TierPro
	case string(TierPremium):
		return TierPremium
	default:
		return TierFree
	}
}

// TierFromEntitlements applies the precedence rule to an active entitlement
// set: pro present wins over premium, premium over free.
func TierFromEntitlements(entitlements []string) Tier {
	tier := TierFree
	for _, e := range entitlements {
		switch e {
		case EntitlementPro:
			return TierPro
		case EntitlementPremium:
			tier = TierPremium
		}
	}
	return tier
}
