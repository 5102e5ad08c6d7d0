package account

import "fmt"

// FreeChartLimit is the number of charts a free-tier account may
// generate before it must upgrade.
const FreeChartLimit = 5

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Permit decides whether an account with the given tier and chart count
// may generate another chart. Pure function: pro always passes, free
// passes while under the limit.
func Permit(tier Tier, chartCount int) Decision {
	if tier == TierPro {
		return Decision{Allowed: true}
	}
	if chartCount < FreeChartLimit {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed: false,
		Reason: fmt.Sprintf(
			"Free users can only generate %d charts. Upgrade to Pro for unlimited charts.",
			FreeChartLimit,
		),
	}
}
