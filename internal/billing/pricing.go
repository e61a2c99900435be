package billing

import (
	"fmt"

	"mizan2/internal/models"
)

// Currency is the only settlement currency the gateway account is configured for.
const Currency = "EGP"

type planKey struct {
	tier  models.Tier
	cycle models.BillingCycle
}

// Prices are fixed EGP minor units (piastres). Yearly rows carry the published
// 20% discount off 12x monthly and must stay in sync with the marketing site;
// they are deliberately stored, not derived, so a table edit is an explicit act.
var prices = map[planKey]int64{
	{models.TierBasic, models.CycleMonthly}:   10000,
	{models.TierBasic, models.CycleYearly}:    96000,
	{models.TierPro, models.CycleMonthly}:     30000,
	{models.TierPro, models.CycleYearly}:      288000,
	{models.TierPremium, models.CycleMonthly}: 50000,
	{models.TierPremium, models.CycleYearly}:  480000,
}

// YearlyDiscount is the published discount factor applied to 12x monthly.
const YearlyDiscount = 0.20

// PriceFor returns the price in minor units for a purchasable (tier, cycle)
// pair. The free tier and unknown combinations return 0 with an error; callers
// must treat that as a configuration fault, never as a zero-cost plan.
func PriceFor(tier models.Tier, cycle models.BillingCycle) (int64, error) {
	amount, ok := prices[planKey{tier, cycle}]
	if !ok || amount <= 0 {
		return 0, fmt.Errorf("no price configured for tier %q cycle %q", tier, cycle)
	}
	return amount, nil
}
