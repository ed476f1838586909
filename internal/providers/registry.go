package providers

import (
	"notroom/pkg/types"

	"github.com/shopspring/decimal"
)

// Markup applied on top of each provider's base cost. Revenue-bearing:
// the final cost always rounds up to the next whole cent.
const markupRate = 0.05

// finalCost computes ceil(base * (1 + markup)) in cents.
func finalCost(baseCents int64, markup float64) int64 {
	base := decimal.NewFromInt(baseCents)
	rate := decimal.NewFromFloat(1 + markup)
	return base.Mul(rate).Ceil().IntPart()
}

var catalog = []*types.BackgroundCheckProvider{
	{
		ID:             "intellicorp",
		Name:           "IntelliCorp",
		BaseCostCents:  3500,
		Markup:         markupRate,
		FinalCostCents: finalCost(3500, markupRate),
		Method:         types.BackgroundCheckMethodAPI,
		Turnaround:     "1-3 business days",
		Checks:         []string{"criminal", "sex_offender", "identity"},
		Active:         true,
	},
	{
		ID:             "goodhire",
		Name:           "GoodHire",
		BaseCostCents:  2999,
		Markup:         markupRate,
		FinalCostCents: finalCost(2999, markupRate),
		Method:         types.BackgroundCheckMethodAPI,
		Turnaround:     "1-2 business days",
		Checks:         []string{"criminal", "sex_offender"},
		Active:         true,
	},
	{
		ID:             "checkr",
		Name:           "Checkr",
		BaseCostCents:  2500,
		Markup:         markupRate,
		FinalCostCents: finalCost(2500, markupRate),
		Method:         types.BackgroundCheckMethodAPI,
		Turnaround:     "Same day - 2 business days",
		Checks:         []string{"criminal", "sex_offender", "ssn_trace"},
		Active:         true,
	},
	{
		ID:             "verified_credentials",
		Name:           "Verified Credentials",
		BaseCostCents:  3200,
		Markup:         markupRate,
		FinalCostCents: finalCost(3200, markupRate),
		Method:         types.BackgroundCheckMethodAPI,
		Turnaround:     "2-4 business days",
		Checks:         []string{"criminal", "sex_offender", "identity", "education"},
		Active:         true,
	},
	{
		ID:             "self_upload",
		Name:           "Upload Existing Check",
		BaseCostCents:  0,
		Markup:         0,
		FinalCostCents: 0,
		Method:         types.BackgroundCheckMethodUpload,
		Turnaround:     "Manual review, 3-5 business days",
		Checks:         []string{"criminal"},
		Active:         true,
	},
}

// GetProviderByID resolves an active catalog entry. Inactive providers are
// treated the same as unknown ids.
func GetProviderByID(id string) (*types.BackgroundCheckProvider, bool) {
	for _, p := range catalog {
		if p.ID == id && p.Active {
			return p, true
		}
	}
	return nil, false
}

// AllProviders returns the active catalog entries, in catalog order.
func AllProviders() []*types.BackgroundCheckProvider {
	out := make([]*types.BackgroundCheckProvider, 0, len(catalog))
	for _, p := range catalog {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

// APIProviderIDs lists the providers that deliver results over webhooks.
func APIProviderIDs() []string {
	out := make([]string, 0, len(catalog))
	for _, p := range catalog {
		if p.Active && p.Method == types.BackgroundCheckMethodAPI {
			out = append(out, p.ID)
		}
	}
	return out
}
