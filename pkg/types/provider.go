package types

type BackgroundCheckMethod string

const (
	BackgroundCheckMethodAPI    BackgroundCheckMethod = "api"
	BackgroundCheckMethodUpload BackgroundCheckMethod = "upload"
)

// BackgroundCheckProvider is a static catalog entry. FinalCostCents is
// derived once at catalog-definition time and already includes the markup.
type BackgroundCheckProvider struct {
	ID             string
	Name           string
	BaseCostCents  int64
	Markup         float64
	FinalCostCents int64
	Method         BackgroundCheckMethod
	Turnaround     string
	Checks         []string
	Active         bool
}

// Free providers (self upload) never touch Stripe.
func (p *BackgroundCheckProvider) IsFree() bool {
	return p.FinalCostCents == 0
}
