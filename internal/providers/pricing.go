package providers

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatPrice renders an amount of cents as a dollar string, e.g. "$36.75".
func FormatPrice(cents int64) string {
	dollars := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
	return fmt.Sprintf("$%s", dollars.StringFixed(2))
}
