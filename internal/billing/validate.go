package billing

import (
	"fmt"
	"regexp"
	"strings"
)

var priceIDPattern = regexp.MustCompile(`^price_[A-Za-z0-9]{24,}$`)

// ValidatePriceID rejects malformed or placeholder Stripe Price IDs before
// any Stripe call is made. A bad price id is a deployment configuration
// problem and deserves a precise error, not a Stripe 400.
func ValidatePriceID(priceID string) error {
	if priceID == "" {
		return fmt.Errorf("stripe price id is not configured")
	}

	if strings.Contains(strings.ToLower(priceID), "placeholder") {
		return fmt.Errorf("stripe price id %q is a placeholder value", priceID)
	}

	if !priceIDPattern.MatchString(priceID) {
		return fmt.Errorf("stripe price id %q does not match expected format", priceID)
	}

	return nil
}
