package billing

import "testing"

func TestValidatePriceID(t *testing.T) {
	tests := []struct {
		name    string
		priceID string
		wantErr bool
	}{
		{"valid", "price_1OabcDEF2ghiJKL3mnoPQR4s", false},
		{"valid long", "price_1OabcDEF2ghiJKL3mnoPQR4stuVWX", false},
		{"empty", "", true},
		{"placeholder", "price_PLACEHOLDER_replace_me_now", true},
		{"placeholder mixed case", "price_PlaceHolder123456789012345", true},
		{"missing prefix", "1OabcDEF2ghiJKL3mnoPQR4s", true},
		{"too short", "price_abc123", true},
		{"product id", "prod_1OabcDEF2ghiJKL3mnoPQR4s", true},
		{"illegal characters", "price_1Oabc-DEF2ghi_JKL3mnoPQR", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePriceID(tt.priceID)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error for %q", tt.priceID)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.priceID, err)
			}
		})
	}
}
