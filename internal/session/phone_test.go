package session

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		cc      string
		want    string
		wantErr bool
	}{
		{"already international", "+989123456789", "98", "+989123456789", false},
		{"double zero prefix", "00989123456789", "98", "+989123456789", false},
		{"national format", "09123456789", "98", "+989123456789", false},
		{"country code without plus", "989123456789", "98", "+989123456789", false},
		{"bare subscriber number", "9123456789", "98", "+989123456789", false},
		{"spaces and dashes", "+98 912-345-6789", "98", "+989123456789", false},
		{"us number", "+15550000000", "98", "+15550000000", false},
		{"empty", "", "98", "", true},
		{"letters", "+98abc", "98", "", true},
		{"too short", "+12", "98", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input, tt.cc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizePhone(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateAccountID(t *testing.T) {
	if err := ValidateAccountID("+989123456789"); err != nil {
		t.Errorf("ValidateAccountID(+989123456789) error = %v", err)
	}
	for _, bad := range []string{"", "989123456789", "+98-912", "alice"} {
		if err := ValidateAccountID(bad); err == nil {
			t.Errorf("ValidateAccountID(%q) should fail", bad)
		}
	}
}
