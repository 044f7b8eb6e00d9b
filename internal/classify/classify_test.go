package classify

import "testing"

func fptr(f float64) *float64 { return &f }

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		refMin *float64
		refMax *float64
		want   string
	}{
		{"below range", 11.2, fptr(12), fptr(16), RiskLow},
		{"above range", 17.5, fptr(12), fptr(16), RiskHigh},
		{"inside range", 14, fptr(12), fptr(16), RiskNormal},
		{"exactly at min", 12, fptr(12), fptr(16), RiskNormal},
		{"exactly at max", 16, fptr(12), fptr(16), RiskNormal},
		{"missing min", 14, nil, fptr(16), RiskUnknown},
		{"missing max", 14, fptr(12), nil, RiskUnknown},
		{"missing both", 14, nil, nil, RiskUnknown},
		{"negative value below", -5, fptr(0), fptr(10), RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.value, tt.refMin, tt.refMax); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}
