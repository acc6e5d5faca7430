package version

import (
	"strings"
	"testing"
)

func TestCalculateBuildID(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		expected  int
		wantError bool
	}{
		{
			name:     "epoch date",
			date:     "2020-04-12",
			expected: 0,
		},
		{
			name:     "next day after epoch",
			date:     "2020-04-13",
			expected: 1,
		},
		{
			name:     "one year later",
			date:     "2021-04-12",
			expected: 365,
		},
		{
			name:     "date with leap years included",
			date:     "2027-04-12",
			expected: 2556,
		},
		{
			name:      "invalid format",
			date:      "invalid",
			wantError: true,
		},
		{
			name:      "empty date",
			date:      "",
			wantError: true,
		},
		{
			name:      "before epoch",
			date:      "2020-04-11",
			wantError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			old := BuildDate
			defer func() { BuildDate = old }()

			BuildDate = tt.date

			got, err := CalculateBuildID()

			if tt.wantError {
				if err == nil {
					t.Fatalf("expected error, got nil (id=%d)", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.expected {
				t.Errorf("CalculateBuildID() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestProtocolFallsBackToDev(t *testing.T) {
	old := BuildDate
	defer func() { BuildDate = old }()

	BuildDate = ""
	if got := Protocol(); got != "dev" {
		t.Errorf("Protocol() = %q, want %q", got, "dev")
	}

	BuildDate = "2020-04-13"
	if got := Protocol(); !strings.HasPrefix(got, "build-1-") {
		t.Errorf("Protocol() = %q, want build-1- prefix", got)
	}
}
