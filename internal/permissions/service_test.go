package permissions

import (
	"errors"
	"testing"

	"github.com/meridian-iam/meridian-iam/internal/platform/httpx"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"roles.edit", "roles.edit", true},
		{"  Users.View  ", "users.view", true},
		{"reports.finance.export", "reports.finance.export", true},
		{"roles", "", false},
		{"roles.", "", false},
		{".edit", "", false},
		{"roles edit", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := normalizeName(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("normalizeName(%q): unexpected error %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("normalizeName(%q) = %q, want %q", tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, httpx.ErrValidation) {
			t.Fatalf("normalizeName(%q): expected ErrValidation, got %v", tc.in, err)
		}
	}
}
