package legislation_test

import (
	"errors"
	"testing"

	"github.com/openlobby/commitment-engine/internal/legislation"
)

func TestParseNumber_Valid(t *testing.T) {
	cases := []struct {
		raw     string
		chamber string
		ordinal int
	}{
		{"H.R. 5376", legislation.ChamberHouse, 5376},
		{"S. 1234", legislation.ChamberSenate, 1234},
		{"H.J.Res. 12", legislation.ChamberHouse, 12},
		{"S.Con.Res. 3", legislation.ChamberSenate, 3},
		{"H.Res.45", legislation.ChamberHouse, 45},
		{"  S. 2 ", legislation.ChamberSenate, 2},
	}

	for _, c := range cases {
		n, err := legislation.ParseNumber(c.raw)
		if err != nil {
			t.Errorf("ParseNumber(%q): %v", c.raw, err)
			continue
		}
		if n.Chamber != c.chamber {
			t.Errorf("ParseNumber(%q) chamber = %s, want %s", c.raw, n.Chamber, c.chamber)
		}
		if n.Ordinal != c.ordinal {
			t.Errorf("ParseNumber(%q) ordinal = %d, want %d", c.raw, n.Ordinal, c.ordinal)
		}
	}
}

func TestParseNumber_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"HR 5376",     // missing dots
		"H.R. ",       // no number
		"H.R. 0",      // zero ordinal
		"X.R. 10",     // unknown prefix
		"H.R. 12a",    // trailing garbage
		"5376",        // bare number
	} {
		if _, err := legislation.ParseNumber(raw); !errors.Is(err, legislation.ErrInvalidNumber) {
			t.Errorf("ParseNumber(%q): expected ErrInvalidNumber, got %v", raw, err)
		}
	}
}
