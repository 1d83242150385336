// Package legislation handles congressional legislation-number parsing and
// validation for bill metadata supplied at registration.
package legislation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Chambers of origin.
const (
	ChamberHouse  = "HOUSE"
	ChamberSenate = "SENATE"
)

// numberRegex matches: {prefix} {number}
// Examples: "H.R. 5376", "S. 1234", "H.J.Res. 12", "S.Con.Res. 3"
var numberRegex = regexp.MustCompile(
	`^(H\.R\.|S\.|H\.J\.Res\.|S\.J\.Res\.|H\.Con\.Res\.|S\.Con\.Res\.|H\.Res\.|S\.Res\.)\s*([0-9]+)$`,
)

var (
	ErrInvalidNumber = errors.New("legislation: invalid legislation number")
)

// Number represents a parsed legislation number.
type Number struct {
	Raw     string `json:"raw"`
	Prefix  string `json:"prefix"`
	Chamber string `json:"chamber"`
	Ordinal int    `json:"ordinal"`
}

// ParseNumber parses and validates a legislation number string.
// Format: {H.R.|S.|H.J.Res.|S.J.Res.|H.Con.Res.|S.Con.Res.|H.Res.|S.Res.} {n}
func ParseNumber(raw string) (*Number, error) {
	matches := numberRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if matches == nil {
		return nil, fmt.Errorf("%w: %q (expected e.g. \"H.R. 5376\" or \"S. 1234\")",
			ErrInvalidNumber, raw)
	}

	prefix := matches[1]
	ordinal, err := strconv.Atoi(matches[2])
	if err != nil || ordinal == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}

	chamber := ChamberSenate
	if strings.HasPrefix(prefix, "H") {
		chamber = ChamberHouse
	}

	return &Number{
		Raw:     strings.TrimSpace(raw),
		Prefix:  prefix,
		Chamber: chamber,
		Ordinal: ordinal,
	}, nil
}
