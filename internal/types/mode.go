package types

import (
	"fmt"
	"strings"
)

// Mode selects which columns a run extracts and whether it follows detail links.
type Mode int

const (
	// ModeBasic takes every field positionally from the listing row.
	ModeBasic Mode = iota
	// ModeEnriched takes identity fields from the listing row and phone/fax from the detail page.
	ModeEnriched
)

// String returns the flag/config spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeBasic:
		return "basic"
	case ModeEnriched:
		return "enriched"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "basic":
		return ModeBasic, nil
	case "enriched", "detail":
		return ModeEnriched, nil
	default:
		return ModeBasic, fmt.Errorf("unknown mode %q (want basic or enriched)", s)
	}
}
