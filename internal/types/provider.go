// Package types provides type definitions for structured data used throughout the npidb scraper.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// ProviderRecord is one exported row of a collection run.
type ProviderRecord struct {
	NPI       string `json:"npi"`
	Name      string `json:"provider_name"`
	Address   string `json:"address"`
	Phone     string `json:"phone,omitempty"`
	Fax       string `json:"fax,omitempty"`
	Specialty string `json:"specialty"`
	State     string `json:"state"`
}

// Valid reports whether the record carries the fields every exported row must have.
func (r ProviderRecord) Valid() bool {
	return strings.TrimSpace(r.NPI) != "" && strings.TrimSpace(r.Name) != ""
}
