package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// DefaultBaseURL is the public site root the listing and taxonomy pages live under.
const DefaultBaseURL = "https://npidb.org"

// DefaultRecordCap is the ceiling on records collected by a single run.
const DefaultRecordCap = 5000

// RunRequest is the resolved configuration for one collection run.
// Build it with NewRunRequest; the zero value is not usable.
type RunRequest struct {
	ID             uuid.UUID `json:"id" validate:"required"`
	SpecialtySlug  string    `json:"specialty_slug" validate:"required"`
	SpecialtyLabel string    `json:"specialty"`
	StateSlug      string    `json:"state_slug" validate:"required,len=2,lowercase"`
	StateCode      string    `json:"state" validate:"required,len=2,uppercase"`
	Cap            int       `json:"cap" validate:"gt=0"`
	Mode           Mode      `json:"mode"`
	BaseURL        string    `json:"base_url" validate:"required,url"`
}

// NewRunRequest resolves the state code, derives the listing URL and validates the result.
// Every call yields a fresh run ID.
func NewRunRequest(baseURL, specialtySlug, specialtyLabel, stateCode string, recordCap int, mode Mode) (RunRequest, error) {
	stateSlug, ok := StateSlug(stateCode)
	if !ok {
		return RunRequest{}, fmt.Errorf("unknown state code %q", stateCode)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	req := RunRequest{
		ID:             uuid.New(),
		SpecialtySlug:  strings.TrimSpace(specialtySlug),
		SpecialtyLabel: specialtyLabel,
		StateSlug:      stateSlug,
		StateCode:      strings.ToUpper(strings.TrimSpace(stateCode)),
		Cap:            recordCap,
		Mode:           mode,
		BaseURL:        strings.TrimSuffix(baseURL, "/"),
	}

	if err := validator.New().Struct(req); err != nil {
		return RunRequest{}, fmt.Errorf("invalid run request: %w", err)
	}
	return req, nil
}

// ListingURL returns the first-page listing URL for a specialty and state.
func ListingURL(baseURL, specialtySlug, stateSlug string) string {
	return fmt.Sprintf("%s/doctors/%s_%s.html", strings.TrimSuffix(baseURL, "/"), specialtySlug, stateSlug)
}

// ListingURL returns the run's base listing URL.
func (r RunRequest) ListingURL() string {
	return ListingURL(r.BaseURL, r.SpecialtySlug, r.StateSlug)
}

// PageURL substitutes a page number into the listing URL pattern.
func (r RunRequest) PageURL(page int) string {
	return strings.TrimSuffix(r.ListingURL(), ".html") + fmt.Sprintf("/%d.html", page)
}

// ResolveURL turns a site-relative link from a listing row into an absolute URL.
func (r RunRequest) ResolveURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return r.BaseURL + href
}
