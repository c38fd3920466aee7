// Package fetch provides the outbound HTTP GET used for taxonomy, listing and detail pages.
// This package centralizes request execution and HTML parsing so the scraping code only
// deals with documents.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; NPIDBScraper/1.0)"

// Result holds the raw content and status of a page fetch.
type Result struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
}

// Document parses the fetched HTML.
func (r *Result) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.HTML))
	if err != nil {
		return nil, &Error{
			URL:        r.URL,
			StatusCode: r.StatusCode,
			Message:    "failed to parse HTML",
			Cause:      err,
		}
	}
	return doc, nil
}

// Error represents an error during URL fetching.
// StatusCode is zero when no response was received.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Transient reports whether the failure looks like an outage rather than the end of
// the listing: transport errors, 429 and 5xx responses.
func (e *Error) Transient() bool {
	switch {
	case e.StatusCode == 0:
		return e.Cause != nil
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Fetcher retrieves a page by URL.
type Fetcher interface {
	Get(ctx context.Context, urlStr string) (*Result, error)
}

// Client is a Fetcher backed by resty. It issues plain GETs only: no cookies, no auth.
type Client struct {
	http *resty.Client
}

// NewClient creates a client with the given options. Nil options use DefaultOptions.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetHeaders(opts.Headers)

	return &Client{http: client}
}

// Get retrieves a URL. A non-2xx response returns both the Result and an *Error.
func (c *Client) Get(ctx context.Context, urlStr string) (*Result, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Get(urlStr)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "HTTP request failed",
			Cause:   err,
		}
	}

	result := &Result{
		URL:         urlStr,
		HTML:        string(resp.Body()),
		ContentType: resp.Header().Get("Content-Type"),
		StatusCode:  resp.StatusCode(),
	}

	if !resp.IsSuccess() {
		return result, &Error{
			URL:        urlStr,
			StatusCode: resp.StatusCode(),
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode()),
		}
	}

	return result, nil
}

// Text returns the selection's text with whitespace runs collapsed to single spaces.
func Text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
