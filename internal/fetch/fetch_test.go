package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><h1>Test</h1></body></html>"))
	}))
	defer server.Close()

	result, err := NewClient(nil).Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Contains(t, result.HTML, "<h1>Test</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "text/html", result.ContentType)
}

func TestGet_CustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en-US", r.Header.Get("Accept-Language"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&Options{
		UserAgent: "custom-agent",
		Headers:   map[string]string{"Accept-Language": "en-US"},
	})
	_, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
}

func TestGet_InvalidURL(t *testing.T) {
	_, err := NewClient(nil).Get(context.Background(), "not-a-valid-url")
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "invalid URL")
	assert.False(t, fetchErr.Transient())
}

func TestGet_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := NewClient(nil).Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.NotNil(t, result) // Result is returned even on error
	assert.Equal(t, http.StatusNotFound, result.StatusCode)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Contains(t, err.Error(), "404")
	assert.False(t, fetchErr.Transient())
}

func TestGet_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	addr := server.URL
	server.Close()

	_, err := NewClient(nil).Get(context.Background(), addr)
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
	assert.True(t, fetchErr.Transient())
}

func TestError_Transient(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"not found", &Error{StatusCode: http.StatusNotFound}, false},
		{"gone", &Error{StatusCode: http.StatusGone}, false},
		{"too many requests", &Error{StatusCode: http.StatusTooManyRequests}, true},
		{"bad gateway", &Error{StatusCode: http.StatusBadGateway}, true},
		{"transport", &Error{Cause: errors.New("connection reset")}, true},
		{"invalid url", &Error{Message: "invalid URL"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Transient())
		})
	}
}

func TestResult_Document(t *testing.T) {
	result := &Result{HTML: `<table class="tablesorter"><tbody><tr><td> 1 </td></tr></tbody></table>`}
	doc, err := result.Document()
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("table.tablesorter tbody tr").Length())
}

func TestText_CollapsesWhitespace(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<table><tr><td>\n  123 Main St<br>\n  Springfield,   CA  </td></tr></table>"))
	require.NoError(t, err)
	assert.Equal(t, "123 Main St Springfield, CA", Text(doc.Find("td")))
}
