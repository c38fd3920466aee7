package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/npidb-scraper/internal/config"
	"github.com/jonathan/npidb-scraper/internal/fetch"
	"github.com/jonathan/npidb-scraper/internal/taxonomy"
	"github.com/jonathan/npidb-scraper/internal/types"
)

const pediatricsSlug = "pediatrics_208000000x"

// newUpstream simulates npidb.org: pediatrics in CA has two pages of providers,
// every other listing 404s.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string][]int{
		"/doctors/" + pediatricsSlug + "_ca/1.html": {100, 101, 102},
		"/doctors/" + pediatricsSlug + "_ca/2.html": {200},
		"/doctors/" + pediatricsSlug + "_ca/3.html": {},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == taxonomy.ReferencePath {
			_, _ = w.Write([]byte(`<table><tbody>
<tr><td><a href="/taxonomy/allopathic/pediatrics_208000000x.html">Allopathic - Pediatrics</a></td></tr>
<tr><td><a href="/taxonomy/dental/dentist_122300000x.html">Dentist</a></td></tr>
</tbody></table>`))
			return
		}
		if r.URL.Path == "/doctors/dentist_122300000x_wa/1.html" {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		if npis, ok := pages[r.URL.Path]; ok {
			_, _ = w.Write([]byte(listingPage(npis)))
			return
		}
		var npi int
		if _, err := fmt.Sscanf(r.URL.Path, "/npi/%d.aspx", &npi); err == nil {
			_, _ = fmt.Fprintf(w, `<table class="table"><tr><td>Phone</td><td>(555) 000-%d</td></tr><tr><td>Fax</td><td>(555) 999-%d</td></tr></table>`, npi, npi)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func listingPage(npis []int) string {
	var sb strings.Builder
	sb.WriteString(`<table class="tablesorter"><tbody>`)
	for _, npi := range npis {
		fmt.Fprintf(&sb, `<tr><td>%d</td><td><a href="/npi/%d.aspx">Provider %d</a></td><td>%d Main St</td><td>555-%04d</td><td>Pediatrics</td></tr>`,
			npi, npi, npi, npi, npi)
	}
	sb.WriteString(`</tbody></table>`)
	return sb.String()
}

type fakeSink struct {
	mu   sync.Mutex
	runs []sinkCall
}

type sinkCall struct {
	req     types.RunRequest
	records int
	stop    string
}

func (f *fakeSink) ExportRun(_ context.Context, req types.RunRequest, records []types.ProviderRecord, stop string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, sinkCall{req: req, records: len(records), stop: stop})
	return nil
}

func newTestServer(t *testing.T, configure func(*config.Config)) (*Server, *fakeSink) {
	t.Helper()
	upstream := newUpstream(t)

	cfg := config.Defaults()
	cfg.BaseURL = upstream.URL
	cfg.Delay = 0
	cfg.RateLimit.Enabled = false
	if configure != nil {
		configure(&cfg)
	}

	sink := &fakeSink{}
	s, err := New(Options{
		Config: &cfg,
		Taxonomy: taxonomy.Static{Index: taxonomy.NewIndex(map[string]string{
			"Pediatrics": pediatricsSlug,
			"Dentist":    "dentist_122300000x",
		})},
		Fetcher: fetch.NewClient(&fetch.Options{Timeout: 5 * time.Second}),
		Sink:    sink,
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	return s, sink
}

func do(s *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func readCSV(t *testing.T, body string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	cfg := config.Defaults()
	_, err = New(Options{Config: &cfg})
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestSpecialtiesEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, "/specialties")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []SpecialtyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []SpecialtyResponse{
		{Label: "Dentist", Slug: "dentist_122300000x"},
		{Label: "Pediatrics", Slug: pediatricsSlug},
	}, resp)
}

func TestStatesEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, "/states")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, len(types.States))
	assert.Contains(t, resp, StateResponse{Code: "CA", Slug: "ca"})
}

func TestCollect_BasicCSV(t *testing.T) {
	s, sink := newTestServer(t, nil)

	w := do(s, "/collect?specialty=Pediatrics&state=CA")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "npidb_pediatrics_ca.csv")
	assert.Equal(t, "4", w.Header().Get("X-Record-Count"))
	assert.Equal(t, "exhausted", w.Header().Get("X-Stop-Reason"))

	rows := readCSV(t, w.Body.String())
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"NPI", "Provider Name", "Address", "Phone", "Specialty", "State"}, rows[0])
	assert.Equal(t, []string{"100", "Provider 100", "100 Main St", "555-0100", "Pediatrics", "CA"}, rows[1])
	assert.Equal(t, "200", rows[4][0])

	require.Len(t, sink.runs, 1)
	assert.Equal(t, 4, sink.runs[0].records)
	assert.Equal(t, "exhausted", sink.runs[0].stop)
}

func TestCollect_EnrichedCSV(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) { c.Workers = 2 })

	w := do(s, "/collect?specialty=Pediatrics&state=ca&mode=enriched")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	rows := readCSV(t, w.Body.String())
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"NPI", "Provider Name", "Address", "Phone", "Fax", "Specialty", "State"}, rows[0])
	assert.Equal(t, []string{"101", "Provider 101", "101 Main St", "(555) 000-101", "(555) 999-101", "Pediatrics", "CA"}, rows[2])
}

func TestCollect_Cap(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, "/collect?specialty=Pediatrics&state=CA&cap=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cap", w.Header().Get("X-Stop-Reason"))
	assert.Len(t, readCSV(t, w.Body.String()), 3)
}

func TestCollect_NoDataFound(t *testing.T) {
	s, sink := newTestServer(t, nil)

	w := do(s, "/collect?specialty=Dentist&state=NY")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "no data found", resp["error"])

	require.Len(t, sink.runs, 1)
	assert.Zero(t, sink.runs[0].records)
	assert.Equal(t, "fetch_failed", sink.runs[0].stop)
}

func TestCollect_BadRequests(t *testing.T) {
	s, sink := newTestServer(t, nil)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing specialty", "state=CA", http.StatusBadRequest},
		{"missing state", "specialty=Pediatrics", http.StatusBadRequest},
		{"unknown state", "specialty=Pediatrics&state=ZZ", http.StatusBadRequest},
		{"bad mode", "specialty=Pediatrics&state=CA&mode=fast", http.StatusBadRequest},
		{"zero cap", "specialty=Pediatrics&state=CA&cap=0", http.StatusBadRequest},
		{"cap above ceiling", "specialty=Pediatrics&state=CA&cap=5001", http.StatusBadRequest},
		{"non-numeric cap", "specialty=Pediatrics&state=CA&cap=ten", http.StatusBadRequest},
		{"unknown specialty", "specialty=Astrology&state=CA", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, "/collect?"+tt.query)
			assert.Equal(t, tt.status, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
	assert.Empty(t, sink.runs, "rejected requests never start a run")
}

func TestCollectStream_Events(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, "/collect/stream?specialty=Pediatrics&state=CA")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: "+EventPage+"\n"))
	assert.Equal(t, 4, strings.Count(body, "event: "+EventRecord+"\n"))
	assert.Equal(t, 1, strings.Count(body, "event: "+EventNotice+"\n"))
	require.Equal(t, 1, strings.Count(body, "event: "+EventComplete+"\n"))

	var complete CompleteEvent
	require.NoError(t, json.Unmarshal([]byte(lastData(body)), &complete))
	assert.Equal(t, StatusCompleted, complete.Status)
	assert.Equal(t, 4, complete.Records)
	assert.Equal(t, 2, complete.Pages)
	assert.Equal(t, "exhausted", complete.Stop)
	assert.Equal(t, "npidb_pediatrics_ca.csv", complete.FileName)
}

func TestCollectStream_NoData(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, "/collect/stream?specialty=Dentist&state=TX")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "HTTP 404")

	var complete CompleteEvent
	require.NoError(t, json.Unmarshal([]byte(lastData(body)), &complete))
	assert.Equal(t, StatusNoData, complete.Status)
	assert.Zero(t, complete.Records)
	assert.Empty(t, complete.FileName)
}

func TestCollectStream_OutageSendsErrorEvent(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, "/collect/stream?specialty=Dentist&state=WA")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Equal(t, 1, strings.Count(body, "event: "+EventError+"\n"))
	assert.Contains(t, body, "HTTP 503")
	assert.Less(t, strings.Index(body, "event: "+EventError), strings.Index(body, "event: "+EventComplete))

	var complete CompleteEvent
	require.NoError(t, json.Unmarshal([]byte(lastData(body)), &complete))
	assert.Equal(t, StatusNoData, complete.Status)
	assert.Equal(t, "fetch_failed", complete.Stop)
}

func TestCollectStream_NoDataHasNoErrorEvent(t *testing.T) {
	s, _ := newTestServer(t, nil)

	body := do(s, "/collect/stream?specialty=Dentist&state=TX").Body.String()
	assert.NotContains(t, body, "event: "+EventError)
}

func TestCollectStream_BadRequestIsJSON(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, "/collect/stream?state=CA")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestRateLimit_Collect(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, Limit: 10, Window: time.Hour, Burst: 1}
	})

	w := do(s, "/collect?specialty=Pediatrics&state=CA&cap=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))

	w = do(s, "/collect?specialty=Pediatrics&state=CA&cap=1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp["error"])

	// Lookups are not throttled by the collection limit.
	assert.Equal(t, http.StatusOK, do(s, "/states").Code)
	assert.Equal(t, http.StatusOK, do(s, "/health").Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/collect", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

// lastData returns the payload of the final event in an SSE body.
func lastData(body string) string {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if data, ok := strings.CutPrefix(lines[i], "data: "); ok {
			return data
		}
	}
	return ""
}

func TestSpecialties_CanceledClientDoesNotPoisonTaxonomy(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.taxonomy = taxonomy.NewResolver(s.fetcher, s.cfg.BaseURL, zaptest.NewLogger(t))

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/specialties", nil).WithContext(canceled)
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	w := do(s, "/specialties")
	require.Equal(t, http.StatusOK, w.Code)
	var resp []SpecialtyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)

	w = do(s, "/collect?specialty=Pediatrics&state=CA&cap=1")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
