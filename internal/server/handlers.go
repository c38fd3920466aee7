package server

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/npidb-scraper/internal/collector"
	"github.com/jonathan/npidb-scraper/internal/export"
	"github.com/jonathan/npidb-scraper/internal/types"
)

// SpecialtyResponse is one entry of GET /specialties.
type SpecialtyResponse struct {
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// StateResponse is one entry of GET /states.
type StateResponse struct {
	Code string `json:"code"`
	Slug string `json:"slug"`
}

// handleSpecialties lists the selectable specialty labels in sorted order.
func (s *Server) handleSpecialties(w http.ResponseWriter, r *http.Request) {
	index := s.taxonomy.Resolve(r.Context())
	labels := index.Labels()

	resp := make([]SpecialtyResponse, 0, len(labels))
	for _, label := range labels {
		slug, _ := index.Lookup(label)
		resp = append(resp, SpecialtyResponse{Label: label, Slug: slug})
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleStates lists the selectable state codes.
func (s *Server) handleStates(w http.ResponseWriter, _ *http.Request) {
	codes := types.StateCodes()
	resp := make([]StateResponse, 0, len(codes))
	for _, code := range codes {
		resp = append(resp, StateResponse{Code: code, Slug: types.States[code]})
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// parseRunRequest turns query parameters into a run request:
// specialty (label, required), state (code, required), mode and cap (optional).
func (s *Server) parseRunRequest(ctx context.Context, r *http.Request) (types.RunRequest, error) {
	q := r.URL.Query()

	label := strings.TrimSpace(q.Get("specialty"))
	if label == "" {
		return types.RunRequest{}, &ErrValidation{Field: "specialty", Message: "is required"}
	}
	state := strings.TrimSpace(q.Get("state"))
	if state == "" {
		return types.RunRequest{}, &ErrValidation{Field: "state", Message: "is required"}
	}
	if _, ok := types.StateSlug(state); !ok {
		return types.RunRequest{}, &ErrValidation{Field: "state", Message: "unknown state code " + strconv.Quote(state)}
	}

	mode := s.cfg.RunMode()
	if raw := q.Get("mode"); raw != "" {
		parsed, err := types.ParseMode(raw)
		if err != nil {
			return types.RunRequest{}, &ErrValidation{Field: "mode", Message: err.Error()}
		}
		mode = parsed
	}

	recordCap := s.cfg.Cap
	if raw := q.Get("cap"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > s.cfg.Cap {
			return types.RunRequest{}, &ErrValidation{
				Field:   "cap",
				Message: "must be a whole number between 1 and " + strconv.Itoa(s.cfg.Cap),
			}
		}
		recordCap = n
	}

	slug, ok := s.taxonomy.Resolve(ctx).Lookup(label)
	if !ok {
		return types.RunRequest{}, &ErrUnknownSpecialty{Label: label}
	}

	req, err := types.NewRunRequest(s.cfg.BaseURL, slug, label, state, recordCap, mode)
	if err != nil {
		return types.RunRequest{}, &ErrValidation{Field: "request", Message: err.Error()}
	}
	return req, nil
}

// handleCollect runs a collection to completion and returns the records as a CSV download.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRunRequest(r.Context(), r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	outcome := s.newCollector(nil).Collect(r.Context(), req)
	s.store(r.Context(), req, outcome)

	if outcome.Empty() {
		s.errorResponse(w, HTTPStatus(&ErrNoData{}), (&ErrNoData{}).Error())
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, outcome.Records, req.Mode); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(req)+`"`)
	w.Header().Set("X-Run-ID", req.ID.String())
	w.Header().Set("X-Record-Count", strconv.Itoa(len(outcome.Records)))
	w.Header().Set("X-Stop-Reason", outcome.Stop.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("error writing CSV response", zap.Error(err))
	}
}

// store hands a finished run to the sink, if any. Failures are logged only.
func (s *Server) store(ctx context.Context, req types.RunRequest, outcome *collector.Outcome) {
	if s.sink == nil {
		return
	}
	// The request context may already be canceled; the run still gets recorded.
	ctx = context.WithoutCancel(ctx)
	if err := s.sink.ExportRun(ctx, req, outcome.Records, outcome.Stop.String()); err != nil {
		s.logger.Error("failed to store run",
			zap.String("run_id", req.ID.String()), zap.Error(err))
	}
}
