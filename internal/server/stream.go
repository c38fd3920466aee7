package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/jonathan/npidb-scraper/internal/collector"
	"github.com/jonathan/npidb-scraper/internal/export"
	"github.com/jonathan/npidb-scraper/internal/types"
)

// Event names on the collection stream.
const (
	EventPage     = "page"
	EventRecord   = "record"
	EventNotice   = "notice"
	EventError    = "error"
	EventComplete = "complete"
)

// Completion statuses.
const (
	StatusCompleted = "completed"
	StatusNoData    = "no_data"
)

// PageEvent reports a listing page that yielded rows.
type PageEvent struct {
	Page int `json:"page"`
	Rows int `json:"rows"`
}

// RecordEvent carries one accepted record and the running total.
type RecordEvent struct {
	Total  int                  `json:"total"`
	Record types.ProviderRecord `json:"record"`
}

// NoticeEvent explains why the run stopped.
type NoticeEvent struct {
	Message   string `json:"message"`
	Stop      string `json:"stop"`
	Page      int    `json:"page"`
	Transient bool   `json:"transient,omitempty"`
}

// CompleteEvent ends the stream.
type CompleteEvent struct {
	RunID    string `json:"run_id"`
	Status   string `json:"status"`
	Records  int    `json:"records"`
	Pages    int    `json:"pages"`
	Stop     string `json:"stop"`
	FileName string `json:"file_name,omitempty"`
}

// sseObserver forwards collector progress to the event stream.
type sseObserver struct {
	sse    *SSEWriter
	logger *zap.Logger
}

func (o *sseObserver) PageFetched(page, rows int) {
	o.write(EventPage, PageEvent{Page: page, Rows: rows})
}

func (o *sseObserver) RecordAccepted(record types.ProviderRecord, total int) {
	o.write(EventRecord, RecordEvent{Total: total, Record: record})
}

func (o *sseObserver) Stopped(out *collector.Outcome) {
	if out.Notice == "" {
		return
	}
	o.write(EventNotice, NoticeEvent{
		Message:   out.Notice,
		Stop:      out.Stop.String(),
		Page:      out.StopPage,
		Transient: out.Transient,
	})
}

func (o *sseObserver) write(event string, data any) {
	if err := o.sse.WriteEvent(event, data); err != nil {
		o.logger.Debug("error writing SSE event", zap.String("event", event), zap.Error(err))
	}
}

// handleCollectStream runs a collection and streams its progress as server-sent events.
// The run stops when the client disconnects.
func (s *Server) handleCollectStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRunRequest(r.Context(), r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("starting streaming collection",
		zap.String("run_id", req.ID.String()),
		zap.String("listing_url", req.ListingURL()))

	outcome := s.newCollector(&sseObserver{sse: sse, logger: s.logger}).Collect(r.Context(), req)
	s.store(r.Context(), req, outcome)

	complete := CompleteEvent{
		RunID:   req.ID.String(),
		Status:  StatusCompleted,
		Records: len(outcome.Records),
		Pages:   outcome.Pages,
		Stop:    outcome.Stop.String(),
	}
	if outcome.Transient {
		// The site looked unavailable; the run may be worth retrying later.
		sse.WriteError(outcome.Notice)
	}
	if outcome.Empty() {
		complete.Status = StatusNoData
	} else {
		complete.FileName = export.FileName(req)
	}
	sse.WriteComplete(complete)
}
