package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/instrument_downloader/internal/collector"
	"github.com/italolelis/instrument_downloader/internal/logctx"
	"github.com/italolelis/instrument_downloader/internal/telemetry"
)

// StatusSource reports collection progress.
type StatusSource interface {
	Status() (current string, completed []collector.Report)
}

type instrumentStatus struct {
	Instrument  string  `json:"instrument"`
	Results     int     `json:"results"`
	Written     int     `json:"written"`
	Failed      int     `json:"failed"`
	Unsupported int     `json:"unsupported"`
	Bytes       int64   `json:"bytes"`
	DurationSec float64 `json:"duration_seconds"`
	Error       string  `json:"error,omitempty"`
}

type statusResponse struct {
	Current   string             `json:"current,omitempty"`
	Completed []instrumentStatus `json:"completed"`
	CheckedAt time.Time          `json:"checked_at"`
}

// StatusHandler serves health, progress and metrics for a running collector.
type StatusHandler struct {
	source    StatusSource
	telemetry *telemetry.Telemetry
}

func NewStatusHandler(source StatusSource, t *telemetry.Telemetry) *StatusHandler {
	return &StatusHandler{source: source, telemetry: t}
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID, telemetry.AccessLog)

	r.Get("/health", h.HandleHealth)
	r.Get("/status", h.HandleStatus)
	r.Handle("/metrics", h.telemetry.Handler())

	return h.telemetry.ServerHandler(r, "status_server")
}

func (h *StatusHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	current, completed := h.source.Status()

	resp := statusResponse{
		Current:   current,
		Completed: make([]instrumentStatus, 0, len(completed)),
		CheckedAt: time.Now().UTC(),
	}

	for _, rep := range completed {
		s := instrumentStatus{
			Instrument:  rep.Instrument,
			Results:     rep.Results,
			Written:     rep.Summary.Written,
			Failed:      rep.Summary.Failed,
			Unsupported: rep.Summary.Unsupported,
			Bytes:       rep.Summary.Bytes,
			DurationSec: rep.Duration.Seconds(),
		}

		if rep.Err != nil {
			s.Error = rep.Err.Error()
		}

		resp.Completed = append(resp.Completed, s)
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode status response", "err", err)
	}
}
