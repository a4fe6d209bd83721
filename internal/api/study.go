package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/memelab/internal/config"
	"github.com/ashureev/memelab/internal/domain"
	"github.com/ashureev/memelab/internal/export"
	"github.com/ashureev/memelab/internal/identity"
	"github.com/go-chi/chi/v5"
)

const maxSubmissionBytes = 4 << 20

// StudyHandler serves the trial, submission and export endpoints.
type StudyHandler struct {
	svc *Service
	cfg *config.Config
}

// NewStudyHandler creates a study handler.
func NewStudyHandler(svc *Service, cfg *config.Config) *StudyHandler {
	return &StudyHandler{svc: svc, cfg: cfg}
}

// RegisterRoutes registers study routes.
func (h *StudyHandler) RegisterRoutes(r chi.Router) {
	r.Get("/trials", h.Trials)
	r.Post("/submit", h.Submit)
	r.Get("/download-data", h.Download)
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
	})
}

// TrialsResponse is the GET /trials body.
type TrialsResponse struct {
	WorkerID     string           `json:"workerId"`
	AssignmentID string           `json:"assignmentId"`
	Condition    domain.Condition `json:"condition"`
	N            int              `json:"n"`
	Trials       []domain.Trial   `json:"trials"`
}

// SubmitResponse is the POST /submit body.
type SubmitResponse struct {
	OK         bool   `json:"ok"`
	SurveyCode string `json:"survey_code"`
}

// Trials samples a trial set for the participant in the query string.
func (h *StudyHandler) Trials(w http.ResponseWriter, r *http.Request) {
	p := identity.Resolve(r, h.cfg.DefaultTrials)

	trials, err := h.svc.FetchTrials(r.Context(), p)
	if err != nil {
		slog.Error("Failed to sample trials", "error", err, "worker_id", p.WorkerID)
		Error(w, http.StatusInternalServerError, "failed to load trials")
		return
	}

	slog.Info("Trials issued",
		"worker_id", p.WorkerID,
		"assignment_id", p.AssignmentID,
		"condition", p.Condition,
		"n", len(trials))
	JSON(w, http.StatusOK, TrialsResponse{
		WorkerID:     p.WorkerID,
		AssignmentID: p.AssignmentID,
		Condition:    p.Condition,
		N:            len(trials),
		Trials:       trials,
	})
}

// Submit stores a session log and answers with the survey code. A body that
// is not valid JSON is recorded as an empty submission.
func (h *StudyHandler) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("Submission body too large", "limit", tooLarge.Limit)
			Error(w, http.StatusRequestEntityTooLarge, "submission too large")
			return
		}
		Error(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var sub domain.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		slog.Warn("Malformed submission body, storing as empty", "error", err, "bytes", len(body))
		sub = domain.Submission{}
	}
	if sub.SessionID == "" {
		sub.SessionID = r.Header.Get("Idempotency-Key")
	}

	ctx := r.Context()
	if h.cfg.Timeout.Submit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout.Submit)
		defer cancel()
	}

	rec, err := h.svc.Store(ctx, &sub)
	if err != nil {
		slog.Error("Failed to store submission", "error", err, "worker_id", sub.WorkerID)
		Error(w, http.StatusInternalServerError, "failed to store submission")
		return
	}

	JSON(w, http.StatusOK, SubmitResponse{OK: true, SurveyCode: rec.SurveyCode})
}

// Download streams every stored submission as a zip archive.
func (h *StudyHandler) Download(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Submissions(r.Context())
	if err != nil {
		slog.Error("Failed to list submissions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to export data")
		return
	}

	name := fmt.Sprintf("submissions_%s.zip", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if err := export.WriteArchive(w, recs); err != nil {
		slog.Error("Failed to write export", "error", err)
		return
	}
	slog.Info("Data exported", "submissions", len(recs))
}

// GetConfig returns the settings the browser front-end needs.
func (h *StudyHandler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"default_trials": h.cfg.DefaultTrials,
		"survey_url":     h.cfg.Survey.URL,
		"live_ttl_sec":   int64(h.cfg.LiveTTL.Seconds()),
	})
}
