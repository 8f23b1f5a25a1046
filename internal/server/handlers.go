package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/prokopidis/presidio/internal/anonymizer"
	"github.com/prokopidis/presidio/internal/task"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{"error": message, "type": errType})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

type anonymizeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// handleAnonymize enqueues an anonymization job and returns its task id;
// clients poll GET /anonymize/{id} for the result.
func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if req.Language != "" && req.Language != "el" {
		writeError(w, http.StatusUnprocessableEntity, "unsupported_language", "supported languages: el")
		return
	}

	id, err := s.queue.Submit(req.Text)
	if err != nil {
		if errors.Is(err, task.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "queue_full", "anonymization queue is full, retry later")
			return
		}
		log.Error().Err(err).Msg("submitting anonymization task")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"anonymization_id": id})
}

// handleGetAnonymization reports task status; result is null until the task
// has finished.
func (s *Server) handleGetAnonymization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.queue.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "unknown anonymization id")
			return
		}
		log.Error().Err(err).Str("task_id", id).Msg("loading anonymization task")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	resp := map[string]interface{}{
		"anonymization_id": t.ID,
		"status":           t.Status,
		"result":           nil,
	}
	if len(t.Result) > 0 {
		resp["result"] = json.RawMessage(t.Result)
	}
	if t.Error != "" {
		resp["error"] = t.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

type deanonymizeRequest struct {
	Masked        string                   `json:"masked"`
	Spans         []anonymizer.SpanRecord  `json:"spans"`
	EntityMapping anonymizer.EntityMapping `json:"entity_mapping"`
}

// handleDeanonymize restores original text from a reversible-mode record.
// Lookup failures surface as 422; a wrong original value would be worse
// than an error.
func (s *Server) handleDeanonymize(w http.ResponseWriter, r *http.Request) {
	var req deanonymizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	if req.Masked == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "masked is required")
		return
	}

	text, err := anonymizer.Deanonymize(req.Masked, req.Spans, req.EntityMapping)
	if err != nil {
		if errors.Is(err, anonymizer.ErrMappingNotFound) {
			writeError(w, http.StatusUnprocessableEntity, "mapping_not_found", err.Error())
			return
		}
		log.Error().Err(err).Msg("deanonymizing")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
