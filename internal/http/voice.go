package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/service/extraction"
	"tradietalk-voice-service/internal/service/workflow"
	"tradietalk-voice-service/internal/storage/sqlite"
)

// Client-facing error bodies.
const (
	msgVoiceTextRequired = "Voice text is required"
	msgProcessFailed     = "Failed to process voice input"
)

// maxBodyBytes caps a process request body.
const maxBodyBytes = 1 << 20

type processRequest struct {
	VoiceText string `json:"voiceText"`
	TradeType string `json:"tradeType"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type voiceHandler struct {
	extractor workflow.Extractor
}

// process handles POST /api/voice/process.
func (h *voiceHandler) process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		log.Debug().Err(err).Msg("Malformed process request")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgVoiceTextRequired})
		return
	}

	result, err := h.extractor.Extract(r.Context(), extraction.Input{
		Transcript: req.VoiceText,
		TradeHint:  models.TradeType(req.TradeType),
		Source:     extraction.SourceHTTP,
		AttemptID:  middleware.GetReqID(r.Context()),
	})
	if err != nil {
		var vErr *extraction.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgVoiceTextRequired})
			return
		}
		log.Error().Err(err).Str("errorKind", workflow.KindOf(err)).Msg("Voice processing failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgProcessFailed})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// attemptsHandler handles GET /api/voice/attempts?outcome=&limit=.
func attemptsHandler(store AttemptLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 500 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be between 1 and 500"})
				return
			}
			limit = n
		}

		records, err := store.GetRecentAttempts(r.Context(), r.URL.Query().Get("outcome"), limit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to read extraction attempts")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to read extraction attempts"})
			return
		}
		if records == nil {
			records = []*sqlite.AttemptRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
