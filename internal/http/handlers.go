package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/logging"
	"pronunciation-practice-service/internal/service/pipeline"
)

// multipartMemory is how much of a form is held in memory before spilling
// to temp files.
const multipartMemory = 8 << 20

// Error kinds specific to the HTTP surface.
const (
	kindBadRequest          = "BadRequest"
	kindPayloadTooLarge     = "PayloadTooLarge"
	kindSentenceUnavailable = "SentenceUnavailable"
)

type handlers struct {
	deps Deps
}

type transcribeResponse struct {
	Text     string              `json:"text"`
	FullText string              `json:"fullText"`
	Words    []models.WordResult `json:"words"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *handlers) transcribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := requestIDFrom(r)
	logger := logging.WithRequest(requestID)

	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, kindPayloadTooLarge, "audio upload is too large")
			return
		}
		writeError(w, http.StatusBadRequest, kindBadRequest, "expected a multipart form with an audio file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, kindBadRequest, "could not read audio file")
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, kindBadRequest, "audio file is empty")
		return
	}

	formatHint := filepath.Ext(header.Filename)
	if formatHint == "" {
		formatHint = header.Header.Get("Content-Type")
	}

	req := pipeline.Request{
		Audio:      raw,
		FormatHint: formatHint,
		RequestID:  requestID,
	}
	if values, ok := r.MultipartForm.Value["sentence"]; ok && len(values) > 0 {
		transcript := values[0]
		req.Transcript = &transcript
	}

	result, err := h.deps.Pipeline.Run(r.Context(), req)
	if err != nil {
		kind := models.ErrorKind(err)
		writeError(w, statusFor(kind), kind, publicMessage(kind))
		return
	}

	h.publish(r, requestID, req, result, time.Since(start))

	writeJSON(w, http.StatusOK, transcribeResponse{
		Text:     result.FullText,
		FullText: result.FullText,
		Words:    result.Words,
	})

	logger.Debug().
		Int("audioBytes", len(raw)).
		Str("formatHint", formatHint).
		Str("mode", req.Mode()).
		Msg("Transcribe request served")
}

// publish emits TranscriptionCompleted. Failures are logged and never fail
// the request.
func (h *handlers) publish(r *http.Request, requestID string, req pipeline.Request, result models.TranscriptionResult, elapsed time.Duration) {
	if h.deps.Publisher == nil {
		return
	}
	logger := logging.WithRequest(requestID)

	ev := models.TranscriptionCompleted{
		EventType:  models.EventTranscriptionCompleted,
		EventID:    uuid.NewString(),
		RequestID:  requestID,
		Mode:       req.Mode(),
		FullText:   result.FullText,
		Words:      result.Words,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().UnixMilli(),
	}
	if req.Mode() == pipeline.ModeAligned {
		ev.Expected = *req.Transcript
	}

	if h.deps.Validator != nil {
		if err := h.deps.Validator.Validate(ev); err != nil {
			logger.Error().Err(err).Msg("Transcription event failed validation, not published")
			return
		}
	}
	if err := h.deps.Publisher.PublishTranscription(r.Context(), requestID, ev); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish transcription event")
	}
}

func (h *handlers) nextSentence(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sentences != nil {
		if s, ok := h.deps.Sentences.Next(r.Context()); ok {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeError(w, http.StatusServiceUnavailable, kindSentenceUnavailable, "no practice sentence is available")
}

func requestIDFrom(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}

func statusFor(kind string) int {
	switch kind {
	case models.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case models.KindAlignmentUnavailable, models.KindRecognitionUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage never includes error text, which can carry local paths.
func publicMessage(kind string) string {
	switch kind {
	case models.KindUnsupportedFormat:
		return "the audio could not be decoded"
	case models.KindAlignmentUnavailable:
		return "word alignment is unavailable"
	case models.KindRecognitionUnavailable:
		return "speech recognition is unavailable"
	case models.KindInvalidInterval:
		return "word alignment produced an invalid result"
	default:
		return "internal error"
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
