package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/pipeline"
	"pronunciation-practice-service/internal/service/sentence"
)

// DefaultMaxUploadBytes bounds a single audio upload.
const DefaultMaxUploadBytes = 20 << 20

// TranscriptionRunner runs one transcription request.
type TranscriptionRunner interface {
	Run(ctx context.Context, req pipeline.Request) (models.TranscriptionResult, error)
}

// SentenceSupplier hands out practice sentences.
type SentenceSupplier interface {
	Next(ctx context.Context) (sentence.Sentence, bool)
}

// TranscriptionPublisher publishes completed transcriptions.
type TranscriptionPublisher interface {
	PublishTranscription(ctx context.Context, key string, event any) error
}

// EventValidator checks events before they are published.
type EventValidator interface {
	Validate(event any) error
}

// Deps are the collaborators the router serves. Publisher and Validator
// may be nil; Ready nil means always ready.
type Deps struct {
	Pipeline       TranscriptionRunner
	Sentences      SentenceSupplier
	Publisher      TranscriptionPublisher
	Validator      EventValidator
	MaxUploadBytes int64
	Ready          func() bool
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(deps Deps) http.Handler {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Ready != nil && !deps.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Routes kept for the existing practice front-end
	r.Post("/transcribe", h.transcribe)
	r.Get("/random-sentence", h.nextSentence)

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/transcribe", h.transcribe)
		r.Get("/sentences/next", h.nextSentence)
	})

	return r
}
