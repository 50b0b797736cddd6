// Package schema checks outgoing events before they are published.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pronunciation-practice-service/internal/models"
)

// ErrInvalidEvent is returned for events that would break consumers.
var ErrInvalidEvent = errors.New("invalid event")

// Validator checks event payloads against the published contract.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks a TranscriptionCompleted or SentenceBatchGenerated event.
func (v *Validator) Validate(event any) error {
	var err error
	switch e := event.(type) {
	case models.TranscriptionCompleted:
		err = validateTranscription(&e)
	case *models.TranscriptionCompleted:
		err = validateTranscription(e)
	case models.SentenceBatchGenerated:
		err = validateSentenceBatch(&e)
	case *models.SentenceBatchGenerated:
		err = validateSentenceBatch(e)
	default:
		err = fmt.Errorf("%w: unknown event type %T", ErrInvalidEvent, event)
	}

	if err != nil {
		log.Warn().Err(err).Msg("Event failed schema validation")
		return err
	}
	log.Debug().Type("event", event).Msg("Event schema validated")
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, fmt.Sprintf(format, args...))
}

func validateTranscription(e *models.TranscriptionCompleted) error {
	switch {
	case e.EventType != models.EventTranscriptionCompleted:
		return invalid("eventType %q", e.EventType)
	case e.EventID == "":
		return invalid("missing eventId")
	case e.RequestID == "":
		return invalid("missing requestId")
	case e.Mode != "aligned" && e.Mode != "utterance":
		return invalid("mode %q", e.Mode)
	case e.Timestamp <= 0:
		return invalid("missing timestamp")
	case e.Words == nil:
		return invalid("words must be an array")
	}

	result := models.TranscriptionResult{FullText: e.FullText, Words: e.Words}
	if !result.IsConsistent() {
		return invalid("fullText does not match words")
	}
	for i, w := range e.Words {
		if w.NormalizedText != models.Normalize(w.SurfaceText) {
			return invalid("word %d normalizedText %q does not match surfaceText %q", i, w.NormalizedText, w.SurfaceText)
		}
		if w.Confidence != nil && (*w.Confidence < 0 || *w.Confidence > 1) {
			return invalid("word %d confidence %v outside [0, 1]", i, *w.Confidence)
		}
		if w.End < w.Start {
			return invalid("word %d ends before it starts", i)
		}
	}
	return nil
}

func validateSentenceBatch(e *models.SentenceBatchGenerated) error {
	switch {
	case e.EventType != models.EventSentenceBatchGenerated:
		return invalid("eventType %q", e.EventType)
	case e.EventID == "":
		return invalid("missing eventId")
	case e.Timestamp <= 0:
		return invalid("missing timestamp")
	case e.Rounds < 1:
		return invalid("rounds %d", e.Rounds)
	case len(e.Sentences) == 0:
		return invalid("empty batch")
	}
	for i, s := range e.Sentences {
		if strings.TrimSpace(s) == "" {
			return invalid("sentence %d is blank", i)
		}
	}
	return nil
}
