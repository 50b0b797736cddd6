package models

// Event type names published to the event bus.
const (
	EventTranscriptionCompleted = "practice.transcription.completed"
	EventSentenceBatchGenerated = "practice.sentence.generated"
)

// TranscriptionCompleted is emitted after a successful pipeline run.
type TranscriptionCompleted struct {
	EventType  string       `json:"eventType"`
	EventID    string       `json:"eventId"`
	RequestID  string       `json:"requestId"`
	Mode       string       `json:"mode"`
	Expected   string       `json:"expected,omitempty"`
	FullText   string       `json:"fullText"`
	Words      []WordResult `json:"words"`
	DurationMs int64        `json:"durationMs"`
	Timestamp  int64        `json:"timestamp"`
}

// SentenceBatchGenerated is emitted after a refill accepted new prompt sentences.
type SentenceBatchGenerated struct {
	EventType string   `json:"eventType"`
	EventID   string   `json:"eventId"`
	Sentences []string `json:"sentences"`
	Rounds    int      `json:"rounds"`
	Timestamp int64    `json:"timestamp"`
}
