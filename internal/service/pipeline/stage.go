package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/metrics"
)

// Stage represents the position of a pipeline run.
type Stage int

const (
	// StageDecoding - Uploaded audio is being decoded to a waveform.
	StageDecoding Stage = iota
	// StageAligning - The aligner is locating the expected words.
	StageAligning
	// StageExtracting - Word clips are being cut from the waveform.
	StageExtracting
	// StageTranscribing - Clips or the whole utterance are being recognized.
	StageTranscribing
	// StageCompleted - A result was produced.
	StageCompleted
	// StageFailed - The run aborted; no partial result is returned.
	StageFailed
)

// String returns the stage name used in logs and metric labels.
func (s Stage) String() string {
	switch s {
	case StageDecoding:
		return "decoding"
	case StageAligning:
		return "aligning"
	case StageExtracting:
		return "extracting"
	case StageTranscribing:
		return "transcribing"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// IsTerminal returns true if the stage is terminal (completed or failed).
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Errors for invalid stage transitions.
var (
	ErrRunFinished      = errors.New("pipeline run already finished")
	ErrStageNotForward  = errors.New("pipeline stages only move forward")
	ErrTerminalViaStage = errors.New("use Complete or Fail to finish a run")
)

// Tracker records the stage progression of one run.
//
// Stage transitions:
//
//	DECODING → ALIGNING → EXTRACTING → TRANSCRIBING → COMPLETED
//	    │                                   ▲
//	    └──────────── (utterance mode) ─────┘
//
//	any non-terminal stage ── Fail() ──→ FAILED
//
// Leaving a stage records its duration; failing records the stage and the
// error kind.
type Tracker struct {
	mu      sync.Mutex
	stage   Stage
	entered time.Time
	metrics *metrics.Metrics
}

// NewTracker creates a tracker in the decoding stage.
func NewTracker(m *metrics.Metrics) *Tracker {
	return &Tracker{
		stage:   StageDecoding,
		entered: time.Now(),
		metrics: m,
	}
}

// Stage returns the current stage.
func (t *Tracker) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Advance moves to a later non-terminal stage. Skipping stages is allowed.
func (t *Tracker) Advance(next Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.stage.IsTerminal():
		return ErrRunFinished
	case next.IsTerminal():
		return ErrTerminalViaStage
	case next <= t.stage:
		return fmt.Errorf("%w: %s -> %s", ErrStageNotForward, t.stage, next)
	}
	t.leave()
	t.stage = next
	return nil
}

// Complete finishes the run successfully.
func (t *Tracker) Complete() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stage.IsTerminal() {
		return ErrRunFinished
	}
	t.leave()
	t.stage = StageCompleted
	return nil
}

// Fail finishes the run with err and returns the stage it failed in.
// Returns false if the run had already finished.
func (t *Tracker) Fail(err error) (Stage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stage.IsTerminal() {
		return t.stage, false
	}
	failed := t.stage
	t.metrics.RecordStageFailure(failed.String(), models.ErrorKind(err))
	t.stage = StageFailed
	return failed, true
}

func (t *Tracker) leave() {
	now := time.Now()
	t.metrics.RecordStage(t.stage.String(), now.Sub(t.entered).Seconds())
	t.entered = now
}
