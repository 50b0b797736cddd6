package pipeline

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/metrics"
)

func TestTracker_InitialStage(t *testing.T) {
	tr := NewTracker(nil)

	if tr.Stage() != StageDecoding {
		t.Errorf("expected StageDecoding, got %v", tr.Stage())
	}
	if tr.Stage().IsTerminal() {
		t.Error("expected initial stage to be non-terminal")
	}
}

func TestTracker_AdvanceForward(t *testing.T) {
	tr := NewTracker(nil)

	for _, s := range []Stage{StageAligning, StageExtracting, StageTranscribing} {
		if err := tr.Advance(s); err != nil {
			t.Errorf("advance to %v: unexpected error: %v", s, err)
		}
	}
	if err := tr.Complete(); err != nil {
		t.Errorf("complete: unexpected error: %v", err)
	}
	if tr.Stage() != StageCompleted {
		t.Errorf("expected StageCompleted, got %v", tr.Stage())
	}
}

func TestTracker_SkipToTranscribing(t *testing.T) {
	tr := NewTracker(nil)

	// utterance mode skips aligning and extracting
	if err := tr.Advance(StageTranscribing); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTracker_NoBackwardMoves(t *testing.T) {
	tr := NewTracker(nil)
	_ = tr.Advance(StageExtracting)

	if err := tr.Advance(StageAligning); !errors.Is(err, ErrStageNotForward) {
		t.Errorf("expected ErrStageNotForward, got %v", err)
	}
	if err := tr.Advance(StageExtracting); !errors.Is(err, ErrStageNotForward) {
		t.Errorf("expected ErrStageNotForward for same stage, got %v", err)
	}
	if err := tr.Advance(StageCompleted); err != ErrTerminalViaStage {
		t.Errorf("expected ErrTerminalViaStage, got %v", err)
	}
}

func TestTracker_FailRecordsStage(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	tr := NewTracker(m)
	_ = tr.Advance(StageAligning)

	stage, ok := tr.Fail(models.ErrAlignmentUnavailable)
	if !ok {
		t.Fatal("expected Fail to succeed")
	}
	if stage != StageAligning {
		t.Errorf("expected failure in aligning, got %v", stage)
	}
	if tr.Stage() != StageFailed {
		t.Errorf("expected StageFailed, got %v", tr.Stage())
	}

	got := testutil.ToFloat64(m.StageFailures.WithLabelValues("aligning", models.KindAlignmentUnavailable))
	if got != 1 {
		t.Errorf("expected 1 recorded failure, got %v", got)
	}
}

func TestTracker_TerminalIsFinal(t *testing.T) {
	tr := NewTracker(nil)
	_ = tr.Complete()

	if err := tr.Advance(StageAligning); err != ErrRunFinished {
		t.Errorf("expected ErrRunFinished, got %v", err)
	}
	if err := tr.Complete(); err != ErrRunFinished {
		t.Errorf("expected ErrRunFinished on second complete, got %v", err)
	}
	if _, ok := tr.Fail(errors.New("late")); ok {
		t.Error("expected Fail after completion to be rejected")
	}
	if tr.Stage() != StageCompleted {
		t.Errorf("expected StageCompleted to stick, got %v", tr.Stage())
	}
}

func TestStage_String(t *testing.T) {
	tests := map[Stage]string{
		StageDecoding:     "decoding",
		StageAligning:     "aligning",
		StageExtracting:   "extracting",
		StageTranscribing: "transcribing",
		StageCompleted:    "completed",
		StageFailed:       "failed",
		Stage(42):         "unknown(42)",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
}
