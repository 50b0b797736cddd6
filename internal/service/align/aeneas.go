package align

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
)

// Aeneas aligns by synthesizing the expected text and matching it against
// the recording (aeneas, text-to-speech based alignment). Each expected word
// is one fragment.
type Aeneas struct {
	cfg Config
	run commandRunner
}

// NewAeneas creates an aeneas aligner.
func NewAeneas(cfg Config) *Aeneas {
	def := DefaultConfig()
	if cfg.AeneasPython == "" {
		cfg.AeneasPython = def.AeneasPython
	}
	if cfg.AeneasLanguage == "" {
		cfg.AeneasLanguage = def.AeneasLanguage
	}
	return &Aeneas{cfg: cfg, run: execRunner}
}

// Name implements Aligner.
func (a *Aeneas) Name() string { return "aeneas" }

type aeneasSyncMap struct {
	Fragments []struct {
		ID    string   `json:"id"`
		Begin string   `json:"begin"`
		End   string   `json:"end"`
		Lines []string `json:"lines"`
	} `json:"fragments"`
}

// Align implements Aligner.
func (a *Aeneas) Align(ctx context.Context, wf *audio.Waveform, words []string) ([]models.WordInterval, error) {
	workdir, err := os.MkdirTemp(a.cfg.TempDir, "practice-aeneas-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create scratch dir: %v", models.ErrAlignmentUnavailable, err)
	}
	defer os.RemoveAll(workdir)

	wavPath := filepath.Join(workdir, "audio.wav")
	textPath := filepath.Join(workdir, "words.txt")
	outPath := filepath.Join(workdir, "syncmap.json")

	if err := wf.WriteWAV(wavPath); err != nil {
		return nil, fmt.Errorf("%w: write audio: %v", models.ErrAlignmentUnavailable, err)
	}
	if err := os.WriteFile(textPath, []byte(strings.Join(words, "\n")+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("%w: write text: %v", models.ErrAlignmentUnavailable, err)
	}

	task := fmt.Sprintf("task_language=%s|os_task_file_format=json|is_text_type=plain", a.cfg.AeneasLanguage)
	output, err := a.run(ctx, a.cfg.AeneasPython,
		"-m", "aeneas.tools.execute_task",
		wavPath, textPath, task, outPath,
	)
	if err != nil {
		return nil, toolError(ctx, "aeneas", output, err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: aeneas produced no sync map", models.ErrAlignmentUnavailable)
	}
	intervals, err := parseSyncMap(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAlignmentUnavailable, err)
	}
	merged := mergeDegenerate(clampToDuration(intervals, wf.Seconds()))
	if len(merged) == 0 && len(intervals) > 0 {
		return nil, fmt.Errorf("%w: aeneas returned only zero-length fragments", models.ErrAlignmentUnavailable)
	}
	return merged, nil
}

func parseSyncMap(data []byte) ([]models.WordInterval, error) {
	var sm aeneasSyncMap
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, fmt.Errorf("aeneas sync map: %w", err)
	}

	intervals := make([]models.WordInterval, 0, len(sm.Fragments))
	for _, f := range sm.Fragments {
		begin, err := strconv.ParseFloat(f.Begin, 64)
		if err != nil {
			return nil, fmt.Errorf("aeneas fragment %s: bad begin %q", f.ID, f.Begin)
		}
		end, err := strconv.ParseFloat(f.End, 64)
		if err != nil {
			return nil, fmt.Errorf("aeneas fragment %s: bad end %q", f.ID, f.End)
		}
		label := strings.Join(f.Lines, " ")
		if !hasWordRune(label) {
			// punctuation-only token: keep a placeholder the caller drops
			label = ""
		}
		intervals = append(intervals, models.WordInterval{Label: label, Start: begin, End: end})
	}
	return intervals, nil
}

// mergeDegenerate folds zero-length fragments into a neighbour's label so
// every remaining interval has end > start.
func mergeDegenerate(in []models.WordInterval) []models.WordInterval {
	out := make([]models.WordInterval, 0, len(in))
	var carry []string
	for _, iv := range in {
		if iv.End <= iv.Start {
			switch {
			case len(out) > 0:
				out[len(out)-1].Label = joinLabels(out[len(out)-1].Label, iv.Label)
			case iv.Label != "":
				carry = append(carry, iv.Label)
			}
			continue
		}
		if len(carry) > 0 {
			iv.Label = joinLabels(strings.Join(carry, " "), iv.Label)
			carry = nil
		}
		out = append(out, iv)
	}
	return out
}

func joinLabels(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
