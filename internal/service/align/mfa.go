package align

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
)

// MFA aligns with the Montreal Forced Aligner against a pronunciation
// dictionary and acoustic model.
type MFA struct {
	cfg Config
	run commandRunner
}

// NewMFA creates an MFA aligner.
func NewMFA(cfg Config) *MFA {
	def := DefaultConfig()
	if cfg.MFABinary == "" {
		cfg.MFABinary = def.MFABinary
	}
	if cfg.MFADictionary == "" {
		cfg.MFADictionary = def.MFADictionary
	}
	if cfg.MFAAcousticModel == "" {
		cfg.MFAAcousticModel = def.MFAAcousticModel
	}
	return &MFA{cfg: cfg, run: execRunner}
}

// Name implements Aligner.
func (m *MFA) Name() string { return "mfa" }

// Align implements Aligner. The corpus, the aligner output and every other
// scratch file live in one directory removed on return.
func (m *MFA) Align(ctx context.Context, wf *audio.Waveform, words []string) ([]models.WordInterval, error) {
	workdir, err := os.MkdirTemp(m.cfg.TempDir, "practice-mfa-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create scratch dir: %v", models.ErrAlignmentUnavailable, err)
	}
	defer os.RemoveAll(workdir)

	corpus := filepath.Join(workdir, "corpus")
	if err := os.MkdirAll(corpus, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create corpus dir: %v", models.ErrAlignmentUnavailable, err)
	}
	if err := wf.WriteWAV(filepath.Join(corpus, "audio.wav")); err != nil {
		return nil, fmt.Errorf("%w: write corpus audio: %v", models.ErrAlignmentUnavailable, err)
	}
	if err := os.WriteFile(filepath.Join(corpus, "audio.txt"), []byte(strings.Join(words, " ")), 0o600); err != nil {
		return nil, fmt.Errorf("%w: write corpus transcript: %v", models.ErrAlignmentUnavailable, err)
	}

	out := filepath.Join(workdir, "aligned")
	output, err := m.run(ctx, m.cfg.MFABinary,
		"align", corpus, m.cfg.MFADictionary, m.cfg.MFAAcousticModel, out,
		"--clean", "-q",
	)
	if err != nil {
		return nil, toolError(ctx, "mfa", output, err)
	}

	f, err := os.Open(filepath.Join(out, "audio.TextGrid"))
	if err != nil {
		return nil, fmt.Errorf("%w: mfa produced no alignment", models.ErrAlignmentUnavailable)
	}
	defer f.Close()

	tg, err := ParseTextGrid(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrAlignmentUnavailable, err)
	}
	tier, ok := tg.Tier("words")
	if !ok {
		return nil, fmt.Errorf("%w: mfa output has no words tier", models.ErrAlignmentUnavailable)
	}

	intervals := make([]models.WordInterval, 0, len(tier.Intervals))
	for _, iv := range tier.Intervals {
		if iv.IsSilence() {
			continue
		}
		intervals = append(intervals, iv)
	}
	return clampToDuration(intervals, wf.Seconds()), nil
}
