// Package pipeline orchestrates decoding, alignment, clip extraction and
// recognition for one practice recording.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/logging"
	"pronunciation-practice-service/internal/observability/metrics"
	"pronunciation-practice-service/internal/service/align"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/segment"
	"pronunciation-practice-service/internal/service/stt"
)

// Modes reported in logs, metrics and events.
const (
	ModeAligned   = "aligned"
	ModeUtterance = "utterance"
)

// Config holds pipeline limits.
type Config struct {
	AlignTimeout    time.Duration
	STTTimeout      time.Duration
	Concurrency     int
	MinClipDuration time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		AlignTimeout:    60 * time.Second,
		STTTimeout:      30 * time.Second,
		Concurrency:     1,
		MinClipDuration: segment.DefaultMinDuration,
	}
}

// Request is one transcription request.
type Request struct {
	Audio      []byte
	FormatHint string
	// Transcript is the prompt the user read. Nil or blank selects
	// whole-utterance recognition.
	Transcript *string
	RequestID  string
}

// Mode returns ModeAligned when the request carries a non-blank transcript.
func (r Request) Mode() string {
	if r.Transcript != nil && strings.TrimSpace(*r.Transcript) != "" {
		return ModeAligned
	}
	return ModeUtterance
}

// Pipeline runs transcription requests. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	cfg         Config
	decoder     audio.Preprocessor
	aligner     align.Aligner
	extractor   *segment.Extractor
	transcriber stt.Transcriber
	metrics     *metrics.Metrics
}

// New creates a pipeline. aligner may be nil, in which case aligned
// requests fail with models.ErrAlignmentUnavailable.
func New(cfg Config, decoder audio.Preprocessor, aligner align.Aligner, transcriber stt.Transcriber, m *metrics.Metrics) *Pipeline {
	def := DefaultConfig()
	if cfg.AlignTimeout <= 0 {
		cfg.AlignTimeout = def.AlignTimeout
	}
	if cfg.STTTimeout <= 0 {
		cfg.STTTimeout = def.STTTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Pipeline{
		cfg:         cfg,
		decoder:     decoder,
		aligner:     aligner,
		extractor:   segment.NewExtractor(cfg.MinClipDuration),
		transcriber: transcriber,
		metrics:     m,
	}
}

// AlignerName returns the configured alignment back-end, or "none".
func (p *Pipeline) AlignerName() string {
	if p.aligner == nil {
		return "none"
	}
	return p.aligner.Name()
}

// ProviderName returns the configured recognition back-end, or "none".
func (p *Pipeline) ProviderName() string {
	if p.transcriber == nil {
		return "none"
	}
	return p.transcriber.Name()
}

// Run executes one request. On failure no partial result is returned.
func (p *Pipeline) Run(ctx context.Context, req Request) (models.TranscriptionResult, error) {
	start := time.Now()
	mode := req.Mode()
	tracker := NewTracker(p.metrics)
	logger := logging.WithPipeline(req.RequestID, mode, p.AlignerName(), p.ProviderName())

	p.metrics.RecordRequestStart(len(req.Audio))

	var (
		result models.TranscriptionResult
		err    error
	)
	if mode == ModeAligned {
		result, err = p.runAligned(ctx, req, tracker)
	} else {
		result, err = p.runUtterance(ctx, req, tracker)
	}

	outcome := "ok"
	if err != nil {
		outcome = models.ErrorKind(err)
		stage, _ := tracker.Fail(err)
		logger.Warn().
			Err(err).
			Str("stage", stage.String()).
			Str("kind", outcome).
			Dur("elapsed", time.Since(start)).
			Msg("Transcription failed")
		p.metrics.RecordRequestEnd(mode, outcome, time.Since(start).Seconds())
		return models.TranscriptionResult{}, err
	}

	_ = tracker.Complete()
	p.metrics.RecordWords(len(result.Words))
	p.metrics.RecordRequestEnd(mode, outcome, time.Since(start).Seconds())
	logger.Info().
		Int("words", len(result.Words)).
		Dur("elapsed", time.Since(start)).
		Msg("Transcription completed")
	return result, nil
}

// decode runs the decoding stage. Decoder errors pass through unchanged so
// that a service fault (missing ffmpeg) is not reported as a bad upload.
func (p *Pipeline) decode(ctx context.Context, req Request) (*audio.Waveform, error) {
	wf, err := p.decoder.Decode(ctx, req.Audio, req.FormatHint)
	if err != nil {
		return nil, err
	}
	p.metrics.RecordAudioDecoded(wf.Seconds())
	return wf, nil
}

func (p *Pipeline) runAligned(ctx context.Context, req Request, tracker *Tracker) (models.TranscriptionResult, error) {
	wf, err := p.decode(ctx, req)
	if err != nil {
		return models.TranscriptionResult{}, err
	}

	words := align.Tokenize(*req.Transcript)
	if err := tracker.Advance(StageAligning); err != nil {
		return models.TranscriptionResult{}, err
	}
	if p.aligner == nil {
		return models.TranscriptionResult{}, fmt.Errorf("%w: no alignment backend configured", models.ErrAlignmentUnavailable)
	}

	intervals, err := p.align(ctx, wf, words)
	if err != nil {
		return models.TranscriptionResult{}, err
	}

	if err := tracker.Advance(StageExtracting); err != nil {
		return models.TranscriptionResult{}, err
	}
	clips, err := p.extractor.Extract(wf, intervals)
	if err != nil {
		return models.TranscriptionResult{}, withKind(err, models.ErrInvalidInterval)
	}
	for _, c := range clips {
		p.metrics.RecordClip(c.Padded > 0)
	}

	if err := tracker.Advance(StageTranscribing); err != nil {
		return models.TranscriptionResult{}, err
	}
	results, err := p.transcribeClips(ctx, clips)
	if err != nil {
		return models.TranscriptionResult{}, err
	}
	return models.NewTranscriptionResult(results), nil
}

func (p *Pipeline) align(ctx context.Context, wf *audio.Waveform, words []string) ([]models.WordInterval, error) {
	actx, cancel := context.WithTimeout(ctx, p.cfg.AlignTimeout)
	defer cancel()

	start := time.Now()
	intervals, err := p.aligner.Align(actx, wf, words)
	if err != nil {
		err = withKind(err, models.ErrAlignmentUnavailable)
		p.metrics.RecordAlign(p.aligner.Name(), err, time.Since(start).Seconds(), models.ErrorKind(err))
		return nil, err
	}
	p.metrics.RecordAlign(p.aligner.Name(), nil, time.Since(start).Seconds(), "")

	intervals = align.DropSilence(intervals)
	if err := align.Validate(intervals, len(words), wf.Seconds()); err != nil {
		return nil, err
	}
	return intervals, nil
}

// transcribeClips recognizes clips with at most cfg.Concurrency calls in
// flight. Results keep clip order. The first failure cancels the rest.
func (p *Pipeline) transcribeClips(ctx context.Context, clips []segment.Clip) ([]models.WordResult, error) {
	if p.transcriber == nil {
		return nil, fmt.Errorf("%w: no recognition backend configured", models.ErrRecognitionUnavailable)
	}

	results := make([]models.WordResult, len(clips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for i, clip := range clips {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cctx, cancel := context.WithTimeout(gctx, p.cfg.STTTimeout)
			defer cancel()

			start := time.Now()
			r, err := p.transcriber.TranscribeClip(cctx, clip)
			p.metrics.RecordSTT(p.transcriber.Name(), "clip", time.Since(start).Seconds())
			if err != nil {
				err = withKind(err, models.ErrRecognitionUnavailable)
				p.metrics.RecordSTTError(p.transcriber.Name(), models.ErrorKind(err))
				return fmt.Errorf("clip %d (%q): %w", i, clip.Label, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, withKind(err, models.ErrRecognitionUnavailable)
	}
	return results, nil
}

func (p *Pipeline) runUtterance(ctx context.Context, req Request, tracker *Tracker) (models.TranscriptionResult, error) {
	wf, err := p.decode(ctx, req)
	if err != nil {
		return models.TranscriptionResult{}, err
	}

	if err := tracker.Advance(StageTranscribing); err != nil {
		return models.TranscriptionResult{}, err
	}
	if p.transcriber == nil {
		return models.TranscriptionResult{}, fmt.Errorf("%w: no recognition backend configured", models.ErrRecognitionUnavailable)
	}

	tctx, cancel := context.WithTimeout(ctx, p.cfg.STTTimeout)
	defer cancel()

	start := time.Now()
	words, err := p.transcriber.TranscribeUtterance(tctx, wf)
	p.metrics.RecordSTT(p.transcriber.Name(), "utterance", time.Since(start).Seconds())
	if err != nil {
		err = withKind(err, models.ErrRecognitionUnavailable)
		p.metrics.RecordSTTError(p.transcriber.Name(), models.ErrorKind(err))
		return models.TranscriptionResult{}, err
	}
	return models.NewTranscriptionResult(words), nil
}

// withKind tags err with kind unless it already carries a pipeline error kind.
func withKind(err error, kind error) error {
	if err == nil || models.HasKind(err) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", kind, err)
}
