package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	grpcapi "pronunciation-practice-service/internal/api/grpc"
	"pronunciation-practice-service/internal/config"
	"pronunciation-practice-service/internal/events"
	httpapi "pronunciation-practice-service/internal/http"
	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability"
	"pronunciation-practice-service/internal/observability/logging"
	"pronunciation-practice-service/internal/observability/metrics"
	"pronunciation-practice-service/internal/schema"
	"pronunciation-practice-service/internal/service/align"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/pipeline"
	"pronunciation-practice-service/internal/service/sentence"
	"pronunciation-practice-service/internal/service/stt"
	"pronunciation-practice-service/internal/service/stt/google"
	"pronunciation-practice-service/internal/service/stt/mock"
	"pronunciation-practice-service/internal/service/stt/openai"
)

// publishTimeout bounds publishing of a generated sentence batch.
const publishTimeout = 5 * time.Second

// Application holds process-wide state for the service. Every singleton is
// built in Init and torn down in Shutdown.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Metrics   *metrics.Metrics
	Pipeline  *pipeline.Pipeline
	Queue     *sentence.Queue // nil without a generator key
	Corpus    *sentence.Corpus
	Sentences *sentence.Supplier
	Publisher *events.Publisher
	Validator *schema.Validator

	transcriber stt.Transcriber
	ready       atomic.Bool

	httpServer *http.Server
	grpcServer *grpcapi.Server
	obsServer  *observability.Server

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
		Logger:  logging.WithComponent("application"),
	}

	a.Logger.Info().
		Str("principal", cfg.Service.Principal).
		Str("logLevel", cfg.Observability.LogLevel).
		Msg("Pronunciation practice service application created")
	return a
}

// Init builds the pipeline, the sentence supply and the publisher.
func (a *Application) Init(ctx context.Context) error {
	cfg := a.Cfg
	logger := a.Logger.With().Str("method", "Init").Logger()

	decoder := audio.NewFFmpegPreprocessor(audio.Config{
		FFmpegPath: cfg.Audio.FFmpegPath,
		SampleRate: cfg.Audio.SampleRate,
		TempDir:    cfg.Audio.TempDir,
	})

	aligner, err := align.New(align.Config{
		Backend:          cfg.Align.Backend,
		MFABinary:        cfg.Align.MFABinary,
		MFADictionary:    cfg.Align.MFADictionary,
		MFAAcousticModel: cfg.Align.MFAAcousticModel,
		AeneasPython:     cfg.Align.AeneasPython,
		AeneasLanguage:   cfg.Align.AeneasLanguage,
		TempDir:          cfg.Audio.TempDir,
	})
	if err != nil {
		return fmt.Errorf("aligner: %w", err)
	}

	transcriber, err := newTranscriber(ctx, cfg.STT)
	if err != nil {
		return fmt.Errorf("transcriber: %w", err)
	}
	a.transcriber = transcriber

	a.Pipeline = pipeline.New(pipeline.Config{
		AlignTimeout:    cfg.Align.Timeout,
		STTTimeout:      cfg.STT.Timeout,
		Concurrency:     cfg.STT.Concurrency,
		MinClipDuration: cfg.STT.MinClipDuration,
	}, decoder, aligner, transcriber, a.Metrics)

	a.Publisher = events.New(&events.Config{
		Enabled:             cfg.Kafka.Enabled,
		Brokers:             cfg.Kafka.Brokers,
		TopicTranscriptions: cfg.Kafka.TopicTranscriptions,
		TopicSentences:      cfg.Kafka.TopicSentences,
		Principal:           cfg.Kafka.Principal,
	})
	a.Validator = schema.New()

	a.Corpus = loadCorpus(cfg.Sentences.CorpusPath, logger)

	if cfg.Sentences.APIKey != "" {
		src, err := sentence.NewOpenAISource(sentence.OpenAIConfig{
			APIKey:  cfg.Sentences.APIKey,
			BaseURL: cfg.Sentences.BaseURL,
			Model:   cfg.Sentences.Model,
			Timeout: cfg.Sentences.Timeout,
		})
		if err != nil {
			return fmt.Errorf("sentence source: %w", err)
		}
		breaker := sentence.NewBreakerSource(src, sentence.BreakerConfig{
			MaxFailures: uint32(max(cfg.Sentences.BreakerMaxFailures, 1)),
			OpenTimeout: cfg.Sentences.BreakerOpenTimeout,
		})
		a.Queue = sentence.NewQueue(sentence.Config{
			BatchSize:    cfg.Sentences.BatchSize,
			MaxRounds:    cfg.Sentences.MaxRounds,
			HistoryLimit: cfg.Sentences.HistoryLimit,
			RoundTimeout: cfg.Sentences.Timeout,
		}, breaker,
			sentence.WithMetrics(a.Metrics),
			sentence.WithOnRefill(a.publishSentenceBatch),
		)
	} else {
		logger.Info().Msg("No sentence generator key, serving the fallback corpus only")
	}
	a.Sentences = sentence.NewSupplier(a.Queue, a.Corpus, a.Metrics)

	logger.Info().
		Str("aligner", a.Pipeline.AlignerName()).
		Str("sttProvider", a.Pipeline.ProviderName()).
		Bool("sentenceGenerator", a.Queue != nil).
		Int("corpusSentences", a.Corpus.Len()).
		Bool("kafkaEnabled", a.Publisher.Enabled()).
		Msg("Application initialized")
	return nil
}

// newTranscriber builds the configured recognition back-end.
func newTranscriber(ctx context.Context, cfg config.STTConfig) (stt.Transcriber, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "mock":
		return mock.New(), nil
	case "openai":
		return openai.New(openai.Config{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Model:    cfg.OpenAIModel,
			Language: cfg.LanguageCode,
			Timeout:  cfg.Timeout,
		})
	case "google":
		return google.New(ctx, google.Config{
			LanguageCode: cfg.LanguageCode,
			Model:        cfg.GoogleModel,
		})
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.Provider)
	}
}

// loadCorpus falls back to an empty corpus when the file cannot be read.
func loadCorpus(path string, logger zerolog.Logger) *sentence.Corpus {
	if path == "" {
		return sentence.NewCorpus()
	}
	c, err := sentence.LoadCorpus(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Fallback corpus unavailable")
		return sentence.NewCorpus()
	}
	return c
}

// publishSentenceBatch is the queue's refill hook.
func (a *Application) publishSentenceBatch(res sentence.RefillResult) {
	if len(res.Sentences) == 0 {
		return
	}
	ev := models.SentenceBatchGenerated{
		EventType: models.EventSentenceBatchGenerated,
		EventID:   uuid.NewString(),
		Sentences: res.Sentences,
		Rounds:    res.Rounds,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := a.Validator.Validate(ev); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := a.Publisher.PublishSentenceBatch(ctx, ev.EventID, ev); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to publish sentence batch")
	}
}

// Handler returns the public HTTP API.
func (a *Application) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Pipeline:       a.Pipeline,
		Sentences:      a.Sentences,
		Publisher:      a.Publisher,
		Validator:      a.Validator,
		MaxUploadBytes: a.Cfg.Service.MaxUploadBytes,
		Ready:          a.Ready,
	})
}

// Ready reports whether Start completed and Shutdown has not begun.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Start binds the listeners and serves until Shutdown.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	httpLis, err := net.Listen("tcp", a.Cfg.Service.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", ":"+a.Cfg.Service.GRPCPort)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	a.group = g

	a.httpServer = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.grpcServer = grpcapi.New(a.Metrics)
	a.obsServer = observability.NewServer(a.Cfg.Observability.MetricsAddr, a.Ready)
	a.obsServer.Start()

	g.Go(func() error {
		startLogger.Info().Str("addr", httpLis.Addr().String()).Msg("HTTP API listening")
		if err := a.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.grpcServer.Serve(grpcLis)
	})
	if a.Cfg.Sentences.WatchCorpus {
		g.Go(func() error {
			if err := a.Corpus.Watch(gctx); err != nil {
				startLogger.Warn().Err(err).Msg("Corpus watch stopped")
			}
			return nil
		})
	}

	a.StartupTime = time.Now().UTC()
	a.grpcServer.SetServing(true)
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Pronunciation practice service started")
	return nil
}

// Wait blocks until a server fails or Shutdown completes.
func (a *Application) Wait() error {
	if a.group == nil {
		return nil
	}
	return a.group.Wait()
}

// Shutdown stops accepting traffic, drains in-flight requests and releases
// back-end clients.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Pronunciation practice service shutting down")
	a.ready.Store(false)

	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			shutdownLogger.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
	}
	if a.obsServer != nil {
		_ = a.obsServer.Shutdown(ctx)
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Publisher close failed")
		}
	}
	if c, ok := a.transcriber.(io.Closer); ok {
		_ = c.Close()
	}
}
