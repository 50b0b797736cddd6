package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Audio         AudioConfig         `yaml:"audio"`
	Align         AlignConfig         `yaml:"align"`
	STT           STTConfig           `yaml:"stt"`
	Sentences     SentenceConfig      `yaml:"sentences"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServiceConfig holds service identity and listener settings.
type ServiceConfig struct {
	Principal      string `yaml:"principal"`
	HTTPAddr       string `yaml:"httpAddr"`
	GRPCPort       string `yaml:"grpcPort"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

// AudioConfig holds decoding settings.
type AudioConfig struct {
	FFmpegPath string `yaml:"ffmpegPath"`
	SampleRate int    `yaml:"sampleRate"`
	TempDir    string `yaml:"tempDir"`
}

// AlignConfig holds forced-alignment settings.
type AlignConfig struct {
	Backend          string        `yaml:"backend"` // mfa, aeneas, none
	MFABinary        string        `yaml:"mfaBinary"`
	MFADictionary    string        `yaml:"mfaDictionary"`
	MFAAcousticModel string        `yaml:"mfaAcousticModel"`
	AeneasPython     string        `yaml:"aeneasPython"`
	AeneasLanguage   string        `yaml:"aeneasLanguage"`
	Timeout          time.Duration `yaml:"timeout"`
}

// STTConfig holds Speech-to-Text settings.
type STTConfig struct {
	Provider        string        `yaml:"provider"` // mock, openai, google
	LanguageCode    string        `yaml:"languageCode"`
	Timeout         time.Duration `yaml:"timeout"`
	Concurrency     int           `yaml:"concurrency"`
	MinClipDuration time.Duration `yaml:"minClipDuration"`
	OpenAIAPIKey    string        `yaml:"openaiApiKey"`
	OpenAIBaseURL   string        `yaml:"openaiBaseUrl"`
	OpenAIModel     string        `yaml:"openaiModel"`
	GoogleModel     string        `yaml:"googleModel"`
}

// SentenceConfig holds practice sentence supply settings.
type SentenceConfig struct {
	APIKey             string        `yaml:"apiKey"`
	BaseURL            string        `yaml:"baseUrl"`
	Model              string        `yaml:"model"`
	BatchSize          int           `yaml:"batchSize"`
	MaxRounds          int           `yaml:"maxRounds"`
	HistoryLimit       int           `yaml:"historyLimit"`
	Timeout            time.Duration `yaml:"timeout"`
	CorpusPath         string        `yaml:"corpusPath"`
	WatchCorpus        bool          `yaml:"watchCorpus"`
	BreakerMaxFailures int           `yaml:"breakerMaxFailures"`
	BreakerOpenTimeout time.Duration `yaml:"breakerOpenTimeout"`
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	Enabled             bool     `yaml:"enabled"`
	Brokers             []string `yaml:"brokers"`
	TopicTranscriptions string   `yaml:"topicTranscriptions"`
	TopicSentences      string   `yaml:"topicSentences"`
	Principal           string   `yaml:"principal"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:      "svc-pronunciation-practice",
			HTTPAddr:       ":8000",
			GRPCPort:       "50051",
			MaxUploadBytes: 20 * 1024 * 1024,
		},
		Audio: AudioConfig{
			FFmpegPath: "ffmpeg",
			SampleRate: 16000,
		},
		Align: AlignConfig{
			Backend:          "mfa",
			MFABinary:        "mfa",
			MFADictionary:    "english_us_arpa",
			MFAAcousticModel: "english_us_arpa",
			AeneasPython:     "python3",
			AeneasLanguage:   "eng",
			Timeout:          60 * time.Second,
		},
		STT: STTConfig{
			Provider:        "mock",
			LanguageCode:    "en-US",
			Timeout:         30 * time.Second,
			Concurrency:     1,
			MinClipDuration: 150 * time.Millisecond,
			OpenAIBaseURL:   "https://api.openai.com/v1",
			OpenAIModel:     "whisper-1",
		},
		Sentences: SentenceConfig{
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-4o-mini",
			BatchSize:          10,
			MaxRounds:          3,
			HistoryLimit:       50,
			Timeout:            20 * time.Second,
			CorpusPath:         "static/sentences.txt",
			WatchCorpus:        true,
			BreakerMaxFailures: 3,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:             []string{"localhost:9092"},
			TopicTranscriptions: "practice.transcription.completed",
			TopicSentences:      "practice.sentence.generated",
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsAddr: ":9090",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and environment variables, in that order of precedence.
// Unparseable values keep the previous layer's value.
func Load() *Config {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}
	cfg.applyEnv()
	return cfg
}

// LoadFile is Load with an explicit YAML file; a missing file is an error.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Service
	s.Principal = envOrDefault("SERVICE_PRINCIPAL", s.Principal)
	s.HTTPAddr = envOrDefault("HTTP_ADDR", s.HTTPAddr)
	s.GRPCPort = envOrDefault("GRPC_PORT", s.GRPCPort)
	s.MaxUploadBytes = envOrDefaultInt64("MAX_UPLOAD_BYTES", s.MaxUploadBytes)

	a := &c.Audio
	a.FFmpegPath = envOrDefault("FFMPEG_PATH", a.FFmpegPath)
	a.SampleRate = envOrDefaultInt("AUDIO_SAMPLE_RATE_HZ", a.SampleRate)
	a.TempDir = envOrDefault("AUDIO_TEMP_DIR", a.TempDir)

	al := &c.Align
	al.Backend = envOrDefault("ALIGN_BACKEND", al.Backend)
	al.MFABinary = envOrDefault("MFA_BINARY", al.MFABinary)
	al.MFADictionary = envOrDefault("MFA_DICTIONARY", al.MFADictionary)
	al.MFAAcousticModel = envOrDefault("MFA_ACOUSTIC_MODEL", al.MFAAcousticModel)
	al.AeneasPython = envOrDefault("AENEAS_PYTHON", al.AeneasPython)
	al.AeneasLanguage = envOrDefault("AENEAS_LANGUAGE", al.AeneasLanguage)
	al.Timeout = envOrDefaultDuration("ALIGN_TIMEOUT", al.Timeout)

	st := &c.STT
	st.Provider = envOrDefault("STT_PROVIDER", st.Provider)
	st.LanguageCode = envOrDefault("STT_LANGUAGE_CODE", st.LanguageCode)
	st.Timeout = envOrDefaultDuration("STT_TIMEOUT", st.Timeout)
	st.Concurrency = envOrDefaultInt("STT_CONCURRENCY", st.Concurrency)
	st.MinClipDuration = envOrDefaultDuration("MIN_CLIP_DURATION", st.MinClipDuration)
	st.OpenAIAPIKey = envOrDefault("OPENAI_API_KEY", st.OpenAIAPIKey)
	st.OpenAIBaseURL = envOrDefault("OPENAI_BASE_URL", st.OpenAIBaseURL)
	st.OpenAIModel = envOrDefault("STT_OPENAI_MODEL", st.OpenAIModel)
	st.GoogleModel = envOrDefault("STT_GOOGLE_MODEL", st.GoogleModel)

	se := &c.Sentences
	// The generator shares the transcription key unless given its own.
	se.APIKey = envOrDefault("SENTENCE_API_KEY", envOrDefault("OPENAI_API_KEY", se.APIKey))
	se.BaseURL = envOrDefault("SENTENCE_BASE_URL", se.BaseURL)
	se.Model = envOrDefault("SENTENCE_MODEL", se.Model)
	se.BatchSize = envOrDefaultInt("SENTENCE_BATCH_SIZE", se.BatchSize)
	se.MaxRounds = envOrDefaultInt("SENTENCE_MAX_ROUNDS", se.MaxRounds)
	se.HistoryLimit = envOrDefaultInt("SENTENCE_HISTORY_LIMIT", se.HistoryLimit)
	se.Timeout = envOrDefaultDuration("SENTENCE_TIMEOUT", se.Timeout)
	se.CorpusPath = envOrDefault("CORPUS_PATH", se.CorpusPath)
	se.WatchCorpus = envOrDefaultBool("CORPUS_WATCH", se.WatchCorpus)
	se.BreakerMaxFailures = envOrDefaultInt("SENTENCE_BREAKER_MAX_FAILURES", se.BreakerMaxFailures)
	se.BreakerOpenTimeout = envOrDefaultDuration("SENTENCE_BREAKER_OPEN_TIMEOUT", se.BreakerOpenTimeout)

	k := &c.Kafka
	k.Enabled = envOrDefaultBool("KAFKA_ENABLED", k.Enabled)
	k.Brokers = envOrDefaultList("KAFKA_BROKERS", k.Brokers)
	k.TopicTranscriptions = envOrDefault("KAFKA_TOPIC_TRANSCRIPTIONS", k.TopicTranscriptions)
	k.TopicSentences = envOrDefault("KAFKA_TOPIC_SENTENCES", k.TopicSentences)
	k.Principal = envOrDefault("KAFKA_PRINCIPAL", k.Principal)
	if k.Principal == "" {
		k.Principal = s.Principal
	}

	o := &c.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)
	o.MetricsAddr = envOrDefault("METRICS_ADDR", o.MetricsAddr)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// envOrDefaultList reads a comma-separated list, dropping empty entries.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
