package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envVars = []string{
	"CONFIG_FILE", "SERVICE_PRINCIPAL", "HTTP_ADDR", "GRPC_PORT", "MAX_UPLOAD_BYTES",
	"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
	"ALIGN_BACKEND", "ALIGN_TIMEOUT",
	"STT_PROVIDER", "STT_LANGUAGE_CODE", "STT_TIMEOUT", "STT_CONCURRENCY", "MIN_CLIP_DURATION",
	"OPENAI_API_KEY", "SENTENCE_API_KEY", "SENTENCE_BATCH_SIZE", "SENTENCE_TIMEOUT", "CORPUS_PATH",
	"KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_PRINCIPAL",
}

func clearEnv() {
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "svc-pronunciation-practice" {
		t.Errorf("expected default principal 'svc-pronunciation-practice', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Align.Backend != "mfa" {
		t.Errorf("expected default align backend 'mfa', got %s", cfg.Align.Backend)
	}
	if cfg.Align.Timeout != 60*time.Second {
		t.Errorf("expected default align timeout 60s, got %v", cfg.Align.Timeout)
	}
	if cfg.STT.Provider != "mock" {
		t.Errorf("expected default STT provider 'mock', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.Timeout != 30*time.Second {
		t.Errorf("expected default STT timeout 30s, got %v", cfg.STT.Timeout)
	}
	if cfg.STT.Concurrency != 1 {
		t.Errorf("expected default concurrency 1, got %d", cfg.STT.Concurrency)
	}
	if cfg.STT.MinClipDuration != 150*time.Millisecond {
		t.Errorf("expected default min clip duration 150ms, got %v", cfg.STT.MinClipDuration)
	}
	if cfg.Sentences.Timeout != 20*time.Second {
		t.Errorf("expected default sentence timeout 20s, got %v", cfg.Sentences.Timeout)
	}
	if cfg.Sentences.HistoryLimit != 50 {
		t.Errorf("expected default history limit 50, got %d", cfg.Sentences.HistoryLimit)
	}
	if cfg.Sentences.APIKey != "" {
		t.Errorf("expected no sentence API key, got %q", cfg.Sentences.APIKey)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if cfg.Kafka.TopicTranscriptions != "practice.transcription.completed" {
		t.Errorf("unexpected transcription topic %s", cfg.Kafka.TopicTranscriptions)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("GRPC_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("ALIGN_BACKEND", "aeneas")
	os.Setenv("STT_PROVIDER", "google")
	os.Setenv("STT_LANGUAGE_CODE", "en-GB")
	os.Setenv("STT_CONCURRENCY", "4")
	os.Setenv("MIN_CLIP_DURATION", "200ms")
	os.Setenv("SENTENCE_TIMEOUT", "5s")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Align.Backend != "aeneas" {
		t.Errorf("expected align backend 'aeneas', got %s", cfg.Align.Backend)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected STT provider 'google', got %s", cfg.STT.Provider)
	}
	if cfg.STT.LanguageCode != "en-GB" {
		t.Errorf("expected language 'en-GB', got %s", cfg.STT.LanguageCode)
	}
	if cfg.STT.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.STT.Concurrency)
	}
	if cfg.STT.MinClipDuration != 200*time.Millisecond {
		t.Errorf("expected min clip duration 200ms, got %v", cfg.STT.MinClipDuration)
	}
	if cfg.Sentences.Timeout != 5*time.Second {
		t.Errorf("expected sentence timeout 5s, got %v", cfg.Sentences.Timeout)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "k1:9092" || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("STT_CONCURRENCY", "not-a-number")
	os.Setenv("STT_TIMEOUT", "invalid")
	os.Setenv("MAX_UPLOAD_BYTES", "invalid")
	os.Setenv("KAFKA_ENABLED", "invalid")
	os.Setenv("SENTENCE_BATCH_SIZE", "ten")
	defer clearEnv()

	cfg := Load()

	if cfg.STT.Concurrency != 1 {
		t.Errorf("expected default concurrency on invalid input, got %d", cfg.STT.Concurrency)
	}
	if cfg.STT.Timeout != 30*time.Second {
		t.Errorf("expected default STT timeout on invalid input, got %v", cfg.STT.Timeout)
	}
	if cfg.Service.MaxUploadBytes != 20*1024*1024 {
		t.Errorf("expected default max upload bytes on invalid input, got %d", cfg.Service.MaxUploadBytes)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected default Kafka enabled on invalid input")
	}
	if cfg.Sentences.BatchSize != 10 {
		t.Errorf("expected default batch size on invalid input, got %d", cfg.Sentences.BatchSize)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	clearEnv()
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	defer clearEnv()

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestLoad_SentenceKeyFallsBackToOpenAIKey(t *testing.T) {
	clearEnv()
	os.Setenv("OPENAI_API_KEY", "sk-shared")
	defer clearEnv()

	cfg := Load()
	if cfg.Sentences.APIKey != "sk-shared" {
		t.Errorf("expected shared key, got %q", cfg.Sentences.APIKey)
	}

	os.Setenv("SENTENCE_API_KEY", "sk-own")
	cfg = Load()
	if cfg.Sentences.APIKey != "sk-own" {
		t.Errorf("expected own key, got %q", cfg.Sentences.APIKey)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	clearEnv()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
service:
  principal: yaml-principal
align:
  backend: none
  timeout: 15s
stt:
  provider: openai
sentences:
  corpusPath: /srv/sentences.txt
kafka:
  brokers: [a:9092, b:9092]
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	os.Setenv("CONFIG_FILE", path)
	os.Setenv("STT_PROVIDER", "google")
	defer clearEnv()

	cfg := Load()

	if cfg.Service.Principal != "yaml-principal" {
		t.Errorf("expected principal from file, got %s", cfg.Service.Principal)
	}
	if cfg.Align.Backend != "none" {
		t.Errorf("expected backend from file, got %s", cfg.Align.Backend)
	}
	if cfg.Align.Timeout != 15*time.Second {
		t.Errorf("expected timeout from file, got %v", cfg.Align.Timeout)
	}
	if cfg.STT.Provider != "google" {
		t.Errorf("expected env to override file, got %s", cfg.STT.Provider)
	}
	if cfg.Sentences.CorpusPath != "/srv/sentences.txt" {
		t.Errorf("expected corpus path from file, got %s", cfg.Sentences.CorpusPath)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("expected brokers from file, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Principal != "yaml-principal" {
		t.Errorf("expected Kafka principal fallback, got %s", cfg.Kafka.Principal)
	}
	// Values absent from the file keep their defaults.
	if cfg.STT.LanguageCode != "en-US" {
		t.Errorf("expected default language, got %s", cfg.STT.LanguageCode)
	}
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	clearEnv()
	os.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	defer clearEnv()

	cfg := Load()
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port, got %s", cfg.Service.GRPCPort)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected LoadFile error for missing file")
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	def := []string{"d"}
	tests := []struct {
		name     string
		envValue string
		want     []string
	}{
		{"unset", "", def},
		{"single", "a", []string{"a"}},
		{"trimmed", " a , b ", []string{"a", "b"}},
		{"only separators", ",,", def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_LIST_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultList(key, def)
			if len(got) != len(tt.want) {
				t.Fatalf("envOrDefaultList(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("envOrDefaultList(%q)[%d] = %q, want %q", tt.envValue, i, got[i], tt.want[i])
				}
			}
		})
	}
}
