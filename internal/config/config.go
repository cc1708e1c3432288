package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const defaultInstruments = "guitar,piano,hammered dulcimer,drum set,drums,violin,nyckelharpa,hurdy gurdy,harp,qanun," +
	"duduk,melodeon,glass armonica,lute,marxophone,tambura,mbira,xylophone,timpani,cittern," +
	"pipe organ,saxophone,flute,cornet,trumpet,marimba,theramin,bass guitar,electric keyboard,tuba," +
	"harmonica,euphonium,bass recorder,oboe,banjo,viola,cello,erhu,trombone,guzheng," +
	"koto,clarinet,cymbal,gong,shamisen"

// Config struct for environment variables.
type Config struct {
	SerpAPIKey     string `envconfig:"SERPAPI_KEY"`
	SerpAPIBaseURL string `envconfig:"SERPAPI_BASE_URL" default:"https://serpapi.com/search.json"`

	DataDir             string        `envconfig:"DATA_DIR" default:"data-large"`
	Instruments         []string      `envconfig:"INSTRUMENTS" default:"guitar"`
	ImagesPerInstrument int           `envconfig:"IMAGES_PER_INSTRUMENT" default:"10000"`
	MaxWorkers          int           `envconfig:"MAX_WORKERS" default:"200"`
	RequestTimeout      time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	SearchTimeout       time.Duration `envconfig:"SEARCH_TIMEOUT" default:"60s"`
	AbortOnPageError    bool          `envconfig:"ABORT_ON_PAGE_ERROR" default:"false"`
	ProgressEvery       int           `envconfig:"PROGRESS_EVERY" default:"100"`

	UserAgent  string `envconfig:"USER_AGENT" default:"this-instrument-does-not-exist/0.1 (https://github.com/Laurence-Cullen/this-instrument-does-not-exist; laurencesimoncullen@gmail.com)"`
	FromHeader string `envconfig:"FROM_HEADER" default:"laurencesimoncullen@gmail.com"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	Telemetry struct {
		Enabled      bool   `split_words:"true" default:"false"`
		ServiceName  string `split_words:"true" default:"instrument-downloader"`
		OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	}

	Web struct {
		Enabled         bool          `split_words:"true" default:"false"`
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9091"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values envconfig accepts but the collector cannot run with.
func (c *Config) Validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("MAX_WORKERS must be at least 1, got %d", c.MaxWorkers)
	}

	if c.ImagesPerInstrument < 0 {
		return fmt.Errorf("IMAGES_PER_INSTRUMENT must not be negative, got %d", c.ImagesPerInstrument)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}

	return nil
}

// RequireAPIKey fails when no search provider key is configured.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.SerpAPIKey) == "" {
		return fmt.Errorf("required key SERPAPI_KEY missing value")
	}

	return nil
}

// InstrumentList returns the configured instruments with blanks dropped.
// The literal value "all" expands to the full built-in list.
func (c *Config) InstrumentList() []string {
	src := c.Instruments
	if len(src) == 1 && strings.EqualFold(strings.TrimSpace(src[0]), "all") {
		src = DefaultInstruments()
	}

	out := make([]string, 0, len(src))

	for _, s := range src {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}

// DefaultInstruments returns the built-in instrument query list.
func DefaultInstruments() []string {
	return strings.Split(defaultInstruments, ",")
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
