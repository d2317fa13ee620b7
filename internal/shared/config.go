package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Lyrics      LyricsConfig      `toml:"lyrics"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	RateLimit   RateLimitConfig   `toml:"ratelimit"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Groq    GroqConfig    `toml:"groq"`
	Weather WeatherConfig `toml:"weather"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// GroqConfig contains Groq API credentials and model selection.
type GroqConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// WeatherConfig contains OpenWeather API credentials.
type WeatherConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// LyricsConfig contains lyrics provider settings.
type LyricsConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	FrontendURL string `toml:"frontend_url"`
}

// PipelineConfig contains tunables for the recommendation ranking pipeline.
//
// FinalSize and SimilarityThreshold changed repeatedly during development,
// so both are configuration rather than constants.
type PipelineConfig struct {
	FinalSize           int     `toml:"final_size"`           // Top-K output size
	CandidateCount      int     `toml:"candidate_count"`      // Songs requested from the model
	MinResolved         int     `toml:"min_resolved"`         // Warn (not fail) below this many resolved tracks
	SimilarityThreshold float64 `toml:"similarity_threshold"` // Word-overlap ratio for "similar request"
	DuplicatePenalty    float64 `toml:"duplicate_penalty"`    // Combined-score penalty for recently recommended tracks
	LyricWorkers        int     `toml:"lyric_workers"`        // Concurrent lyric fetches
	ExplainWorkers      int     `toml:"explain_workers"`      // Concurrent explanation calls
	TranslationMaxChars int     `toml:"translation_max_chars"`
	RelevanceScale      int     `toml:"relevance_scale"` // Upper bound of the 1..N relevance scale
	FanoutRate          float64 `toml:"fanout_rate"`     // Requests per second for per-track fan-outs
}

// RateLimitConfig bounds calls to the recommender-model API.
type RateLimitConfig struct {
	RequestsPerMinute int `toml:"requests_per_minute"`
	TokensPerMinute   int `toml:"tokens_per_minute"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
