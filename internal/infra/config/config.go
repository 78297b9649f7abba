// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Control  ControlConfig           `yaml:"control"`
	Playback PlaybackConfig          `yaml:"playback"`
	Media    MediaConfig             `yaml:"media"`
	Ingest   IngestConfig            `yaml:"ingest"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Emotion  EmotionConfig           `yaml:"emotion"`
	Visual   VisualConfig            `yaml:"visual"`
	Input    InputConfig             `yaml:"input"`
	Messages MessagesConfig          `yaml:"messages"`
	Seed     []SeedTrack             `yaml:"seed" validate:"dive"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr        string      `yaml:"addr" default:":8080"`
	MaxUploadMB int         `yaml:"max_upload_mb" default:"64" validate:"gt=0"`
	Hooks       HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ControlConfig represents control API access configuration.
type ControlConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlaybackConfig represents playback controller configuration.
type PlaybackConfig struct {
	InitialVolume   float64 `yaml:"initial_volume" default:"1" validate:"gte=0,lte=1"`
	EventBufferSize int     `yaml:"event_buffer_size" default:"32" validate:"gte=1,lte=4096"`
	VolumeStep      float64 `yaml:"volume_step" default:"0.1" validate:"gt=0,lte=1"`
}

// MediaConfig represents media backend configuration.
type MediaConfig struct {
	Backend             string `yaml:"backend" default:"simulator" validate:"oneof=simulator speaker"`
	TickMs              int    `yaml:"tick_ms" default:"250" validate:"gte=10,lte=5000"`
	FetchTimeoutSec     int    `yaml:"fetch_timeout_sec" default:"30" validate:"gte=1"`
	SampleRate          int    `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs            int    `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	ResampleQuality     int    `yaml:"resample_quality" default:"4" validate:"gte=1,lte=64"`
	MaxSourceMB         int    `yaml:"max_source_mb" default:"200" validate:"gt=0"`
	SimulatedByteRate   int    `yaml:"simulated_byte_rate" default:"16000" validate:"gt=0"`
	SimulatedDefaultSec int    `yaml:"simulated_default_sec" default:"180" validate:"gt=0"`
}

// IngestConfig represents track ingestion configuration.
type IngestConfig struct {
	ProbeTimeoutSec int `yaml:"probe_timeout_sec" default:"10" validate:"gte=1,lte=120"`
	SniffBytes      int `yaml:"sniff_bytes" default:"4096" validate:"gte=512,lte=1048576"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// EmotionConfig represents emotion classification configuration.
type EmotionConfig struct {
	TimeoutSec int              `yaml:"timeout_sec" default:"10" validate:"gte=1,lte=60"`
	Providers  []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single emotion provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=spotify lastfm keyword"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// VisualConfig represents visual frame configuration.
type VisualConfig struct {
	FrameIntervalMs    int     `yaml:"frame_interval_ms" default:"100" validate:"gte=16,lte=5000"`
	Bins               int     `yaml:"bins" default:"256" validate:"gte=8,lte=4096"`
	Particles          int     `yaml:"particles" default:"30" validate:"gte=0,lte=500"`
	ParticleRefreshSec int     `yaml:"particle_refresh_sec" default:"8" validate:"gte=1"`
	DefaultBPM         float64 `yaml:"default_bpm" default:"120" validate:"gte=20,lte=300"`
}

// InputConfig represents the optional voice/gesture input capability.
type InputConfig struct {
	Mode string `yaml:"mode" default:"none" validate:"oneof=none voice gesture"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	Success            string `yaml:"success" default:"OK"`
	DefaultError       string `yaml:"default_error" default:"Something went wrong"`
	UnsupportedFormat  string `yaml:"unsupported_format" default:"This audio format is not supported"`
	InvalidURL         string `yaml:"invalid_url" default:"Please enter a valid audio URL"`
	ResourceLoadFailed string `yaml:"resource_load_failed" default:"The audio could not be loaded"`
	FileTooLarge       string `yaml:"file_too_large" default:"The file is too large"`
	TrackUnavailable   string `yaml:"track_unavailable" default:"This track is unavailable"`
	NoTrack            string `yaml:"no_track" default:"The playlist is empty"`
	DurationUnknown    string `yaml:"duration_unknown" default:"The track is still loading"`
	Unauthorized       string `yaml:"unauthorized" default:"Invalid control token"`
}

// SeedTrack is a remote track added to the playlist at startup.
type SeedTrack struct {
	URL  string `yaml:"url" validate:"required,url"`
	Name string `yaml:"name"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		for i := range c.Emotion.Providers {
			if c.Emotion.Providers[i].Type == "lastfm" {
				if c.Emotion.Providers[i].Settings == nil {
					c.Emotion.Providers[i].Settings = make(map[string]any)
				}
				c.Emotion.Providers[i].Settings["api_key"] = v
			}
		}
	}
	if v := os.Getenv("MOODBOX_CONTROL_TOKEN"); v != "" {
		c.Control.Token = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "unsupported_format":
		return c.Messages.UnsupportedFormat
	case "invalid_url":
		return c.Messages.InvalidURL
	case "resource_load_failed":
		return c.Messages.ResourceLoadFailed
	case "file_too_large":
		return c.Messages.FileTooLarge
	case "track_unavailable":
		return c.Messages.TrackUnavailable
	case "no_track":
		return c.Messages.NoTrack
	case "duration_unknown":
		return c.Messages.DurationUnknown
	case "unauthorized":
		return c.Messages.Unauthorized
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateProviders(); err != nil {
		return err
	}

	return nil
}

// validateProviders checks that providers have the credentials they need.
func (c *Config) validateProviders() error {
	for i, p := range c.Emotion.Providers {
		if p.Type == "spotify" && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "") {
			return errors.Newf("emotion provider %d (%s) requires spotify client_id and client_secret", i, p.DisplayName)
		}
	}
	return nil
}

// HasProvider reports whether an emotion provider of the given type is configured.
func (c *Config) HasProvider(providerType string) bool {
	for _, p := range c.Emotion.Providers {
		if p.Type == providerType {
			return true
		}
	}
	return false
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// Tick returns the media tick interval.
func (m MediaConfig) Tick() time.Duration {
	return time.Duration(m.TickMs) * time.Millisecond
}

// FetchTimeout returns the timeout for fetching remote sources.
func (m MediaConfig) FetchTimeout() time.Duration {
	return time.Duration(m.FetchTimeoutSec) * time.Second
}

// FrameInterval returns the visual frame interval.
func (v VisualConfig) FrameInterval() time.Duration {
	return time.Duration(v.FrameIntervalMs) * time.Millisecond
}

// ParticleRefresh returns the particle regeneration interval.
func (v VisualConfig) ParticleRefresh() time.Duration {
	return time.Duration(v.ParticleRefreshSec) * time.Second
}
