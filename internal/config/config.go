// Package config builds the immutable application configuration once at
// process start: defaults, then an optional YAML file, then a .env file and
// AUDIOMORPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/platform"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "AUDIOMORPH"

// Configuration keys
const (
	KeyToolsFFmpeg              = "tools.ffmpeg"
	KeyToolsFFprobe             = "tools.ffprobe"
	KeyToolsYTDLP               = "tools.ytdlp"
	KeyConvertOutputDir         = "convert.output_dir"
	KeyConvertFormats           = "convert.formats"
	KeyConvertStatsPeriod       = "convert.stats_period"
	KeyDownloadOutputDir        = "download.output_dir"
	KeyDownloadOutputFormat     = "download.output_format"
	KeyDownloadAudioQuality     = "download.audio_quality"
	KeyDownloadFormat           = "download.format"
	KeyDownloadProgressInterval = "download.progress_interval"
	KeyDownloadAutoInstall      = "download.auto_install"
	KeyJobsTimeout              = "jobs.timeout"
	KeyJobsMessageDuration      = "jobs.message_duration"
	KeyLoggingLevel             = "logging.level"
	KeyLoggingFormat            = "logging.format"
	KeyLoggingPath              = "logging.path"
	KeyLoggingMaxSizeMB         = "logging.max_size_mb"
	KeyLoggingMaxBackups        = "logging.max_backups"
	KeyLoggingMaxAgeDays        = "logging.max_age_days"
	KeyLoggingCompress          = "logging.compress"
	KeyHistoryEnabled           = "history.enabled"
	KeyHistoryPath              = "history.path"
	KeyHistoryRetention         = "history.retention"
	KeyHistoryPruneInterval     = "history.prune_interval"
	KeyServerHost               = "server.host"
	KeyServerPort               = "server.port"
)

// Default values
const (
	DefaultStatsPeriod      = "0.05"
	DefaultAudioQuality     = "0"
	DefaultDownloadFormat   = "bestaudio/best"
	DefaultProgressInterval = 250 * time.Millisecond
	DefaultMessageDuration  = 6 * time.Second
	DefaultHistoryPath      = "./data/audiomorph.db"
	DefaultHistoryRetention = 30 * 24 * time.Hour
	DefaultPruneInterval    = time.Hour
	DefaultServerHost       = "127.0.0.1"
	DefaultServerPort       = 8484
)

// DefaultFormats lists the conversion targets offered to users.
var DefaultFormats = []string{"aac", "aiff", "flac", "mp3", "m4a", "ogg", "wav"}

// Config holds all application configuration.
type Config struct {
	Tools    ToolsConfig    `mapstructure:"tools"`
	Convert  ConvertConfig  `mapstructure:"convert"`
	Download DownloadConfig `mapstructure:"download"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	History  HistoryConfig  `mapstructure:"history"`
	Server   ServerConfig   `mapstructure:"server"`
}

// ToolsConfig holds explicit tool locations. Empty values are resolved.
type ToolsConfig struct {
	FFmpeg  string `mapstructure:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe"`
	YTDLP   string `mapstructure:"ytdlp"`
}

// ConvertConfig holds conversion pipeline settings.
type ConvertConfig struct {
	OutputDir   string   `mapstructure:"output_dir"`
	Formats     []string `mapstructure:"formats"`
	StatsPeriod string   `mapstructure:"stats_period"`
}

// DownloadConfig holds download pipeline settings.
type DownloadConfig struct {
	OutputDir        string        `mapstructure:"output_dir"`
	OutputFormat     string        `mapstructure:"output_format"`
	AudioQuality     string        `mapstructure:"audio_quality"`
	Format           string        `mapstructure:"format"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	AutoInstall      bool          `mapstructure:"auto_install"`
}

// JobsConfig holds settings shared by both pipelines.
type JobsConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	MessageDuration time.Duration `mapstructure:"message_duration"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// HistoryConfig holds job history storage configuration.
type HistoryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Path          string        `mapstructure:"path"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.audiomorph")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyToolsFFmpeg, "")
	v.SetDefault(KeyToolsFFprobe, "")
	v.SetDefault(KeyToolsYTDLP, "")

	v.SetDefault(KeyConvertOutputDir, "")
	v.SetDefault(KeyConvertFormats, DefaultFormats)
	v.SetDefault(KeyConvertStatsPeriod, DefaultStatsPeriod)

	v.SetDefault(KeyDownloadOutputDir, "")
	v.SetDefault(KeyDownloadOutputFormat, model.DownloadOutputFormat)
	v.SetDefault(KeyDownloadAudioQuality, DefaultAudioQuality)
	v.SetDefault(KeyDownloadFormat, DefaultDownloadFormat)
	v.SetDefault(KeyDownloadProgressInterval, DefaultProgressInterval)
	v.SetDefault(KeyDownloadAutoInstall, false)

	v.SetDefault(KeyJobsTimeout, time.Duration(0))
	v.SetDefault(KeyJobsMessageDuration, DefaultMessageDuration)

	v.SetDefault(KeyLoggingLevel, "info")
	v.SetDefault(KeyLoggingFormat, "console")
	v.SetDefault(KeyLoggingPath, "")
	v.SetDefault(KeyLoggingMaxSizeMB, 10)
	v.SetDefault(KeyLoggingMaxBackups, 5)
	v.SetDefault(KeyLoggingMaxAgeDays, 30)
	v.SetDefault(KeyLoggingCompress, true)

	v.SetDefault(KeyHistoryEnabled, true)
	v.SetDefault(KeyHistoryPath, DefaultHistoryPath)
	v.SetDefault(KeyHistoryRetention, DefaultHistoryRetention)
	v.SetDefault(KeyHistoryPruneInterval, DefaultPruneInterval)

	v.SetDefault(KeyServerHost, DefaultServerHost)
	v.SetDefault(KeyServerPort, DefaultServerPort)
}

// normalize fills the values that depend on the machine: output directories
// default to the user's Downloads directory when it exists.
func (c *Config) normalize() {
	downloads := platform.DefaultOutputDir()
	if c.Convert.OutputDir == "" {
		c.Convert.OutputDir = downloads
	}
	if c.Download.OutputDir == "" {
		c.Download.OutputDir = downloads
	}

	formats := make([]string, 0, len(c.Convert.Formats))
	for _, f := range c.Convert.Formats {
		f = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(f, ".")))
		if f != "" {
			formats = append(formats, f)
		}
	}
	c.Convert.Formats = formats

	c.Download.OutputFormat = strings.ToLower(strings.TrimSpace(c.Download.OutputFormat))
}

// Validate rejects settings the pipelines cannot run with.
func (c *Config) Validate() error {
	if c.Download.OutputFormat != model.DownloadOutputFormat {
		return fmt.Errorf("download.output_format must be %q, got %q", model.DownloadOutputFormat, c.Download.OutputFormat)
	}
	if c.Jobs.Timeout < 0 {
		return fmt.Errorf("jobs.timeout must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
