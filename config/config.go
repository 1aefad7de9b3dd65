package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Object storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Mixer engine configuration
	Mixer MixerConfig `mapstructure:"mixer"`

	// Play session configuration
	Session SessionConfig `mapstructure:"session"`

	// Library refresh configuration
	Library LibraryConfig `mapstructure:"library"`

	// HTTP server configuration
	HTTP HTTPConfig `mapstructure:"http"`

	// Voice-over synthesis configuration
	Voicegen VoicegenConfig `mapstructure:"voicegen"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig holds S3-compatible object store settings
type StorageConfig struct {
	AccountID       string        `mapstructure:"account_id"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	Bucket          string        `mapstructure:"bucket"`
	Endpoint        string        `mapstructure:"endpoint"` // overrides the R2 endpoint derived from AccountID
	Region          string        `mapstructure:"region"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl"`
}

// MixerConfig holds playback engine settings
type MixerConfig struct {
	SampleRate   int           `mapstructure:"sample_rate"`
	BufferSize   time.Duration `mapstructure:"buffer_size"`
	MixRatio     int           `mapstructure:"mix_ratio"`
	MasterVolume int           `mapstructure:"master_volume"`
	LoadTimeout  time.Duration `mapstructure:"load_timeout"`
	FailureGrace time.Duration `mapstructure:"failure_grace"`
}

// SessionConfig holds sequencing settings for a play session
type SessionConfig struct {
	PrerollDelay time.Duration `mapstructure:"preroll_delay"`
	VoiceoverGap time.Duration `mapstructure:"voiceover_gap"`
	AutoStart    bool          `mapstructure:"auto_start"`
}

// LibraryConfig holds clip library refresh settings
type LibraryConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	Listen         string `mapstructure:"listen"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	UploadRPM      int    `mapstructure:"upload_rpm"`
}

// VoicegenConfig holds text-to-speech settings
type VoicegenConfig struct {
	Language string `mapstructure:"language"`
	Folder   string `mapstructure:"folder"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// ResolvedEndpoint returns the S3 endpoint, derived from the account id for R2.
func (s StorageConfig) ResolvedEndpoint() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return "https://" + s.AccountID + ".r2.cloudflarestorage.com"
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	// Empty defaults make the keys visible to AutomaticEnv during Unmarshal.
	v.SetDefault("storage.account_id", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.presign_ttl", "1h")
	v.SetDefault("mixer.sample_rate", 44100)
	v.SetDefault("mixer.buffer_size", "100ms")
	v.SetDefault("mixer.mix_ratio", 50)
	v.SetDefault("mixer.master_volume", 80)
	v.SetDefault("mixer.load_timeout", "60s")
	v.SetDefault("mixer.failure_grace", "100ms")
	v.SetDefault("session.preroll_delay", "0s")
	v.SetDefault("session.voiceover_gap", "500ms")
	v.SetDefault("session.auto_start", false)
	v.SetDefault("library.refresh_interval", "30m")
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.max_upload_bytes", 50<<20)
	v.SetDefault("http.upload_rpm", 30)
	v.SetDefault("voicegen.language", "en")
	v.SetDefault("voicegen.folder", "voiceover")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads configuration through v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Read config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.mixdeck")
	v.AddConfigPath("/etc/mixdeck")

	// Allow environment variables
	v.SetEnvPrefix("MIXDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", v.ConfigFileUsed()))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration needed to serve
func (c *Config) Validate() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	return c.ValidateMixer()
}

// ValidateStorage checks the object store settings
func (c *Config) ValidateStorage() error {
	if c.Storage.AccountID == "" && c.Storage.Endpoint == "" {
		return &ConfigError{Field: "storage.account_id", Message: "account id or endpoint is required"}
	}
	if c.Storage.AccessKeyID == "" {
		return &ConfigError{Field: "storage.access_key_id", Message: "access key id is required"}
	}
	if c.Storage.SecretAccessKey == "" {
		return &ConfigError{Field: "storage.secret_access_key", Message: "secret access key is required"}
	}
	if c.Storage.Bucket == "" {
		return &ConfigError{Field: "storage.bucket", Message: "bucket name is required"}
	}
	if c.Storage.PresignTTL <= 0 {
		return &ConfigError{Field: "storage.presign_ttl", Message: "must be positive"}
	}
	return nil
}

// ValidateMixer checks the playback settings
func (c *Config) ValidateMixer() error {
	if c.Mixer.SampleRate <= 0 {
		return &ConfigError{Field: "mixer.sample_rate", Message: "must be positive"}
	}
	if c.Mixer.MixRatio < 0 || c.Mixer.MixRatio > 100 {
		return &ConfigError{Field: "mixer.mix_ratio", Message: "must be between 0 and 100"}
	}
	if c.Mixer.MasterVolume < 0 || c.Mixer.MasterVolume > 100 {
		return &ConfigError{Field: "mixer.master_volume", Message: "must be between 0 and 100"}
	}
	if c.Session.PrerollDelay < 0 {
		return &ConfigError{Field: "session.preroll_delay", Message: "must not be negative"}
	}
	if c.Session.VoiceoverGap < 0 {
		return &ConfigError{Field: "session.voiceover_gap", Message: "must not be negative"}
	}
	if c.Library.RefreshInterval > 0 && c.Library.RefreshInterval >= c.Storage.PresignTTL && c.Storage.PresignTTL > 0 {
		return &ConfigError{Field: "library.refresh_interval", Message: "must be shorter than storage.presign_ttl"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
