package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	CentralAPI CentralAPIConfig `mapstructure:"central_api"`
	Eve        EveConfig        `mapstructure:"eve"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Suricata   SuricataConfig   `mapstructure:"suricata"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	PortAttempts   int           `mapstructure:"port_attempts"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
}

type CentralAPIConfig struct {
	URL     string        `mapstructure:"url"`
	LogPath string        `mapstructure:"log_path"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EveConfig controls tailing, rotation and retention of the EVE log.
// Intervals are whole seconds to match the environment contract.
type EveConfig struct {
	LogDir                 string `mapstructure:"log_dir"`
	ActiveLogFile          string `mapstructure:"active_log_file"`
	WatchIntervalSeconds   int    `mapstructure:"watch_interval_seconds"`
	CleanupIntervalSeconds int    `mapstructure:"cleanup_interval_seconds"`
	RotationCheckSeconds   int    `mapstructure:"rotation_check_seconds"`
	MaxLogSizeMB           int64  `mapstructure:"max_log_size_mb"`
	ReadFromStart          bool   `mapstructure:"read_from_start"`

	// RetainRotatedArchives lets retention also delete the archives written
	// by the size rotator (<active>.<timestamp>). Off by default.
	RetainRotatedArchives bool `mapstructure:"retain_rotated_archives"`
}

type RulesConfig struct {
	Dir             string `mapstructure:"dir"`
	Filename        string `mapstructure:"filename"`
	BackupThreshold int64  `mapstructure:"backup_threshold_bytes"`
}

type SuricataConfig struct {
	Binary           string        `mapstructure:"binary"`
	ConfigPath       string        `mapstructure:"config_path"`
	Interface        string        `mapstructure:"interface"`
	NetworkInterface string        `mapstructure:"network_interface"`
	ExecHelper       string        `mapstructure:"exec_helper"`
	Container        string        `mapstructure:"container"`
	SocketClient     string        `mapstructure:"socket_client"`
	CommandTimeout   time.Duration `mapstructure:"command_timeout"`
	ReloadOnChange   bool          `mapstructure:"reload_on_change"`
	Skip             bool          `mapstructure:"-"`
}

type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type MirrorConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	NatsURL       string `mapstructure:"nats_url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to the environment variables the sensor has
// always honoured. Every key is also reachable as SENSOR_<SECTION>_<KEY>.
var envBindings = map[string]string{
	"central_api.url":              "CENTRAL_API_SERVER_URL",
	"eve.watch_interval_seconds":   "LOG_WATCH_INTERVAL",
	"eve.cleanup_interval_seconds": "CLEANUP_INTERVAL",
	"eve.log_dir":                  "LOG_DIR",
	"eve.active_log_file":          "ACTIVE_LOG_FILE",
	"eve.max_log_size_mb":          "MAX_LOG_SIZE_MB",
	"server.port":                  "PORT",
	"suricata.config_path":         "SURICATA_CONFIG_PATH",
	"suricata.interface":           "SURICATA_INTERFACE",
	"suricata.network_interface":   "NETWORK_INTERFACE",
	"suricata.skip":                "SKIP_SURICATA",
	"rules.dir":                    "SURICATA_RULES_DIR",
	"rules.filename":               "SURICATA_CUSTOM_RULE_FILENAME",
}

// Load reads configuration from defaults, an optional YAML file, a .env
// file in the working directory and the environment, in increasing order
// of precedence.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/telhawk/sensor")
	}

	v.SetEnvPrefix("SENSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		envKey := "SENSOR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env, envKey); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Suricata.Skip = ParseFlag(v.GetString("suricata.skip"))

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.port_attempts", 10)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.cors_origins", []string{"http://localhost:8080"})
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("central_api.url", "")
	v.SetDefault("central_api.log_path", "/log")
	v.SetDefault("central_api.timeout", "10s")

	v.SetDefault("eve.log_dir", "")
	v.SetDefault("eve.active_log_file", "")
	v.SetDefault("eve.watch_interval_seconds", 1)
	v.SetDefault("eve.cleanup_interval_seconds", 3600)
	v.SetDefault("eve.rotation_check_seconds", 30)
	v.SetDefault("eve.max_log_size_mb", 100)
	v.SetDefault("eve.read_from_start", false)
	v.SetDefault("eve.retain_rotated_archives", false)

	v.SetDefault("rules.dir", "/var/lib/suricata/rules")
	v.SetDefault("rules.filename", "custom.rules")
	v.SetDefault("rules.backup_threshold_bytes", 1_000_000)

	v.SetDefault("suricata.binary", "suricata")
	v.SetDefault("suricata.config_path", "/etc/suricata/suricata.yaml")
	v.SetDefault("suricata.interface", "eth0")
	v.SetDefault("suricata.network_interface", "eth0")
	v.SetDefault("suricata.exec_helper", "docker")
	v.SetDefault("suricata.container", "suricata")
	v.SetDefault("suricata.socket_client", "suricatasc")
	v.SetDefault("suricata.command_timeout", "30s")
	v.SetDefault("suricata.reload_on_change", true)
	v.SetDefault("suricata.skip", "false")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("ratelimit.requests", 600)
	v.SetDefault("ratelimit.window", "1m")

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.nats_url", "nats://localhost:4222")
	v.SetDefault("mirror.subject_prefix", "suricata.eve")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// resolve fills derived defaults and rejects values no component can use.
func (c *Config) resolve() error {
	if c.Eve.LogDir == "" {
		c.Eve.LogDir = filepath.Join(os.Getenv("HOME"), "suricata_logs")
	}
	if c.Eve.ActiveLogFile == "" {
		c.Eve.ActiveLogFile = filepath.Join(c.Eve.LogDir, "eve.json")
	}
	c.CentralAPI.URL = strings.TrimRight(c.CentralAPI.URL, "/")

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.PortAttempts < 0 {
		c.Server.PortAttempts = 0
	}
	if c.Eve.WatchIntervalSeconds <= 0 {
		return fmt.Errorf("invalid LOG_WATCH_INTERVAL: %d", c.Eve.WatchIntervalSeconds)
	}
	if c.Eve.CleanupIntervalSeconds <= 0 {
		return fmt.Errorf("invalid CLEANUP_INTERVAL: %d", c.Eve.CleanupIntervalSeconds)
	}
	if c.Eve.MaxLogSizeMB <= 0 {
		return fmt.Errorf("invalid MAX_LOG_SIZE_MB: %d", c.Eve.MaxLogSizeMB)
	}
	if c.Eve.RotationCheckSeconds <= 0 {
		c.Eve.RotationCheckSeconds = 30
	}
	return nil
}

// RulesFilePath is the custom rules file managed by the sensor.
func (c *Config) RulesFilePath() string {
	return filepath.Join(c.Rules.Dir, c.Rules.Filename)
}

// CentralLogURL is the endpoint every EVE event is posted to. Empty when
// no central API is configured.
func (c *Config) CentralLogURL() string {
	if c.CentralAPI.URL == "" {
		return ""
	}
	return c.CentralAPI.URL + c.CentralAPI.LogPath
}

func (e EveConfig) WatchInterval() time.Duration {
	return time.Duration(e.WatchIntervalSeconds) * time.Second
}

func (e EveConfig) CleanupInterval() time.Duration {
	return time.Duration(e.CleanupIntervalSeconds) * time.Second
}

func (e EveConfig) RotationCheckInterval() time.Duration {
	return time.Duration(e.RotationCheckSeconds) * time.Second
}

// MaxLogSizeBytes is the rotation threshold in bytes.
func (e EveConfig) MaxLogSizeBytes() int64 {
	return e.MaxLogSizeMB * 1024 * 1024
}

// ParseFlag interprets common truthy spellings.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on", "y":
		return true
	}
	return false
}
