package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/nvidiawatch/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "NVIDIAWATCH"
	configName = "nvidiawatch"

	DefaultInterval      = 2
	DefaultCapacity      = 120
	DefaultLogLevel      = string(LogLevelInfo)
	DefaultDBPath        = "/var/lib/nvidiawatch/history.db"
	DefaultBatchSize     = 30
	DefaultBatchTimeout  = 30 * time.Second
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultPruneSchedule = "@every 1h"
	DefaultListen        = ":9835"
)

type Config struct {
	Interval  int             `mapstructure:"interval"`
	Device    int             `mapstructure:"device"`
	LogLevel  string          `mapstructure:"log_level"`
	Capacity  int             `mapstructure:"capacity"`
	LockFile  string          `mapstructure:"lock_file"`
	RulesFile string          `mapstructure:"rules_file"`
	Rules     []RuleConfig    `mapstructure:"rule"`
	History   HistoryConfig   `mapstructure:"history"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type HistoryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DBPath        string        `mapstructure:"db_path"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneSchedule string        `mapstructure:"prune_schedule"`
}

type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("device", 0)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("capacity", DefaultCapacity)
	v.SetDefault("lock_file", filepath.Join(os.TempDir(), configName+".lock"))
	v.SetDefault("rules_file", "")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", DefaultDBPath)
	v.SetDefault("history.batch_size", DefaultBatchSize)
	v.SetDefault("history.batch_timeout", DefaultBatchTimeout)
	v.SetDefault("history.retention", DefaultRetention)
	v.SetDefault("history.prune_schedule", DefaultPruneSchedule)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", DefaultListen)
}

// Load reads configuration from defaults, the TOML config file, NVIDIAWATCH_*
// environment variables and the given command line arguments, in increasing
// order of precedence.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	configPath := fs.String("config", os.Getenv(envPrefix+"_CONFIG"), "Path to the configuration file")
	fs.Int("interval", DefaultInterval, "Seconds between samples")
	fs.Int("device", 0, "GPU index to watch")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Int("capacity", DefaultCapacity, "Samples retained per metric")
	fs.String("rules-file", "", "YAML file with additional alert rules")
	fs.Bool("history", false, "Persist samples and alert transitions")
	fs.String("history-db", DefaultDBPath, "Path to the history database")
	fs.Bool("telemetry", false, "Expose Prometheus metrics")
	fs.String("telemetry-listen", DefaultListen, "Listen address for Prometheus metrics")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	bindings := map[string]string{
		"interval":          "interval",
		"device":            "device",
		"log_level":         "log-level",
		"capacity":          "capacity",
		"rules_file":        "rules-file",
		"history.enabled":   "history",
		"history.db_path":   "history-db",
		"telemetry.enabled": "telemetry",
		"telemetry.listen":  "telemetry-listen",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("toml")
	if *configPath != "" {
		v.SetConfigFile(*configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath("/etc/" + configName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if *configPath != "" || !errors.As(err, &notFound) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if cfg.RulesFile != "" {
		rules, err := LoadRulesFile(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		cfg.Rules = append(cfg.Rules, rules...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
