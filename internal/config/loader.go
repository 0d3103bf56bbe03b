package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName      = ".xbst"
	configType      = "yaml"
	envPrefix       = "XBST"
	envKeySeparator = "_"
)

// LoadConfig loads configuration from file, env vars and defaults.
// A non-empty configPath is used as the explicit config file. Otherwise
// .xbst.yaml is searched in the CWD and then $HOME, and a missing file
// leaves the defaults in place.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if len(configPath) > 0 {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	if err := viperCfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or env var is set.
func Default() *Config {
	return &Config{
		Engine: DefaultEngine,
		Demo: DemoConfig{
			Insert: append([]int(nil), DefaultDemoInsert...),
			Search: append([]int(nil), DefaultDemoSearch...),
			Delete: append([]int(nil), DefaultDemoDelete...),
		},
		Log: LogConfig{
			Level:   DefaultLogLevel,
			Encoder: DefaultLogEncoder,
		},
		Metrics: MetricsConfig{
			Exporter: DefaultMetricsExporter,
			Listen:   DefaultMetricsListen,
			Interval: DefaultMetricsInterval,
		},
		Stress: StressConfig{
			Trials:  DefaultStressTrials,
			Keys:    DefaultStressKeys,
			Workers: DefaultStressWorkers,
			Seed:    DefaultStressSeed,
		},
		Render: RenderConfig{
			Format: DefaultRenderFormat,
			Color:  DefaultRenderColor,
		},
	}
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("engine", DefaultEngine)

	viperCfg.SetDefault("demo.insert", DefaultDemoInsert)
	viperCfg.SetDefault("demo.search", DefaultDemoSearch)
	viperCfg.SetDefault("demo.delete", DefaultDemoDelete)

	viperCfg.SetDefault("log.level", DefaultLogLevel)
	viperCfg.SetDefault("log.encoder", DefaultLogEncoder)

	viperCfg.SetDefault("metrics.exporter", DefaultMetricsExporter)
	viperCfg.SetDefault("metrics.listen", DefaultMetricsListen)
	viperCfg.SetDefault("metrics.interval", DefaultMetricsInterval)

	viperCfg.SetDefault("stress.trials", DefaultStressTrials)
	viperCfg.SetDefault("stress.keys", DefaultStressKeys)
	viperCfg.SetDefault("stress.workers", DefaultStressWorkers)
	viperCfg.SetDefault("stress.seed", DefaultStressSeed)

	viperCfg.SetDefault("render.format", DefaultRenderFormat)
	viperCfg.SetDefault("render.color", DefaultRenderColor)
}
