package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix namespaces the announcer's environment variables, e.g.
// GORPO_ENDPOINT and GORPO_TOKEN.
const envPrefix = "GORPO"

// LoaderOption customizes Load.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lo *loaderOptions) { lo.configFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lo *loaderOptions) { lo.envFile = path }
}

// Load reads the announcer configuration from a YAML file, a .env file, and
// the environment, in increasing order of precedence. Missing files are not
// an error; defaults are applied and the result validated.
func Load(opts ...LoaderOption) (*Config, error) {
	var lo loaderOptions
	for _, opt := range opts {
		opt(&lo)
	}

	if lo.envFile == "" {
		lo.envFile = findFile(".env")
	}
	if lo.envFile != "" && exists(lo.envFile) {
		if err := godotenv.Load(lo.envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", lo.envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if lo.configFile == "" {
		lo.configFile = findFile("gorpo.yml", "config.yml")
	}
	if lo.configFile != "" && exists(lo.configFile) {
		v.SetConfigFile(lo.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", lo.configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key with viper so environment variables are
// picked up even when no config file mentions them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "")
	v.SetDefault("token", "")
	v.SetDefault("unique_id", false)
	v.SetDefault("transport.timeout", 0)
	v.SetDefault("transport.connect_timeout", 0)
	v.SetDefault("log.level", "")
	v.SetDefault("log.format", "")
	v.SetDefault("log.output", "")
	v.SetDefault("log.no_color", false)
	v.SetDefault("log.caller", false)
}

// findFile returns the first existing candidate in the working directory and
// ./config, or "".
func findFile(names ...string) string {
	for _, name := range names {
		for _, dir := range []string{".", "config"} {
			path := dir + "/" + name
			if exists(path) {
				return path
			}
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
