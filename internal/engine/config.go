package engine

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the build-time-tunable constants spec.md §9 calls out as
// portability knobs: the callback trampoline slot count and the variadic
// call unrolling matrix bounds. Precedence follows
// marmos91-dittofs/pkg/config: environment variables (NATIVEBRIDGE_*)
// override a config file, which overrides these defaults.
type Config struct {
	// FunctionPointerCount is the number of slots each callback trampoline
	// pool allocates (spec.md §4.7).
	FunctionPointerCount int `mapstructure:"function_pointer_count"`

	// MaxIntVarargs and MaxDblVarargs are the AMD64 SysV variadic
	// unrolling bounds (spec.md §9). They are loaded and carried here;
	// no command in this build reads them.
	MaxIntVarargs int `mapstructure:"max_int_varargs"`
	MaxDblVarargs int `mapstructure:"max_dbl_varargs"`

	// QueueCapacity bounds the incoming mailbox queue (spec.md §4.3).
	QueueCapacity int `mapstructure:"queue_capacity"`

	// LogLevel is a logrus level name (spec.md's ambient logging stack).
	LogLevel string `mapstructure:"log_level"`

	// MetricsEnabled toggles registration of the engine's Prometheus
	// instruments into the registry passed to New; serving them is up to
	// the embedder.
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

// DefaultConfig returns the engine's built-in defaults, used when no
// config file and no environment override is present.
func DefaultConfig() Config {
	return Config{
		FunctionPointerCount: 32,
		MaxIntVarargs:        6,
		MaxDblVarargs:        6,
		QueueCapacity:        256,
		LogLevel:             "info",
		MetricsEnabled:       true,
	}
}

// LoadConfig loads configuration from an optional file, environment
// variables prefixed NATIVEBRIDGE_, and DefaultConfig, in that precedence
// order (env overrides file overrides defaults), mirroring
// marmos91-dittofs/pkg/config.Load's use of viper.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	cfg := DefaultConfig()

	v.SetEnvPrefix("NATIVEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("function_pointer_count", cfg.FunctionPointerCount)
	v.SetDefault("max_int_varargs", cfg.MaxIntVarargs)
	v.SetDefault("max_dbl_varargs", cfg.MaxDblVarargs)
	v.SetDefault("queue_capacity", cfg.QueueCapacity)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("metrics_enabled", cfg.MetricsEnabled)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, err
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
