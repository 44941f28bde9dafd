// Package config loads a peer's runtime configuration with
// github.com/spf13/viper: defaults, an optional config file, and environment
// variable overrides layered the way the corpus's viper-backed services do.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"boson/internal/entropy"
)

// Peer is everything needed to construct and run one entropy peer process.
type Peer struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	ControlAddr  string `mapstructure:"control_addr"`
	FragmentsDir string `mapstructure:"fragments_dir"`

	FragmentLen int `mapstructure:"fragment_len"`
	K           int `mapstructure:"k"`
	N           int `mapstructure:"n"`
	M           int `mapstructure:"m"`

	CodecPoolSize int `mapstructure:"codec_pool_size"`
	FSPoolSize    int `mapstructure:"fs_pool_size"`
	QueueCapacity int `mapstructure:"queue_capacity"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Params translates the loaded config into entropy.Params.
func (p Peer) Params() entropy.Params {
	return entropy.Params{FragmentLen: p.FragmentLen, K: p.K, N: p.N, M: p.M}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1:7700")
	v.SetDefault("control_addr", "127.0.0.1:8080")
	v.SetDefault("fragments_dir", "./fragments")
	v.SetDefault("fragment_len", 1024)
	v.SetDefault("k", 2)
	v.SetDefault("n", 3)
	v.SetDefault("m", 5)
	v.SetDefault("codec_pool_size", 8)
	v.SetDefault("fs_pool_size", 4)
	v.SetDefault("queue_capacity", 256)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Load reads configuration from the defaults above, configPath (if
// non-empty), and environment variables prefixed ENTROPY_, in ascending
// priority.
func Load(configPath string) (Peer, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("entropy")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Peer{}, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	var cfg Peer
	if err := v.Unmarshal(&cfg); err != nil {
		return Peer{}, fmt.Errorf("config: unmarshalling: %w", err)
	}
	if err := cfg.Params().Validate(); err != nil {
		return Peer{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
