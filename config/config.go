// Package config reads the gateway's runtime configuration using viper,
// the way the teacher's jsonconfig package reads its JSON control file -
// a single typed Config struct, populated from a file plus environment
// overrides, handed to every component at startup (§6).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every dotted key enumerated in spec.md §6.
type Config struct {
	TCPBind string `mapstructure:"tcp.bind"`

	FramerMaxPacketSize    int  `mapstructure:"framer.maxPacketSize"`
	FramerValidateChecksum bool `mapstructure:"framer.validateChecksum"`

	QueueMaxDepth        int `mapstructure:"queue.maxDepth"`
	QueueMaxConcurrency  int `mapstructure:"queue.maxConcurrency"`
	QueuePerJobTimeoutMs int `mapstructure:"queue.perJobTimeoutMs"`
	QueueMaxRetries      int `mapstructure:"queue.maxRetries"`

	ParserEmitRawUnknownTags bool `mapstructure:"parser.emitRawUnknownTags"`

	PipelineIdleReadTimeoutSec  int  `mapstructure:"pipeline.idleReadTimeoutSec"`
	PipelineSendIncompleteProbe bool `mapstructure:"pipeline.sendIncompleteAckProbe"`

	MetricsPort int `mapstructure:"metrics.port"`
}

// PerJobTimeout returns QueuePerJobTimeoutMs as a time.Duration.
func (c *Config) PerJobTimeout() time.Duration {
	return time.Duration(c.QueuePerJobTimeoutMs) * time.Millisecond
}

// IdleReadTimeout returns PipelineIdleReadTimeoutSec as a time.Duration.
func (c *Config) IdleReadTimeout() time.Duration {
	return time.Duration(c.PipelineIdleReadTimeoutSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tcp.bind", ":5027")
	v.SetDefault("framer.maxPacketSize", 65535)
	v.SetDefault("framer.validateChecksum", true)
	v.SetDefault("queue.maxDepth", 2000)
	v.SetDefault("queue.maxConcurrency", 10)
	v.SetDefault("queue.perJobTimeoutMs", 30_000)
	v.SetDefault("queue.maxRetries", 3)
	v.SetDefault("parser.emitRawUnknownTags", true)
	v.SetDefault("pipeline.idleReadTimeoutSec", 300)
	v.SetDefault("pipeline.sendIncompleteAckProbe", false)
	v.SetDefault("metrics.port", 9090)
}

// Load reads the named config file (if present - a missing file is not an
// error, unlike the teacher's jsonconfig.GetJSONConfigFromFile, since every
// key here has a workable default) and layers GALILEOSKY_-prefixed
// environment variables over it, then returns the typed Config.
func Load(configFileName string) (*Config, error) {
	// The keys themselves contain dots, so "::" is used as viper's nesting
	// delimiter; settings then stay flat and match the dotted mapstructure
	// tags on Config.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	setDefaults(v)

	v.SetEnvPrefix("GALILEOSKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFileName != "" {
		v.SetConfigFile(configFileName)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: reading %s: %w", configFileName, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	return &cfg, nil
}
