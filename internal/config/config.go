// Package config loads the ministream configuration: built-in defaults,
// then config files in the order given, then command-line flags.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	flag "github.com/spf13/pflag"
	"github.com/tarungka/ministream/engine"
	"github.com/tarungka/ministream/internal/kv"
	"github.com/tarungka/ministream/jobs/primes"
)

type LogConfig struct {
	Level       string `koanf:"level" json:"level"`
	Development bool   `koanf:"development" json:"development"`
	// File additionally receives every log line when set.
	File string `koanf:"file" json:"file"`
}

type Config struct {
	Log        LogConfig               `koanf:"log" json:"log"`
	Storage    kv.Config               `koanf:"storage" json:"storage"`
	Checkpoint engine.CheckpointConfig `koanf:"checkpoint" json:"checkpoint"`
	Job        primes.Config           `koanf:"job" json:"job"`
}

// Engine returns the part of the configuration the pipeline context needs.
func (c *Config) Engine() engine.Config {
	return engine.Config{Storage: c.Storage, Checkpoint: c.Checkpoint}
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log.level":       "info",
		"log.development": false,
		"log.file":        "",

		"storage.type":       kv.TypeMemory,
		"storage.dir":        "data",
		"storage.in_memory":  false,
		"storage.partitions": 16,

		"checkpoint.interval":    10 * time.Second,
		"checkpoint.compression": "snappy",

		"job.name":            primes.JobName,
		"job.source.interval": time.Second,
		"job.source.start":    0,
		"job.source.limit":    0,
		"job.source.buffer":   16,
		"job.source.overflow": "block",
		"job.sink.type":       "map",
		"job.sink.name":       primes.MapName,
	}
}

// flagKeys maps flag names onto config keys. Flags not listed here are not
// configuration.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"dev":       "log.development",
	"storage":   "storage.type",
	"data-dir":  "storage.dir",
	"limit":     "job.source.limit",
}

// NewFlagSet declares the command-line flags.
func NewFlagSet(name string) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.StringSlice("config", nil, "path to one or more config files (will be merged in order)")
	f.Bool("version", false, "show current version of the build")
	f.String("log-level", "info", "log level: trace, debug, info, warn, error")
	f.Bool("dev", false, "human readable development logging")
	f.String("storage", kv.TypeMemory, "storage backend: memory, badger or bolt")
	f.String("data-dir", "data", "data directory of the badger and bolt backends")
	f.Int64("limit", 0, "stop after this many generated items, 0 runs until interrupted")
	return f
}

// Load parses args with f and returns the merged configuration.
func Load(f *flag.FlagSet, args []string) (*Config, error) {
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	ko := koanf.New(".")
	if err := ko.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	configs, _ := f.GetStringSlice("config")
	for _, path := range configs {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := ko.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", path, err)
		}
	}

	cb := func(fl *flag.Flag) (string, interface{}) {
		key, ok := flagKeys[fl.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(f, fl)
	}
	if err := ko.Load(posflag.ProviderWithFlag(f, ".", ko, cb), nil); err != nil {
		return nil, fmt.Errorf("error reading flag config: %w", err)
	}

	var cfg Config
	if err := ko.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", path)
	}
}
