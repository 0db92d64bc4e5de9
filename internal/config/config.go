// Package config loads server configuration from defaults, an optional
// YAML file, GRIST_-prefixed environment variables and command-line flags,
// in ascending priority.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/gwhthompson/grist-mcp-server-sub003/util"
)

// Config is the resolved server configuration.
type Config struct {
	APIURL   string        `koanf:"api_url"`
	APIKey   string        `koanf:"api_key"`
	Doc      string        `koanf:"doc"`
	Timeout  time.Duration `koanf:"timeout"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
	Verbose  bool          `koanf:"verbose"`
}

// Load resolves the configuration. flags may be nil; only flags the user
// actually set override file and environment values.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"api_url":   "https://docs.getgrist.com",
		"timeout":   "30s",
		"cache_ttl": "60s",
		"verbose":   false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configFile == "" {
		for _, name := range []string{"grist-mcp.yaml", "grist-mcp.yml"} {
			if _, err := os.Stat(name); err == nil {
				configFile = name
				break
			}
		}
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// GRIST_API_KEY -> api_key
	if err := k.Load(env.Provider("GRIST_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "GRIST_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Doc == "" {
		return nil, fmt.Errorf("no document configured; set GRIST_DOC or doc (id or URL)")
	}
	docID, err := util.ParseDocRef(cfg.Doc)
	if err != nil {
		return nil, fmt.Errorf("invalid doc setting: %w", err)
	}
	cfg.Doc = docID
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured; set GRIST_API_KEY or api_key")
	}
	return &cfg, nil
}
