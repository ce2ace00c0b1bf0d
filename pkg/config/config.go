package config

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel         = "info"
	DefaultMaxRecordDepth   = 64
	DefaultRefreshPerSecond = 2.0
	DefaultRefreshBurst     = 1
)

// Config is the server configuration. Blocks left out of a file are filled
// with defaults by Load.
type Config struct {
	LogLevel    string    `json:"log_level,omitempty" yaml:"log_level,omitempty" hcl:"log_level,optional"`
	MetricsAddr string    `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty" hcl:"metrics_addr,optional"`
	Semantic    *Semantic `json:"semantic,omitempty" yaml:"semantic,omitempty" hcl:"semantic,block"`
	Files       *Files    `json:"files,omitempty" yaml:"files,omitempty" hcl:"files,block"`
	Refresh     *Refresh  `json:"refresh,omitempty" yaml:"refresh,omitempty" hcl:"refresh,block"`
}

type Semantic struct {
	Enabled        *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty" hcl:"enabled,optional"`
	BuildFlags     []string `json:"build_flags,omitempty" yaml:"build_flags,omitempty" hcl:"build_flags,optional"`
	MaxRecordDepth int      `json:"max_record_depth,omitempty" yaml:"max_record_depth,omitempty" hcl:"max_record_depth,optional"`
}

// Files selects the documents that get highlighting. An empty Include
// selects everything; Exclude always wins.
type Files struct {
	Include []string `json:"include,omitempty" yaml:"include,omitempty" hcl:"include,optional"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty" hcl:"exclude,optional"`
}

// Refresh limits workspace/semanticTokens/refresh requests.
type Refresh struct {
	PerSecond float64 `json:"per_second,omitempty" yaml:"per_second,omitempty" hcl:"per_second,optional"`
	Burst     int     `json:"burst,omitempty" yaml:"burst,omitempty" hcl:"burst,optional"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Semantic == nil {
		cfg.Semantic = &Semantic{}
	}
	if cfg.Semantic.Enabled == nil {
		enabled := true
		cfg.Semantic.Enabled = &enabled
	}
	if cfg.Semantic.MaxRecordDepth == 0 {
		cfg.Semantic.MaxRecordDepth = DefaultMaxRecordDepth
	}
	if cfg.Files == nil {
		cfg.Files = &Files{}
	}
	if cfg.Refresh == nil {
		cfg.Refresh = &Refresh{}
	}
	if cfg.Refresh.PerSecond == 0 {
		cfg.Refresh.PerSecond = DefaultRefreshPerSecond
	}
	if cfg.Refresh.Burst == 0 {
		cfg.Refresh.Burst = DefaultRefreshBurst
	}
}

// Load reads a configuration file. .yaml and .yml files are YAML with unknown
// fields rejected; anything else is HCL, evaluated with the process
// environment available as env.NAME.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, errors.Errorf("parsing YAML: %w", err)
		}
	default:
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCL(data, path)
		if diags.HasErrors() {
			return nil, errors.Errorf("parsing HCL: %s", diags.Error())
		}

		diags = gohcl.DecodeBody(file.Body, evalContext(), &cfg)
		if diags.HasErrors() {
			return nil, errors.Errorf("decoding HCL: %s", diags.Error())
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadOrDefault is Load, or Default when path is empty.
func LoadOrDefault(fs afero.Fs, path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(fs, path)
}

func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !hclIdentifier(k) {
			continue
		}
		env[k] = cty.StringVal(v)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

func hclIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}

// Validate reports every problem with cfg, not just the first.
func (cfg *Config) Validate() error {
	var result *multierror.Error

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		result = multierror.Append(result, errors.Errorf("log_level %q: %w", cfg.LogLevel, err))
	}

	if cfg.Semantic != nil && cfg.Semantic.MaxRecordDepth < 0 {
		result = multierror.Append(result, errors.Errorf("semantic.max_record_depth must not be negative, got %d", cfg.Semantic.MaxRecordDepth))
	}

	if cfg.Files != nil {
		for _, p := range cfg.Files.Include {
			if !doublestar.ValidatePattern(p) {
				result = multierror.Append(result, errors.Errorf("files.include: invalid pattern %q", p))
			}
		}
		for _, p := range cfg.Files.Exclude {
			if !doublestar.ValidatePattern(p) {
				result = multierror.Append(result, errors.Errorf("files.exclude: invalid pattern %q", p))
			}
		}
	}

	if cfg.Refresh != nil {
		if cfg.Refresh.PerSecond < 0 || math.IsNaN(cfg.Refresh.PerSecond) {
			result = multierror.Append(result, errors.Errorf("refresh.per_second must not be negative, got %v", cfg.Refresh.PerSecond))
		}
		if cfg.Refresh.Burst < 0 {
			result = multierror.Append(result, errors.Errorf("refresh.burst must not be negative, got %d", cfg.Refresh.Burst))
		}
	}

	return result.ErrorOrNil()
}

func (cfg *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func (cfg *Config) SemanticEnabled() bool {
	return cfg.Semantic == nil || cfg.Semantic.Enabled == nil || *cfg.Semantic.Enabled
}
