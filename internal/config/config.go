package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/autotrad/internal/locale"
	"github.com/valpere/autotrad/internal/translator"
)

// EnvPrefix prefixes every environment override: AUTOTRAD_LOG_LEVEL,
// AUTOTRAD_LOCALE_MODE, AUTOTRAD_PROVIDERS_OPENROUTER_API_KEY and so on.
const EnvPrefix = "AUTOTRAD"

// DefaultChain is the provider order used when none is configured. Every
// link works without credentials.
var DefaultChain = []string{"memory", "ondevice", "mymemory"}

// Config holds the complete application configuration.
type Config struct {
	DBPath     string `mapstructure:"db"`
	CatalogDir string `mapstructure:"catalog_dir"`
	PendingDir string `mapstructure:"pending_dir"`
	LogLevel   string `mapstructure:"log_level"`

	SourceLanguage  string        `mapstructure:"source_language"`
	DefaultSource   string        `mapstructure:"default_source"`
	Timeout         time.Duration `mapstructure:"timeout"`
	WarmConcurrency int           `mapstructure:"warm_concurrency"`
	FuzzyThreshold  float64       `mapstructure:"fuzzy_threshold"`
	DetectThreshold float64       `mapstructure:"detect_threshold"`
	DownloadPolicy  string        `mapstructure:"download_policy"`
	Unmetered       bool          `mapstructure:"unmetered"`

	Chain         []string       `mapstructure:"chain"`
	Glossary      []GlossaryTerm `mapstructure:"glossary"`
	DontTranslate []string       `mapstructure:"dont_translate"`

	Locale    LocaleConfig                        `mapstructure:"locale"`
	Providers map[string]translator.ServiceConfig `mapstructure:"providers"`
}

// GlossaryTerm is a fixed translation. Terms are a list rather than a map
// because viper lower-cases map keys.
type GlossaryTerm struct {
	Source string `mapstructure:"source"`
	Target string `mapstructure:"target"`
}

// LocaleConfig describes the locale policy and the region used for
// location-based resolution.
type LocaleConfig struct {
	Mode      string   `mapstructure:"mode"`
	Tag       string   `mapstructure:"tag"`
	Supported []string `mapstructure:"supported"`
	Fallback  []string `mapstructure:"fallback"`
	Region    string   `mapstructure:"region"`
}

// New returns a viper instance carrying the defaults and the environment
// bindings. Callers bind their own flags to it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("db", "./data/autotrad.db")
	v.SetDefault("catalog_dir", "./i18n")
	v.SetDefault("pending_dir", "./i18n/pending")
	v.SetDefault("log_level", "info")
	v.SetDefault("source_language", "")
	v.SetDefault("default_source", "en")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("warm_concurrency", 4)
	v.SetDefault("fuzzy_threshold", 0.9)
	v.SetDefault("detect_threshold", 0.3)
	v.SetDefault("download_policy", "unmetered")
	v.SetDefault("unmetered", false)
	v.SetDefault("chain", DefaultChain)

	policy := locale.DefaultPolicy()
	v.SetDefault("locale.mode", policy.Mode.String())
	v.SetDefault("locale.tag", "")
	v.SetDefault("locale.supported", policy.Supported)
	v.SetDefault("locale.fallback", policy.FallbackChain)
	v.SetDefault("locale.region", "")

	v.SetDefault("providers.ollama.base_url", "http://localhost:11434")
	v.SetDefault("providers.ollama.model", translator.DefaultOllamaModel)
	v.SetDefault("providers.openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("providers.openrouter.model", translator.DefaultOpenRouterModel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider secrets are also read from their conventional names.
	_ = v.BindEnv("providers.google.credentials", EnvPrefix+"_PROVIDERS_GOOGLE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS")
	_ = v.BindEnv("providers.google.api_key", EnvPrefix+"_PROVIDERS_GOOGLE_API_KEY")
	_ = v.BindEnv("providers.openrouter.api_key", EnvPrefix+"_PROVIDERS_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("providers.systran.api_key", EnvPrefix+"_PROVIDERS_SYSTRAN_API_KEY", "SYSTRAN_API_KEY")
	_ = v.BindEnv("providers.mymemory.email", EnvPrefix+"_PROVIDERS_MYMEMORY_EMAIL", "MYMEMORY_EMAIL")

	return v
}

// Load reads path, or autotrad.{yaml,toml,json} from the working directory
// and $HOME/.config/autotrad when path is empty, and decodes the merged
// settings. A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("autotrad")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "autotrad"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail late, deep inside
// the pipeline.
func (c *Config) Validate() error {
	var errs []error
	if _, err := locale.ParseMode(c.Locale.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := translator.ParseDownloadPolicy(c.DownloadPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("fuzzy_threshold must be in (0, 1], got %v", c.FuzzyThreshold))
	}
	if c.DetectThreshold < 0 || c.DetectThreshold > 1 {
		errs = append(errs, fmt.Errorf("detect_threshold must be in [0, 1], got %v", c.DetectThreshold))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.WarmConcurrency < 1 {
		errs = append(errs, fmt.Errorf("warm_concurrency must be at least 1, got %d", c.WarmConcurrency))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Policy builds the locale policy. Validate has already checked the mode.
func (c *Config) Policy() locale.Policy {
	mode, _ := locale.ParseMode(c.Locale.Mode)
	return locale.Policy{
		Mode:          mode,
		Tag:           c.Locale.Tag,
		Supported:     c.Locale.Supported,
		FallbackChain: c.Locale.Fallback,
	}
}

// Terms returns the configured glossary as a lookup table.
func (c *Config) Terms() map[string]string {
	terms := make(map[string]string, len(c.Glossary))
	for _, g := range c.Glossary {
		if g.Source != "" {
			terms[g.Source] = g.Target
		}
	}
	return terms
}

// DetectionLanguages lists the base languages the source detector chooses
// between: the fallback source plus every supported and fallback locale.
func (c *Config) DetectionLanguages() []string {
	var langs []string
	seen := make(map[string]bool)
	add := func(tags ...string) {
		for _, tag := range tags {
			base := strings.ToLower(locale.Base(tag))
			if base != "" && !seen[base] {
				seen[base] = true
				langs = append(langs, base)
			}
		}
	}
	add(c.DefaultSource)
	add(c.Locale.Supported...)
	add(c.Locale.Fallback...)
	return langs
}

// Provider returns the settings of the named provider, zero if absent.
func (c *Config) Provider(name string) translator.ServiceConfig {
	return c.Providers[name]
}
