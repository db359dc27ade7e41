package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Specification struct {
	Provider       string                 `yaml:"provider" envconfig:"PROVIDER_TYPE"`
	OpenAIKey      string                 `yaml:"openaiApiKey" envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL  string                 `yaml:"openaiBaseURL" envconfig:"OPENAI_BASE_URL"`
	GeminiKey      string                 `yaml:"geminiApiKey" envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL  string                 `yaml:"geminiBaseURL" envconfig:"GEMINI_BASE_URL"`
	SkipTLSVerify  bool                   `yaml:"skipTLSVerify" envconfig:"SKIP_TLS_VERIFY"`
	CORSOrigins    string                 `yaml:"corsOrigin" envconfig:"CORS_ORIGIN"`
	RateLimit      RateLimitSpecification `yaml:"rateLimit" ignored:"true"`
	Port           int                    `yaml:"port" envconfig:"PORT"`
	LogLevel       string                 `yaml:"logLevel" envconfig:"LOG_LEVEL"`
	KnowledgePath  string                 `yaml:"knowledgePath" envconfig:"KNOWLEDGE_PATH"`
	Database       string                 `yaml:"database" envconfig:"DB_URL"`
	RequestTimeout time.Duration          `yaml:"requestTimeout" envconfig:"REQUEST_TIMEOUT"`
	MockDelay      time.Duration          `yaml:"mockDelay" envconfig:"MOCK_DELAY"`
	TrustProxy     bool                   `yaml:"trustProxy" envconfig:"TRUST_PROXY"`

	flags *pflag.FlagSet `ignored:"true"`
}

// RateLimitSpecification is processed on its own so that its variables keep
// their flat names (RATE_LIMIT_MAX rather than RATE_LIMIT_RATE_LIMIT_MAX).
type RateLimitSpecification struct {
	WindowMS int `yaml:"windowMs" envconfig:"RATE_LIMIT_WINDOW_MS"`
	Max      int `yaml:"max" envconfig:"RATE_LIMIT_MAX"`
}

// Window returns the rate-limit window as a duration.
func (r RateLimitSpecification) Window() time.Duration {
	return time.Duration(r.WindowMS) * time.Millisecond
}

const envPrefix = "UNIQA"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// AllowedOrigins splits CORSOrigins on commas. An empty result allows every
// origin.
func (s Specification) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(s.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load => defaults < YAML < .env < env < flags.
// configPath may be ""; if so we auto-discover. args excludes the program name.
func Load(configPath string, fs *pflag.FlagSet, args []string) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		path = configFromArgs(args)
	}
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/uniqa.yaml",
				"config/config.yaml",
				"./uniqa.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// .env never overrides the real environment
	if err := loadDotEnv(); err != nil {
		return Specification{}, err
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}
	if err := envconfig.Process(envPrefix, &cfg.RateLimit); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(args); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if err := cfg.Validate(); err != nil {
		return Specification{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot run a server.
func (s Specification) Validate() error {
	if s.RateLimit.WindowMS <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if s.RateLimit.Max <= 0 {
		return errors.New("rate limit max must be positive")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if _, err := zerolog.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if s.RequestTimeout < 0 || s.MockDelay < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func loadDotEnv() error {
	path := os.Getenv(envPrefix + "_ENV_FILE")
	if path == "" {
		path = ".env"
		if !fileExists(path) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

// configFromArgs finds --config before the flag set is parsed so that
// discovery can use it.
func configFromArgs(args []string) string {
	for i, a := range args {
		if a == "--config" {
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				return args[i+1]
			}
		} else if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return ""
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	fs.String("provider", c.Provider, "Provider model (gemini-2.5-flash, gemini-2.5-pro, gpt-4.1-mini, gpt-4.1-nano, gpt-5.2-nano, mock-server-response)")
	fs.String("openai-api-key", c.OpenAIKey, "OpenAI API key")
	fs.String("openai-base-url", c.OpenAIBaseURL, "OpenAI-compatible base URL")
	fs.String("gemini-api-key", c.GeminiKey, "Gemini API key")
	fs.String("gemini-base-url", c.GeminiBaseURL, "Gemini API base URL")
	fs.Bool("skip-tls-verify", c.SkipTLSVerify, "Skip TLS verification for vendor calls")

	fs.String("cors-origin", c.CORSOrigins, "Comma-separated allowed origins (empty allows all)")
	fs.Int("rate-limit-window-ms", c.RateLimit.WindowMS, "Rate limit window in milliseconds")
	fs.Int("rate-limit-max", c.RateLimit.Max, "Max requests per client per window")
	fs.Bool("trust-proxy", c.TrustProxy, "Derive client IP from X-Forwarded-For / X-Real-IP. Only enable behind a proxy that overwrites these headers: clients can otherwise pick their own rate-limit key")

	fs.Int("port", c.Port, "API server port")
	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("knowledge-path", c.KnowledgePath, "Knowledge file or directory (empty uses the built-in base)")
	fs.String("db-url", c.Database, "Database URL (DSN)")
	fs.Duration("request-timeout", c.RequestTimeout, "Per-request provider timeout")
	fs.Duration("mock-delay", c.MockDelay, "Mock provider latency")

	// Used later for usage/help
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}
	setDur := func(name string, dst *time.Duration) {
		if fs.Changed(name) {
			v, _ := fs.GetDuration(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	setStr("provider", &c.Provider)
	setStr("openai-api-key", &c.OpenAIKey)
	setStr("openai-base-url", &c.OpenAIBaseURL)
	setStr("gemini-api-key", &c.GeminiKey)
	setStr("gemini-base-url", &c.GeminiBaseURL)
	setBool("skip-tls-verify", &c.SkipTLSVerify)

	setStr("cors-origin", &c.CORSOrigins)
	setInt("rate-limit-window-ms", &c.RateLimit.WindowMS)
	setInt("rate-limit-max", &c.RateLimit.Max)
	setBool("trust-proxy", &c.TrustProxy)

	setInt("port", &c.Port)
	setStr("log-level", &c.LogLevel)
	setStr("knowledge-path", &c.KnowledgePath)
	setStr("db-url", &c.Database)
	setDur("request-timeout", &c.RequestTimeout)
	setDur("mock-delay", &c.MockDelay)
}

func setDefaults(c *Specification) {
	c.Provider = "gemini-2.5-flash"
	c.LogLevel = "info"
	c.Port = 5000
	c.RateLimit.WindowMS = 60000
	c.RateLimit.Max = 60
	c.RequestTimeout = 60 * time.Second
	c.MockDelay = time.Second
	c.TrustProxy = true
}
