package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures everything required to run the directory crawl engine.
type Config struct {
	Sites      []SiteConfig     `yaml:"sites"`
	HTTP       HTTPConfig       `yaml:"http"`
	Politeness PolitenessConfig `yaml:"politeness"`
	Worker     WorkerConfig     `yaml:"worker"`
	Pagination PaginationConfig `yaml:"pagination"`
	Robots     RobotsConfig     `yaml:"robots"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig enables a registered site adapter and optionally narrows its
// search axes for this run.
type SiteConfig struct {
	Name string              `yaml:"name"`
	Axes map[string][]string `yaml:"axes"`
}

// HTTPConfig tunes the per-session HTTP layer.
type HTTPConfig struct {
	RequestTimeout Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	MaxRedirects   int      `yaml:"max_redirects"`
	ProxyURL       string   `yaml:"proxy_url"`
}

// PolitenessConfig controls pacing, backoff, and client identity rotation.
// Scope decides whether one rate budget is shared by the whole run or each
// work unit carries its own; sites that track blocking per client identity
// pair naturally with "unit".
type PolitenessConfig struct {
	FloorDelay      Duration        `yaml:"floor_delay"`
	CapDelay        Duration        `yaml:"cap_delay"`
	Jitter          Duration        `yaml:"jitter"`
	MaxBlockRetries int             `yaml:"max_block_retries"`
	RotateOnBlock   bool            `yaml:"rotate_on_block"`
	Scope           string          `yaml:"scope"`
	Identities      []string        `yaml:"identities"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig applies an additional token bucket on top of the fixed
// inter-request delay.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// WorkerConfig bounds how many work units run concurrently. Requests within
// one unit are always strictly sequential regardless of this setting.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
	MaxRetries  int `yaml:"max_retries"`
}

// PaginationConfig tunes the driver's shared stop conditions.
type PaginationConfig struct {
	EmptyPageThreshold int `yaml:"empty_page_threshold"`
	MaxPages           int `yaml:"max_pages"`
}

// RobotsConfig configures robots.txt handling for sites that opt in.
type RobotsConfig struct {
	Respect   bool     `yaml:"respect"`
	Overrides []string `yaml:"overrides"`
	UserAgent string   `yaml:"user_agent"`
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// StoreConfig selects where normalized records are persisted.
type StoreConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	JSONLPath  string `yaml:"jsonl_path"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			RequestTimeout: DurationFrom(20 * time.Second),
			MaxBodyBytes:   6 * 1024 * 1024,
			MaxRedirects:   5,
		},
		Politeness: PolitenessConfig{
			FloorDelay:      DurationFrom(500 * time.Millisecond),
			CapDelay:        DurationFrom(60 * time.Second),
			Jitter:          DurationFrom(250 * time.Millisecond),
			MaxBlockRetries: 3,
			RotateOnBlock:   true,
			Scope:           "run",
			Identities: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
				"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			},
		},
		Worker: WorkerConfig{
			Concurrency: 4,
			QueueSize:   64,
			MaxRetries:  3,
		},
		Pagination: PaginationConfig{
			EmptyPageThreshold: 2,
			MaxPages:           500,
		},
		Robots: RobotsConfig{
			Respect:   true,
			Overrides: []string{},
			UserAgent: "mortar-directory-bot/1.0",
			CacheTTL:  DurationFrom(6 * time.Hour),
		},
		Store: StoreConfig{
			SQLitePath: "mortar.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate enforces required invariants for the engine configuration.
func (c Config) Validate() error {
	for i := range c.Sites {
		if c.Sites[i].Name == "" {
			return fmt.Errorf("sites[%d] has empty name", i)
		}
	}
	if c.HTTP.RequestTimeout.Duration <= 0 {
		return errors.New("http.request_timeout must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0 (got %d)", c.HTTP.MaxBodyBytes)
	}
	if c.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("http.max_redirects must be >= 0 (got %d)", c.HTTP.MaxRedirects)
	}
	if c.Politeness.FloorDelay.Duration < 0 {
		return errors.New("politeness.floor_delay must be >= 0")
	}
	if c.Politeness.CapDelay.Duration < c.Politeness.FloorDelay.Duration {
		return errors.New("politeness.cap_delay must be >= politeness.floor_delay")
	}
	if c.Politeness.MaxBlockRetries < 0 {
		return fmt.Errorf("politeness.max_block_retries must be >= 0 (got %d)", c.Politeness.MaxBlockRetries)
	}
	switch c.Politeness.Scope {
	case "run", "unit":
	default:
		return fmt.Errorf("politeness.scope must be \"run\" or \"unit\" (got %q)", c.Politeness.Scope)
	}
	if len(c.Politeness.Identities) == 0 {
		return errors.New("politeness.identities must include at least one user agent")
	}
	if rl := c.Politeness.RateLimit; rl.Requests < 0 {
		return fmt.Errorf("politeness.rate_limit.requests must be >= 0 (got %d)", rl.Requests)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0 (got %d)", c.Worker.Concurrency)
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be > 0 (got %d)", c.Worker.QueueSize)
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries must be >= 0 (got %d)", c.Worker.MaxRetries)
	}
	if c.Pagination.EmptyPageThreshold <= 0 {
		return fmt.Errorf("pagination.empty_page_threshold must be > 0 (got %d)", c.Pagination.EmptyPageThreshold)
	}
	if c.Pagination.MaxPages <= 0 {
		return fmt.Errorf("pagination.max_pages must be > 0 (got %d)", c.Pagination.MaxPages)
	}
	if c.Robots.Respect && strings.TrimSpace(c.Robots.UserAgent) == "" {
		return errors.New("robots.user_agent must be set")
	}
	return nil
}

func (c *Config) normalise() {
	for i := range c.Sites {
		c.Sites[i].Name = strings.ToLower(strings.TrimSpace(c.Sites[i].Name))
	}
	c.Politeness.Scope = strings.ToLower(strings.TrimSpace(c.Politeness.Scope))
	if c.Politeness.Scope == "" {
		c.Politeness.Scope = "run"
	}
	trimmed := c.Politeness.Identities[:0]
	for _, id := range c.Politeness.Identities {
		if id = strings.TrimSpace(id); id != "" {
			trimmed = append(trimmed, id)
		}
	}
	c.Politeness.Identities = trimmed
	c.Robots.UserAgent = strings.TrimSpace(c.Robots.UserAgent)
	c.Store.SQLitePath = strings.TrimSpace(c.Store.SQLitePath)
	c.Store.JSONLPath = strings.TrimSpace(c.Store.JSONLPath)
}
