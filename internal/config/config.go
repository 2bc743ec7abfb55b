package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks configuration problems that must abort a run.
var ErrConfig = errors.New("invalid configuration")

// Config captures the full configuration required to run the matcher.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Rendering  RenderingConfig  `yaml:"rendering"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Extract    ExtractConfig    `yaml:"extract"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Query      QueryConfig      `yaml:"query"`
	Worker     WorkerConfig     `yaml:"worker"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Storage    StorageConfig    `yaml:"storage"`
	Output     OutputConfig     `yaml:"output"`
	Cache      CacheConfig      `yaml:"cache"`
	Robots     RobotsConfig     `yaml:"robots"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Credential is one client id/secret pair for the news search API.
type Credential struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SearchConfig controls the news search provider and candidate filtering.
type SearchConfig struct {
	Endpoint          string            `yaml:"endpoint"`
	Display           int               `yaml:"display"`
	Timeout           Duration          `yaml:"timeout"`
	QuotaBackoff      Duration          `yaml:"quota_backoff"`
	QuotaRetries      int               `yaml:"quota_retries"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
	Credentials       []Credential      `yaml:"credentials"`
	TrustedDomains    []string          `yaml:"trusted_domains"`
	ExcludedDomains   []string          `yaml:"excluded_domains"`
	PublisherLists    map[string]string `yaml:"publisher_lists"`
	MinBodyChars      int               `yaml:"min_body_chars"`
}

// RenderingConfig controls the headless browser path.
type RenderingConfig struct {
	Enabled         bool     `yaml:"enabled"`
	PageLoadTimeout Duration `yaml:"page_load_timeout"`
	SettleDelay     Duration `yaml:"settle_delay"`
	UserAgent       string   `yaml:"user_agent"`
	DisableHeadless bool     `yaml:"disable_headless"`
	BlockImages     bool     `yaml:"block_images"`
	MaxBodyBytes    int64    `yaml:"max_body_bytes"`
}

// FetchConfig controls the static HTTP fallback.
type FetchConfig struct {
	Timeout        Duration          `yaml:"timeout"`
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	ProxyURL       string            `yaml:"proxy_url"`
	MaxBodyBytes   int64             `yaml:"max_body_bytes"`
	PerDomainDelay Duration          `yaml:"per_domain_delay"`
	RateLimit      RateLimitConfig   `yaml:"rate_limit_per_domain"`
}

// RateLimitConfig applies a token bucket per domain.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// SelectorRule maps a publisher host to the element holding its article body.
type SelectorRule struct {
	Domain   string `yaml:"domain"`
	Selector string `yaml:"selector"`
	MinChars int    `yaml:"min_chars"`
}

// ExtractConfig tunes body extraction. Empty rule lists use the built-in tables.
type ExtractConfig struct {
	Rules             []SelectorRule `yaml:"rules"`
	GenericSelectors  []string       `yaml:"generic_selectors"`
	GenericMinChars   int            `yaml:"generic_min_chars"`
	Readability       bool           `yaml:"readability"`
	ParagraphMinChars int            `yaml:"paragraph_min_chars"`
}

// ScoringConfig selects the similarity segmentation mode.
type ScoringConfig struct {
	SplitSentences bool `yaml:"split_sentences"`
}

// QueryConfig controls query generation.
type QueryConfig struct {
	MaxLength                int  `yaml:"max_length"`
	KeywordCount             int  `yaml:"keyword_count"`
	IncludeTrailingSentences bool `yaml:"include_trailing_sentences"`
}

// WorkerConfig controls per-partition concurrency and checkpoint cadence.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	FlushEvery  int `yaml:"flush_every"`
	// ParallelPartitions caps partitions run at once when one process runs them all.
	ParallelPartitions int `yaml:"parallel_partitions"`
}

// CheckpointConfig selects where partition state is persisted.
type CheckpointConfig struct {
	Backend       string   `yaml:"backend"`
	Directory     string   `yaml:"directory"`
	RunID         string   `yaml:"run_id"`
	KeyPrefix     string   `yaml:"key_prefix"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	TTL           Duration `yaml:"ttl"`
	S3Bucket      string   `yaml:"s3_bucket"`
}

// StorageConfig configures the S3 client used for s3:// paths and checkpoints.
type StorageConfig struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// OutputConfig controls how results are written.
type OutputConfig struct {
	Hyperlink bool `yaml:"hyperlink"`
	Stats     bool `yaml:"stats"`
}

// CacheConfig controls the process-wide article body cache.
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	Size    int      `yaml:"size"`
	TTL     Duration `yaml:"ttl"`
}

// RobotsConfig configures robots.txt handling on the static path.
type RobotsConfig struct {
	Respect   bool     `yaml:"respect"`
	Overrides []string `yaml:"overrides"`
	UserAgent string   `yaml:"user_agent"`
	CacheTTL  Duration `yaml:"cache_ttl"`
	CacheSize int      `yaml:"cache_size"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Search: SearchConfig{
			Endpoint:          "https://openapi.naver.com/v1/search/news.json",
			Display:           15,
			Timeout:           DurationFrom(10 * time.Second),
			QuotaBackoff:      DurationFrom(30 * time.Second),
			QuotaRetries:      3,
			RequestsPerSecond: 10,
			TrustedDomains: []string{
				"n.news.naver.com",
				"m.sports.naver.com",
				"m.entertain.naver.com",
			},
			MinBodyChars: 200,
		},
		Rendering: RenderingConfig{
			Enabled:         true,
			PageLoadTimeout: DurationFrom(15 * time.Second),
			SettleDelay:     DurationFrom(500 * time.Millisecond),
			UserAgent:       browserUserAgent,
			BlockImages:     true,
			MaxBodyBytes:    6 * 1024 * 1024,
		},
		Fetch: FetchConfig{
			Timeout:        DurationFrom(10 * time.Second),
			UserAgent:      browserUserAgent,
			Headers:        map[string]string{},
			MaxBodyBytes:   6 * 1024 * 1024,
			PerDomainDelay: DurationFrom(250 * time.Millisecond),
		},
		Extract: ExtractConfig{
			Readability:       true,
			ParagraphMinChars: 20,
		},
		Query: QueryConfig{
			MaxLength:    100,
			KeywordCount: 5,
		},
		Worker: WorkerConfig{
			Concurrency: 3,
			FlushEvery:  5,
		},
		Checkpoint: CheckpointConfig{
			Backend:   "file",
			Directory: "checkpoints",
			RunID:     "default",
			KeyPrefix: "newsmatch",
			TTL:       DurationFrom(7 * 24 * time.Hour),
		},
		Output: OutputConfig{
			Hyperlink: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    2048,
			TTL:     DurationFrom(6 * time.Hour),
		},
		Robots: RobotsConfig{
			Respect:   false,
			Overrides: []string{},
			UserAgent: browserUserAgent,
			CacheTTL:  DurationFrom(6 * time.Hour),
			CacheSize: 512,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read decodes and normalises configuration without validating it, for
// commands that never reach the search API.
func Read(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		fh, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: open config: %w", ErrConfig, err)
		}
		defer fh.Close()
		if err := decodeYAML(fh, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.prepare()
	return &cfg, nil
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.prepare()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) prepare() {
	c.normalise()
	if len(c.Search.Credentials) == 0 {
		c.Search.Credentials = CredentialsFromEnv()
	}
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode config: %w", ErrConfig, err)
	}
	return nil
}

// Validate enforces required invariants. Every failure wraps ErrConfig.
func (c Config) Validate() error {
	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(c.Search.Endpoint) == "" {
		fail("search.endpoint must be set")
	}
	if c.Search.Display <= 0 || c.Search.Display > 100 {
		fail("search.display must be in [1,100] (got %d)", c.Search.Display)
	}
	if len(c.Search.Credentials) == 0 {
		fail("at least one search credential must be configured")
	}
	for i, cred := range c.Search.Credentials {
		if cred.ClientID == "" || cred.ClientSecret == "" {
			fail("search.credentials[%d] is incomplete", i)
		}
	}
	if len(c.Search.TrustedDomains) == 0 {
		fail("search.trusted_domains must include at least one host")
	}
	if c.Search.QuotaRetries < 0 {
		fail("search.quota_retries must be >= 0 (got %d)", c.Search.QuotaRetries)
	}
	if c.Search.MinBodyChars < 0 {
		fail("search.min_body_chars must be >= 0 (got %d)", c.Search.MinBodyChars)
	}
	if c.Worker.Concurrency < 1 || c.Worker.Concurrency > 3 {
		fail("worker.concurrency must be in [1,3] (got %d)", c.Worker.Concurrency)
	}
	if c.Worker.FlushEvery <= 0 {
		fail("worker.flush_every must be > 0 (got %d)", c.Worker.FlushEvery)
	}
	if c.Worker.ParallelPartitions < 0 {
		fail("worker.parallel_partitions must be >= 0 (got %d)", c.Worker.ParallelPartitions)
	}
	if c.Query.MaxLength <= 0 {
		fail("query.max_length must be > 0 (got %d)", c.Query.MaxLength)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		fail("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Fetch.UserAgent) == "" {
		fail("fetch.user_agent must be set")
	}
	if rl := c.Fetch.RateLimit; rl.Requests < 0 {
		fail("fetch.rate_limit_per_domain.requests must be >= 0 (got %d)", rl.Requests)
	}
	for i, rule := range c.Extract.Rules {
		if rule.Domain == "" || rule.Selector == "" {
			fail("extract.rules[%d] needs both domain and selector", i)
		}
	}
	switch c.Checkpoint.Backend {
	case "none":
	case "file":
		if c.Checkpoint.Directory == "" {
			fail("checkpoint.directory must be set for the file backend")
		}
	case "redis":
		if c.Checkpoint.RedisAddr == "" {
			fail("checkpoint.redis_addr must be set for the redis backend")
		}
	case "s3":
		if c.Checkpoint.S3Bucket == "" {
			fail("checkpoint.s3_bucket must be set for the s3 backend")
		}
	default:
		fail("checkpoint.backend %q is not one of none, file, redis, s3", c.Checkpoint.Backend)
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		fail("cache.size must be > 0 when the cache is enabled (got %d)", c.Cache.Size)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, err)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfig, errors.Join(problems...))
}

func (c *Config) normalise() {
	c.Search.Endpoint = strings.TrimSpace(c.Search.Endpoint)
	c.Search.TrustedDomains = dedupeLower(c.Search.TrustedDomains)
	c.Search.ExcludedDomains = dedupeLower(c.Search.ExcludedDomains)
	if len(c.Search.PublisherLists) > 0 {
		lists := make(map[string]string, len(c.Search.PublisherLists))
		for host, path := range c.Search.PublisherLists {
			lists[strings.ToLower(strings.TrimSpace(host))] = strings.TrimSpace(path)
		}
		c.Search.PublisherLists = lists
	}
	for i := range c.Search.Credentials {
		c.Search.Credentials[i].ClientID = strings.TrimSpace(c.Search.Credentials[i].ClientID)
		c.Search.Credentials[i].ClientSecret = strings.TrimSpace(c.Search.Credentials[i].ClientSecret)
	}
	c.Rendering.UserAgent = strings.TrimSpace(c.Rendering.UserAgent)
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.Headers == nil {
		c.Fetch.Headers = make(map[string]string)
	}
	for i := range c.Extract.Rules {
		c.Extract.Rules[i].Domain = strings.ToLower(strings.TrimSpace(c.Extract.Rules[i].Domain))
		c.Extract.Rules[i].Selector = strings.TrimSpace(c.Extract.Rules[i].Selector)
	}
	c.Checkpoint.Backend = strings.ToLower(strings.TrimSpace(c.Checkpoint.Backend))
	if c.Checkpoint.Backend == "" {
		c.Checkpoint.Backend = "none"
	}
	c.Checkpoint.RunID = strings.TrimSpace(c.Checkpoint.RunID)
	if c.Checkpoint.RunID == "" {
		c.Checkpoint.RunID = "default"
	}
	c.Robots.UserAgent = strings.TrimSpace(c.Robots.UserAgent)
	if c.Robots.UserAgent == "" {
		c.Robots.UserAgent = c.Fetch.UserAgent
	}
	if len(c.Robots.Overrides) > 0 {
		c.Robots.Overrides = dedupeLower(c.Robots.Overrides)
	}
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}

// Enabled reports whether per-domain rate limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}

// ParseLevel maps a configured level name onto a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", name)
	}
}

// BuildLogger constructs the process logger writing to w.
func BuildLogger(cfg LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}
