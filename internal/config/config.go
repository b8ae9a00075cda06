package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "BLOG"

// Config holds every runtime setting of the server.
type Config struct {
	ListenAddr string
	RedisURL   string

	GitHub  GitHub
	Content Content
	Log     Log

	RequestTimeout      time.Duration
	TransportTimeout    time.Duration
	DialTimeout         time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

// GitHub identifies the repository articles are read from.
type GitHub struct {
	Token   string
	Owner   string
	Repo    string
	Ref     string
	BaseURL string
}

// Content controls the article cache.
type Content struct {
	Prefix       string
	Extension    string
	CacheTTL     time.Duration
	DedupeMisses bool
}

// Log selects the slog handler.
type Log struct {
	Level  string
	Format string
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("blog", pflag.ContinueOnError)

	fs.String("config", "", "path to a config file (yaml, json or toml)")
	fs.String("listen_addr", ":8080", "HTTP listen address")
	fs.String("redis_url", "", "redis connection URL; empty uses an in-process cache")

	fs.String("github.token", "", "GitHub API token")
	fs.String("github.owner", "sergiodxa", "owner of the content repository")
	fs.String("github.repo", "content", "content repository name")
	fs.String("github.ref", "", "branch, tag or commit to read from")
	fs.String("github.base_url", "", "GitHub API base URL override")

	fs.String("content.prefix", "articles", "directory holding articles in the repository")
	fs.String("content.extension", ".md", "article file extension")
	fs.Duration("content.ttl", 5*time.Minute, "cache expiration window for fetched articles")
	fs.Bool("content.dedupe_misses", false, "collapse concurrent cache misses for the same article")

	fs.Duration("request_timeout", 10*time.Second, "per-request timeout")
	fs.Duration("transport_timeout", 15*time.Second, "outbound HTTP client timeout")
	fs.Duration("dial_timeout", 3*time.Second, "outbound dial and TLS handshake timeout")
	fs.Duration("idle_conn_timeout", 90*time.Second, "idle keep-alive timeout")
	fs.Int("max_idle_conns", 64, "max idle outbound connections")
	fs.Int("max_idle_conns_per_host", 16, "max idle outbound connections per host")

	fs.String("log.level", "info", "log level (debug, info, warn, error)")
	fs.String("log.format", "json", "log format (json, text)")

	return fs
}

// Load resolves configuration from flags, BLOG_* environment variables and an
// optional config file, in that order of precedence.
func Load(args []string) (Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		ListenAddr: v.GetString("listen_addr"),
		RedisURL:   strings.TrimSpace(v.GetString("redis_url")),
		GitHub: GitHub{
			Token:   v.GetString("github.token"),
			Owner:   v.GetString("github.owner"),
			Repo:    v.GetString("github.repo"),
			Ref:     v.GetString("github.ref"),
			BaseURL: v.GetString("github.base_url"),
		},
		Content: Content{
			Prefix:       strings.Trim(v.GetString("content.prefix"), "/"),
			Extension:    v.GetString("content.extension"),
			CacheTTL:     v.GetDuration("content.ttl"),
			DedupeMisses: v.GetBool("content.dedupe_misses"),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		RequestTimeout:      v.GetDuration("request_timeout"),
		TransportTimeout:    v.GetDuration("transport_timeout"),
		DialTimeout:         v.GetDuration("dial_timeout"),
		IdleConnTimeout:     v.GetDuration("idle_conn_timeout"),
		MaxIdleConns:        v.GetInt("max_idle_conns"),
		MaxIdleConnsPerHost: v.GetInt("max_idle_conns_per_host"),
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}
	if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
		errs = append(errs, errors.New("github.owner and github.repo are required"))
	}
	if c.GitHub.BaseURL != "" {
		if err := checkURL(c.GitHub.BaseURL, "http", "https"); err != nil {
			errs = append(errs, fmt.Errorf("github.base_url: %w", err))
		}
	}
	if c.RedisURL != "" {
		if err := checkURL(c.RedisURL, "redis", "rediss", "unix"); err != nil {
			errs = append(errs, fmt.Errorf("redis_url: %w", err))
		}
	}
	if c.Content.CacheTTL <= 0 {
		errs = append(errs, errors.New("content.ttl must be positive"))
	}
	if c.RequestTimeout <= 0 || c.TransportTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout and transport_timeout must be positive"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}

	return errors.Join(errs...)
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%q must use one of the schemes %s", raw, strings.Join(schemes, ", "))
}
