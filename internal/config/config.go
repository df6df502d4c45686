// Package config loads and validates calfire-history configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/calfire-history/internal/logging"
)

// Missing-table policies for community pages.
const (
	OnMissingAbort = "abort"
	OnMissingSkip  = "skip"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	DataDir    string           `mapstructure:"data_dir"`
	Logging    logging.Config   `mapstructure:"logging"`
	Government GovernmentConfig `mapstructure:"government"`
	Community  CommunityConfig  `mapstructure:"community"`
	Refresh    RefreshConfig    `mapstructure:"refresh"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Sinks      SinksConfig      `mapstructure:"sinks"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// GovernmentConfig drives the paged, JavaScript-rendered incident list.
type GovernmentConfig struct {
	YearURLTemplate  string `mapstructure:"year_url_template"`
	ActiveURL        string `mapstructure:"active_url"`
	RootSelector     string `mapstructure:"root_selector"`
	PageButtonXPath  string `mapstructure:"page_button_xpath"`
	CellXPath        string `mapstructure:"cell_xpath"`
	FirstYear        int    `mapstructure:"first_year"`
	RenderTimeoutSec int    `mapstructure:"render_timeout_seconds"`
	ElementRetries   int    `mapstructure:"element_retries"`
	ElementBackoffMs int    `mapstructure:"element_backoff_ms"`
	MaxPages         int    `mapstructure:"max_pages"`
	ShowBrowser      bool   `mapstructure:"show_browser"`
	UserAgent        string `mapstructure:"user_agent"`
	ChromePath       string `mapstructure:"chrome_path"`
}

// CommunityConfig drives the static encyclopedia tables.
type CommunityConfig struct {
	URLTemplate    string `mapstructure:"url_template"`
	FirstYear      int    `mapstructure:"first_year"`
	OnMissingTable string `mapstructure:"on_missing_table"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// RefreshConfig holds the snapshot age thresholds, in calendar days.
type RefreshConfig struct {
	ReuseDays int `mapstructure:"reuse_days"`
	PatchDays int `mapstructure:"patch_days"`
}

// FetchConfig bounds how hard the pipeline hits upstream hosts.
type FetchConfig struct {
	Concurrency int     `mapstructure:"concurrency"`
	HostRPS     float64 `mapstructure:"host_rps"`
	HostBurst   int     `mapstructure:"host_burst"`
}

// SinksConfig enables optional snapshot publishers. Empty values disable them.
type SinksConfig struct {
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
	PubSubProject string `mapstructure:"pubsub_project"`
	PubSubTopic   string `mapstructure:"pubsub_topic"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
}

// MetricsConfig points at an optional Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CALFIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")

	v.SetDefault("government.year_url_template", "https://www.fire.ca.gov/incidents/{year}/")
	v.SetDefault("government.active_url", "https://www.fire.ca.gov/incidents/")
	v.SetDefault("government.root_selector", "#incidentListTable")
	v.SetDefault("government.page_button_xpath", `//*[@id="incidentListTable"]/div/nav/ul/li[%d]/a`)
	v.SetDefault("government.cell_xpath", `//*[@id="incidentListTable"]/div/div/div[%d]/div[%d]`)
	v.SetDefault("government.first_year", 2013)
	v.SetDefault("government.render_timeout_seconds", 45)
	v.SetDefault("government.element_retries", 3)
	v.SetDefault("government.element_backoff_ms", 250)
	v.SetDefault("government.max_pages", 200)
	v.SetDefault("government.show_browser", false)
	v.SetDefault("government.user_agent", "calfire-history/0.1")

	v.SetDefault("community.url_template", "https://en.wikipedia.org/wiki/{year}_California_wildfires")
	v.SetDefault("community.first_year", 2002)
	v.SetDefault("community.on_missing_table", OnMissingAbort)
	v.SetDefault("community.user_agent", "calfire-history/0.1")
	v.SetDefault("community.timeout_seconds", 30)
	v.SetDefault("community.max_retries", 2)
	v.SetDefault("community.respect_robots", true)

	v.SetDefault("refresh.reuse_days", 10)
	v.SetDefault("refresh.patch_days", 30)

	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.host_rps", 1.0)
	v.SetDefault("fetch.host_burst", 1)

	v.SetDefault("sinks.gcs_prefix", "calfire")
	v.SetDefault("sinks.postgres_table", "calfire_incidents")

	v.SetDefault("metrics.job", "calfire_history")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if !strings.Contains(c.Government.YearURLTemplate, "{year}") {
		return fmt.Errorf("government.year_url_template must contain {year}")
	}
	if !strings.Contains(c.Community.URLTemplate, "{year}") {
		return fmt.Errorf("community.url_template must contain {year}")
	}
	if c.Government.RootSelector == "" {
		return fmt.Errorf("government.root_selector must be set")
	}
	if strings.Count(c.Government.PageButtonXPath, "%d") != 1 {
		return fmt.Errorf("government.page_button_xpath needs exactly one %%d")
	}
	if strings.Count(c.Government.CellXPath, "%d") != 2 {
		return fmt.Errorf("government.cell_xpath needs exactly two %%d")
	}
	if c.Community.FirstYear >= c.Government.FirstYear {
		return fmt.Errorf("community.first_year must be before government.first_year")
	}
	if c.Government.RenderTimeoutSec <= 0 {
		return fmt.Errorf("government.render_timeout_seconds must be > 0")
	}
	if c.Government.MaxPages < 0 {
		return fmt.Errorf("government.max_pages must be >= 0")
	}
	switch c.Community.OnMissingTable {
	case OnMissingAbort, OnMissingSkip:
	default:
		return fmt.Errorf("community.on_missing_table must be %q or %q", OnMissingAbort, OnMissingSkip)
	}
	if c.Community.TimeoutSeconds <= 0 {
		return fmt.Errorf("community.timeout_seconds must be > 0")
	}
	if c.Refresh.ReuseDays <= 0 || c.Refresh.PatchDays <= c.Refresh.ReuseDays {
		return fmt.Errorf("refresh thresholds must satisfy 0 < reuse_days < patch_days")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if (c.Sinks.PubSubProject == "") != (c.Sinks.PubSubTopic == "") {
		return fmt.Errorf("sinks.pubsub_project and sinks.pubsub_topic must be set together")
	}
	return nil
}

// RenderTimeout converts the configured seconds to a duration.
func (g GovernmentConfig) RenderTimeout() time.Duration {
	return time.Duration(g.RenderTimeoutSec) * time.Second
}

// ElementBackoff converts the configured milliseconds to a duration.
func (g GovernmentConfig) ElementBackoff() time.Duration {
	return time.Duration(g.ElementBackoffMs) * time.Millisecond
}

// Timeout converts the configured seconds to a duration.
func (c CommunityConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
