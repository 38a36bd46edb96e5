package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"dugout-pulse/internal/logging"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/statcalc"
)

// Storage backends for baseline snapshots.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Windows   WindowsConfig   `mapstructure:"windows"`
	Roster    RosterConfig    `mapstructure:"roster"`
	MLB       MLBConfig       `mapstructure:"mlb"`
	NCAA      NCAAConfig      `mapstructure:"ncaa"`
	Output    OutputConfig    `mapstructure:"output"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Server    ServerConfig    `mapstructure:"server"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Timezone    string `mapstructure:"timezone"`
}

// StorageConfig selects where baseline snapshots and the results archive live.
type StorageConfig struct {
	Backend      string `mapstructure:"backend"`
	SnapshotPath string `mapstructure:"snapshot_path"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxStaleDays int    `mapstructure:"max_stale_days"`
	Archive      bool   `mapstructure:"archive"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs when the daemon runs a pass.
type SchedulerConfig struct {
	Cron            string        `mapstructure:"cron"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	RunTimeout      time.Duration `mapstructure:"run_timeout"`
}

// GateConfig is the minimum sample for one window. MinIP uses innings
// notation ("6.1" is six and one third innings).
type GateConfig struct {
	MinPA int    `mapstructure:"min_pa"`
	MinIP string `mapstructure:"min_ip"`
}

// MinOuts converts MinIP to outs.
func (g GateConfig) MinOuts() int {
	return statcalc.OutsFromInnings(g.MinIP)
}

// WindowsConfig controls the aggregation pass.
type WindowsConfig struct {
	// SeasonStart is YYYY-MM-DD. Empty means Feb 1 of the season in progress.
	SeasonStart string     `mapstructure:"season_start"`
	Workers     int        `mapstructure:"workers"`
	Week        GateConfig `mapstructure:"week"`
	Month       GateConfig `mapstructure:"month"`
	Season      GateConfig `mapstructure:"season"`
}

// RosterConfig points at the published roster sheets.
type RosterConfig struct {
	ClientsURL     string        `mapstructure:"clients_url"`
	RecruitsURL    string        `mapstructure:"recruits_url"`
	IncludedLevels []string      `mapstructure:"included_levels"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MLBConfig captures MLB Stats API connectivity.
type MLBConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	SportIDs       string        `mapstructure:"sport_ids"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	RPS            float64       `mapstructure:"rps"`
	Burst          int           `mapstructure:"burst"`
}

// NCAAConfig lists the cumulative sources and their order.
type NCAAConfig struct {
	Sources        []string            `mapstructure:"sources"`
	TeamSources    map[string][]string `mapstructure:"team_sources"`
	SidearmURLs    map[string]string   `mapstructure:"sidearm_urls"`
	FeedFile       string              `mapstructure:"feed_file"`
	RequestTimeout time.Duration       `mapstructure:"request_timeout"`
	UserAgent      string              `mapstructure:"user_agent"`
	RPS            float64             `mapstructure:"rps"`
	Burst          int                 `mapstructure:"burst"`
}

// OutputConfig sets where window feeds are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// AlertingConfig defines the Slack digest.
type AlertingConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Slack   SlackConfig `mapstructure:"slack"`
}

// SlackConfig describes the incoming webhook.
type SlackConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// MetricsConfig controls the node-exporter textfile written after each run.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path"`
}

// ServerConfig configures the feed server.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxBars int `mapstructure:"max_bars"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dugout-pulse")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.timezone", "America/New_York")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.snapshot_path", "data/ncaa_baselines.json")
	v.SetDefault("storage.sqlite_path", "data/pulse.db")
	v.SetDefault("storage.max_stale_days", 3)
	v.SetDefault("storage.archive", false)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("scheduler.cron", "30 6 * * *")
	v.SetDefault("scheduler.run_on_start", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x70756c73))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_timeout", "30m")

	v.SetDefault("windows.season_start", "")
	v.SetDefault("windows.workers", 4)
	v.SetDefault("windows.week.min_pa", 5)
	v.SetDefault("windows.week.min_ip", "2.0")
	v.SetDefault("windows.month.min_pa", 20)
	v.SetDefault("windows.month.min_ip", "6.0")
	v.SetDefault("windows.season.min_pa", 30)
	v.SetDefault("windows.season.min_ip", "10.0")

	v.SetDefault("roster.included_levels", []string{string(model.LevelPro), string(model.LevelNCAA)})
	v.SetDefault("roster.request_timeout", "20s")
	v.SetDefault("roster.user_agent", "dugout-pulse/1.0")

	v.SetDefault("mlb.base_url", "https://statsapi.mlb.com")
	v.SetDefault("mlb.sport_ids", "1,11,12,13,14")
	v.SetDefault("mlb.request_timeout", "15s")
	v.SetDefault("mlb.user_agent", "dugout-pulse/1.0")
	v.SetDefault("mlb.rps", 5.0)
	v.SetDefault("mlb.burst", 2)

	v.SetDefault("ncaa.sources", []string{"sidearm", "feed_file"})
	v.SetDefault("ncaa.request_timeout", "15s")
	v.SetDefault("ncaa.user_agent", "dugout-pulse/1.0")
	v.SetDefault("ncaa.rps", 2.0)
	v.SetDefault("ncaa.burst", 1)

	v.SetDefault("output.dir", "data")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.slack.timeout", "10s")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("export.max_bars", 25)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.SnapshotPath == "" {
			return fmt.Errorf("storage.snapshot_path is required for the file backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of file, sqlite, postgres; got %q", c.Storage.Backend)
	}
	if c.Storage.Archive && c.Storage.Backend == BackendFile {
		return fmt.Errorf("storage.archive needs the sqlite or postgres backend")
	}
	if c.Storage.MaxStaleDays < 0 {
		return fmt.Errorf("storage.max_stale_days cannot be negative")
	}

	if c.Windows.Workers <= 0 {
		return fmt.Errorf("windows.workers must be greater than zero")
	}
	if c.Windows.SeasonStart != "" {
		if _, err := model.ParseDay(c.Windows.SeasonStart); err != nil {
			return fmt.Errorf("windows.season_start: %w", err)
		}
	}
	for name, gate := range map[string]GateConfig{"week": c.Windows.Week, "month": c.Windows.Month, "season": c.Windows.Season} {
		if gate.MinPA < 0 {
			return fmt.Errorf("windows.%s.min_pa cannot be negative", name)
		}
		if _, err := statcalc.ParseOuts(gate.MinIP); err != nil {
			return fmt.Errorf("windows.%s.min_ip: %w", name, err)
		}
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	if _, err := cron.ParseStandard(c.Scheduler.Cron); err != nil {
		return fmt.Errorf("scheduler.cron: %w", err)
	}
	if c.Scheduler.RunTimeout <= 0 {
		return fmt.Errorf("scheduler.run_timeout must be greater than zero")
	}

	for _, level := range c.Roster.IncludedLevels {
		if !model.Level(level).Known() {
			return fmt.Errorf("roster.included_levels: unknown level %q", level)
		}
	}
	for _, src := range c.NCAA.Sources {
		if !KnownSource(src) {
			return fmt.Errorf("ncaa.sources: unknown source %q", src)
		}
	}
	for team, sources := range c.NCAA.TeamSources {
		for _, src := range sources {
			if !KnownSource(src) {
				return fmt.Errorf("ncaa.team_sources.%s: unknown source %q", team, src)
			}
		}
	}

	if c.Alerting.Enabled && c.Alerting.Slack.WebhookURL == "" {
		return fmt.Errorf("alerting.slack.webhook_url is required when alerting is enabled")
	}
	if c.Export.MaxBars <= 0 {
		return fmt.Errorf("export.max_bars must be greater than zero")
	}
	return nil
}

// KnownSource reports whether name is a cumulative source the app can build.
func KnownSource(name string) bool {
	return name == "sidearm" || name == "feed_file"
}

// Location returns the configured timezone; Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResolveMaxBars returns either the CLI override or config default.
func (c *Config) ResolveMaxBars(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxBars
}
