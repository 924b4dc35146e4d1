// Package config loads the reminder service configuration from built-in
// defaults, an optional YAML file and REMINDERS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "REMINDERS_"

// PathEnvVar names the environment variable holding the YAML config file path.
const PathEnvVar = "REMINDERS_CONFIG"

// Ledger source names.
const (
	SourceBigQuery = "bigquery"
	SourceSheets   = "sheets"
	SourceNotion   = "notion"
)

// Interaction tracker backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the full service configuration.
type Config struct {
	LogLevel string `koanf:"log_level"`
	Timezone string `koanf:"timezone"`
	DryRun   bool   `koanf:"dry_run"`

	BigQuery     BigQueryConfig     `koanf:"bigquery"`
	Ledger       LedgerConfig       `koanf:"ledger"`
	Sheets       SheetsConfig       `koanf:"sheets"`
	Notion       NotionConfig       `koanf:"notion"`
	Redis        RedisConfig        `koanf:"redis"`
	Plans        PlansConfig        `koanf:"plans"`
	Interactions InteractionsConfig `koanf:"interactions"`
	WhatsApp     WhatsAppConfig     `koanf:"whatsapp"`
	Archive      ArchiveConfig      `koanf:"archive"`
	Server       ServerConfig       `koanf:"server"`
	Schedule     ScheduleConfig     `koanf:"schedule"`
	Jobs         JobsConfig         `koanf:"jobs"`
}

type BigQueryConfig struct {
	ProjectID string `koanf:"project_id"`
	DatasetID string `koanf:"dataset_id"`
}

// LedgerConfig selects the ledger source and the retry policy of the read.
type LedgerConfig struct {
	Source          string        `koanf:"source"`
	RetryAttempts   int           `koanf:"retry_attempts"`
	RetryInitial    time.Duration `koanf:"retry_initial"`
	RetryMaxBackoff time.Duration `koanf:"retry_max_backoff"`
}

type SheetsConfig struct {
	SpreadsheetID   string `koanf:"spreadsheet_id"`
	Range           string `koanf:"range"`
	CredentialsFile string `koanf:"credentials_file"`
}

type NotionConfig struct {
	Token      string `koanf:"token"`
	DatabaseID string `koanf:"database_id"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// PlansConfig controls the plan activation cache. A zero CacheTTL disables caching.
type PlansConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type InteractionsConfig struct {
	Backend string        `koanf:"backend"`
	Window  time.Duration `koanf:"window"`
}

type WhatsAppConfig struct {
	BaseURL          string        `koanf:"base_url"`
	APIVersion       string        `koanf:"api_version"`
	PhoneNumberID    string        `koanf:"phone_number_id"`
	AccessToken      string        `koanf:"access_token"`
	TemplateName     string        `koanf:"template_name"`
	TemplateLanguage string        `koanf:"template_language"`
	Timeout          time.Duration `koanf:"timeout"`
	RatePerSecond    float64       `koanf:"rate_per_second"`
	Burst            int           `koanf:"burst"`
	VerifyToken      string        `koanf:"verify_token"`
}

// ArchiveConfig names the GCS bucket for run archives. Empty disables archiving.
type ArchiveConfig struct {
	Bucket string `koanf:"bucket"`
}

type ServerConfig struct {
	Port    int `koanf:"port"`
	Workers int `koanf:"workers"`
}

// ScheduleConfig sets the local time (HH:MM, in Timezone) of the daily worker run.
type ScheduleConfig struct {
	DailyAt string `koanf:"daily_at"`
}

// JobsConfig controls how queued runs are retried. Only runs that could not
// read the ledger, and so sent nothing, are retried.
type JobsConfig struct {
	MaxRetries int           `koanf:"max_retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

func defaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Timezone: "America/Sao_Paulo",
		BigQuery: BigQueryConfig{
			DatasetID: "finance",
		},
		Ledger: LedgerConfig{
			Source:          SourceBigQuery,
			RetryAttempts:   3,
			RetryInitial:    500 * time.Millisecond,
			RetryMaxBackoff: 5 * time.Second,
		},
		Sheets: SheetsConfig{
			Range: "Lancamentos!A:K",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Plans: PlansConfig{
			CacheTTL: 10 * time.Minute,
		},
		Interactions: InteractionsConfig{
			Backend: BackendRedis,
			Window:  24 * time.Hour,
		},
		WhatsApp: WhatsAppConfig{
			BaseURL:          "https://graph.facebook.com",
			APIVersion:       "v21.0",
			TemplateName:     "lembrete_vencimentos",
			TemplateLanguage: "pt_BR",
			Timeout:          15 * time.Second,
			RatePerSecond:    10,
			Burst:            5,
		},
		Server: ServerConfig{
			Port:    8080,
			Workers: 1,
		},
		Schedule: ScheduleConfig{
			DailyAt: "08:00",
		},
		Jobs: JobsConfig{
			MaxRetries: 2,
			RetryDelay: 30 * time.Second,
		},
	}
}

// Default returns the built-in defaults without reading a file or the environment.
func Default() *Config {
	return defaultConfig()
}

// Load reads the configuration. Precedence is overrides > env > file > defaults.
func Load(overrides ...func(*Config)) (*Config, error) {
	return LoadFile(os.Getenv(PathEnvVar), overrides...)
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file
// layer. Overrides are applied after every layer and before validation.
func LoadFile(path string, overrides ...func(*Config)) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("LoadFile: loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("LoadFile: loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("LoadFile: loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("LoadFile: unmarshaling: %w", err)
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("LoadFile: %w", err)
	}

	return cfg, nil
}

var sections = map[string]bool{
	"bigquery":     true,
	"ledger":       true,
	"sheets":       true,
	"notion":       true,
	"redis":        true,
	"plans":        true,
	"interactions": true,
	"whatsapp":     true,
	"archive":      true,
	"server":       true,
	"schedule":     true,
	"jobs":         true,
}

// envTransformFunc maps REMINDERS_WHATSAPP_ACCESS_TOKEN to whatsapp.access_token
// and REMINDERS_LOG_LEVEL to log_level.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if ok && sections[section] {
		return section + "." + rest
	}
	return key
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("Location: %w", err)
	}
	return loc, nil
}

// DailyAt returns the hour and minute of the scheduled daily run.
func (c *Config) DailyAt() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.Schedule.DailyAt)
	if err != nil {
		return 0, 0, fmt.Errorf("schedule.daily_at %q is not HH:MM", c.Schedule.DailyAt)
	}
	return t.Hour(), t.Minute(), nil
}

// Validate checks the settings required by the selected components.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}

	// Subscriptions and run history live in BigQuery whatever the ledger source.
	if c.BigQuery.ProjectID == "" {
		errs = append(errs, errors.New("bigquery.project_id is required"))
	}

	switch c.Ledger.Source {
	case SourceBigQuery:
	case SourceSheets:
		if c.Sheets.SpreadsheetID == "" {
			errs = append(errs, errors.New("sheets.spreadsheet_id is required for the sheets ledger source"))
		}
	case SourceNotion:
		if c.Notion.Token == "" || c.Notion.DatabaseID == "" {
			errs = append(errs, errors.New("notion.token and notion.database_id are required for the notion ledger source"))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger.source %q is not one of bigquery, sheets, notion", c.Ledger.Source))
	}

	if c.Ledger.RetryAttempts < 1 {
		errs = append(errs, errors.New("ledger.retry_attempts must be at least 1"))
	}

	switch c.Interactions.Backend {
	case BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("interactions.backend %q is not one of redis, memory", c.Interactions.Backend))
	}
	if c.Interactions.Window <= 0 {
		errs = append(errs, errors.New("interactions.window must be positive"))
	}

	if !c.DryRun {
		if c.WhatsApp.PhoneNumberID == "" {
			errs = append(errs, errors.New("whatsapp.phone_number_id is required unless dry_run is set"))
		}
		if c.WhatsApp.AccessToken == "" {
			errs = append(errs, errors.New("whatsapp.access_token is required unless dry_run is set"))
		}
	}

	if _, _, err := c.DailyAt(); err != nil {
		errs = append(errs, err)
	}

	if c.Jobs.MaxRetries < 0 {
		errs = append(errs, errors.New("jobs.max_retries must not be negative"))
	}
	if c.Jobs.MaxRetries > 0 && c.Jobs.RetryDelay <= 0 {
		errs = append(errs, errors.New("jobs.retry_delay must be positive when retries are enabled"))
	}

	if c.WhatsApp.RatePerSecond <= 0 {
		errs = append(errs, errors.New("whatsapp.rate_per_second must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
