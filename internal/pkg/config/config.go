package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Browser BrowserConfig `yaml:"browser"`
	Catalog CatalogConfig `yaml:"catalog"`
	Extract ExtractConfig `yaml:"extract"`
	Tracker TrackerConfig `yaml:"tracker"`
	Sink    SinkConfig    `yaml:"sink"`
	State   StateConfig   `yaml:"state"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Health  HealthConfig  `yaml:"health"`
	Logging LoggingConfig `yaml:"logging"`
}

type SourceConfig struct {
	URL           string        `yaml:"url" validate:"required,url"`
	ConsentLabels []string      `yaml:"consent_labels"`
	Tabs          []string      `yaml:"tabs"`
	Settle        time.Duration `yaml:"settle" validate:"gte=0"`
	Scroll        time.Duration `yaml:"scroll" validate:"gte=0"`
	MaxRegions    int           `yaml:"max_regions" validate:"gte=0"`
	MaxMarkup     int           `yaml:"max_markup" validate:"gte=0"`
}

type BrowserConfig struct {
	Headless  bool   `yaml:"headless"`
	UserAgent string `yaml:"user_agent"`
	ExecPath  string `yaml:"exec_path"`
	Debug     bool   `yaml:"debug"`
}

type CatalogConfig struct {
	Matchups     []models.Matchup  `yaml:"matchups" validate:"dive"`
	MatchupsFile string            `yaml:"matchups_file"` // JSON list of {"a","b"}
	Aliases      map[string]string `yaml:"aliases"`       // raw spelling -> canonical name
}

type ExtractConfig struct {
	Detectors      []string `yaml:"detectors" validate:"dive,oneof=score marker"`
	ScoreWhitelist []string `yaml:"score_whitelist"`
	Workers        int      `yaml:"workers" validate:"gte=1"`
	DiagLimit      int      `yaml:"diag_limit" validate:"gte=0"` // 0 disables diagnostics
	DiagMaxChars   int      `yaml:"diag_max_chars" validate:"gte=0"`
}

type TrackerConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval" validate:"gt=0"`
	LastN          int           `yaml:"last_n" validate:"gte=1"`
	CallTimeout    time.Duration `yaml:"call_timeout" validate:"gt=0"`
	RebuildOnStart bool          `yaml:"rebuild_on_start"`
}

type SinkConfig struct {
	Driver          string `yaml:"driver" validate:"oneof=sheets postgres sqlite memory"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsJSON string `yaml:"credentials_json"`
	ClientEmail     string `yaml:"client_email"`
	PrivateKey      string `yaml:"private_key"`
	DSN             string `yaml:"dsn"`
}

type StateConfig struct {
	Driver string      `yaml:"driver" validate:"oneof=file redis"`
	Dir    string      `yaml:"dir"`
	Redis  RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

type AlertsConfig struct {
	Cooldown  time.Duration      `yaml:"cooldown" validate:"gte=0"`
	Rules     []models.AlertRule `yaml:"rules" validate:"dive"`
	RulesFile string             `yaml:"rules_file"` // JSON list of {"matchup","player","min_streak"}
	Webhook   WebhookConfig      `yaml:"webhook"`
	Telegram  TelegramConfig     `yaml:"telegram"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Bearer  string        `yaml:"bearer"`
	Format  string        `yaml:"format" validate:"oneof=json text"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type TelegramConfig struct {
	Token   string        `yaml:"token"`
	ChatID  int64         `yaml:"chat_id"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

type HealthConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Port              int           `yaml:"port" validate:"gte=0,lte=65535"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`
	StaleAfter        time.Duration `yaml:"stale_after" validate:"gte=0"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format" validate:"oneof=text json"`
	File   string `yaml:"file"` // optional JSON log file, appended to
}

// Default returns the configuration used for every key the file and the
// environment leave unset.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			ConsentLabels: []string{"Aceptar", "Acepto", "OK", "De acuerdo", "I agree", "Accept"},
			Tabs:          []string{"AI Tennis", "vTennis", "Tennis"},
			Settle:        1500 * time.Millisecond,
			Scroll:        4 * time.Second,
			MaxRegions:    600,
			MaxMarkup:     20000,
		},
		Browser: BrowserConfig{Headless: true},
		Extract: ExtractConfig{
			Detectors: []string{"score", "marker"},
			Workers:   8,
		},
		Tracker: TrackerConfig{
			PollInterval:   45 * time.Second,
			LastN:          10,
			CallTimeout:    20 * time.Second,
			RebuildOnStart: true,
		},
		Sink:  SinkConfig{Driver: "sheets"},
		State: StateConfig{Driver: "file", Dir: "data", Redis: RedisConfig{Prefix: "acewatch:"}},
		Alerts: AlertsConfig{
			Cooldown: 10 * time.Minute,
			Webhook:  WebhookConfig{Format: "json", Timeout: 10 * time.Second},
			Telegram: TelegramConfig{Timeout: 10 * time.Second},
		},
		Health: HealthConfig{
			Enabled:           true,
			Port:              8080,
			ReadHeaderTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads .env, the YAML file at path (CONFIG_PATH when path is empty;
// no file at all is allowed), the environment overrides and the external
// catalog files, then canonicalises rules and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	cfg := Default()
	baseDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.loadCatalogFiles(baseDir); err != nil {
		return nil, err
	}
	cfg.canonicalizeRules()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Names builds the name normalizer shared by every component.
func (c *Config) Names() *models.Normalizer {
	return models.NewNormalizer(c.Catalog.Aliases)
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, apply func(n int)) error {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		apply(n)
		return nil
	}

	str("BETTING_URL", &c.Source.URL)
	str("SPREADSHEET_ID", &c.Sink.SpreadsheetID)
	str("GCP_SA_JSON", &c.Sink.CredentialsJSON)
	str("GS_CLIENT_EMAIL", &c.Sink.ClientEmail)
	str("GS_PRIVATE_KEY", &c.Sink.PrivateKey)
	str("ALERT_WEBHOOK_URL", &c.Alerts.Webhook.URL)
	str("ALERT_WEBHOOK_BEARER", &c.Alerts.Webhook.Bearer)

	if v, ok := os.LookupEnv("HEADLESS"); ok && v != "" {
		c.Browser.Headless = truthy(v)
	}
	if truthy(os.Getenv("DEBUG")) {
		c.Logging.Level = "debug"
		c.Browser.Debug = true
	}
	if v, ok := os.LookupEnv("DIAG_ECHO"); ok && v != "" {
		switch {
		case !truthy(v):
			c.Extract.DiagLimit = 0
		case c.Extract.DiagLimit == 0:
			c.Extract.DiagLimit = 5
		}
	}

	for _, e := range []struct {
		key   string
		apply func(n int)
	}{
		{"LOOP_DELAY_MS", func(n int) { c.Tracker.PollInterval = time.Duration(n) * time.Millisecond }},
		{"SCROLL_MS", func(n int) { c.Source.Scroll = time.Duration(n) * time.Millisecond }},
		{"ALERT_MIN_COOLDOWN_MIN", func(n int) { c.Alerts.Cooldown = time.Duration(n) * time.Minute }},
		{"STREAK_LAST_N", func(n int) { c.Tracker.LastN = n }},
		{"PORT", func(n int) { c.Health.Port = n }},
	} {
		if err := num(e.key, e.apply); err != nil {
			return err
		}
	}
	return nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (c *Config) loadCatalogFiles(baseDir string) error {
	if c.Catalog.MatchupsFile != "" {
		var matchups []models.Matchup
		if err := readJSONFile(resolve(baseDir, c.Catalog.MatchupsFile), &matchups); err != nil {
			return fmt.Errorf("failed to load matchups: %w", err)
		}
		c.Catalog.Matchups = append(c.Catalog.Matchups, matchups...)
	}
	if c.Alerts.RulesFile != "" {
		var rules []models.AlertRule
		if err := readJSONFile(resolve(baseDir, c.Alerts.RulesFile), &rules); err != nil {
			return fmt.Errorf("failed to load alert rules: %w", err)
		}
		c.Alerts.Rules = append(c.Alerts.Rules, rules...)
	}
	return nil
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// canonicalizeRules rewrites rule matchups ("B vs A", accented spellings,
// aliases) into MatchupID form so they index the same way results do.
func (c *Config) canonicalizeRules() {
	names := c.Names()
	for i, r := range c.Alerts.Rules {
		if a, b, ok := strings.Cut(r.MatchupID, models.MatchupSeparator); ok {
			c.Alerts.Rules[i].MatchupID = names.MatchupID(a, b)
		}
		if strings.EqualFold(strings.TrimSpace(r.Player), models.AnyPlayer) {
			c.Alerts.Rules[i].Player = models.AnyPlayer
		} else {
			c.Alerts.Rules[i].Player = names.Normalize(r.Player)
		}
	}
}

// Validate checks struct tags and the constraints between fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	if len(c.Catalog.Matchups) == 0 {
		errs = append(errs, errors.New("catalog: at least one matchup is required"))
	}

	switch c.Sink.Driver {
	case "sheets":
		if c.Sink.SpreadsheetID == "" {
			errs = append(errs, errors.New("sink: spreadsheet_id (SPREADSHEET_ID) is required for sheets"))
		}
		if c.Sink.CredentialsJSON == "" && (c.Sink.ClientEmail == "" || c.Sink.PrivateKey == "") {
			errs = append(errs, errors.New("sink: service account credentials are required for sheets (GCP_SA_JSON or GS_CLIENT_EMAIL + GS_PRIVATE_KEY)"))
		}
	case "postgres", "sqlite":
		if c.Sink.DSN == "" {
			errs = append(errs, fmt.Errorf("sink: dsn is required for %s", c.Sink.Driver))
		}
	}

	switch c.State.Driver {
	case "file":
		if c.State.Dir == "" {
			errs = append(errs, errors.New("state: dir is required for the file store"))
		}
	case "redis":
		if c.State.Redis.Addr == "" {
			errs = append(errs, errors.New("state: redis.addr is required for the redis store"))
		}
	}

	if (c.Alerts.Telegram.Token == "") != (c.Alerts.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("alerts: telegram needs both token and chat_id"))
	}
	for i, r := range c.Alerts.Rules {
		if !strings.Contains(r.MatchupID, models.MatchupSeparator) {
			errs = append(errs, fmt.Errorf("alerts: rule %d: matchup %q must look like \"A vs B\"", i, r.MatchupID))
		}
	}

	if c.Health.Enabled && c.Health.Port == 0 {
		errs = append(errs, errors.New("health: port is required when the status server is enabled"))
	}
	return errors.Join(errs...)
}
