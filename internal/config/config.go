package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"ogmissions/internal/rank"
)

// Config models ogmissions.yml. It carries every tunable the karma engine,
// estimator and scheduler need, so nothing reads process-wide state.
type Config struct {
	Timezone string `yaml:"timezone"`

	Ranks struct {
		Names    []string `yaml:"names"`
		Negative string   `yaml:"negative"`
		Step     int      `yaml:"step"`
	} `yaml:"ranks"`

	Karma struct {
		UrgencyBonus           int         `yaml:"urgency_bonus"`
		ReworkPenalty          int         `yaml:"rework_penalty"`
		DeclinePenalty         int         `yaml:"decline_penalty"`
		InvalidTaskPenalty     int         `yaml:"invalid_task_penalty"`
		AdminDeletePenalty     int         `yaml:"admin_delete_penalty"`
		OverduePenalty         int         `yaml:"overdue_penalty"`
		OverduePenaltyExtended int         `yaml:"overdue_penalty_extended"`
		PostponePenalties      map[int]int `yaml:"postpone_penalties"`
		HouseholdDecline       map[int]int `yaml:"household_decline"`
	} `yaml:"karma"`

	Missions struct {
		ActiveLimit     int `yaml:"active_limit"`
		PageSize        int `yaml:"page_size"`
		UserPageSize    int `yaml:"user_page_size"`
		ReworkGraceDays int `yaml:"rework_grace_days"`
	} `yaml:"missions"`

	Reminders struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"reminders"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// Runtime holds environment-derived settings, separate from the policy file.
type Runtime struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	DataDir    string `envconfig:"DATA_DIR"`
	JWTSecret  string `envconfig:"JWT_SECRET"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadRuntime reads runtime settings from OGM_* environment variables.
func LoadRuntime() (Runtime, error) {
	var rt Runtime
	if err := envconfig.Process("ogm", &rt); err != nil {
		return rt, fmt.Errorf("process env: %w", err)
	}
	return rt, nil
}

// SweepInterval returns the scheduler interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	sec := c.Reminders.IntervalSeconds
	if sec <= 0 {
		sec = 60
	}
	return time.Duration(sec) * time.Second
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || loc == nil {
		return time.UTC
	}
	return loc
}

// RankTable builds the rank ladder from the configured names.
func (c *Config) RankTable() rank.Table {
	return rank.Table{Names: c.Ranks.Names, Negative: c.Ranks.Negative, Step: c.Ranks.Step}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Ranks.Names) == 0 {
		return fmt.Errorf("config.ranks.names is required")
	}
	if c.Ranks.Negative == "" {
		return fmt.Errorf("config.ranks.negative is required")
	}
	if c.Ranks.Step <= 0 {
		return fmt.Errorf("config.ranks.step must be positive")
	}
	if c.Missions.ActiveLimit <= 0 {
		return fmt.Errorf("config.missions.active_limit must be positive")
	}
	if len(c.Karma.PostponePenalties) == 0 {
		return fmt.Errorf("config.karma.postpone_penalties is required")
	}
	prev := 1
	for _, days := range []int{1, 2, 3} {
		pen, ok := c.Karma.PostponePenalties[days]
		if !ok {
			return fmt.Errorf("config.karma.postpone_penalties missing %d days", days)
		}
		if pen > 0 {
			return fmt.Errorf("postpone penalty for %d days must be <= 0", days)
		}
		if days > 1 && pen > prev {
			return fmt.Errorf("postpone penalties must be non-increasing as days grow")
		}
		prev = pen
	}
	if c.Karma.OverduePenalty >= 0 || c.Karma.OverduePenaltyExtended >= 0 {
		return fmt.Errorf("overdue penalties must be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "ogmissions.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Fields missing
// from the YAML keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the canonical policy numbers.
func Default() *Config {
	var cfg Config
	cfg.Timezone = "Europe/Kyiv"

	cfg.Ranks.Names = []string{
		"Drifter",         // 0..99
		"Corner Kid",      // 100..199
		"Yard Runner",     // 200..299
		"Seasoned",        // 300..399
		"Heavyweight",     // 400..499
		"Mixtape Hustler", // 500..599
		"Street OG",       // 600..699
		"Platinum Player", // 700..799
		"Big Ape",         // 800..899
		"Block King",      // 900..999
		"Street Legend",   // 1000+
	}
	cfg.Ranks.Negative = "Disgraced"
	cfg.Ranks.Step = 100

	cfg.Karma.UrgencyBonus = 1
	cfg.Karma.ReworkPenalty = -1
	cfg.Karma.DeclinePenalty = -2
	cfg.Karma.InvalidTaskPenalty = -1
	cfg.Karma.AdminDeletePenalty = -1
	cfg.Karma.OverduePenalty = -3
	cfg.Karma.OverduePenaltyExtended = -4
	cfg.Karma.PostponePenalties = map[int]int{1: 0, 2: -1, 3: -2}
	// Declining household chores stings more the heavier the chore.
	cfg.Karma.HouseholdDecline = map[int]int{1: -3, 2: -4, 3: -5}

	cfg.Missions.ActiveLimit = 10
	cfg.Missions.PageSize = 10
	cfg.Missions.UserPageSize = 8
	cfg.Missions.ReworkGraceDays = 1

	cfg.Reminders.IntervalSeconds = 60
	return &cfg
}

// HouseholdDeclinePenalty maps a mission difficulty to the household decline
// tier: difficulty <= 1, == 2, >= 3.
func (c *Config) HouseholdDeclinePenalty(difficulty int) int {
	tier := difficulty
	if tier < 1 {
		tier = 1
	}
	if tier > 3 {
		tier = 3
	}
	if pen, ok := c.Karma.HouseholdDecline[tier]; ok {
		return pen
	}
	return c.Karma.DeclinePenalty
}

// PostponePenalty returns the penalty for a 1/2/3-day postponement.
func (c *Config) PostponePenalty(days int) (int, bool) {
	pen, ok := c.Karma.PostponePenalties[days]
	return pen, ok
}
