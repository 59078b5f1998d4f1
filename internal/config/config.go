package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/utakatalp/volley-simulator/internal/league"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
	URL      string `yaml:"-"` // DATABASE_URL
}

// LeagueConfig describes one competition served by the API.
type LeagueConfig struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	Groups          []string          `yaml:"groups"`
	PlayoffSpots    int               `yaml:"playoff_spots"`
	RelegationSpots int               `yaml:"relegation_spots"`
	DataFile        string            `yaml:"data_file"`
	SourceURL       string            `yaml:"source_url,omitempty"`
	WithdrawnTeams  []string          `yaml:"withdrawn_teams,omitempty"`
	TeamRenames     map[string]string `yaml:"team_renames,omitempty"`
}

type SimulationConfig struct {
	Trials        int           `yaml:"trials"`
	Workers       int           `yaml:"workers"`
	HomeAdvantage float64       `yaml:"home_advantage"`
	Budget        time.Duration `yaml:"budget"`
}

type RateLimitConfig struct {
	Requests   int           `yaml:"requests"`
	Window     time.Duration `yaml:"window"`
	TrustProxy bool          `yaml:"trust_proxy"`
}

type Config struct {
	App struct {
		Name           string   `yaml:"name"`
		Environment    string   `yaml:"environment"`
		Port           int      `yaml:"port"`
		DataDir        string   `yaml:"data_dir"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		AdminToken     string   `yaml:"-"` // Loaded from environment
		CronSecret     string   `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database   DatabaseConfig   `yaml:"database"`
	Simulation SimulationConfig `yaml:"simulation"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`

	Scheduler struct {
		ResultsSyncCron string `yaml:"results_sync_cron"`
	} `yaml:"scheduler"`

	Leagues []LeagueConfig `yaml:"leagues"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.App.AdminToken = os.Getenv("ADMIN_TOKEN")
	cfg.App.CronSecret = os.Getenv("CRON_SECRET")
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of the defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

// Default returns the settings used when the YAML file leaves them out.
func Default() *Config {
	cfg := &Config{}
	cfg.App.Name = "volley-simulator"
	cfg.App.Environment = "development"
	cfg.App.Port = 8080
	cfg.App.DataDir = "data"
	cfg.Database.Driver = "sqlite"
	cfg.Database.Filename = "data/volley.db"
	cfg.Simulation = SimulationConfig{
		Trials:        5000,
		Workers:       4,
		HomeAdvantage: league.DefaultHomeAdvantage,
		Budget:        5 * time.Second,
	}
	cfg.RateLimit = RateLimitConfig{Requests: 60, Window: time.Minute}
	cfg.Scheduler.ResultsSyncCron = "0 */6 * * *"
	return cfg
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Simulation.Trials <= 0 {
		return fmt.Errorf("simulation trials must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit requests and window must be positive")
	}

	seen := make(map[string]bool, len(c.Leagues))
	for _, l := range c.Leagues {
		if l.ID == "" {
			return fmt.Errorf("league id is required")
		}
		if seen[l.ID] {
			return fmt.Errorf("duplicate league id: %s", l.ID)
		}
		seen[l.ID] = true
		if l.PlayoffSpots < 0 || l.RelegationSpots < 0 {
			return fmt.Errorf("league %s: negative playoff or relegation spots", l.ID)
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// League looks up a league by id.
func (c *Config) League(id string) (LeagueConfig, bool) {
	for _, l := range c.Leagues {
		if l.ID == id {
			return l, true
		}
	}
	return LeagueConfig{}, false
}

// Estimator builds the Monte Carlo settings for a league. The seed is left
// to the caller.
func (c *Config) Estimator(l LeagueConfig) league.EstimatorConfig {
	ec := league.DefaultEstimatorConfig()
	ec.Trials = c.Simulation.Trials
	ec.Workers = c.Simulation.Workers
	ec.HomeAdvantage = c.Simulation.HomeAdvantage
	ec.Budget = c.Simulation.Budget
	if l.PlayoffSpots > 0 {
		ec.PlayoffCutoff = l.PlayoffSpots
	}
	ec.RelegationSpots = l.RelegationSpots
	return ec
}

// DataPath is where the league's JSON data file lives.
func (c *Config) DataPath(l LeagueConfig) string {
	name := l.DataFile
	if name == "" {
		name = l.ID + "-data.json"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.App.DataDir, name)
}
