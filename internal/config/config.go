package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qbcopy-dev/qbcopy/internal/model"
)

// Environment selects the QuickBooks API host.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Config represents the top-level credentials.yml configuration.
type Config struct {
	ClientID     string         `yaml:"client_id"`
	ClientSecret string         `yaml:"client_secret"`
	Source       Company        `yaml:"source"`
	Target       Company        `yaml:"target"`
	Transfer     TransferConfig `yaml:"transfer"`
	Retry        RetryConfig    `yaml:"retry"`
}

// Company holds the OAuth state and realm ID for one QuickBooks company.
type Company struct {
	Environment  Environment `yaml:"environment"`
	RedirectURI  string      `yaml:"redirect_uri"`
	CompanyID    string      `yaml:"company_id"`
	AccessToken  string      `yaml:"access_token"`
	RefreshToken string      `yaml:"refresh_token"`
}

// TransferConfig selects which entity types a run copies and how existing
// entities are matched.
type TransferConfig struct {
	Entities      []string `yaml:"entities,omitempty"`
	MatchStrategy string   `yaml:"match_strategy,omitempty"` // "name" is the only strategy today
}

// RetryConfig tunes the backoff policy for rate-limited API calls.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	BaseDelay   Duration `yaml:"base_delay,omitempty"`
}

// Duration is a time.Duration that reads and writes Go duration strings
// ("1s", "500ms") in YAML.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads a credentials.yml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file. Token refreshes rewrite the file so
// the next run starts from the newest refresh token.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config template for a new project, with both companies
// pointed at the sandbox environment.
func Default() *Config {
	company := Company{
		Environment: EnvSandbox,
		RedirectURI: "http://localhost:5000/callback",
	}
	return &Config{
		Source: company,
		Target: company,
		Transfer: TransferConfig{
			Entities:      entitySlugs(model.TransferOrder()),
			MatchStrategy: "name",
		},
		Retry: RetryConfig{
			MaxAttempts: 5,
			BaseDelay:   Duration(time.Second),
		},
	}
}

// Validate checks the parts of the config every command depends on.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("client_id and client_secret are required")
	}
	if err := c.Source.validate("source"); err != nil {
		return err
	}
	if err := c.Target.validate("target"); err != nil {
		return err
	}
	if c.Transfer.MatchStrategy != "" && c.Transfer.MatchStrategy != "name" {
		return fmt.Errorf("unsupported match_strategy %q (only \"name\" is supported)", c.Transfer.MatchStrategy)
	}
	if _, err := c.Entities(); err != nil {
		return err
	}
	return nil
}

func (co Company) validate(label string) error {
	switch co.Environment {
	case EnvSandbox, EnvProduction:
	default:
		return fmt.Errorf("%s: environment must be sandbox or production, got %q", label, co.Environment)
	}
	if co.CompanyID == "" {
		return fmt.Errorf("%s: company_id is required", label)
	}
	if co.RefreshToken == "" {
		return fmt.Errorf("%s: refresh_token is required (run the tokens command first)", label)
	}
	return nil
}

// Entities resolves the configured entity selection into the fixed
// dependency order. An empty selection means every type.
func (c *Config) Entities() ([]model.EntityType, error) {
	if len(c.Transfer.Entities) == 0 {
		return model.TransferOrder(), nil
	}

	selected := make(map[model.EntityType]bool, len(c.Transfer.Entities))
	for _, name := range c.Transfer.Entities {
		t, err := model.ParseEntityType(name)
		if err != nil {
			return nil, fmt.Errorf("transfer.entities: %w", err)
		}
		selected[t] = true
	}

	// Always execute in dependency order regardless of config order.
	var out []model.EntityType
	for _, t := range model.TransferOrder() {
		if selected[t] {
			out = append(out, t)
		}
	}
	return out, nil
}

func entitySlugs(types []model.EntityType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Slug()
	}
	return out
}
