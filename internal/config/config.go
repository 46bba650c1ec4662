package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/pflexctl/internal/errs"
	"github.com/dokzlo13/pflexctl/internal/gateway"
)

// Config represents the application configuration
type Config struct {
	Gateway        GatewayConfig            `yaml:"gateway" validate:"-"`
	RemoteGateways map[string]GatewayConfig `yaml:"remote_gateways" validate:"-"`
	Log            LogConfig                `yaml:"log"`
	Ledger         LedgerConfig             `yaml:"ledger"`
	Engine         EngineConfig             `yaml:"engine"`
}

// GatewayConfig contains PowerFlex Gateway connection settings
type GatewayConfig struct {
	Hostname      string   `yaml:"hostname" validate:"required"`
	Username      string   `yaml:"username" validate:"required"`
	Password      string   `yaml:"password" validate:"required"`
	Port          int      `yaml:"port" validate:"min=1,max=65535"`
	ValidateCerts bool     `yaml:"validate_certs"`
	Timeout       Duration `yaml:"timeout"`
	RateLimitRPS  float64  `yaml:"rate_limit_rps" validate:"gte=0"` // 0 = unlimited
}

// Client converts the settings for the gateway client.
func (g GatewayConfig) Client() gateway.Config {
	return gateway.Config{
		Hostname:      g.Hostname,
		Username:      g.Username,
		Password:      g.Password,
		Port:          g.Port,
		ValidateCerts: g.ValidateCerts,
		Timeout:       g.Timeout.Duration(),
		RateLimitRPS:  g.RateLimitRPS,
	}
}

// Validate checks that the settings are complete enough to connect.
func (g GatewayConfig) Validate() error {
	return validateStruct(g)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// LedgerConfig contains audit ledger settings
type LedgerConfig struct {
	Path string `yaml:"path"` // empty disables the ledger
	// RetentionDays defaults to 30. Zero keeps entries forever.
	RetentionDays *int `yaml:"retention_days" validate:"omitempty,gte=0"`
}

// Retention returns how long entries are kept. Zero means forever.
func (c LedgerConfig) Retention() time.Duration {
	if c.RetentionDays == nil {
		return 0
	}
	return time.Duration(*c.RetentionDays) * 24 * time.Hour
}

// Enabled reports whether operations are recorded.
func (c LedgerConfig) Enabled() bool {
	return c.Path != ""
}

// EngineConfig contains reconciliation settings
type EngineConfig struct {
	// StrictSizeGranularity rejects sizes that are not a multiple of 8 GB instead of rounding up.
	StrictSizeGranularity bool `yaml:"strict_size_granularity"`
}

// Connection holds per-task connection overrides. Nil fields keep the configured value.
type Connection struct {
	Hostname      *string   `yaml:"hostname"`
	Username      *string   `yaml:"username"`
	Password      *string   `yaml:"password"`
	Port          *int      `yaml:"port"`
	ValidateCerts *bool     `yaml:"validate_certs"`
	Timeout       *Duration `yaml:"timeout"`
}

// Apply overlays the overrides on base.
func (c Connection) Apply(base GatewayConfig) GatewayConfig {
	out := base
	if c.Hostname != nil {
		out.Hostname = *c.Hostname
	}
	if c.Username != nil {
		out.Username = *c.Username
	}
	if c.Password != nil {
		out.Password = *c.Password
	}
	if c.Port != nil {
		out.Port = *c.Port
	}
	if c.ValidateCerts != nil {
		out.ValidateCerts = *c.ValidateCerts
	}
	if c.Timeout != nil {
		out.Timeout = *c.Timeout
	}
	return out
}

// Duration is a wrapper around time.Duration for YAML unmarshalling.
// Plain integers are read as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Gateway: GatewayConfig{ValidateCerts: true}}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	cfg := Config{Gateway: GatewayConfig{ValidateCerts: true}}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errs.Mark(errors.Wrap(err, "parse config"), errs.ErrInvalidParameter)
	}

	applyDefaults(&cfg)

	if err := validateStruct(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Gateway defaults
	setGatewayDefaults(&cfg.Gateway)
	for name, remote := range cfg.RemoteGateways {
		setGatewayDefaults(&remote)
		cfg.RemoteGateways[name] = remote
	}

	// Ledger defaults
	if cfg.Ledger.RetentionDays == nil {
		days := 30
		cfg.Ledger.RetentionDays = &days
	}
}

func setGatewayDefaults(g *GatewayConfig) {
	if g.Port == 0 {
		g.Port = 443
	}
	if g.Timeout == 0 {
		g.Timeout = Duration(120 * time.Second)
	}
}

var validate = validator.New()

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
			return errs.Newf(errs.ErrInvalidParameter, "invalid configuration: %s", strings.Join(fields, ", "))
		}
		return errs.Mark(err, errs.ErrInvalidParameter)
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
