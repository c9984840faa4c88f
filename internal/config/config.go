// Package config loads the migration configuration file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/corrections"
	"github.com/johndauphine/crosswalk/internal/dbconfig"
	"github.com/johndauphine/crosswalk/internal/keys"
	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/notify"
)

// Environment variables that override passwords from the file.
const (
	EnvSourcePassword = "CROSSWALK_SOURCE_PASSWORD"
	EnvTargetPassword = "CROSSWALK_TARGET_PASSWORD"
	EnvSlackWebhook   = "CROSSWALK_SLACK_WEBHOOK"
)

type (
	SourceConfig = dbconfig.SourceConfig
	TargetConfig = dbconfig.TargetConfig
)

// Config is the full migration configuration.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Target    TargetConfig    `yaml:"target"`
	Migration MigrationConfig `yaml:"migration"`
	Logging   LoggingConfig   `yaml:"logging"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// MigrationConfig controls the pipeline.
type MigrationConfig struct {
	// SchemaFile overrides the embedded destination schema.
	SchemaFile    string             `yaml:"schema_file"`
	ExpectedEmpty []string           `yaml:"expected_empty"`
	Corrections   []CorrectionConfig `yaml:"corrections"`

	ForeignKeyPolicy             string `yaml:"foreign_key_policy"`
	ProceedOnReferentialWarnings bool   `yaml:"proceed_on_referential_warnings"`

	SampleSize     int    `yaml:"sample_size"`
	StateFile      string `yaml:"state_file"`
	MaxConnections int    `yaml:"max_connections"`
	ShowProgress   *bool  `yaml:"show_progress"`
}

// CorrectionConfig binds a correction CSV to a staged field.
type CorrectionConfig struct {
	File     string `yaml:"file"`
	Table    string `yaml:"table"`
	KeyField string `yaml:"key_field"`
	Field    string `yaml:"field"`
	// Values translates resolution labels into stored values.
	Values map[string]any `yaml:"values"`
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NotifyConfig configures run notifications.
type NotifyConfig struct {
	Slack notify.SlackConfig `yaml:"slack"`
}

// Load reads, defaults and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes config YAML, applies defaults and environment overrides,
// then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvSourcePassword); v != "" {
		c.Source.Password = v
	}
	if v := os.Getenv(EnvTargetPassword); v != "" {
		c.Target.Password = v
	}
	if v := os.Getenv(EnvSlackWebhook); v != "" {
		c.Notify.Slack.WebhookURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Source.Type == "" {
		c.Source.Type = "mssql"
	}
	if c.Source.Type == "mssql" {
		if c.Source.Port == 0 {
			c.Source.Port = 1433
		}
		if c.Source.Schema == "" {
			c.Source.Schema = "dbo"
		}
	}
	if c.Target.Type == "" {
		c.Target.Type = "postgres"
	}
	if c.Target.Type == "postgres" {
		if c.Target.Port == 0 {
			c.Target.Port = 5432
		}
		if c.Target.SSLMode == "" {
			c.Target.SSLMode = "require"
		}
		if c.Target.IsKerberos() && c.Target.GSSEncMode == "" {
			c.Target.GSSEncMode = "prefer"
		}
	}
	if c.Migration.ForeignKeyPolicy == "" {
		c.Migration.ForeignKeyPolicy = string(keys.PolicyQuarantine)
	}
	if c.Migration.SampleSize <= 0 {
		c.Migration.SampleSize = 5
	}
	if c.Migration.StateFile == "" {
		c.Migration.StateFile = "migrate.db"
	}
	if c.Migration.MaxConnections <= 0 {
		c.Migration.MaxConnections = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Source.Type {
	case "mssql":
		if c.Source.Host == "" || c.Source.Database == "" {
			return fmt.Errorf("source.host and source.database are required for mssql")
		}
	case "sqlite":
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for sqlite")
		}
		if c.Source.Path == c.Migration.StateFile {
			return fmt.Errorf("source.path and migration.state_file cannot be the same file")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid source.type %q (expected mssql, sqlite or memory)", c.Source.Type)
	}

	switch c.Target.Type {
	case "postgres":
		if c.Target.Host == "" || c.Target.Database == "" {
			return fmt.Errorf("target.host and target.database are required for postgres")
		}
	case "dryrun":
	default:
		return fmt.Errorf("invalid target.type %q (expected postgres or dryrun)", c.Target.Type)
	}

	if c.Source.Host != "" && c.Source.Host == c.Target.Host &&
		c.Source.Port == c.Target.Port && c.Source.Database == c.Target.Database {
		return fmt.Errorf("source and target cannot be the same database")
	}

	if _, err := keys.ParsePolicy(c.Migration.ForeignKeyPolicy); err != nil {
		return fmt.Errorf("migration.foreign_key_policy: %w", err)
	}
	if _, err := c.ExpectedEmptyIDs(); err != nil {
		return fmt.Errorf("migration.expected_empty: %w", err)
	}
	for i, cc := range c.Migration.Corrections {
		if cc.File == "" || cc.KeyField == "" || cc.Field == "" {
			return fmt.Errorf("migration.corrections[%d]: file, key_field and field are required", i)
		}
		if _, err := catalog.ParseTableID(cc.Table); err != nil {
			return fmt.Errorf("migration.corrections[%d]: %w", i, err)
		}
	}
	if c.Notify.Slack.Enabled && c.Notify.Slack.WebhookURL == "" {
		return fmt.Errorf("notify.slack.webhook_url (or %s) is required when slack is enabled", EnvSlackWebhook)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format %q (expected text or json)", c.Logging.Format)
	}
	return nil
}

// ExpectedEmptyIDs parses migration.expected_empty.
func (c *Config) ExpectedEmptyIDs() ([]catalog.TableID, error) {
	out := make([]catalog.TableID, 0, len(c.Migration.ExpectedEmpty))
	for _, s := range c.Migration.ExpectedEmpty {
		id, err := catalog.ParseTableID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// CorrectionSpecs converts migration.corrections. YAML integers become
// int64 to match values read from the source.
func (c *Config) CorrectionSpecs() []corrections.Spec {
	out := make([]corrections.Spec, 0, len(c.Migration.Corrections))
	for _, cc := range c.Migration.Corrections {
		id, _ := catalog.ParseTableID(cc.Table)
		var values map[string]any
		if cc.Values != nil {
			values = make(map[string]any, len(cc.Values))
			for k, v := range cc.Values {
				if n, ok := v.(int); ok {
					v = int64(n)
				}
				values[k] = v
			}
		}
		out = append(out, corrections.Spec{
			File:     cc.File,
			Table:    id,
			KeyField: cc.KeyField,
			Field:    cc.Field,
			Values:   values,
		})
	}
	return out
}

// ShowProgress reports whether to render a progress bar (default true).
func (c *Config) ShowProgress() bool {
	return c.Migration.ShowProgress == nil || *c.Migration.ShowProgress
}

// SourceDSN returns the source connection string.
func (c *Config) SourceDSN() string {
	s := c.Source
	switch s.Type {
	case "sqlite":
		return s.Path
	case "mssql":
		return c.buildMSSQLDSN(s.Host, s.Port, s.Database, s.User, s.Password,
			s.EncryptString(), s.TrustServerCert, s.Auth, s.Krb5Conf, s.Keytab, s.Realm, s.SPN)
	}
	return ""
}

// TargetDSN returns the destination connection string.
func (c *Config) TargetDSN() string {
	t := c.Target
	if t.Type != "postgres" {
		return ""
	}
	return c.buildPostgresDSN(t.Host, t.Port, t.Database, t.User, t.Password, t.SSLMode, t.Auth, t.GSSEncMode)
}

func (c *Config) buildMSSQLDSN(host string, port int, database, user, password, encrypt string,
	trustCert bool, auth, krb5Conf, keytab, realm, spn string) string {
	params := url.Values{}
	params.Set("database", database)
	params.Set("encrypt", encrypt)
	params.Set("TrustServerCertificate", fmt.Sprintf("%t", trustCert))

	if auth == "kerberos" {
		params.Set("authenticator", "krb5")
		if krb5Conf != "" {
			params.Set("krb5-configfile", krb5Conf)
		}
		if keytab != "" {
			params.Set("krb5-keytabfile", keytab)
		}
		if realm != "" {
			params.Set("krb5-realm", realm)
		}
		if user != "" {
			params.Set("krb5-username", user)
		}
		if spn != "" {
			params.Set("ServerSPN", spn)
		}
		return fmt.Sprintf("sqlserver://%s:%d?%s", host, port, params.Encode())
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(user), url.QueryEscape(password), host, port, params.Encode())
}

func (c *Config) buildPostgresDSN(host string, port int, database, user, password, sslMode, auth, gssEncMode string) string {
	params := url.Values{}
	params.Set("sslmode", sslMode)

	userinfo := url.QueryEscape(user)
	if auth == "kerberos" {
		if gssEncMode != "" {
			params.Set("gssencmode", gssEncMode)
		}
	} else if password != "" {
		userinfo += ":" + url.QueryEscape(password)
	}

	return fmt.Sprintf("postgres://%s@%s:%d/%s?%s",
		userinfo, host, port, url.PathEscape(database), params.Encode())
}

// Redacted returns a copy safe to persist: passwords are masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.Source.Password != "" {
		out.Source.Password = "***"
	}
	if out.Target.Password != "" {
		out.Target.Password = "***"
	}
	if out.Notify.Slack.WebhookURL != "" {
		out.Notify.Slack.WebhookURL = "***"
	}
	return out
}

// String summarizes the endpoints for logs.
func (c *Config) String() string {
	var sb strings.Builder
	switch c.Source.Type {
	case "sqlite":
		fmt.Fprintf(&sb, "source=sqlite:%s", c.Source.Path)
	case "mssql":
		fmt.Fprintf(&sb, "source=mssql:%s:%d/%s", c.Source.Host, c.Source.Port, c.Source.Database)
	default:
		sb.WriteString("source=" + c.Source.Type)
	}
	switch c.Target.Type {
	case "postgres":
		fmt.Fprintf(&sb, " target=postgres:%s:%d/%s", c.Target.Host, c.Target.Port, c.Target.Database)
	default:
		sb.WriteString(" target=" + c.Target.Type)
	}
	return sb.String()
}
