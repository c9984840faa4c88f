// Package dbconfig provides the connection settings shared by the config
// package and the command wiring that opens sources and destinations.
package dbconfig

// SourceConfig holds legacy source connection settings.
type SourceConfig struct {
	Type     string `yaml:"type"` // "mssql" (default), "sqlite" or "memory"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Schema   string `yaml:"schema"` // MSSQL schema holding the legacy tables (default: dbo)
	Path     string `yaml:"path"`   // SQLite: path to the exported desktop database

	TrustServerCert bool  `yaml:"trust_server_cert"` // MSSQL: trust server certificate (default: false)
	Encrypt         *bool `yaml:"encrypt"`           // MSSQL: enable TLS encryption (default: true)
	// Kerberos authentication (alternative to user/password)
	Auth     string `yaml:"auth"`      // "password" (default) or "kerberos"
	Krb5Conf string `yaml:"krb5_conf"` // Path to krb5.conf (optional, uses system default)
	Keytab   string `yaml:"keytab"`    // Path to keytab file (optional, uses credential cache)
	Realm    string `yaml:"realm"`     // Kerberos realm (optional, auto-detected)
	SPN      string `yaml:"spn"`       // Service Principal Name for MSSQL (optional)
}

// TargetConfig holds destination connection settings.
type TargetConfig struct {
	Type       string `yaml:"type"` // "postgres" (default) or "dryrun"
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Database   string `yaml:"database"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"ssl_mode"`   // disable, require, verify-ca, verify-full (default: require)
	Auth       string `yaml:"auth"`       // "password" (default) or "kerberos"
	GSSEncMode string `yaml:"gssencmode"` // GSSAPI encryption: disable, prefer, require (default: prefer)
}

// IsKerberos reports whether the source authenticates with Kerberos.
func (c *SourceConfig) IsKerberos() bool { return c.Auth == "kerberos" }

// IsKerberos reports whether the target authenticates with Kerberos.
func (c *TargetConfig) IsKerberos() bool { return c.Auth == "kerberos" }

// EncryptString renders the MSSQL encrypt option.
func (c *SourceConfig) EncryptString() string {
	if c.Encrypt == nil || *c.Encrypt {
		return "true"
	}
	return "false"
}
