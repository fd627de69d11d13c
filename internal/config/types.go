package config

import "time"

// Config is the root configuration schema.
type Config struct {
	Global    GlobalConfig    `mapstructure:"global"`
	Server    ServerConfig    `mapstructure:"server"`
	Master    MasterConfig    `mapstructure:"master"`
	Filestore FilestoreConfig `mapstructure:"filestore"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Storage   StorageConfig   `mapstructure:"storage"`

	// path the config was loaded from, remembered for Save.
	path string
}

type GlobalConfig struct {
	LogLevel         string `mapstructure:"log_level"`
	LogFormat        string `mapstructure:"log_format"` // json or console
	LockFile         string `mapstructure:"lock_file"`
	ConfigPassphrase string `mapstructure:"config_passphrase"` // optional; may come from env
}

// ServerConfig describes the administrative connection to the Postgres
// cluster hosting the managed databases.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	// MaintenanceDB is the database used for cluster-level statements
	// (CREATE/DROP/ALTER DATABASE). Defaults to "postgres".
	MaintenanceDB string `mapstructure:"maintenance_db"`
	// Template is the template database new databases are copied from.
	Template string `mapstructure:"template"`
}

// MasterConfig holds the shared administrative secret gating every
// destructive operation, plus service-wide toggles.
type MasterConfig struct {
	// Password is either a bcrypt hash or, for bootstrap setups, the
	// plain secret itself.
	Password string `mapstructure:"password"`
	// ListDatabases controls whether the unauthenticated list method is
	// exposed at all.
	ListDatabases bool `mapstructure:"list_databases"`
	// Unaccent enables the best-effort CREATE EXTENSION unaccent step
	// after a restore.
	Unaccent bool `mapstructure:"unaccent"`
}

type FilestoreConfig struct {
	// Root is the directory under which each database's attachment tree
	// lives, one subdirectory per database name.
	Root string `mapstructure:"root"`
}

// RegistryConfig configures the external bootstrap command that turns a
// bare database into a working application instance.
type RegistryConfig struct {
	// Command is the argv of the bootstrap tool; the database name and
	// option flags are appended per invocation. Empty disables the
	// bootstrap step (plain-SQL deployments, tests).
	Command []string `mapstructure:"command"`
}

type StorageConfig struct {
	Backend string     `mapstructure:"backend"` // local, s3
	Local   LocalStore `mapstructure:"local"`
	S3      S3Store    `mapstructure:"s3"`
	Prefix  string     `mapstructure:"prefix"`
}

type LocalStore struct {
	Path string `mapstructure:"path"`
}

type S3Store struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	SessionToken    string `mapstructure:"session_token"`
	TLSInsecureSkip bool   `mapstructure:"tls_insecure_skip"`
}

// Path reports where the config was loaded from; empty when the config
// came entirely from defaults and environment.
func (c *Config) Path() string { return c.path }
