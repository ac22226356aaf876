// Package config provides configuration structures and loading for entityplan.
package config

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
)

// Config represents the complete application configuration.
type Config struct {
	Schema    SchemaConfig    `yaml:"schema" mapstructure:"schema"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Planner   PlannerConfig   `yaml:"planner" mapstructure:"planner"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// SchemaConfig locates the schema description file.
type SchemaConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig selects and configures the plan store backend.
type StoreConfig struct {
	Backend string          `yaml:"backend" mapstructure:"backend"` // memory, file, mysql, redis
	File    FileStoreConfig `yaml:"file" mapstructure:"file"`
	MySQL   DatabaseConfig  `yaml:"mysql" mapstructure:"mysql"`
	Redis   RedisConfig     `yaml:"redis" mapstructure:"redis"`
}

// FileStoreConfig configures the JSON file store.
type FileStoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
	TablePrefix        string `yaml:"table_prefix" mapstructure:"table_prefix"`
	LockTimeoutSeconds int    `yaml:"lock_timeout_seconds" mapstructure:"lock_timeout_seconds"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	URL                   string `yaml:"url" mapstructure:"url"`
	KeyPrefix             string `yaml:"key_prefix" mapstructure:"key_prefix"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds" mapstructure:"connect_timeout_seconds"`
}

// PlannerConfig represents planning settings.
type PlannerConfig struct {
	Workers   int    `yaml:"workers" mapstructure:"workers"`     // 0 uses one worker per CPU
	Namespace string `yaml:"namespace" mapstructure:"namespace"` // UUID; empty selects the built-in namespace
	IDPrefix  string `yaml:"id_prefix" mapstructure:"id_prefix"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// TelemetryConfig represents OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Schema: SchemaConfig{
			Path: "schema.yaml",
		},
		Store: StoreConfig{
			Backend: BackendFile,
			File: FileStoreConfig{
				Path: ".entityplan/plan.json",
			},
			MySQL: DatabaseConfig{
				Port:               3306,
				TLS:                "preferred",
				MaxConnections:     10,
				MaxIdleConnections: 5,
				TablePrefix:        "entityplan_",
				LockTimeoutSeconds: 10,
			},
			Redis: RedisConfig{
				KeyPrefix:             "entityplan",
				ConnectTimeoutSeconds: 5,
			},
		},
		Planner: PlannerConfig{
			Workers:  0,
			IDPrefix: "kb:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "entityplan",
		},
	}
}
