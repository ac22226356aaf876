package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dbsmedya/entityplan/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if strings.TrimSpace(c.Schema.Path) == "" {
		errors = append(errors, ValidationError{
			Field:   "schema.path",
			Message: "schema path is required",
		})
	}

	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validatePlanner()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateTelemetry()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.File.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "store.file.path",
				Message: "path is required for the file backend",
			})
		}
	case BackendMySQL:
		errors = append(errors, c.validateDatabase("store.mysql", &c.Store.MySQL)...)
	case BackendRedis:
		if c.Store.Redis.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.redis.url",
				Message: "url is required for the redis backend",
			})
		}
		if c.Store.Redis.ConnectTimeoutSeconds < 0 {
			errors = append(errors, ValidationError{
				Field:   "store.redis.connect_timeout_seconds",
				Message: "connect_timeout_seconds cannot be negative",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: "backend must be 'memory', 'file', 'mysql', or 'redis'",
		})
	}

	return errors
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	if db.LockTimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".lock_timeout_seconds",
			Message: "lock_timeout_seconds cannot be negative",
		})
	}

	if db.TablePrefix != "" && !sqlutil.IsValidIdentifier(db.TablePrefix) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".table_prefix",
			Message: "table_prefix may only contain letters, digits, and underscores",
		})
	}

	return errors
}

func (c *Config) validatePlanner() ValidationErrors {
	var errors ValidationErrors

	if c.Planner.Workers < 0 {
		errors = append(errors, ValidationError{
			Field:   "planner.workers",
			Message: "workers cannot be negative",
		})
	}

	if c.Planner.Namespace != "" {
		if _, err := uuid.Parse(c.Planner.Namespace); err != nil {
			errors = append(errors, ValidationError{
				Field:   "planner.namespace",
				Message: "namespace must be a UUID",
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

func (c *Config) validateTelemetry() ValidationErrors {
	var errors ValidationErrors

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		errors = append(errors, ValidationError{
			Field:   "telemetry.service_name",
			Message: "service_name is required when telemetry is enabled",
		})
	}

	return errors
}
