package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Autosave AutosaveConfig `yaml:"autosave"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"12600"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"` // console or json
}

// StorageConfig holds the settings of every draft backend. Which backend is
// active is decided by which of these are filled in.
type StorageConfig struct {
	Remote RemoteTableConfig `yaml:"remote"`
	S3     S3Config          `yaml:"s3"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
}

type RemoteTableConfig struct {
	Token       string `yaml:"token" default:""`
	BaseID      string `yaml:"base_id" default:""`
	Table       string `yaml:"table" default:"Drafts"`
	Endpoint    string `yaml:"endpoint" default:"https://api.airtable.com/v0"`
	MaxAttempts int    `yaml:"max_attempts" default:"3"`
}

// Enabled reports whether both the credential and the container id are set.
func (c RemoteTableConfig) Enabled() bool {
	return c.Token != "" && c.BaseID != ""
}

type S3Config struct {
	Bucket          string `yaml:"bucket" default:""`
	AccessKeyID     string `yaml:"access_key_id" default:""`
	SecretAccessKey string `yaml:"secret_access_key" default:""`
	Endpoint        string `yaml:"endpoint" default:""`
	Region          string `yaml:"region" default:"auto"`
	Prefix          string `yaml:"prefix" default:"drafts/"`
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

type SQLiteConfig struct {
	Path string `yaml:"path" default:""`
}

func (c SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

type AutosaveConfig struct {
	DebounceMs     int `yaml:"debounce_ms" default:"600"`
	SavedDisplayMs int `yaml:"saved_display_ms" default:"1200"`

	// Sessions with no activity for this long are closed.
	SessionIdleMinutes int `yaml:"session_idle_minutes" default:"30"`
}

func (c AutosaveConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c AutosaveConfig) SavedDisplay() time.Duration {
	return time.Duration(c.SavedDisplayMs) * time.Millisecond
}

func (c AutosaveConfig) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

var AppConfig *Config

func LoadConfig(path string) error {
	config := &Config{}

	// Apply default values first
	applyDefaults(config)

	// Try to read and parse the config file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, just use defaults
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	} else if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyEnv(config, os.Getenv)

	if err := Validate(config); err != nil {
		return err
	}

	AppConfig = config
	return nil
}

// Validate rejects values no component can run with.
func Validate(config *Config) error {
	if config.Storage.Remote.MaxAttempts < 1 {
		return fmt.Errorf("storage.remote.max_attempts must be at least 1, got %d", config.Storage.Remote.MaxAttempts)
	}
	if config.Autosave.DebounceMs < 0 || config.Autosave.SavedDisplayMs < 0 {
		return fmt.Errorf("autosave windows must not be negative")
	}
	if config.Autosave.SessionIdleMinutes < 1 {
		return fmt.Errorf("autosave.session_idle_minutes must be at least 1, got %d", config.Autosave.SessionIdleMinutes)
	}
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		// Recursively apply defaults to nested structs
		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}
