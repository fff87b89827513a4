package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rpggio/stockcount/internal/domain/count"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Transport modes
const (
	ModeHTTP  = "http"
	ModeStdio = "stdio"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Store     StoreConfig     `yaml:"store"`
	Audit     AuditConfig     `yaml:"audit"`
	Log       LogConfig       `yaml:"log"`
	Facility  FacilityConfig  `yaml:"facility"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Dir    string `yaml:"dir"`
	DBPath string `yaml:"db_path"`
}

type AuditConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
	NodeID        int64  `yaml:"node_id"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// FacilityConfig seeds the facility document of an empty store.
type FacilityConfig struct {
	ID        string           `yaml:"id"`
	Name      string           `yaml:"name"`
	Locations []LocationConfig `yaml:"locations"`
}

type LocationConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Zone string `yaml:"zone"`
}

// Document converts the seed into a facility document.
func (f FacilityConfig) Document() *count.Facility {
	locations := make([]count.Location, 0, len(f.Locations))
	for _, loc := range f.Locations {
		locations = append(locations, count.Location{ID: loc.ID, Name: loc.Name, Zone: loc.Zone})
	}
	return &count.Facility{ID: f.ID, Name: f.Name, Locations: locations}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Transport: TransportConfig{
			Mode: ModeHTTP,
		},
		Store: StoreConfig{
			Driver: DriverJSON,
			Dir:    "data",
			DBPath: "data/stockcount.db",
		},
		Audit: AuditConfig{
			Dir:           "data/audit",
			RetentionDays: 365,
			NodeID:        1,
		},
		Log: LogConfig{
			Level: "info",
		},
		Facility: FacilityConfig{
			ID:   "main",
			Name: "Main facility",
			Locations: []LocationConfig{
				{ID: "MAIN", Name: "Main storage"},
			},
		},
	}
}

// Load reads configuration from the file named by STOCKCOUNT_CONFIG_PATH, if
// any, then applies environment overrides.
func Load() (Config, error) {
	return LoadFrom(os.Getenv("STOCKCOUNT_CONFIG_PATH"))
}

// LoadFrom reads configuration from an optional YAML file and environment variables.
func LoadFrom(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("STOCKCOUNT_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("STOCKCOUNT_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid STOCKCOUNT_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if mode := os.Getenv("STOCKCOUNT_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = strings.ToLower(mode)
	}
	if driver := os.Getenv("STOCKCOUNT_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = strings.ToLower(driver)
	}
	if dir := os.Getenv("STOCKCOUNT_STORE_DIR"); dir != "" {
		cfg.Store.Dir = dir
	}
	if dbPath := os.Getenv("STOCKCOUNT_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if dir := os.Getenv("STOCKCOUNT_AUDIT_DIR"); dir != "" {
		cfg.Audit.Dir = dir
	}
	if daysStr := os.Getenv("STOCKCOUNT_AUDIT_RETENTION_DAYS"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return fmt.Errorf("invalid STOCKCOUNT_AUDIT_RETENTION_DAYS: %w", err)
		}
		cfg.Audit.RetentionDays = days
	}
	if nodeStr := os.Getenv("STOCKCOUNT_AUDIT_NODE_ID"); nodeStr != "" {
		node, err := strconv.ParseInt(nodeStr, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid STOCKCOUNT_AUDIT_NODE_ID: %w", err)
		}
		cfg.Audit.NodeID = node
	}
	if level := os.Getenv("STOCKCOUNT_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if path := os.Getenv("STOCKCOUNT_LOG_PATH"); path != "" {
		cfg.Log.Path = path
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverJSON, DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Transport.Mode {
	case ModeHTTP, ModeStdio:
	default:
		errs = append(errs, fmt.Errorf("unknown transport mode %q", c.Transport.Mode))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if c.Audit.RetentionDays < 0 {
		errs = append(errs, errors.New("audit retention days cannot be negative"))
	}
	if c.Audit.NodeID < 0 || c.Audit.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("audit node id %d out of range 0-1023", c.Audit.NodeID))
	}
	return errors.Join(errs...)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
