package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration loaded from a YAML file and
// overridden by environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Timezone string         `yaml:"timezone" validate:"required"`

	UpdateInterval    time.Duration `yaml:"updateInterval" validate:"gt=0"`
	SkipMinutes       int           `yaml:"skipMinutes" validate:"gte=0"`
	MaximumEntries    int           `yaml:"maximumEntries" validate:"gte=0"`
	MaximumDuration   int           `yaml:"maximumDuration" validate:"gte=0"` // minutes
	TruncateAfter     int           `yaml:"truncateAfter" validate:"gte=0"`
	TruncateLineAfter int           `yaml:"truncateLineAfter" validate:"gte=0"`

	Routes   []Route        `yaml:"routes" validate:"required,min=1,dive"`
	ResRobot ResRobotConfig `yaml:"resrobot"`
	Realtime RealtimeConfig `yaml:"realtime"`

	// Location is resolved from Timezone by Load.
	Location *time.Location `yaml:"-"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0,lte=65535"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // empty disables persistence
}

// Route is one configured origin/destination pair. Its index in
// Config.Routes is the route ID.
type Route struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to"`
}

// ResRobotConfig configures the departure board API.
type ResRobotConfig struct {
	APIBase       string `yaml:"apiBase" validate:"required,url"`
	APIKey        string `yaml:"apiKey" validate:"required"`
	DirectionFlag string `yaml:"directionFlag"`
}

// RealtimeConfig configures the GTFS-RT TripUpdates feed.
type RealtimeConfig struct {
	BaseURL  string `yaml:"baseUrl" validate:"omitempty,url"`
	APIKey   string `yaml:"apiKey"`
	Operator string `yaml:"operator" validate:"required_with=APIKey"`
	StopID   string `yaml:"stopId" validate:"required_with=APIKey"`
	Bands    []Band `yaml:"bands" validate:"dive"`
}

// Enabled reports whether enough is configured to poll the delay feed.
func (r RealtimeConfig) Enabled() bool {
	return r.BaseURL != "" && r.APIKey != "" && r.Operator != "" && r.StopID != ""
}

// Band is an hour range with a polling frequency. End is exclusive;
// Start > End denotes a band that wraps midnight.
type Band struct {
	Name      string `yaml:"name"`
	Start     int    `yaml:"start" validate:"min=0,max=23"`
	End       int    `yaml:"end" validate:"min=0,max=24"`
	Frequency int    `yaml:"frequency" validate:"gt=0"` // seconds
}

// Default returns the built-in configuration that a config file overrides.
func Default() *Config {
	return &Config{
		Server:            ServerConfig{Port: 8080},
		Timezone:          "Europe/Stockholm",
		UpdateInterval:    time.Minute,
		SkipMinutes:       0,
		MaximumEntries:    6,
		MaximumDuration:   360,
		TruncateAfter:     5,
		TruncateLineAfter: 5,
		ResRobot: ResRobotConfig{
			APIBase: "https://api.resrobot.se/v2.1/departureBoard?format=json&passlist=0",
		},
		Realtime: RealtimeConfig{
			BaseURL: "https://opendata.samtrafiken.se/gtfs-rt/",
			Bands: []Band{
				{Name: "morning", Start: 6, End: 10, Frequency: 60},
				{Name: "midday", Start: 10, End: 15, Frequency: 120},
				{Name: "afternoon", Start: 15, End: 20, Frequency: 60},
				{Name: "evening", Start: 20, End: 23, Frequency: 120},
				{Name: "night", Start: 23, End: 6, Frequency: 300},
			},
		},
	}
}

// Path returns the config file path from the environment, or the default.
func Path() string {
	return envStr("RESBOARD_CONFIG", "config.yml")
}

// Load reads the YAML file at path on top of Default, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and resolves Location.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = envInt("RESBOARD_PORT", c.Server.Port)
	c.Database.Path = envStr("RESBOARD_DB_PATH", c.Database.Path)
	c.ResRobot.APIKey = envStr("RESROBOT_API_KEY", c.ResRobot.APIKey)
	c.Realtime.APIKey = envStr("GTFS_RT_API_KEY", c.Realtime.APIKey)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
