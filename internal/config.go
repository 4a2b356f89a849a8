package internal

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Store  StoreConfig       `yaml:"store"`
	Events EventsConfig      `yaml:"events"`
	Watch  WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig locates the database file. The support directory is created on
// first open.
type StoreConfig struct {
	SupportDir string `yaml:"support_dir"`
	FileName   string `yaml:"file_name"`
}

// Path returns the full database path.
func (c *StoreConfig) Path() string {
	return filepath.Join(c.SupportDir, c.FileName)
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SupportDir, validation.Required),
		validation.Field(&c.FileName, validation.Required, validation.By(plainFileName)),
	)
}

func plainFileName(value any) error {
	name, _ := value.(string)
	if name != filepath.Base(name) {
		return fmt.Errorf("must be a file name, not a path")
	}
	return nil
}

// EventsConfig controls the server-sent event stream.
type EventsConfig struct {
	// Throttle is the minimum spacing of listing.changed events.
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
}

// WatchConfig toggles detection of writes made by other processes.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 8080,
			},
		},
		Store: StoreConfig{
			SupportDir: defaultSupportDir(),
			FileName:   "blitlinks.db",
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}
}

func defaultSupportDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(dir, "blitlinks")
}
