// Package config loads the tracking server configuration from YAML and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	StaticDir    string        `mapstructure:"static_dir"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
}

// PlayerConfig holds the route playback settings
type PlayerConfig struct {
	Interval         time.Duration `mapstructure:"interval" validate:"gt=0"`
	NearArrivalSteps int           `mapstructure:"near_arrival_steps" validate:"min=1"`
	RouteFile        string        `mapstructure:"route_file"` // empty means the built-in route
	WatchRoute       bool          `mapstructure:"watch_route"`
}

// AuthConfig holds the demo login settings
type AuthConfig struct {
	OneTimeCode string `mapstructure:"one_time_code" validate:"required,numeric"`
}

// StoreConfig holds the flag store settings
type StoreConfig struct {
	Path string `mapstructure:"path"` // empty means in-memory
}

// AppConfig holds entire config
type AppConfig struct {
	Server ServerConfig `mapstructure:"server"`
	Player PlayerConfig `mapstructure:"player"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Store  StoreConfig  `mapstructure:"store"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("player.interval", time.Second)
	v.SetDefault("player.near_arrival_steps", 3)
	v.SetDefault("player.route_file", "")
	v.SetDefault("player.watch_route", false)
	v.SetDefault("auth.one_time_code", "1234")
	v.SetDefault("store.path", "state/flags.json")
}

// Load reads the YAML file at path, if given, and applies TRUCK_* environment
// overrides (TRUCK_SERVER_PORT, TRUCK_PLAYER_INTERVAL, ...)
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("truck")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
