// Copyright 2019-2020 VMware, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/vmware/stompsession-go/log"
)

// EnvPrefix prefixes environment overrides, e.g. STOMPD_TCP_ADDRESS.
const EnvPrefix = "STOMPD"

type Config struct {
	Tcp           TcpConfig       `mapstructure:"tcp"`
	WebSocket     WebSocketConfig `mapstructure:"websocket"`
	Stomp         StompConfig     `mapstructure:"stomp"`
	Metrics       MetricsConfig   `mapstructure:"metrics"`
	Amqp          AmqpConfig      `mapstructure:"amqp"`
	Log           log.LogConfig   `mapstructure:"log"`
	Users         []UserConfig    `mapstructure:"users"`
	StatsSchedule string          `mapstructure:"stats_schedule"`
}

type TcpConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type WebSocketConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Address        string   `mapstructure:"address"`
	Endpoint       string   `mapstructure:"endpoint"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type StompConfig struct {
	// HeartBeatMs is the minimum heart-beat interval, 0 disables heart-beating.
	HeartBeatMs int64  `mapstructure:"heart_beat_ms"`
	ServerName  string `mapstructure:"server_name"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	AccessLog bool   `mapstructure:"access_log"`
}

// AmqpConfig enables forwarding of SEND frames when Url is set.
type AmqpConfig struct {
	Url      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// UserConfig is one entry of the user table. Without users every client may connect.
type UserConfig struct {
	Login        string   `mapstructure:"login"`
	PasscodeHash string   `mapstructure:"passcode_hash"`
	Destinations []string `mapstructure:"destinations"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tcp.enabled", true)
	v.SetDefault("tcp.address", ":61613")
	v.SetDefault("websocket.enabled", false)
	v.SetDefault("websocket.address", ":61614")
	v.SetDefault("websocket.endpoint", "/stomp")
	v.SetDefault("websocket.allowed_origins", []string{})
	v.SetDefault("stomp.heart_beat_ms", 0)
	v.SetDefault("stomp.server_name", "stompsession/1.0")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":9090")
	v.SetDefault("metrics.access_log", false)
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "amq.topic")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.no_colors", false)
	v.SetDefault("log.full_timestamp", true)
	v.SetDefault("stats_schedule", "@every 1m")
}

// Load reads the configuration from path, which may be empty to use only defaults and
// environment overrides. The file format is taken from the extension (yaml, json, toml).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be fixed by defaults.
func (c *Config) Validate() error {
	if !c.Tcp.Enabled && !c.WebSocket.Enabled {
		return fmt.Errorf("at least one of tcp or websocket transports must be enabled")
	}
	if c.Stomp.HeartBeatMs < 0 {
		return fmt.Errorf("stomp.heart_beat_ms must not be negative")
	}
	if c.WebSocket.Enabled && !strings.HasPrefix(c.WebSocket.Endpoint, "/") {
		return fmt.Errorf("websocket.endpoint must start with '/'")
	}

	logins := make(map[string]bool)
	for i, user := range c.Users {
		if user.Login == "" {
			return fmt.Errorf("users[%d] has no login", i)
		}
		if logins[user.Login] {
			return fmt.Errorf("duplicate user '%s'", user.Login)
		}
		logins[user.Login] = true
	}
	return nil
}

// AuthEnabled reports whether clients must present credentials.
func (c *Config) AuthEnabled() bool {
	return len(c.Users) > 0
}
