// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package config loads the dispatch settings from a YAML file, the environment and Redis.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	dispatch "github.com/wneessen/go-mail-dispatch"
)

// Transport kinds
const (
	TransportSMTP  = "smtp"
	TransportSpool = "spool"
	TransportRedis = "redis"
)

// ErrUnknownTransport is returned by Validate for an unsupported transport kind.
var ErrUnknownTransport = errors.New("unknown transport kind")

// Settings is the complete configuration of the dispatch CLI. It implements dispatch.Config
// for the settings of the Mailer section.
type Settings struct {
	Mailer    Mailer    `yaml:"mailer,omitempty"`
	Transport Transport `yaml:"transport,omitempty"`
	Redis     Redis     `yaml:"redis,omitempty"`
	Server    Server    `yaml:"server,omitempty"`
	Log       Log       `yaml:"log,omitempty"`
}

// Mailer holds the settings read by the dispatch core
type Mailer struct {
	FromEmail        string            `yaml:"from_email,omitempty"`
	FromName         string            `yaml:"from_name,omitempty"`
	ReplyToEmail     string            `yaml:"reply_to_email,omitempty"`
	CustomHeaders    map[string]string `yaml:"custom_headers,omitempty"`
	MinifyHTML       *bool             `yaml:"minify_html,omitempty"`
	TrackingPixel    *bool             `yaml:"append_tracking_pixel,omitempty"`
	IdentityLimit    int               `yaml:"identity_limit,omitempty"`
	BatchSize        int               `yaml:"batch_size,omitempty"`
	DefaultSignature string            `yaml:"default_signature,omitempty"`
}

// Transport selects and configures the delivery transport
type Transport struct {
	Kind  string `yaml:"kind,omitempty"`
	SMTP  SMTP   `yaml:"smtp,omitempty"`
	Spool Spool  `yaml:"spool,omitempty"`
	Queue Queue  `yaml:"queue,omitempty"`
}

// SMTP configures the SMTP transport
type SMTP struct {
	Host      string        `yaml:"host,omitempty"`
	Port      int           `yaml:"port,omitempty"`
	Username  string        `yaml:"username,omitempty"`
	Password  string        `yaml:"password,omitempty"`
	TLSPolicy string        `yaml:"tls_policy,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

// Spool configures the pickup directory transport
type Spool struct {
	Dir          string `yaml:"dir,omitempty"`
	DKIMSelector string `yaml:"dkim_selector,omitempty"`
	DKIMDomain   string `yaml:"dkim_domain,omitempty"`
	DKIMKeyPath  string `yaml:"dkim_key_path,omitempty"`
}

// Queue configures the Redis queue transport
type Queue struct {
	Key        string `yaml:"key,omitempty"`
	BatchLimit int    `yaml:"batch_limit,omitempty"`
}

// Redis configures the Redis connection used for owners, unsubscribes, the queue transport
// and the dynamic configuration overlay
type Redis struct {
	URL string `yaml:"url,omitempty"`
}

// Server configures the unsubscribe HTTP endpoint
type Server struct {
	Addr           string   `yaml:"addr,omitempty"`
	BaseURL        string   `yaml:"base_url,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// Log configures the logger
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns the default Settings.
func Default() *Settings {
	minify, track := false, true
	return &Settings{
		Mailer: Mailer{
			MinifyHTML:    &minify,
			TrackingPixel: &track,
			IdentityLimit: dispatch.DefaultIdentityLimit,
		},
		Transport: Transport{
			Kind: TransportSMTP,
			SMTP: SMTP{
				Host:      "localhost",
				Port:      587,
				TLSPolicy: "mandatory",
				Timeout:   30 * time.Second,
			},
			Spool: Spool{Dir: "spool"},
			Queue: Queue{Key: "dispatch:jobs"},
		},
		Server: Server{
			Addr:    ":8080",
			BaseURL: "http://localhost:8080",
		},
		Log: Log{Level: "warn", Format: "text"},
	}
}

// Load reads the settings from the YAML file at path, fills unset values from Default and
// applies the DISPATCH_* environment variables on top. Environment variables referenced in the
// file are expanded. An empty path skips the file.
func Load(path string) (*Settings, error) {
	var cfg Settings
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		data = []byte(os.ExpandEnv(string(data)))
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("failed to apply default settings: %w", err)
	}
	env, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err = mergo.Merge(&cfg, env, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to apply environment settings: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings for consistency.
func (s *Settings) Validate() error {
	if s.Mailer.FromEmail != "" {
		if err := dispatch.ValidateEmail(s.Mailer.FromEmail); err != nil {
			return fmt.Errorf("mailer.from_email: %w", err)
		}
	}
	if s.Mailer.ReplyToEmail != "" {
		if err := dispatch.ValidateEmail(s.Mailer.ReplyToEmail); err != nil {
			return fmt.Errorf("mailer.reply_to_email: %w", err)
		}
	}
	switch s.Transport.Kind {
	case TransportSMTP:
		if s.Transport.SMTP.Host == "" {
			return errors.New("transport.smtp.host is required")
		}
	case TransportSpool:
		if s.Transport.Spool.Dir == "" {
			return errors.New("transport.spool.dir is required")
		}
	case TransportRedis:
		if s.Redis.URL == "" {
			return errors.New("redis.url is required for the redis transport")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, s.Transport.Kind)
	}
	return nil
}

// values returns the Mailer settings keyed by the dispatch configuration keys
func (s *Settings) values() dispatch.StaticConfig {
	c := dispatch.StaticConfig{}
	m := s.Mailer
	setString(c, dispatch.KeyFromEmail, m.FromEmail)
	setString(c, dispatch.KeyFromName, m.FromName)
	setString(c, dispatch.KeyReplyToEmail, m.ReplyToEmail)
	setString(c, dispatch.KeyDefaultSignature, m.DefaultSignature)
	if len(m.CustomHeaders) > 0 {
		c[dispatch.KeyCustomHeaders] = m.CustomHeaders
	}
	if m.MinifyHTML != nil {
		c[dispatch.KeyMinifyHTML] = *m.MinifyHTML
	}
	if m.TrackingPixel != nil {
		c[dispatch.KeyAppendTrackingPixel] = *m.TrackingPixel
	}
	if m.IdentityLimit > 0 {
		c[dispatch.KeyIdentityLimit] = m.IdentityLimit
	}
	if m.BatchSize > 0 {
		c[dispatch.KeyGroupSize] = m.BatchSize
	}
	return c
}

func setString(c dispatch.StaticConfig, key, value string) {
	if value != "" {
		c[key] = value
	}
}

// String satisfies the dispatch.Config interface.
func (s *Settings) String(key, def string) string {
	return s.values().String(key, def)
}

// Bool satisfies the dispatch.Config interface.
func (s *Settings) Bool(key string, def bool) bool {
	return s.values().Bool(key, def)
}

// Int satisfies the dispatch.Config interface.
func (s *Settings) Int(key string, def int) int {
	return s.values().Int(key, def)
}

// StringMap satisfies the dispatch.Config interface.
func (s *Settings) StringMap(key string) map[string]string {
	return s.values().StringMap(key)
}
