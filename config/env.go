// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of all environment variables read by FromEnv
const EnvPrefix = "DISPATCH_"

// DotEnvFile is the file FromEnv loads environment variables from, if it exists
var DotEnvFile = ".env"

// FromEnv returns the settings given by DISPATCH_* environment variables. Variables are loaded
// from DotEnvFile first, without overriding variables that are already set. Unset variables
// leave the corresponding setting at its zero value.
func FromEnv() (*Settings, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
	}

	s := &Settings{}
	s.Mailer.FromEmail = env("FROM_EMAIL")
	s.Mailer.FromName = env("FROM_NAME")
	s.Mailer.ReplyToEmail = env("REPLY_TO_EMAIL")
	s.Mailer.DefaultSignature = env("DEFAULT_SIGNATURE")
	s.Mailer.MinifyHTML = envBool("MINIFY_HTML")
	s.Mailer.TrackingPixel = envBool("TRACKING_PIXEL")
	s.Mailer.IdentityLimit = envInt("IDENTITY_LIMIT")
	s.Mailer.BatchSize = envInt("BATCH_SIZE")

	s.Transport.Kind = env("TRANSPORT")
	s.Transport.SMTP.Host = env("SMTP_HOST")
	s.Transport.SMTP.Port = envInt("SMTP_PORT")
	s.Transport.SMTP.Username = env("SMTP_USERNAME")
	s.Transport.SMTP.Password = env("SMTP_PASSWORD")
	s.Transport.SMTP.TLSPolicy = env("SMTP_TLS_POLICY")
	if d, err := time.ParseDuration(env("SMTP_TIMEOUT")); err == nil {
		s.Transport.SMTP.Timeout = d
	}
	s.Transport.Spool.Dir = env("SPOOL_DIR")
	s.Transport.Spool.DKIMSelector = env("DKIM_SELECTOR")
	s.Transport.Spool.DKIMDomain = env("DKIM_DOMAIN")
	s.Transport.Spool.DKIMKeyPath = env("DKIM_KEY_PATH")
	s.Transport.Queue.Key = env("QUEUE_KEY")

	s.Redis.URL = env("REDIS_URL")
	s.Server.Addr = env("SERVER_ADDR")
	s.Server.BaseURL = env("BASE_URL")
	if origins := env("ALLOWED_ORIGINS"); origins != "" {
		s.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	s.Log.Level = env("LOG_LEVEL")
	s.Log.Format = env("LOG_FORMAT")
	return s, nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

// envBool only recognises "true" and "false", any other value is treated as unset
func envBool(name string) *bool {
	var b bool
	switch strings.ToLower(env(name)) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		return nil
	}
	return &b
}

func envInt(name string) int {
	i, err := strconv.Atoi(env(name))
	if err != nil {
		return 0
	}
	return i
}
