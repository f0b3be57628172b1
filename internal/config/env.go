package config

import (
	"strconv"
	"strings"
)

// Environment variables that override the file.
const (
	EnvSecret     = "OPTIN_SECRET"
	EnvAdminToken = "OPTIN_ADMIN_TOKEN"
	EnvRedisURL   = "REDIS_URL"
	EnvPort       = "PORT"
	EnvEnv        = "APP_ENV"
)

func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvSecret); ok {
		cfg.Newsletter.Secret = v
	}
	if v, ok := get(EnvAdminToken); ok {
		cfg.Newsletter.AdminToken = v
	}
	if v, ok := get(EnvRedisURL); ok {
		cfg.Redis.URL = v
		cfg.Redis.Enable = true
	}
	if v, ok := get(EnvPort); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v, ok := get(EnvEnv); ok {
		cfg.Env = v
	}
}
