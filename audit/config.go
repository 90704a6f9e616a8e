// Copyright 2025 PromptGate
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Config holds the audit service configuration, collected from the
// environment at boot.
type Config struct {
	Port        string
	DatabaseURL string

	// JWT auth for the read side; disabled when the secret is empty
	JWTSecret string
	// Shared token the gateway presents on the write endpoint
	ServiceToken string

	// IANA timezone for trend day-bucketing; UTC when empty
	TrendTZ string

	// Advisory retention window reported in /health
	LogRetentionDays int
}

// LoadConfig reads the audit service configuration from the environment.
// The database connection string is built from separate DATABASE_* vars,
// with DATABASE_URL as a fallback.
func LoadConfig() Config {
	return Config{
		Port:             getEnv("PORT", "8081"),
		DatabaseURL:      databaseURL(),
		JWTSecret:        os.Getenv("AUDIT_JWT_SECRET"),
		ServiceToken:     os.Getenv("AUDIT_SERVICE_TOKEN"),
		TrendTZ:          os.Getenv("AUDIT_TREND_TZ"),
		LogRetentionDays: getEnvInt("LOG_RETENTION_DAYS", 90),
	}
}

func databaseURL() string {
	host := os.Getenv("DATABASE_HOST")
	password := os.Getenv("DATABASE_PASSWORD")
	if host == "" || password == "" {
		return os.Getenv("DATABASE_URL")
	}

	port := getEnv("DATABASE_PORT", "5432")
	name := getEnv("DATABASE_NAME", "promptgate")
	user := getEnv("DATABASE_USER", "promptgate_app")
	sslMode := getEnv("DATABASE_SSLMODE", "require")

	// URL-encode credentials so special characters survive the URI format
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(user), url.QueryEscape(password), host, port, name, sslMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
