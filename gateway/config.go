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

package gateway

import (
	"os"
	"strconv"
)

// EnforcementMode controls whether policy decisions are carried out or
// only recorded.
type EnforcementMode string

const (
	ModeEnforce EnforcementMode = "enforce"  // Block and mask per policy
	ModeWarn    EnforcementMode = "warn"     // Log what would happen, never block or mask
	ModeLogOnly EnforcementMode = "log_only" // Forward everything untouched
)

// Config holds the gateway service configuration, collected from the
// environment at boot.
type Config struct {
	Port string

	// Upstream provider
	Provider        string // "openai" or "azure"
	DefaultModel    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AzureEndpoint   string
	AzureAPIKey     string
	AzureDeployment string
	AzureAPIVersion string

	// Enforcement pipeline
	EnforcementMode     EnforcementMode
	PIIDetectionEnabled bool
	PolicyFile          string

	// Audit shipping
	AuditStoreURL     string
	AuditServiceToken string
	AuditFallbackPath string
	AuditQueueSize    int
	AuditWorkers      int

	// Alerting
	AlertWebhookURL string
	SMTPHost        string
	SMTPPort        string
	SMTPUser        string
	SMTPPassword    string
	AlertEmailFrom  string
	AlertEmailTo    string

	// Rate limiting (disabled when RedisURL is empty)
	RedisURL           string
	RateLimitPerMinute int

	// Advisory only: the audit service owns retention
	LogRetentionDays int
}

// LoadConfig reads the gateway configuration from the environment.
func LoadConfig() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		Provider:        getEnv("LLM_PROVIDER", "openai"),
		DefaultModel:    getEnv("DEFAULT_MODEL", "gpt-4o"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		AzureDeployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		AzureAPIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),

		EnforcementMode:     EnforcementMode(getEnv("ENFORCEMENT_MODE", string(ModeEnforce))),
		PIIDetectionEnabled: getEnvBool("PII_DETECTION_ENABLED", true),
		PolicyFile:          getEnv("POLICY_FILE", "policies/default.yaml"),

		AuditStoreURL:     getEnv("AUDIT_STORE_URL", "http://localhost:8081"),
		AuditServiceToken: os.Getenv("AUDIT_SERVICE_TOKEN"),
		AuditFallbackPath: getEnv("AUDIT_FALLBACK_PATH", "audit_fallback.jsonl"),
		AuditQueueSize:    getEnvInt("AUDIT_QUEUE_SIZE", 1000),
		AuditWorkers:      getEnvInt("AUDIT_WORKERS", 2),

		AlertWebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		AlertEmailFrom:  os.Getenv("ALERT_EMAIL_FROM"),
		AlertEmailTo:    os.Getenv("ALERT_EMAIL_TO"),

		RedisURL:           os.Getenv("REDIS_URL"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		LogRetentionDays: getEnvInt("LOG_RETENTION_DAYS", 90),
	}
}

// Valid reports whether mode is one of the three known modes.
func (m EnforcementMode) Valid() bool {
	switch m {
	case ModeEnforce, ModeWarn, ModeLogOnly:
		return true
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
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
