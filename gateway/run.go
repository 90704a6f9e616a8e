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
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"promptgate/platform/gateway/policy"
	"promptgate/platform/gateway/providers"
	"promptgate/platform/shared/logger"
)

// Application readiness state for health checks
var appReady atomic.Bool

var (
	globalRouter *mux.Router
	globalCORS   *cors.Cors
)

// initServerImmediately starts the HTTP server with just /health so
// load-balancer health checks pass while initialization (Redis, policy
// load, emitter startup) is still running. Routes are added afterwards;
// the server never restarts.
func initServerImmediately(port string) {
	globalRouter = mux.NewRouter()

	globalCORS = cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	globalRouter.HandleFunc("/health", healthHandler).Methods("GET")

	go func() {
		handler := globalCORS.Handler(globalRouter)
		log.Printf("PromptGate gateway starting on port %s (status: starting)", port)
		if err := http.ListenAndServe(":"+port, handler); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Give the listener a moment before initialization begins
	time.Sleep(50 * time.Millisecond)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := "starting"
	if appReady.Load() {
		status = "healthy"
	}
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    status,
		"service":   "promptgate-gateway",
		"timestamp": time.Now().UTC(),
	}); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// loggingMiddleware logs every request with its id and duration.
func loggingMiddleware(component string) mux.MiddlewareFunc {
	accessLog := logger.New(component)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			accessLog.InfoWithDuration("", w.Header().Get("X-Request-ID"),
				r.Method+" "+r.URL.Path, time.Since(start), map[string]interface{}{
					"remote": r.RemoteAddr,
				})
		})
	}
}

// buildProvider selects the upstream adapter from configuration.
func buildProvider(cfg Config) (providers.Provider, error) {
	if cfg.Provider == "azure" {
		return providers.NewAzureProvider(providers.AzureConfig{
			Endpoint:   cfg.AzureEndpoint,
			APIKey:     cfg.AzureAPIKey,
			Deployment: cfg.AzureDeployment,
			APIVersion: cfg.AzureAPIVersion,
		})
	}
	return providers.NewOpenAIProvider(providers.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
}

// Run is the exported entry point for the gateway service.
func Run() {
	cfg := LoadConfig()
	initServerImmediately(cfg.Port)

	if !cfg.EnforcementMode.Valid() {
		log.Fatalf("Invalid ENFORCEMENT_MODE %q (want enforce, warn, or log_only)", cfg.EnforcementMode)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("Provider configuration error: %v", err)
	}

	engine := policy.NewEngine(cfg.PolicyFile)

	emitter, err := NewAuditEmitter(cfg.AuditStoreURL, cfg.AuditServiceToken,
		cfg.AuditFallbackPath, cfg.AuditQueueSize, cfg.AuditWorkers)
	if err != nil {
		log.Fatalf("Audit emitter error: %v", err)
	}

	alerter := NewAlerter(cfg)

	var limiter *RateLimiter
	if cfg.RedisURL != "" {
		limiter, err = NewRateLimiter(cfg.RedisURL, cfg.RateLimitPerMinute)
		if err != nil {
			// Missing Redis at boot only disables the limiter
			log.Printf("Rate limiter disabled: %v", err)
			limiter = nil
		}
	}

	gw := NewGateway(cfg, engine, provider, emitter, alerter, limiter)

	globalRouter.Use(loggingMiddleware("gateway-access"))
	globalRouter.HandleFunc("/v1/chat/completions", gw.HandleChatCompletions).Methods("POST")
	globalRouter.HandleFunc("/v1/policy", gw.HandleGetPolicy).Methods("GET")
	globalRouter.HandleFunc("/v1/policy/reload", gw.HandleReloadPolicy).Methods("POST")
	globalRouter.Handle("/metrics", promhttp.Handler()).Methods("GET")

	appReady.Store(true)
	log.Printf("PromptGate gateway ready (provider=%s, mode=%s, pii_detection=%t)",
		provider.Name(), cfg.EnforcementMode, cfg.PIIDetectionEnabled)

	// Block until shutdown signal, then drain the audit queue
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down gateway...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := emitter.Shutdown(ctx); err != nil {
		log.Printf("Audit emitter shutdown: %v", err)
	}
	if limiter != nil {
		_ = limiter.Close()
	}
}
