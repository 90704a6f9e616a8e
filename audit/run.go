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

	"promptgate/platform/shared/logger"
)

// Application readiness state for health checks
var appReady atomic.Bool

var (
	globalRouter *mux.Router
	globalCORS   *cors.Cors
	globalCfg    Config
)

// initServerImmediately starts the HTTP server with just /health so
// health checks pass while the database connection is still coming up.
// Routes are added afterwards; the server never restarts.
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
		log.Printf("PromptGate audit service starting on port %s (status: starting)", port)
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
		"status":             status,
		"service":            "promptgate-audit",
		"log_retention_days": globalCfg.LogRetentionDays,
		"timestamp":          time.Now().UTC(),
	}); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// loggingMiddleware logs every request with its duration.
func loggingMiddleware(component string) mux.MiddlewareFunc {
	accessLog := logger.New(component)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			accessLog.InfoWithDuration("", "", r.Method+" "+r.URL.Path,
				time.Since(start), map[string]interface{}{
					"remote": r.RemoteAddr,
				})
		})
	}
}

// Run is the exported entry point for the audit service. When seed is
// true, demo data is inserted after the store connects.
func Run(seed bool) {
	cfg := LoadConfig()
	globalCfg = cfg
	initServerImmediately(cfg.Port)

	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL (or DATABASE_HOST/DATABASE_PASSWORD) is required")
	}

	store, err := OpenStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if err := store.EnsureSchema(); err != nil {
		log.Fatalf("Schema error: %v", err)
	}

	if seed {
		if err := SeedDemoData(store); err != nil {
			log.Fatalf("Seed error: %v", err)
		}
		log.Println("Demo data seeded")
	}

	server := NewServer(cfg, store)

	api := globalRouter.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware("audit-access"))
	api.Use(server.AuthMiddleware())

	api.HandleFunc("/logs", server.HandleCreateLog).Methods("POST")
	api.HandleFunc("/logs", server.HandleListLogs).Methods("GET")
	api.HandleFunc("/logs/stats", server.HandleStats).Methods("GET")
	api.HandleFunc("/logs/export/csv", server.HandleExportCSV).Methods("GET")
	api.HandleFunc("/logs/{id}", server.HandleGetLog).Methods("GET")

	api.HandleFunc("/violations", server.HandleListViolations).Methods("GET")
	api.HandleFunc("/violations/summary", server.HandleViolationsSummary).Methods("GET")
	api.HandleFunc("/violations/trends", server.HandleViolationTrends).Methods("GET")
	api.HandleFunc("/violations/by-type", server.HandleViolationsByType).Methods("GET")

	api.HandleFunc("/reports/audit", server.HandleAuditReport).Methods("GET")

	globalRouter.Handle("/metrics", promhttp.Handler()).Methods("GET")

	appReady.Store(true)
	log.Printf("PromptGate audit service ready (auth=%t, retention=%dd)",
		cfg.JWTSecret != "", cfg.LogRetentionDays)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down audit service...")
	_ = store.DB().Close()
}
