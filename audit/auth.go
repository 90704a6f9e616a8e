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
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// AuthMiddleware guards the read side with bearer JWTs. Auth is
// disabled when no secret is configured, which keeps local development
// friction-free.
//
// The gateway's write endpoint authenticates with the shared service
// token instead, so a gateway deployment never needs a user JWT.
func (s *Server) AuthMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.cfg.JWTSecret == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Gateway write path uses the shared service token
			if r.Method == http.MethodPost && r.URL.Path == "/api/v1/logs" {
				if s.serviceTokenValid(r) {
					next.ServeHTTP(w, r)
					return
				}
				promAuthFailures.Inc()
				writeError(w, http.StatusUnauthorized, "Invalid service token")
				return
			}

			if err := s.validateBearer(r); err != nil {
				promAuthFailures.Inc()
				writeError(w, http.StatusUnauthorized, "Invalid or missing token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) serviceTokenValid(r *http.Request) bool {
	if s.cfg.ServiceToken == "" {
		return false
	}
	presented := r.Header.Get("X-Service-Token")
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.cfg.ServiceToken)) == 1
}

func (s *Server) validateBearer(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return fmt.Errorf("missing bearer token")
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
