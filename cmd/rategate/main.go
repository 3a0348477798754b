// Command rategate runs a small HTTP service demonstrating the admission
// control library: a quota-limited demo endpoint, a login endpoint with
// escalating backoff for repeat offenders, and stats for dashboards.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"rate-gate/internal/common/logging"
	"rate-gate/internal/config"
	"rate-gate/internal/middleware"
	"rate-gate/internal/ratelimit"
	"rate-gate/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()

	limiter := ratelimit.New(ratelimit.BuildStore(cfg), &ratelimit.Config{
		Enabled:         cfg.RateLimitEnabled,
		CleanupInterval: cfg.CleanupInterval,
	})
	defer limiter.Destroy()

	defaultPolicy := policyFromConfig(cfg)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.Handle("/demo", limiter.HTTPMiddleware(defaultPolicy)(http.HandlerFunc(handleDemo))).Methods("GET")
	api.HandleFunc("/login", handleLogin(limiter)).Methods("POST")
	api.HandleFunc("/stats", handleStats(limiter)).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods("GET")

	srv := server.New(router, cfg.Port)
	serverErrs := srv.Start()
	logging.Info("Server started", logging.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrs:
		log.Fatalf("Server failed: %v", err)
	case <-quit:
	}
	logging.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logging.Info("Server exited")
}

// policyFromConfig builds the default quota from RATE_LIMIT_DEFAULT and
// RATE_LIMIT_WINDOW. Validate() already vetted both values.
func policyFromConfig(cfg *config.Config) ratelimit.Policy {
	maxRequests, _ := strconv.Atoi(cfg.RateLimitDefault)
	window, _ := time.ParseDuration(cfg.RateLimitWindow)
	return ratelimit.Policy{
		WindowDuration: window,
		MaxRequests:    maxRequests,
	}
}

func handleDemo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "admitted"})
}

// handleLogin throttles authentication attempts and escalates the advertised
// wait for identifiers that keep violating the quota.
func handleLogin(limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, err := limiter.CheckRateLimit(r.Context(), r, ratelimit.AuthPolicy)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if !decision.Allowed {
			wait := limiter.Backoff().CalculateBackoff(ratelimit.ClientKey(r), ratelimit.AuthPolicy.WindowDuration)
			if wait < decision.RetryAfter {
				wait = decision.RetryAfter
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)))
			http.Error(w, "Too many login attempts", http.StatusTooManyRequests)
			return
		}

		// Demo only: no credential handling here.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"remaining": decision.Remaining,
		})
	}
}

func handleStats(limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(limiter.GetStats(r.Context()))
	}
}
