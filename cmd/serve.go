package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/scheduler"
)

var servePort int

// scoreService is the scorer surface the HTTP layer consumes.
type scoreService interface {
	Report(ctx context.Context, entityID string, now time.Time) (*model.EntityScoreReport, error)
	Rollup(ctx context.Context, domain model.ExtractionDomain, now time.Time) (int, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireSecret gates cron endpoints behind a bearer token. An empty
// configured secret disables the check for local development.
func requireSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// newRouter wires the HTTP API. Split out from the serve command so tests
// can exercise routes without a listener.
func newRouter(scan scanService, scores scoreService, secret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/entities/{id}/score", func(w http.ResponseWriter, r *http.Request) {
		report, err := scores.Report(r.Context(), chi.URLParam(r, "id"), time.Now())
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireSecret(secret))

		r.Post("/cron/scan", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Domain    string `json:"domain"`
				BatchSize int    `json:"batch_size"`
				Force     bool   `json:"force"`
			}
			if r.ContentLength > 0 {
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}
			}

			report, err := scanDomains(r.Context(), scan, req.Domain, req.BatchSize, req.Force)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		r.Get("/cron/status", func(w http.ResponseWriter, r *http.Request) {
			status, err := scan.Status(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, status)
		})

		r.Post("/cron/rollup", func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			total := 0
			for _, domain := range model.AllDomains() {
				n, err := scores.Rollup(r.Context(), domain, now)
				if err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
				total += n
			}
			writeJSON(w, http.StatusOK, map[string]int{"snapshots": total})
		})

		r.Post("/reprocess", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Domain string `json:"domain"`
				Limit  int    `json:"limit"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			domain, err := model.ParseExtractionDomain(req.Domain)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			report, err := scan.Reprocess(r.Context(), scheduler.ReprocessParams{
				Domain: domain,
				Limit:  req.Limit,
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, report)
		})
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for cron triggers and score queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Server.CronSecret == "" {
			zap.L().Warn("cron secret not set, cron endpoints are unauthenticated")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Scheduler, env.Scorer, cfg.Server.CronSecret),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Strings("backends", env.Backends),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
