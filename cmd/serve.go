package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/pipeline"
	"github.com/sells-group/domain-intel/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		dispatcher := pipeline.NewDispatcher(env.Pipeline, pipeline.WithWorkers(cfg.Pipeline.Workers))
		go func() {
			if err := dispatcher.Run(ctx); err != nil && !eris.Is(err, context.Canceled) {
				zap.L().Error("dispatcher stopped", zap.Error(err))
			}
		}()

		router := newRouter(env, dispatcher)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *env, dispatcher *pipeline.Dispatcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/analyses", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Domain string `json:"domain"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.Domain == "" {
				writeError(w, http.StatusBadRequest, "domain is required")
				return
			}

			job, err := env.Pipeline.Start(req.Context(), body.Domain)
			if err != nil {
				zap.L().Error("create analysis", zap.String("domain", body.Domain), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to create analysis")
				return
			}
			if !dispatcher.Enqueue(job) {
				writeError(w, http.StatusServiceUnavailable, "analysis queue is full")
				return
			}
			writeJSON(w, http.StatusAccepted, job)
		})

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			jobs, err := env.Store.ListJobs(req.Context(), store.JobFilter{
				Stage:      model.Stage(req.URL.Query().Get("stage")),
				DomainName: req.URL.Query().Get("domain"),
				Limit:      limit,
			})
			if err != nil {
				zap.L().Error("list analyses", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to list analyses")
				return
			}
			if jobs == nil {
				jobs = []model.AnalysisJob{}
			}
			writeJSON(w, http.StatusOK, jobs)
		})

		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			job, err := env.Store.GetJob(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, http.StatusNotFound, "analysis not found")
				return
			}
			writeJSON(w, http.StatusOK, job)
		})

		r.Get("/{id}/training", func(w http.ResponseWriter, req *http.Request) {
			modules, err := env.Store.ListTrainingModules(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				zap.L().Error("list training modules", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "failed to list training modules")
				return
			}
			if modules == nil {
				modules = []model.TrainingModule{}
			}
			writeJSON(w, http.StatusOK, modules)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
