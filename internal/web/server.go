// Package web serves the read/write HTTP API over collected data and the
// static visualization frontend.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sam17/fxlifesheet/core/logger"
	"log/slog"
)

// NewRouter wires API routes to the stores. staticDir is served as a
// fallback for everything outside /api; empty disables it.
func NewRouter(qs QuestionStore, rs RecordStore, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsAllowAll)
	r.Use(requestLogger)

	h := &handler{questions: qs, records: rs}

	r.Route("/api", func(api chi.Router) {
		api.Get("/questions", h.handleQuestions)
		api.Get("/categories", h.handleCategories)
		api.Get("/raw_data", h.handleRawDataList)
		api.Get("/raw_data/{key}", h.handleRawDataByKey)
		api.Post("/raw_data", h.handleRawDataInsert)
	})

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	return r
}

func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.WEB.Info("request handled",
			slog.String("event", "request.handled"),
			slog.String("method", r.Method),
			slog.String("url", r.URL.Path),
			slog.Int("http_code", ww.Status()),
			slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
		)
	})
}
