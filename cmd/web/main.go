package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sam17/fxlifesheet/core/config"
	"github.com/sam17/fxlifesheet/core/database"
	"github.com/sam17/fxlifesheet/core/logger"
	"github.com/sam17/fxlifesheet/internal/questions"
	"github.com/sam17/fxlifesheet/internal/records"
	"github.com/sam17/fxlifesheet/internal/web"
	"log/slog"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := logger.Init(logger.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		KeysOrder: cfg.Logging.KeysOrder,
		Dir:       cfg.Logging.Dir,
		File:      cfg.Logging.WebFile,
		Profile:   cfg.Logging.Profile,
	}); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Shutdown() }()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.L.Error("db connect failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	listen := cfg.Web.Listen
	if listen == "" {
		listen = ":8080"
	}

	router := web.NewRouter(
		questions.NewSQLCatalog(db),
		records.NewSQLSink(db),
		cfg.Web.StaticDir,
	)
	server := &http.Server{
		Addr:              listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WEB.Info("server listening",
			slog.String("event", "start"),
			slog.String("listen", listen),
			slog.String("static_dir", cfg.Web.StaticDir),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WEB.Error("shutdown failed", slog.String("err", err.Error()))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WEB.Error("server failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}
}
