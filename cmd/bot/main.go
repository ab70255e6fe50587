package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sam17/fxlifesheet/core/config"
	"github.com/sam17/fxlifesheet/core/database"
	"github.com/sam17/fxlifesheet/core/logger"
	tg "github.com/sam17/fxlifesheet/core/telegram"
	tgsender "github.com/sam17/fxlifesheet/core/telegram/sender"
	"github.com/sam17/fxlifesheet/internal/bot"
	"github.com/sam17/fxlifesheet/internal/flow"
	"github.com/sam17/fxlifesheet/internal/media"
	"github.com/sam17/fxlifesheet/internal/questions"
	"github.com/sam17/fxlifesheet/internal/records"
	"github.com/sam17/fxlifesheet/internal/scheduler"
	"github.com/sam17/fxlifesheet/internal/session"
	"log/slog"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := config.RequireTelegram(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := logger.Init(logger.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		KeysOrder: cfg.Logging.KeysOrder,
		Dir:       cfg.Logging.Dir,
		File:      cfg.Logging.BotFile,
		Profile:   cfg.Logging.Profile,
	}); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Shutdown() }()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.L.Error("migrations failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.L.Error("db connect failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := questions.NewSQLCatalog(db)
	sink := records.NewSQLSink(db)
	sessions := session.NewStore()
	transport := bot.NewTransport()

	cmds, err := catalog.Commands(ctx)
	if err != nil {
		logger.L.Error("catalog commands failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	var uploader *media.Uploader
	if cfg.Media.Bucket != "" {
		store, err := media.NewSpacesStore(media.SpacesConfig{
			Endpoint:  cfg.Media.Endpoint,
			Region:    cfg.Media.Region,
			Bucket:    cfg.Media.Bucket,
			AccessKey: cfg.Media.AccessKey,
			SecretKey: cfg.Media.SecretKey,
		})
		if err != nil {
			logger.L.Warn("media store unavailable, image uploads disabled",
				slog.String("err", err.Error()),
			)
		} else {
			uploader = media.NewUploader(transport, store, sink)
		}
	}

	var reg *tg.Registry
	engine := flow.NewEngine(flow.Config{
		Sessions:  sessions,
		Catalog:   catalog,
		Transport: transport,
		Sink:      sink,
		Uploader:  uploader,
		Commands:  cmds,
		HelpText: func() string {
			if reg == nil {
				return ""
			}
			return reg.HelpText()
		},
	})
	handlers := bot.NewHandlers(engine)
	reg = handlers.Registry(cmds)

	dispatcher := tgsender.NewDispatcher(tgsender.Options{})
	sched := scheduler.New(engine, dispatcher, cfg.Reminders)

	err = tg.RunTelegram(ctx, tg.RunOptions{
		Config:      cfg,
		Registry:    reg,
		Dispatcher:  dispatcher,
		Middlewares: tg.DefaultMiddlewares(),
		Routes:      handlers.Routes(reg),
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			transport.Bind(rt.Bot)
			return sched.Start()
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			sched.Stop()
			if uploader != nil {
				uploader.Wait()
			}
			return nil
		},
	})
	if err != nil {
		logger.L.Error("bot stopped", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
