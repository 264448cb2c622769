package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tinytrack.org/internal/activity"
	"tinytrack.org/internal/config"
	"tinytrack.org/internal/httpapi"
	"tinytrack.org/internal/notify"
	"tinytrack.org/internal/obs"
	"tinytrack.org/internal/store/pg"
	"tinytrack.org/internal/stream"
	"tinytrack.org/internal/tracker"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var (
		db       *sql.DB
		users    tracker.UserStore
		projects tracker.ProjectStore
		issues   tracker.IssueStore
		comments tracker.CommentStore
		notes    tracker.NoteStore
		tags     tracker.TagStore
		actStore activity.Store
		queue    notify.Store
	)

	if cfg.Database.DSN != "" {
		store, err := pg.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store.Tune(cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
		defer store.Close()
		db = store.DB()
		users = store.Users()
		projects = store.Projects()
		issues = store.Issues()
		comments = store.Comments()
		notes = store.Notes()
		tags = store.Tags()
		actStore = store.Activities()
		queue = store.Queue()
	} else {
		// No DSN runs everything in memory, for demos and local hacking.
		log.Println("TINYTRACK_DB_DSN not set, using in-memory stores")
		mem := tracker.NewInMemory()
		users = mem
		projects = mem.Projects()
		issues = mem.Issues()
		comments = mem.Comments()
		notes = mem.Notes()
		tags = mem.Tags()
		actStore = activity.NewInMemory()
		queue = notify.NewInMemory()
	}

	recorder, err := activity.NewRecorder(actStore)
	if err != nil {
		log.Fatalf("recorder: %v", err)
	}
	fanout, err := notify.NewFanout(queue)
	if err != nil {
		log.Fatalf("fanout: %v", err)
	}

	st := stream.New()
	svc, err := tracker.NewService(tracker.Deps{
		Evaluator: tracker.NewEvaluator(nil, tracker.Settings{PublicProjects: cfg.Tracker.PublicProjects}),
		Users:     users,
		Projects:  projects,
		Issues:    issues,
		Comments:  comments,
		Notes:     notes,
		Tags:      tags,
		Recorder:  recorder,
		Fanout:    fanout,
		Stream:    st,
	})
	if err != nil {
		log.Fatalf("service: %v", err)
	}

	if err := svc.SeedTags(context.Background()); err != nil {
		log.Fatalf("seed tags: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Service:        svc,
		Users:          users,
		Stream:         st,
		ReadyProbe:     httpapi.ReadyProbe{DB: db},
		Version:        version,
		TokenTTL:       cfg.Auth.TokenTTL,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RateLimitRPS:   int(cfg.Server.RateLimitRPS),
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	log.Printf("Starting tinytrack-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
