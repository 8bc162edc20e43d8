// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/schoolsite/internal/backend"
	"github.com/olegiv/schoolsite/internal/cache"
	"github.com/olegiv/schoolsite/internal/config"
	"github.com/olegiv/schoolsite/internal/content"
	"github.com/olegiv/schoolsite/internal/feed"
	"github.com/olegiv/schoolsite/internal/handler"
	"github.com/olegiv/schoolsite/internal/i18n"
	"github.com/olegiv/schoolsite/internal/logging"
	"github.com/olegiv/schoolsite/internal/middleware"
	"github.com/olegiv/schoolsite/internal/render"
	"github.com/olegiv/schoolsite/internal/scheduler"
	"github.com/olegiv/schoolsite/internal/session"
	"github.com/olegiv/schoolsite/internal/staff"
	"github.com/olegiv/schoolsite/internal/store"
	"github.com/olegiv/schoolsite/internal/version"
	"github.com/olegiv/schoolsite/web"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// Inline edits are small and frequent; the limit only stops runaway clients.
const (
	editRate  = 5
	editBurst = 20
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "schoolsite - school website with inline editing\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SCHOOL_BACKEND_URL       Content API base URL (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SCHOOL_SESSION_SECRET    Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SCHOOL_DB_PATH           SQLite database path (default: ./data/schoolsite.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SCHOOL_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SCHOOL_ENV               Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SCHOOL_DEFAULT_LANGUAGE  bg|en (default: bg)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SCHOOL_REDIS_URL         Redis URL for shared caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SCHOOL_CONTENT_REFRESH   Cron spec of the content reload, or \"off\" (default: @every 15m)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	if *showVersion {
		_, _ = fmt.Println(versionInfo.String())
		os.Exit(0)
	}

	if err := run(versionInfo); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(versionInfo version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLevel(cfg.LogLevel)
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(textHandler))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	applied, err := store.Migrate(context.Background(), db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// WARN and ERROR records also go to the event log table.
	logger := slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("database ready", "migrations_applied", applied, "event_log_min_level", "warn")

	client, err := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}

	sessionManager := session.New(db, cfg.IsDevelopment())
	controller := session.NewController(sessionManager, client, logger)

	cacher, cacheInfo := cache.NewCache(cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.CacheTTLDuration(),
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	}, logger)
	defer func() {
		if err := cacher.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	catalog, err := i18n.New(logger)
	if err != nil {
		return fmt.Errorf("loading translations: %w", err)
	}

	contentCache := content.NewCache(client, controller, logger, content.WithMessages(catalog))
	images := content.NewImages(client, cacher, logger)
	directory := staff.NewDirectory(client, cacher, logger)
	portraits := staff.NewImageLoader(images, logger)

	availability := feed.NewAvailability(client, cfg.ProbeTimeout, logger)
	feedService, err := feed.NewService(client, availability, logger)
	if err != nil {
		return fmt.Errorf("loading feed fallback: %w", err)
	}

	controller.OnLogin(func(ctx context.Context) {
		// Login-state transitions repopulate the content cache.
		if err := contentCache.Load(ctx); err != nil {
			logger.Warn("content reload after login failed", "error", err)
		}
	})
	controller.OnLogout(directory.Forget)

	renderer, err := render.New(render.Config{
		TemplatesFS: web.Templates,
		Banner:      controller,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}
	fields := render.NewFields(contentCache, images, controller, catalog)

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())

	sched := scheduler.New(logger)
	jobs := scheduler.Jobs{
		Checker: availability,
		Loader:  contentCache,
		Events:  store.New(db),
		Logins:  loginProtection,
		Logger:  logger,
	}
	if cfg.RefreshEnabled() {
		jobs.ContentRefresh = cfg.ContentRefresh
	}
	if err := jobs.Register(sched); err != nil {
		return fmt.Errorf("registering jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	// Warm the cache in the background; pages render defaults until then.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := contentCache.Load(ctx); err != nil {
			logger.Warn("initial content load failed", "error", err)
		}
	}()

	siteHandler := handler.NewSiteHandler(handler.SiteConfig{
		Renderer: renderer,
		Fields:   fields,
		Session:  controller,
		Pages:    contentCache,
		Staff:    directory,
		Images:   portraits,
		Feed:     feedService,
		Status:   availability,
		Logger:   logger,
	})
	editHandler := handler.NewEditHandler(fields, controller, contentCache, logger)
	authHandler := handler.NewAuthHandler(renderer, fields, controller, loginProtection, store.New(db), logger)
	healthHandler := handler.NewHealthHandler(handler.HealthConfig{
		DB:        db,
		Cache:     cacheInfo,
		Content:   contentCache,
		Feed:      availability,
		Scheduler: sched,
		Session:   controller,
		Version:   versionInfo,
	})

	r := newRouter(cfg, routerDeps{
		sessions:        sessionManager,
		controller:      controller,
		content:         contentCache,
		catalog:         catalog,
		loginProtection: loginProtection,
		site:            siteHandler,
		edit:            editHandler,
		auth:            authHandler,
		health:          healthHandler,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env,
			"cache", cacheInfo.Backend, "version", versionInfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

type routerDeps struct {
	sessions        *scs.SessionManager
	controller      *session.Controller
	content         *content.Cache
	catalog         *i18n.Catalog
	loginProtection *middleware.LoginProtection
	site            *handler.SiteHandler
	edit            *handler.EditHandler
	auth            *handler.AuthHandler
	health          *handler.HealthHandler
}

func newRouter(cfg *config.Config, d routerDeps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(middleware.StripTrailingSlash)

	// Static files skip sessions and content loading.
	staticHandler := http.StripPrefix("/static/", http.FileServer(http.FS(web.Static)))
	r.Handle("/static/*", middleware.StaticCache(365*24*time.Hour)(staticHandler))

	r.Get("/health", d.health.Health)
	r.Get("/health/live", d.health.Liveness)

	r.Group(func(r chi.Router) {
		r.Use(d.sessions.LoadAndSave)
		r.Use(middleware.LanguageWithDefault(cfg.Language()))
		r.Use(middleware.RequestPath)
		r.Use(middleware.Token(d.controller))
		r.Use(middleware.Content(d.content))
		r.Use(middleware.CSRF(middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerAddr())))

		r.Get("/", d.site.Static("pages/home", "nav.home"))
		r.Get("/contacts", d.site.Static("pages/contacts", "nav.contacts"))
		r.Get("/gallery", d.site.Static("pages/gallery", "nav.gallery"))
		r.Get("/info-access", d.site.Static("pages/info-access", "nav.info_access"))
		r.Get("/useful-links", d.site.Static("pages/useful-links", "nav.useful_links"))

		r.Get("/school/{slug}", d.site.Dynamic("school"))
		r.Get("/documents/{slug}", d.site.Dynamic("documents"))
		r.Get("/projects/{slug}", d.site.Dynamic("projects"))

		r.Get("/staff", d.site.Staff)
		r.Get("/news", d.site.News)
		r.Get("/events", d.site.Events)

		r.Get("/login", d.auth.LoginForm)
		r.With(d.loginProtection.Middleware(d.catalog)).Post("/login", d.auth.Login)
		r.Post("/logout", d.auth.Logout)

		r.Route("/edit", func(r chi.Router) {
			r.Use(middleware.RequireEditor(d.controller))
			r.Use(middleware.EditRateLimit(editRate, editBurst))

			r.Post("/text", d.edit.Text)
			r.Post("/list", d.edit.List)
			r.Post("/image", d.edit.Image)
			r.Post("/mode", d.edit.Mode)
			r.Post("/reload", d.edit.Reload)
		})

		r.NotFound(d.site.NotFound)
	})

	return r
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
