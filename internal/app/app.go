package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/config"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/middleware"
	pkgcron "github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/cron"
	"go.uber.org/zap"
)

// App holds all application dependencies.
type App struct {
	cfg       *config.AppConfig
	router    *gin.Engine
	comps     *Components
	logger    *zap.Logger
	cancel    context.CancelFunc
	sched     *pkgcron.Scheduler
	startedAt time.Time
}

// New initializes the application: config → stores → routes → jobs.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := applyRuntimeSettings(cfg, logger); err != nil {
		return nil, err
	}

	comps, err := Build(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Named("HTTP")))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New(logger.Named("Scheduler"))
	registerCronJobs(sched, comps, logger)
	sched.Start(ctx)

	app := &App{
		cfg:       cfg,
		router:    router,
		comps:     comps,
		logger:    logger,
		cancel:    cancel,
		sched:     sched,
		startedAt: time.Now(),
	}
	app.registerRoutes()
	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and closes the backends.
func (a *App) Shutdown() {
	a.cancel()
	a.sched.Wait()
	a.comps.Close()
}
