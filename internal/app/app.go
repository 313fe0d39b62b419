package app

import (
	"context"
	"lingua_progress/internal/config"
	"lingua_progress/internal/controller"
	"lingua_progress/internal/engine"
	"lingua_progress/internal/repository"
	"lingua_progress/internal/service"
	"lingua_progress/internal/util"
	"lingua_progress/pkg/configwatcher"
	"lingua_progress/pkg/database"
	"lingua_progress/pkg/logger"
	"lingua_progress/pkg/monitoring"
	"lingua_progress/pkg/security"
	"lingua_progress/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	Repo            repository.ProgressRepository
	Progress        *service.ProgressService
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type controllers struct {
	progress *controller.ProgressController
	health   *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// reload 依次执行注册的配置回调
func (a *App) reload(cfg *config.Config) {
	logger.Log.Info("Config reloaded", zap.String("file", cfg.ConfigFile))
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepository(cfg *config.Config) error {
	if cfg.Database.Driver == util.DriverMemory {
		logger.Log.Warn("Using in-memory progress store, data will not survive restarts")
		a.Repo = repository.NewMemoryProgressRepository()
		return nil
	}

	// 启动时强制执行数据库迁移（即使是 release 模式）
	migrate := cfg.ForceMigrate || cfg.MigrateOnly || cfg.Server.Mode != gin.ReleaseMode
	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, migrate)
	if err != nil {
		return errors.Wrap(err, "init database")
	}
	a.DB = db
	a.Repo = repository.NewGormProgressRepository(db)
	return nil
}

func (a *App) initCache(cfg *config.Config) (*repository.ProgressCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, errors.Wrap(err, "init redis")
	}
	a.Redis = rdb
	return repository.NewProgressCache(rdb, cfg.Redis.CacheTTL), nil
}

func (a *App) initServices(cfg *config.Config, cache *repository.ProgressCache) error {
	rules, err := service.RulesFromConfig(cfg.Progress)
	if err != nil {
		return errors.Wrap(err, "load progress rules")
	}
	a.Progress = service.NewProgressService(a.Repo, cache, engine.RealClock{}, rules)

	// 规则热更新：校验失败时保留旧规则
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		rules, err := service.RulesFromConfig(newCfg.Progress)
		if err != nil {
			logger.Log.Error("Rejected progress rules from reloaded config", zap.Error(err))
			return
		}
		a.Progress.UpdateRules(rules)
	})
	return nil
}

func (a *App) initControllers() *controllers {
	return &controllers{
		progress: controller.NewProgressController(a.Progress),
		health:   controller.NewHealthController(a.Repo, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 {
		window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
		if window <= 0 {
			window = time.Minute
		}
		router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// Build 组装存储、服务和路由，不初始化日志文件，便于测试直接使用
func Build(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	if err := app.initRepository(cfg); err != nil {
		return nil, err
	}
	cache, err := app.initCache(cfg)
	if err != nil {
		return nil, err
	}
	if err := app.initServices(cfg, cache); err != nil {
		return nil, err
	}
	controllers := app.initControllers()

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("lingua-progress", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return nil, errors.Wrap(err, "init tracing")
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app, nil
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	app, err := Build(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize application", zap.Error(err))
	}
	return app
}

// Close 释放数据库、Redis 和追踪资源
func (a *App) Close() {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Log.Error("Failed to close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

func (a *App) Run() {
	defer logger.Log.Sync()
	defer a.Close()

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if a.Config.Server.WatchConfig && a.Config.ConfigFile != "" {
		go func() {
			if err := configwatcher.WatchConfig(watchCtx, a.Config.ConfigFile, a.reload); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exiting")
}
