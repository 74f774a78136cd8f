package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "crypto_market/internal/domain/advertisement"
	"crypto_market/internal/domain/order"
	_ "crypto_market/internal/domain/vendorfee"
	_ "crypto_market/internal/domain/webhook"
	"crypto_market/internal/pkg/config"
	"crypto_market/internal/pkg/gateway"
	"crypto_market/internal/pkg/middleware"
	"crypto_market/internal/pkg/registry"
	"crypto_market/pkg/database"
	"crypto_market/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	cfg := &config.GlobalConfig

	logger.Init(cfg.App.Env, cfg.App.Debug)
	defer logger.Sync()

	db := database.InitDatabase()
	rdb := database.InitRedis()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.RateLimitMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	gw := gateway.NewClient(cfg.Gateway, cfg.App.URL, rdb)

	moduleCtx := &registry.ModuleContext{
		DB:      db,
		Redis:   rdb,
		Router:  router,
		Config:  cfg,
		Gateway: gw,
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.Log.Fatal("Failed to initialize modules", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Log.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	// 先停后台扫描，避免关机窗口里还在做状态迁移
	if om, ok := registry.Get("order").(*order.OrderModule); ok {
		om.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
