package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"aiconsole/internal/api/middleware"
	"aiconsole/internal/api/routes"
	"aiconsole/internal/config"
	"aiconsole/internal/logging"
	"aiconsole/internal/models"
	"aiconsole/internal/services"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default $"+config.EnvConfigPath+" or "+config.DefaultConfigPath+")")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	logging.Setup(cfg.Logging)

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer func() {
		if errClose := models.Close(db); errClose != nil {
			log.WithError(errClose).Warn("failed to close database")
		}
	}()

	store, err := services.NewSessionStore(cfg, db)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize session store")
	}
	svc := services.NewContainer(cfg, db, store)

	// Create default user if database is empty
	ctx := context.Background()
	if user, errSeed := svc.Credentials.CreateDefaultUser(ctx, cfg.DefaultUser); errSeed != nil {
		log.WithError(errSeed).Warn("failed to create default user")
	} else if user != nil {
		log.WithField("username", user.Username).Info("created default admin user")
	}

	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestLogger())
	routes.SetupRoutes(r, cfg, svc)
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, cfg.Server.APIPrefix) {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithFields(log.Fields{"addr": srv.Addr, "session_store": cfg.Session.Store}).Info("starting server")
		if errServe := srv.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			log.WithError(errServe).Fatal("server failed")
		}
	}()

	<-sigCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		log.WithError(errShutdown).Error("graceful shutdown failed")
	}
}
