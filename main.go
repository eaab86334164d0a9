package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"blogapi/accounts"
	"blogapi/articles"
	"blogapi/auth"
	"blogapi/cache"
	"blogapi/comments"
	"blogapi/common"
	"blogapi/config"
	"blogapi/database"
	"blogapi/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	gin.SetMode(cfg.GinMode)

	db := common.ConnectDb(cfg.SQLiteDB, cfg.MaxRetries, cfg.RetryDelay())

	var primary *store.DBStore
	if db != nil {
		if err := database.RunMigrations(db); err != nil {
			log.Fatal("Failed to run migrations: ", err)
		}
		primary = store.NewDBStore(db)
	}

	demoStore := store.NewFlatStore(cfg.DataDir)
	selector := store.NewSelector(primary, demoStore, cfg.DemoFallback)

	tokens := auth.NewTokens(cfg.JWTSecret)
	mw := auth.NewMiddleware(tokens, selector)
	renderCache := cache.New("cache")

	router := gin.Default()

	accountsModule := accounts.NewAccountsModule(selector, tokens, mw)
	accountsModule.RegisterRoutes(router)

	articlesModule := articles.NewArticlesModule(selector, mw, renderCache)
	articlesModule.RegisterRoutes(router)

	commentsModule := comments.NewCommentsModule(selector, mw)
	commentsModule.RegisterRoutes(router)

	started := time.Now()

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":   "welcome to the blog system API",
			"status":    "running",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	router.GET("/health", func(c *gin.Context) {
		connected := db != nil && common.Ping(db) == nil
		status := http.StatusOK
		dbState := "connected"
		if !connected {
			status = http.StatusServiceUnavailable
			dbState = "disconnected"
		}
		c.JSON(status, gin.H{
			"status":    "OK",
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(started).Seconds(),
			"database":  dbState,
		})
	})

	router.GET("/status", func(c *gin.Context) {
		dbState := "disconnected"
		if db != nil && common.Ping(db) == nil {
			dbState = "connected"
		}
		c.JSON(http.StatusOK, gin.H{
			"server":   "running",
			"database": dbState,
			"version":  "1.0.0",
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Starting server on port %s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("received %s, shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown: ", err)
	}
	log.Println("server stopped")
}
