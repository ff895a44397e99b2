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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"mvp_sandbox_server/config"
	"mvp_sandbox_server/internal/ai"
	"mvp_sandbox_server/internal/api"
	"mvp_sandbox_server/internal/bundlecache"
	"mvp_sandbox_server/internal/deploy"
	"mvp_sandbox_server/internal/deploy/cloudflare"
	"mvp_sandbox_server/internal/deploy/github"
)

func main() {
	// Load .env before viper reads the environment. Absent files are normal
	// in production.
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		} else {
			log.Println("Info: .env file not found, relying on system environment variables.")
		}
	} else {
		log.Println("Info: Loaded environment variables from .env file.")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	// --- Dependency Initialization ---
	generator := ai.NewGenerator(cfg.OpenAIKey, cfg.OpenAIModel)

	pollPolicy := deploy.Policy{
		Attempts: cfg.ReadyAttempts,
		Delay:    time.Duration(cfg.ReadyDelayMS) * time.Millisecond,
	}
	deployer := cloudflare.NewDeployer(cfg.CloudflareAPIToken, cfg.CloudflareAccountID, cfg.WorkersSubdomain, cfg.CloudflareAPIBase, pollPolicy)
	exporter := github.NewExporter(cfg.GithubToken, cfg.GithubOwner, cfg.GithubAPI)

	bundles, err := bundlecache.New(64)
	if err != nil {
		log.Fatalf("Cannot create bundle cache: %v", err)
	}

	apiHandler := api.NewAPIHandler(generator, deployer, exporter, bundles, api.EnvFlags{
		OpenAI:     cfg.OpenAIKey != "",
		Cloudflare: cfg.CloudflareAPIToken != "" && cfg.CloudflareAccountID != "",
		Github:     cfg.GithubToken != "" && cfg.GithubOwner != "",
	})

	// --- HTTP Server ---
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("Running in Gin Debug Mode")
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS is reflected permissively: the chat UI may be served from anywhere.
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsCfg))

	api.RegisterRoutes(router, apiHandler)

	server := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router,
		// Generation plus a readiness poll can take a while.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting API server on %s\n", cfg.ServerAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server listen error: %s\n", err)
		}
		log.Println("API server has stopped listening.")
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal: %s. Shutting down server...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("API server forced shutdown error: %v", err)
	} else {
		log.Println("API server gracefully stopped.")
	}

	log.Println("Application exiting.")
}
