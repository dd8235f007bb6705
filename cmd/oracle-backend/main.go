// oracle-backend is the medical-assistant API server: it fronts the
// LLM provider cascade and the managed Postgres/object store with the
// domain engines in internal/ (chat context, quick scan, deep dive,
// photo pipeline, follow-up chains, reports, tracking, email queue).
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/oracle-health/oracle-backend/internal/api"
	"github.com/oracle-health/oracle-backend/internal/cleanup"
	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/deepdive"
	"github.com/oracle-health/oracle-backend/internal/emailqueue"
	"github.com/oracle-health/oracle-backend/internal/followup"
	"github.com/oracle-health/oracle-backend/internal/httpclient"
	"github.com/oracle-health/oracle-backend/internal/llm"
	"github.com/oracle-health/oracle-backend/internal/modelselect"
	"github.com/oracle-health/oracle-backend/internal/objectstore"
	"github.com/oracle-health/oracle-backend/internal/photo"
	"github.com/oracle-health/oracle-backend/internal/quickscan"
	"github.com/oracle-health/oracle-backend/internal/report"
	"github.com/oracle-health/oracle-backend/internal/storage"
	"github.com/oracle-health/oracle-backend/internal/tier"
	"github.com/oracle-health/oracle-backend/internal/tracking"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	log.Printf("Starting oracle-backend")
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx := context.Background()

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := storage.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	store, err := storage.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	log.Println("connected to PostgreSQL database")

	objStore, err := objectstore.New(ctx, objectstore.Config{
		Bucket:       getEnv("SUPABASE_STORAGE_BUCKET", "photo-uploads"),
		Region:       getEnv("AWS_REGION", "us-east-1"),
		Prefix:       "photos/",
		Endpoint:     os.Getenv("S3_ENDPOINT"),
		UsePathStyle: os.Getenv("S3_ENDPOINT") != "",
		PresignTTL:   time.Hour,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	var redisClient *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("Failed to parse REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
	}

	httpClient := httpclient.New(httpclient.DefaultTimeouts.LLMCall, 10, 20)
	orchestrator := llm.New(httpClient, getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"), llm.EnvKeyProvider{})
	selector := modelselect.New(cfg)
	tiers := tier.New(store, redisClient)

	qsEngine := quickscan.New(store, orchestrator, selector)
	ddEngine := deepdive.New(store, orchestrator, selector)
	photoPipeline := photo.New(store, objStore, orchestrator, selector, cfg.Photo.MaxPhotosInVisionWindow)
	followUpEngine := followup.New(store, orchestrator, selector)
	reportEngine := report.New(store, orchestrator, selector)
	trackingEngine := tracking.New(store, orchestrator, selector)

	sender := emailqueue.NewSendGridSender(
		os.Getenv("SENDGRID_API_KEY"),
		getEnv("EMAIL_FROM_ADDRESS", "no-reply@example.com"),
		getEnv("EMAIL_FROM_NAME", "Oracle Health"),
	)
	emails := emailqueue.New(store, sender, cfg.Queue)
	emails.Start(ctx)
	defer emails.Stop()

	cleanupSvc := cleanup.NewService(cfg.Retention, store, emails)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	log.Println("services initialized")

	server := api.NewServer(api.Deps{
		Config:    cfg,
		Storage:   store,
		LLM:       orchestrator,
		Models:    selector,
		Tiers:     tiers,
		QuickScan: qsEngine,
		DeepDive:  ddEngine,
		Photo:     photoPipeline,
		FollowUp:  followUpEngine,
		Report:    reportEngine,
		Tracking:  trackingEngine,
		Emails:    emails,
	})

	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := server.Start(":" + httpPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during server shutdown", "error", err)
	}
}
