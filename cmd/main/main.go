package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/inkforge/gateway/src/cache"
	"github.com/inkforge/gateway/src/config"
	"github.com/inkforge/gateway/src/executor"
	"github.com/inkforge/gateway/src/handlers"
	"github.com/inkforge/gateway/src/inference"
	"github.com/inkforge/gateway/src/metrics"
	"github.com/inkforge/gateway/src/models"
	"github.com/inkforge/gateway/src/selector"
	"github.com/inkforge/gateway/src/stream"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("✓ Config loaded")

	var respCache models.ResponseCache
	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case "redis":
			redisCache, err := cache.NewRedisCache(&cfg.Redis, &cfg.Cache)
			if err != nil {
				log.Fatalf("Failed to initialize Redis cache: %v", err)
			}
			respCache = redisCache
			log.Printf("✓ Response cache ready (redis, threshold: %.2f)", cfg.Cache.SimilarityThreshold)
		default:
			respCache = cache.NewMemoryCache(&cfg.Cache)
			log.Printf("✓ Response cache ready (memory, max %d entries)", cfg.Cache.MaxEntries)
		}
		defer respCache.Close()
	} else {
		log.Println("Response cache disabled")
	}

	llmClient := inference.NewLLMClient(&cfg.LLM)
	log.Printf("✓ LLM client ready: %s (fast: %s, powerful: %s)",
		cfg.LLM.DefaultModel, cfg.LLM.FastModel, cfg.LLM.PowerfulModel)

	modelSelector := selector.New(&cfg.LLM)
	log.Printf("✓ Model selector initialized (auto_select: %v)", cfg.LLM.AutoSelect)

	requestMetrics := metrics.New()
	exec := executor.New(llmClient, respCache, modelSelector, requestMetrics, cfg)
	emulator := stream.NewEmulator(stream.DefaultChunkSize, stream.DefaultDelay)

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.Use(gin.Recovery())

	generateHandler := handlers.NewGenerateHandler(exec, emulator, requestMetrics)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", generateHandler.HealthCheck)
		v1.GET("/metrics", generateHandler.HandleMetrics)
		v1.POST("/generate", generateHandler.HandleGenerate)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Printf("🚀 Inkforge gateway running on port %s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
