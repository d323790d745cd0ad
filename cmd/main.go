package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/castlegem/elasticidentity/internal/adapter"
	"github.com/castlegem/elasticidentity/internal/config"
	"github.com/castlegem/elasticidentity/internal/mailer"
	"github.com/castlegem/elasticidentity/internal/repository"
	"github.com/castlegem/elasticidentity/internal/usecase"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Connect to Elasticsearch
	esClient, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(cfg.ESAddresses, ","),
	})
	if err != nil {
		logger.Fatal("Failed to create Elasticsearch client", zap.Error(err))
	}

	store, err := repository.NewUserStore(esClient, logger,
		repository.WithIndexName(cfg.IndexName),
		repository.WithEntityName(cfg.EntityName),
		repository.WithForceRecreate(cfg.ForceRecreate),
	)
	if err != nil {
		logger.Fatal("Failed to construct user store", zap.Error(err))
	}
	// Fail fast if the index cannot be provisioned
	if err := store.EnsureIndex(context.Background()); err != nil {
		logger.Fatal("Failed to provision index", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	tokens := repository.NewRedisTokenStore(redisClient)
	mail := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, logger)
	tokenTTL := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	userUsecase := usecase.NewUserUsecase(store, tokens, mail, cfg.JWTSecret, tokenTTL, logger)
	userHandler := adapter.NewUserHandler(userUsecase, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting Identity Service", zap.Int("port", cfg.Port), zap.String("index", cfg.IndexName))
	if err := http.ListenAndServe(addr, userHandler.Mux()); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
}
