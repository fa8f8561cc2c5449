package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/codec"
	"github.com/LuisSimiao/Riada-Care-System/internal/config"
	"github.com/LuisSimiao/Riada-Care-System/internal/database"
	httpapi "github.com/LuisSimiao/Riada-Care-System/internal/http"
	"github.com/LuisSimiao/Riada-Care-System/internal/logger"
	"github.com/LuisSimiao/Riada-Care-System/internal/mqtt"
	"github.com/LuisSimiao/Riada-Care-System/internal/repository"
	"github.com/LuisSimiao/Riada-Care-System/internal/service"
	"github.com/LuisSimiao/Riada-Care-System/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "riada-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	atRest, err := codec.FromKey(cfg.AESKey)
	if err != nil {
		log.Fatal("Invalid AES key", zap.Error(err))
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	kv := store.NewRedisKV(redisClient)

	readingsRepo := repository.NewPostgresReadingsRepository(db, atRest, log)
	alertsRepo := repository.NewPostgresAlertsRepository(db, atRest, log)

	// MQTT 接入：连不上 broker 时只降级记日志，HTTP 服务照常启动
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		broker := mqtt.NewLivyBroker(cfg, readingsRepo, alertsRepo, log)
		client, err := mqtt.NewClient(&cfg.MQTT, log)
		if err != nil {
			log.Error("MQTT connection failed, telemetry ingestion disabled", zap.Error(err))
		} else {
			mqttClient = client
			for _, topic := range broker.Topics() {
				if err := client.Subscribe(topic, cfg.MQTT.QoS, broker.HandleMessage); err != nil {
					log.Error("Failed to subscribe", zap.String("topic", topic), zap.Error(err))
				}
			}
			log.Info("Livy MQTT ingestion started", zap.String("broker", cfg.MQTT.Broker))
		}
	}

	environmentService := service.NewEnvironmentService(readingsRepo, alertsRepo, cfg.Groups, log)
	alertService := service.NewAlertService(alertsRepo, cfg.Locations, cfg.AlarmUTCOffsetHours, log)
	chatClient := service.NewChatClient(&cfg.Chat, log)
	chatService := service.NewChatService(chatClient, kv, cfg.Chat.HistoryTTL, log)
	reportService := service.NewReportService(cfg.ReportDir, log)

	router := httpapi.NewRouter(log)
	router.RegisterHealthRoute()
	router.RegisterEnvironmentRoutes(httpapi.NewEnvironmentHandler(environmentService, log))
	router.RegisterAlertRoutes(httpapi.NewAlertHandler(alertService, log))
	router.RegisterChatRoutes(httpapi.NewChatHandler(chatService, log))
	router.RegisterExportRoutes(httpapi.NewExportHandler(environmentService, log))
	router.RegisterReportRoutes(httpapi.NewReportHandler(reportService, alertService, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)

	if mqttClient != nil {
		mqttClient.Disconnect()
	}
}
