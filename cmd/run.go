package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Capitan-Parrot/distributed-video-system/station/internal/api"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/camera"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/clock"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/config"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/control"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/database"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/inference"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/kafka"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/logsink"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/mqtt"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/onnx"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/reporter"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/runner"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/s3"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/services/detection"
	"github.com/Capitan-Parrot/distributed-video-system/station/internal/watchdog"
)

const shutdownTimeout = 5 * time.Second

func runStation(cmd *cobra.Command, args []string) error {
	log.Println("Main: init...")

	// Чтение конфига
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ring := logsink.NewRing(cfg.Log.RingSize)
	logger := logsink.New(logsink.NewStd(), ring)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Управляющий канал
	manager := control.NewManager(newTransport(cfg), logger)

	// Камера
	source, closeSource := newSource(cfg)
	defer closeSource()

	// Модель
	engine, closeEngine, err := newEngine(cfg)
	if err != nil {
		return fmt.Errorf("init inference engine: %w", err)
	}
	defer closeEngine()
	pipeline := inference.NewPipeline(engine).
		WithThresholds(cfg.Inference.IOUThreshold, cfg.Inference.ConfidenceThreshold)

	rep := reporter.New(cfg.ReportURL(), cfg.Report.Timeout, logger)

	// Архив и журнал необязательны
	var recorders []runner.Recorder
	if cfg.Minio.Endpoint != "" {
		minioClient, err := s3.NewMinioClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.Secure)
		if err != nil {
			return err
		}
		if err := minioClient.EnsureBucketExists(ctx); err != nil {
			return fmt.Errorf("minio bucket %s: %w", cfg.Minio.Bucket, err)
		}
		recorders = append(recorders, minioClient)
	}
	if cfg.Postgres.DSN != "" {
		db, err := database.New(cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if err := db.Init(); err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		recorders = append(recorders, db)
	}

	clk := clock.Real()
	r := runner.New(manager, camera.NewAutoTrigger(source, clk, cfg.Camera.TriggerDelay), pipeline, rep, runner.Options{
		SettleDelay: cfg.Runner.SettleDelay,
		Clock:       clk,
		Log:         logger,
		Recorders:   recorders,
	})
	go r.Run(ctx)

	// Горутина для поиска зависших циклов
	watchDog := watchdog.New(r, cfg.Runner.StuckAfter, clk, logger)
	go watchDog.Start(ctx)

	manager.Connect()

	// Служебный API
	handlers := api.NewHandlers(manager, r, ring)
	srv := &http.Server{Addr: cfg.API.Addr, Handler: handlers.Router()}
	go func() {
		logger.Printf("Main: starting station API server on %s", cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Main: API server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Printf("Main: shutting down...")
	cancel()
	manager.Disconnect()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func newTransport(cfg *config.Config) control.Transport {
	if cfg.Control.Transport == config.TransportKafka {
		return kafka.New(kafka.Config{
			Brokers:       cfg.Control.Kafka.Brokers,
			GroupID:       cfg.Control.Kafka.GroupID,
			InboundTopic:  cfg.Control.Kafka.InboundTopic,
			OutboundTopic: cfg.Control.Kafka.OutboundTopic,
		})
	}
	return mqtt.New(mqtt.Config{
		Broker:         cfg.MQTTBroker(),
		ClientID:       cfg.Control.MQTT.ClientID,
		InboundPrefix:  cfg.Control.MQTT.InboundPrefix,
		OutboundPrefix: cfg.Control.MQTT.OutboundPrefix,
		QoS:            cfg.Control.MQTT.QoS,
	})
}

func newSource(cfg *config.Config) (camera.Source, func()) {
	if cfg.Camera.Source == config.SourceDevice {
		device := camera.NewDevice(cfg.Camera.DeviceID)
		return device, func() { _ = device.Close() }
	}
	return camera.NewDir(cfg.Camera.Dir), func() {}
}

func newEngine(cfg *config.Config) (inference.Engine, func(), error) {
	if cfg.Inference.Engine == config.EngineONNX {
		engine, err := onnx.NewEngine(cfg.Inference.RuntimeLib, cfg.Inference.ModelPath, cfg.Inference.InputSize, cfg.Inference.NumPredictions)
		if err != nil {
			return nil, nil, err
		}
		return engine, func() { _ = engine.Close() }, nil
	}
	return detection.NewClient(cfg.Inference.Endpoint), func() {}, nil
}
