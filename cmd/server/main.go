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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"impact-backend/internal/api"
	"impact-backend/internal/database"
	"impact-backend/internal/metrics"
	"impact-backend/internal/mqtt"
	"impact-backend/internal/pipeline"
	"impact-backend/internal/services"
	"impact-backend/pkg/config"
)

func main() {
	log.Println("Starting Impact Monitor Backend...")

	// Load configuration
	cfg := config.Load()

	// === Metrics ===
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// === Store ===
	store, err := database.Open(database.Config{
		Driver:             cfg.StoreDriver,
		SQLitePath:         cfg.SQLitePath,
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDB,
		ClickHouseUsername: cfg.ClickHouseUser,
		ClickHousePassword: cfg.ClickHousePass,
	})
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.StoreDriver, err)
	}
	defer store.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Event sink and live feed ===
	hub := api.NewHub()
	sinkConfig := services.DefaultEventSinkConfig()
	sinkConfig.QueueSize = cfg.EventQueueSize
	sink := services.NewEventSink(store, hub, sinkConfig, m)

	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		sink.Start(ctx)
	}()

	// === MQTT transport ===
	hooks := &connectionHooks{}

	log.Println("Connecting to MQTT broker...")
	mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
		Broker:           cfg.MQTTBroker,
		ClientID:         cfg.MQTTClientID,
		Username:         cfg.MQTTUsername,
		Password:         cfg.MQTTPassword,
		OnConnectionLost: hooks.connectionLost,
		OnReconnect:      hooks.reconnected,
	})
	if err != nil {
		log.Fatalf("Failed to initialize MQTT client: %v", err)
	}
	defer mqttClient.Close()

	transport := mqtt.NewTransport(mqttClient.GetNativeClient(), mqtt.TopicConfig{
		ControlTopic: cfg.MQTTTopicBLEControl,
		WriteTopic:   cfg.MQTTTopicBLEWrite,
		NotifyTopic:  cfg.MQTTTopicBLENotify,
	}, m)
	hooks.transport.Store(transport)

	// === Monitor service ===
	monitor := services.NewMonitorService(transport, sink, services.MonitorServiceConfig{
		Detector: pipeline.DetectorConfig{
			WindowSize: cfg.WindowSize,
			NumStdDev:  cfg.NumStdDev,
		},
		CalibrationWindow: cfg.CalibrationWindow,
		SampleInterval:    cfg.SampleInterval,
		ChunkQueueSize:    cfg.ChunkQueueSize,
	}, m)
	hooks.monitor.Store(monitor)

	// === HTTP API ===
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(monitor, sink, store, hub, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP API on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// === Log startup info ===
	log.Println("=== Impact Monitor Backend is running ===")
	log.Printf("Store: %s", cfg.StoreDriver)
	log.Printf("Detection: window=%d samples, threshold=%.2f std devs, calibration=%s, sample interval=%s",
		cfg.WindowSize, cfg.NumStdDev, cfg.CalibrationWindow, cfg.SampleInterval)
	log.Printf("MQTT Topics:")
	log.Printf("  - Control: %s", cfg.MQTTTopicBLEControl)
	log.Printf("  - Write:   %s", cfg.MQTTTopicBLEWrite)
	log.Printf("  - Notify:  %s", cfg.MQTTTopicBLENotify)
	log.Println("Press Ctrl+C to exit...")

	// === Wait for interrupt signal ===
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// === Graceful shutdown ===
	log.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	monitor.Shutdown(shutdownCtx)
	hub.Close()

	cancel() // stops the persistence worker after it drains
	<-sinkDone

	log.Println("Shutdown complete. Goodbye!")
}
