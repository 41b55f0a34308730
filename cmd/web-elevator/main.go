package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-fuzzy-elevator/pkg/bus"
	"go-fuzzy-elevator/pkg/dashboard"
	"go-fuzzy-elevator/pkg/elevator"
	"go-fuzzy-elevator/pkg/logging"

	"github.com/joho/godotenv"
)

//go:embed static/*
var staticFiles embed.FS

// AppConfig is read from the environment (and an optional .env file).
type AppConfig struct {
	Port           string
	ElevatorPath   string // YAML elevator config, defaults when empty
	MQTTBroker     string // bridge disabled when empty
	MQTTPrefix     string
	LogLevel       string
	LogFormat      string
	AllowAnyOrigin bool
}

func loadConfig() *AppConfig {
	_ = godotenv.Load() // .env is optional

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return &AppConfig{
		Port:           port,
		ElevatorPath:   os.Getenv("ELEVATOR_CONFIG"),
		MQTTBroker:     os.Getenv("MQTT_BROKER"),
		MQTTPrefix:     os.Getenv("MQTT_TOPIC_PREFIX"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		LogFormat:      os.Getenv("LOG_FORMAT"),
		AllowAnyOrigin: os.Getenv("ALLOW_ANY_ORIGIN") != "false",
	}
}

func elevatorConfig(path string) (elevator.Config, error) {
	if path == "" {
		return elevator.DefaultConfig(), nil
	}
	return elevator.LoadConfig(path)
}

// pump forwards elevator telemetry to every sink until ctx ends.
func pump(ctx context.Context, events <-chan elevator.TelemetryEvent, sinks ...func(elevator.TelemetryEvent)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			for _, sink := range sinks {
				sink(ev)
			}
		}
	}
}

func main() {
	cfg := loadConfig()
	logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ecfg, err := elevatorConfig(cfg.ElevatorPath)
	if err != nil {
		log.Fatal(err)
	}
	e, err := elevator.New(ecfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := dashboard.NewHub(e, dashboard.Options{AllowAllOrigin: cfg.AllowAnyOrigin})
	sinks := []func(elevator.TelemetryEvent){hub.Publish}

	if cfg.MQTTBroker != "" {
		bridge, err := bus.Dial(e, bus.Config{Broker: cfg.MQTTBroker, TopicPrefix: cfg.MQTTPrefix})
		if err != nil {
			slog.Error("MQTT bridge disabled", "broker", cfg.MQTTBroker, "error", err)
		} else {
			defer bridge.Close()
			sinks = append(sinks, bridge.Publish)
		}
	}

	go pump(ctx, e.Events(), sinks...)
	go func() {
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Elevator run error", "error", err)
		}
	}()

	// Serve static files from embedded filesystem
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatal(err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	api := hub.Handler()
	mux.Handle("/ws", api)
	mux.Handle("/api/", api)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Starting elevator web server", "addr", addr)
	slog.Info("Open http://localhost:" + cfg.Port + " in your browser")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	slog.Info("Server stopped")
}
