// Command demo is a minimal embedder of the wsserver module: it loads a
// YAML manifest of static routes and WebSocket endpoints, starts the
// server, echoes every message sent to its registered WebSocket endpoints,
// and shuts down gracefully on SIGTERM or SIGINT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pepnova/wsserver/config"
	"github.com/pepnova/wsserver/wsframe"
	"github.com/pepnova/wsserver/wsserver"
)

func main() {
	configPath := flag.String("config", "demo.yaml", "path to the demo server's YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wsserver-demo: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("config_path", *configPath),
		slog.Int("port", cfg.Port),
		slog.String("log_level", cfg.LogLevel),
	)

	srv, err := wsserver.New(cfg.Port, logger)
	if err != nil {
		logger.Error("failed to start server", slog.Any("error", err))
		os.Exit(1)
	}

	for _, route := range cfg.StaticRoutes {
		if err := srv.RegisterStatic(route.URL, []byte(route.Body), route.ContentType, nil); err != nil {
			logger.Error("failed to register static route", slog.String("url", route.URL), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("registered static route", slog.String("url", route.URL))
	}

	for _, url := range cfg.WebSocketRoutes {
		registerEchoEndpoint(srv, url, logger)
		logger.Info("registered websocket endpoint", slog.String("url", url))
	}

	srv.StartAsync()
	logger.Info("listening", slog.String("addr", srv.Addr().String()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", slog.Any("error", err))
	}

	logger.Info("wsserver-demo exited cleanly")
}

// registerEchoEndpoint wires url up as an echo endpoint: every message it
// receives is sent back to whichever client most recently joined. This is
// the same single-callback-per-endpoint limitation the original embedding
// API carries (see wsserver.ReceiveFunc), worked around here by tracking
// the latest client id per URL.
func registerEchoEndpoint(srv *wsserver.Server, url string, logger *slog.Logger) {
	var mu sync.Mutex
	var lastClientID uint64

	onJoined := func(joinedURL string, clientID uint64) {
		mu.Lock()
		lastClientID = clientID
		mu.Unlock()
		logger.Info("client joined", slog.String("url", joinedURL), slog.Uint64("client_id", clientID))
	}

	onReceive := func(payload []byte, opcode wsframe.OpCode) {
		mu.Lock()
		clientID := lastClientID
		mu.Unlock()

		if err := srv.SendWebSocket(url, clientID, payload, opcode); err != nil {
			logger.Warn("failed to echo message", slog.String("url", url), slog.Any("error", err))
		}
	}

	if err := srv.RegisterWebSocket(url, onReceive, onJoined); err != nil {
		logger.Error("failed to register websocket endpoint", slog.String("url", url), slog.Any("error", err))
		os.Exit(1)
	}
}

// newLogger constructs a *slog.Logger that writes JSON-structured log
// records to stderr at the requested minimum level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
