package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vibechat/relay/internal/api"
	"github.com/vibechat/relay/internal/blob"
	"github.com/vibechat/relay/internal/config"
	"github.com/vibechat/relay/internal/server"
	"github.com/vibechat/relay/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	uploadDir      string
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[relay] ", log.LstdFlags)

	// .env is optional; environment and flags win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Println("loading .env:", err)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("config:", err)
	}

	flag.StringVar(&addr, "addr", cfg.ServerAddr, "server address")
	flag.StringVar(&uploadDir, "upload-dir", cfg.UploadDir, "directory uploaded files are written to")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	cfg.ServerAddr = addr
	cfg.UploadDir = uploadDir
	if len(allowedOrigins) > 0 {
		cfg.AllowedOrigins = allowedOrigins
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config:", err)
	}

	blobs, err := blob.NewStore(cfg.UploadDir, logger)
	if err != nil {
		logger.Fatal("blob store:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	relayServer, err := server.NewRelayServer(logger, blobs, statsUpdater, cfg.SendQueueSize)
	if err != nil {
		logger.Fatal("new relay server:", err)
	}

	app := api.NewRelayApp(mux, logger, relayServer, blobs, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go relayServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down relay...")
	if err := relayServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("relay shutdown:", err)
	}

	logger.Println("shutdown complete")
}
