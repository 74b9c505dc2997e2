// Command sess-probe is a demo CLI that drives one reliable UDP
// session end to end: connect, send one reliable message, and keep the
// session open until the process is interrupted or the session ends,
// closing it on interrupt. Mirrors cmd/spanreed-hub/main.go's startup shape —
// zap.Must(zap.NewDevelopment())/zap.NewProduction() by environment,
// flag-based configuration, and a context cancelled on shutdown.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/duskwright/rudpsession/internal/config"
	"github.com/duskwright/rudpsession/internal/session"
	"github.com/duskwright/rudpsession/pkg/wire"
)

func main() {
	logger := zap.Must(zap.NewProduction())
	if os.Getenv("APP_ENV") != "production" {
		logger = zap.Must(zap.NewDevelopment())
	}
	defer logger.Sync()

	configPath := flag.String("config", "config/sess-probe.yml", "path to the YAML configuration file")
	server := flag.String("server", "", "server address, overrides the config file's server field")
	connectTimeout := flag.Duration("connect-timeout", 15*time.Second, "maximum time to wait for Connect to resolve")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if *server != "" {
		cfg.Server = *server
	}

	cookie, err := cfg.LoadCookie()
	if err != nil {
		logger.Fatal("failed to load cookie", zap.Error(err))
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Server)
	if err != nil {
		logger.Fatal("failed to resolve server address", zap.String("server", cfg.Server), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, *connectTimeout)
	defer cancelConnect()

	conn, err := session.Connect(connectCtx, addr, cfg.Username, cookie, cfg.Args, session.Config{
		Logger:  logger,
		Handler: logHandler{logger},
	})
	if err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}
	logger.Info("connected", zap.String("server", cfg.Server), zap.String("username", cfg.Username))

	conn.QueueMsg(0, []byte("hello from sess-probe"))

	select {
	case <-ctx.Done():
		logger.Info("shutting down, closing session")
		conn.Close()
	case <-conn.Done():
	}

	<-conn.Done()
	if err := conn.Err(); err != nil {
		logger.Error("session ended with a fatal error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("session closed cleanly")
}

type logHandler struct {
	log *zap.Logger
}

func (h logHandler) Handle(msg *wire.RMessage) {
	h.log.Info("received reliable message",
		zap.Uint16("seq", msg.Seq),
		zap.Uint8("subtype", msg.SubType),
		zap.Int("payload_len", len(msg.Payload)))
}
