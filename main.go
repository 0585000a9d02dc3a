package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flooyd/game-server/config"
	"github.com/flooyd/game-server/protocol"
	"github.com/flooyd/game-server/server"
)

// 入口：启动 TCP 接入循环与 HTTP（WebSocket + 管理接口）服务
func main() {
	cfg, err := config.Load(".env", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := server.NewLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	codec, err := protocol.NewCodec(cfg.Codec)
	if err != nil {
		log.Fatalf("codec: %v", err)
	}
	var spawn server.SpawnPolicy = server.DefaultFixedSpawn()
	if cfg.Spawn == "random" {
		spawn, err = server.NewRandomSpawn(float32(cfg.SpawnWidth), float32(cfg.SpawnHeight), 50)
		if err != nil {
			log.Fatalf("spawn: %v", err)
		}
	}

	sm := server.NewSessionManager(server.Options{
		Logger:       log,
		Codec:        codec,
		Spawn:        spawn,
		Queues:       server.NewQueueFactory(cfg.QueueLimit),
		WriteTimeout: cfg.WriteTimeout,
	})

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tcpDone := make(chan error, 1)
	go func() { tcpDone <- sm.ServeTCP(ctx, ln) }()

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", sm.HandleWS)
		mux.HandleFunc("/players", sm.HandlePlayers)
		mux.HandleFunc("/metrics", sm.HandleMetrics)
		mux.HandleFunc("/admin/spawn", sm.HandleAdminSpawn)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})
		srv = &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

		hl, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
		go func() {
			log.Infof("http listening on %s (ws endpoint: /ws)", cfg.HTTPAddr)
			if err := srv.Serve(hl); err != nil && err != http.ErrServerClosed {
				log.Errorf("http: %v", err)
			}
		}()
	}

	// 优雅退出（Ctrl+C）
	select {
	case <-ctx.Done():
	case err := <-tcpDone:
		log.Errorf("tcp accept loop stopped: %v", err)
	}
	log.Info("Shutting down...")
	stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	sm.Shutdown()
}
