package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"wapair/internal/broadcast"
	"wapair/internal/config"
	"wapair/internal/constants"
	"wapair/internal/gateway"
	"wapair/internal/logger"
	"wapair/internal/metrics"
	"wapair/internal/orchestrator"
	"wapair/internal/poller"
	"wapair/internal/registry"
	"wapair/internal/security"
)

type Server struct {
	Cfg         *config.Config
	Store       registry.StoreInterface
	Orch        *orchestrator.Orchestrator
	Streams     *broadcast.Broadcaster
	Poller      *poller.Poller
	ConnLimiter *security.ConnectionLimiter
	ConnLog     *logger.ConnectionLog
}

func NewServer() (*Server, error) {
	cfg := config.Load()

	store, err := registry.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session registry: %w", err)
	}

	connlog, err := logger.NewConnectionLog()
	if err != nil {
		log.Printf("Warning: connection log disabled: %v", err)
		connlog = nil
	}

	gw := gateway.NewEvolutionClient(cfg.ProviderURL, cfg.ProviderAPIKey, cfg.InstancePrefix)
	streams := broadcast.New()
	p := poller.New(gw, cfg.PollInterval, cfg.PollDeadline)

	s := &Server{
		Cfg:         cfg,
		Store:       store,
		Orch:        orchestrator.New(cfg, store, gw, streams, p, connlog),
		Streams:     streams,
		Poller:      p,
		ConnLimiter: security.NewConnectionLimiter(cfg.MaxStreamsPerIP),
		ConnLog:     connlog,
	}

	metrics.RegisterSources(
		func() int { return len(store.List()) },
		streams.Len,
		p.Len,
	)

	return s, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(constants.EndpointConnect, s.HandleConnect)
	mux.HandleFunc(constants.EndpointEvents, s.HandleEvents)
	mux.HandleFunc(constants.EndpointStatus, s.HandleStatus)
	mux.HandleFunc(constants.EndpointDisconnect, s.HandleDisconnect)
	mux.HandleFunc(constants.EndpointSend, s.HandleSend)
	mux.Handle(constants.EndpointMetrics, metrics.Handler())

	var handler http.Handler = mux
	handler = RecoveryMiddleware(handler)
	handler = CorsMiddleware(handler)
	handler = SecurityHeaders(handler)
	return handler
}

func (s *Server) Run() {
	certFile := config.GetEnv("WAPAIR_CERT_FILE", "certs/server.crt")
	keyFile := config.GetEnv("WAPAIR_KEY_FILE", "certs/server.key")

	enableTLS := config.GetEnv("WAPAIR_ENABLE_TLS", "false") == "true"
	useTLS := false
	if enableTLS {
		if _, err := os.Stat(certFile); err == nil {
			if _, err := os.Stat(keyFile); err == nil {
				useTLS = true
			}
		}
		if !useTLS {
			log.Printf("Warning: WAPAIR_ENABLE_TLS is true but certs not found at %s", certFile)
		}
	}

	handler := s.Routes()
	var h2Handler http.Handler
	if useTLS {
		h2Handler = handler
	} else {
		h2Handler = h2c.NewHandler(handler, &http2.Server{})
	}

	server := &http.Server{
		Addr:              ":" + s.Cfg.Port,
		Handler:           h2Handler,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTLS {
		log.Printf("🔒 HTTPS enabled (HTTP/2)")
		go func() {
			if err := server.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTPS server error: %v", err)
			}
		}()
	} else {
		log.Printf("🌐 HTTP mode (HTTP/2 enabled)")
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTP server error: %v", err)
			}
		}()
	}

	log.Printf("🚀 wapair server starting on :%s (provider %s)", s.Cfg.Port, s.Cfg.ProviderURL)

	<-sigChan
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	s.Cleanup()
	log.Println("✅ Server stopped")
}

func (s *Server) Cleanup() {
	s.Orch.Shutdown()
	s.Store.Close()
	s.ConnLog.Close()
}
