package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-alpaca/internal/logger"
	"github.com/rxtech-lab/argo-alpaca/pkg/alpaca"
)

// metricsServer exposes the client metrics at /metrics.
type metricsServer struct {
	server   *http.Server
	listener net.Listener
}

// serveMetrics registers client metrics on a fresh registry and serves them on addr.
func serveMetrics(addr string, client *alpaca.Client, log *logger.Logger) (*metricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	metrics, err := alpaca.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s := &metricsServer{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: listener,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()

	client.SetMetrics(metrics)
	log.Info("Serving metrics", zap.String("addr", listener.Addr().String()))

	return s, nil
}

func (s *metricsServer) Addr() string {
	return s.listener.Addr().String()
}

func (s *metricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
