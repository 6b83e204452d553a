package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// serveMetrics exposes the agent's dispatch and queue metrics on addr until
// ctx ends. It returns the bound address, so ":0" picks a free port.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log *logger.Logger) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(m.Handler()))

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Metrics server shutdown failed")
		}
	}()

	log.WithField("addr", listener.Addr().String()).Info("Serving agent metrics")
	return listener.Addr(), nil
}
