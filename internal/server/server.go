package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"pdf_stream_proxy/internal/config"
	"pdf_stream_proxy/internal/limits"
)

const (
	defaultDrain           = 2 * time.Second
	defaultGracefulTimeout = 5 * time.Second
	defaultForceClose      = 2 * time.Second
)

type ShutdownConfig struct {
	Drain           time.Duration
	GracefulTimeout time.Duration
	ForceClose      time.Duration
}

func ShutdownFromConfig(cfg config.ShutdownConfig) ShutdownConfig {
	shutdown := ShutdownConfig{
		Drain:           defaultDrain,
		GracefulTimeout: defaultGracefulTimeout,
		ForceClose:      defaultForceClose,
	}
	if cfg.DrainMS > 0 {
		shutdown.Drain = config.Duration(cfg.DrainMS)
	}
	if cfg.GracefulTimeoutMS > 0 {
		shutdown.GracefulTimeout = config.Duration(cfg.GracefulTimeoutMS)
	}
	if cfg.ForceCloseMS > 0 {
		shutdown.ForceClose = config.Duration(cfg.ForceCloseMS)
	}
	return shutdown
}

type Options struct {
	Limits   limits.Limits
	Shutdown ShutdownConfig
	Inflight *InflightTracker
}

type Server struct {
	Addr string

	httpServer   *http.Server
	listener     net.Listener
	shutdown     ShutdownConfig
	inflight     *InflightTracker
	shutdownOnce sync.Once
	shutdownErr  error
}

func Start(handler http.Handler, addr string, options Options) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is nil")
	}
	if addr == "" {
		return nil, errors.New("listen address is empty")
	}

	limitConfig := options.Limits
	if limitConfig.MaxHeaderBytes == 0 {
		limitConfig = limits.Default()
	}
	shutdownConfig := options.Shutdown
	if shutdownConfig.GracefulTimeout <= 0 {
		shutdownConfig = ShutdownFromConfig(config.ShutdownConfig{})
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Handler:           WithInflight(options.Inflight, handler),
		MaxHeaderBytes:    limitConfig.MaxHeaderBytes,
		ReadHeaderTimeout: limitConfig.ReadHeaderTimeout,
		ReadTimeout:       limitConfig.ReadTimeout,
		WriteTimeout:      limitConfig.WriteTimeout,
		IdleTimeout:       limitConfig.IdleTimeout,
	}
	go serve(httpServer, listener)

	return &Server{
		Addr:       listener.Addr().String(),
		httpServer: httpServer,
		listener:   listener,
		shutdown:   shutdownConfig,
		inflight:   options.Inflight,
	}, nil
}

func serve(server *http.Server, ln net.Listener) {
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("server error")
	}
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	if s == nil {
		return nil
	}
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdownSequence()
	})
	return s.shutdownErr
}

func (s *Server) shutdownSequence() error {
	_ = s.listener.Close()

	if s.shutdown.Drain > 0 {
		time.Sleep(s.shutdown.Drain)
	}
	if active := s.inflight.Active(); active > 0 {
		log.WithField("inflight", active).Info("waiting for in-flight requests")
	}

	gracefulCtx, cancel := context.WithTimeout(context.Background(), s.shutdown.GracefulTimeout)
	defer cancel()
	if s.inflight != nil {
		_ = s.inflight.Wait(gracefulCtx)
	}

	err := s.httpServer.Shutdown(gracefulCtx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && gracefulCtx.Err() == nil {
		return err
	}
	if gracefulCtx.Err() == nil {
		return nil
	}

	if s.shutdown.ForceClose > 0 {
		time.Sleep(s.shutdown.ForceClose)
	}
	_ = s.httpServer.Close()
	return gracefulCtx.Err()
}
