package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"
)

// Start serves the API until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves the API until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	httpServer := s.setupHTTPServer()

	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	if err := s.startWatcher(); err != nil {
		return err
	}

	s.displayServerInfo()

	return s.serveUntilDone(ctx, httpServer)
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startWatcher watches prompt overrides and questions.txt when enabled.
func (s *Server) startWatcher() error {
	if !s.watchFiles {
		return nil
	}

	questionsPath := s.Pipeline.Store().QuestionsPath()
	files := append([]string{questionsPath}, s.AppConfig.Prompts().Files()...)

	s.watcher = NewPromptWatcher(files, 0, func(changed []string) {
		s.onWatchedChange(questionsPath, changed)
	}, s.Logger)
	if err := s.watcher.Start(); err != nil {
		s.watcher = nil
		return fmt.Errorf("failed to start prompt watcher: %w", err)
	}
	return nil
}

func (s *Server) onWatchedChange(questionsPath string, changed []string) {
	if abs, err := filepath.Abs(questionsPath); err == nil {
		questionsPath = abs
	}

	if slices.Contains(changed, questionsPath) {
		s.refreshQuestionCount()
		s.Logger.Info("Question set reloaded", "questions", s.storedQuestionCount())
	}

	if len(changed) > 1 || !slices.Contains(changed, questionsPath) {
		if err := s.AppConfig.ReloadPrompts(); err != nil {
			s.Logger.LogError(err, "Prompt reload failed, keeping the previous prompts")
			return
		}
		s.Logger.Info("Prompt overrides reloaded", "files", len(s.AppConfig.Prompts().Files()))
	}
}

// serveUntilDone starts the HTTP server and shuts it down when ctx ends
func (s *Server) serveUntilDone(ctx context.Context, server *http.Server) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)

		var err error
		if server.TLSConfig != nil {
			// certificates are already in TLSConfig
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.cleanup()
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.cleanup()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanup stops the watcher and the rate limiter
func (s *Server) cleanup() {
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop prompt watcher")
		}
		s.watcher = nil
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.RateLimiter = nil
		s.Logger.Info("Rate limiter cleaned up")
	}
}
