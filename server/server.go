package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/techagentng/rentchat/config"
	"github.com/techagentng/rentchat/realtime"
	"github.com/techagentng/rentchat/services"
)

const shutdownTimeout = 10 * time.Second

// Server holds the HTTP surface and the services behind it.
type Server struct {
	Config              *config.Config
	Log                 zerolog.Logger
	ConversationService services.ConversationService
	MessageService      services.MessageService
	PresenceService     services.PresenceService
	TypingService       services.TypingService
	ReactionService     services.ReactionService
	TemplateService     services.TemplateService
	DeviceService       services.DeviceService
	MediaService        services.MediaService
	Gateway             *realtime.Gateway
}

// Start serves until SIGINT or SIGTERM, then drains the websocket gateway
// and in-flight requests.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Config.Port),
		Handler:           s.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info().Int("port", s.Config.Port).Str("env", s.Config.Env).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.Log.Info().Msg("stopping the server")
	if s.Gateway != nil {
		s.Gateway.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.Log.Info().Msg("server has been successfully stopped")
	return nil
}
