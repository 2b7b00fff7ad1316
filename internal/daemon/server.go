package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/matheus3301/fitmsg/internal/api"
	"go.uber.org/zap"
)

// Server manages the local API server lifecycle for a profile daemon.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer creates an HTTP server bound to the profile's Unix domain socket.
func NewServer(
	p Params,
	logger *zap.Logger,
	statusSvc *api.StatusService,
	convSvc *api.ConversationService,
	draftSvc *api.DraftService,
	notifSvc *api.NotificationService,
) (*Server, error) {
	socketPath := p.socketPath()

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	// Set socket permissions to 0600.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	mux := api.NewMux(statusSvc, convSvc, draftSvc, notifSvc)
	return &Server{
		httpServer: &http.Server{
			Handler:           accessLog(mux, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Start begins serving requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("api server starting", zap.String("socket", s.socketPath))
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("api server stopping")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("api server shutdown", zap.Error(err))
	}
	_ = os.Remove(s.socketPath)
}

// SocketPath returns the socket the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logger.Debug("api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}
