package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/chunkvault/internal/logging"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

// NewRouter builds the route table with panic recovery and access logging.
func NewRouter(files FileService, logger logging.Logger) http.Handler {
	h := &handler{files: files, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/upload", h.upload).Methods(http.MethodPost)
	r.HandleFunc("/bulkUpload", h.bulkUpload).Methods(http.MethodPost)
	r.HandleFunc("/files", h.list).Methods(http.MethodGet)
	r.HandleFunc("/download/{id}", h.download).Methods(http.MethodGet)
	r.HandleFunc("/delete/{id}", h.delete).Methods(http.MethodDelete)

	var chain http.Handler = r
	chain = handlers.CustomLoggingHandler(io.Discard, chain, accessLog(logger))
	chain = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{logger}))(chain)
	return chain
}

func accessLog(logger logging.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Info(p.Request.Context(), "http request",
			"method", p.Request.Method,
			"url", p.URL.String(),
			"status", p.StatusCode,
			"size", p.Size,
			"duration", time.Since(p.TimeStamp).String(),
		)
	}
}

type recoveryLogger struct {
	logger logging.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error(context.Background(), "panic recovered", "panic", fmt.Sprint(v...))
}

// Server runs the HTTP endpoint until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger logging.Logger
}

func NewServer(addr string, files FileService, logger logging.Logger) *Server {
	logger = logger.With("module", "http")
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(files, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info(ctx, "http server stopped")
	return nil
}
