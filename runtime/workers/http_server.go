package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// HTTPServerWorker serves the API and the live sessions until its context ends.
// OnListening is called with the bound address once connections are accepted.
type HTTPServerWorker struct {
	log         *slog.Logger
	address     string
	handler     http.Handler
	OnListening func(addr net.Addr)
}

func NewHTTPServerWorker(log *slog.Logger, address string, handler http.Handler) *HTTPServerWorker {
	return &HTTPServerWorker{log: log, address: address, handler: handler}
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}
	server := &http.Server{
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", listener.Addr().String(), "at", time.Now().UTC())
		errChan <- server.Serve(listener)
	}()
	if w.OnListening != nil {
		w.OnListening(listener.Addr())
	}

	select {
	case err := <-errChan:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errChan; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	w.log.Info("HTTP server stopped")
	return nil
}
