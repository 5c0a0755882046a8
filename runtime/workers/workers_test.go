package workers

import (
	"chat-relay/observability"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTelemetryWorker_Publishes_Process_Memory(t *testing.T) {
	req := require.New(t)
	metrics := observability.NewMetrics()
	worker := NewTelemetryWorker(logs.GetLoggerFromLevel(slog.LevelDebug), metrics, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- worker.Run(ctx) }()

	req.Eventually(func() bool {
		return testutil.ToFloat64(metrics.ProcessRSS) > 0
	}, 2*time.Second, 20*time.Millisecond)
	cancel()
	req.NoError(<-done)
}

func TestHTTPServerWorker_Serves_Until_Canceled(t *testing.T) {
	req := require.New(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	worker := NewHTTPServerWorker(logs.GetLoggerFromLevel(slog.LevelDebug), "127.0.0.1:0", handler)
	listening := make(chan net.Addr, 1)
	worker.OnListening = func(addr net.Addr) { listening <- addr }
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- worker.Run(ctx) }()
	addr := <-listening

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", addr))
	req.NoError(err)
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal("pong", string(body))

	// When the context ends the worker returns cleanly
	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("HTTP worker did not stop")
	}
}
