package workers

import (
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker samples the server's own process and publishes memory
// and CPU usage as gauges.
type TelemetryWorker struct {
	log            *slog.Logger
	metrics        *observability.Metrics
	metricInterval time.Duration
	pid            int32
}

func NewTelemetryWorker(log *slog.Logger, metrics *observability.Metrics, metricInterval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metrics:        metrics,
		metricInterval: metricInterval,
		pid:            int32(os.Getpid()),
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(w.pid)
	if err != nil {
		return fmt.Errorf("process %d not found: %w", w.pid, err)
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	w.sample(p)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.sample(p)
		}
	}
}

func (w *TelemetryWorker) sample(p *process.Process) {
	memory, err := p.MemoryInfo()
	if err != nil {
		w.log.Debug("Error while reading memory", "pid", w.pid, "error", err)
	} else {
		w.metrics.ProcessRSS.Set(float64(memory.RSS))
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Debug("Error while reading cpu", "pid", w.pid, "error", err)
		return
	}
	w.metrics.ProcessCPU.Set(cpu)
}
