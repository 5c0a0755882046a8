package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	HealthPort           int           `env:"HEALTH_PORT,default=8081"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	MediaDir             string        `env:"MEDIA_DIR,default=./media"`
	MediaURLPrefix       string        `env:"MEDIA_URL_PREFIX,default=/media"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s"`
	MaxFrameBytes        int64         `env:"MAX_FRAME_BYTES,default=4096"`
	MaxImageBytes        int           `env:"MAX_IMAGE_BYTES,default=5242880"`
	InboundFrameRate     float64       `env:"INBOUND_FRAME_RATE,default=10"`
	InboundFrameBurst    int           `env:"INBOUND_FRAME_BURST,default=20"`
	HistoryMarksRead     bool          `env:"HISTORY_MARKS_READ,default=true"`
	SummaryConcurrency   int           `env:"SUMMARY_CONCURRENCY,default=8"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=15s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
}
