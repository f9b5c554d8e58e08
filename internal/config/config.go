package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	Addr string `env:"ADDR" envDefault:":8080"`

	UploadDir    string `env:"UPLOAD_DIR" envDefault:"./data/uploads"`
	ProcessedDir string `env:"PROCESSED_DIR" envDefault:"./data/processed"`

	QueueSize      int   `env:"QUEUE_SIZE" envDefault:"64"`
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"15728640"`

	JobRetention  time.Duration `env:"JOB_RETENTION" envDefault:"1h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"10m"`

	// JobTimeout forces a failed transition for a single slow job.
	// Zero disables it.
	JobTimeout time.Duration `env:"JOB_TIMEOUT" envDefault:"0"`

	// NATSURL enables lifecycle event publishing when set.
	NATSURL      string `env:"NATS_URL"`
	EventSubject string `env:"EVENT_SUBJECT" envDefault:"images.denoise.events"`
}

func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if c.QueueSize < 1 {
		return Config{}, fmt.Errorf("QUEUE_SIZE must be greater than zero (got %d)", c.QueueSize)
	}
	if c.MaxUploadBytes < 1 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES must be greater than zero (got %d)", c.MaxUploadBytes)
	}
	if c.JobRetention <= 0 {
		return Config{}, fmt.Errorf("JOB_RETENTION must be positive (got %s)", c.JobRetention)
	}
	if c.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("SWEEP_INTERVAL must be positive (got %s)", c.SweepInterval)
	}
	return c, nil
}
