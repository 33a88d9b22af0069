package registry

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// RuntimeConfig holds process-level configuration for registryd.
type RuntimeConfig struct {
	Addr           string        `env:"ADDR,default=:8080"`
	DBDSN          string        `env:"DB_DSN,required"`
	NATSURL        string        `env:"NATS_URL"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS"`
	StalenessTTL   time.Duration `env:"SESSION_STALENESS_TTL,default=2m"`
}

// LoadRuntimeConfig returns a RuntimeConfig populated from environment
// variables.
func LoadRuntimeConfig(ctx context.Context) (RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}
