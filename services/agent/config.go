package agent

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for a session agent instance.
type Config struct {
	APIBaseURL        string        `env:"REGISTRY_API,default=http://localhost:8080"`
	NATSURL           string        `env:"NATS_URL"`
	StateDir          string        `env:"AGENT_STATE_DIR"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
}

// LoadConfig returns a Config populated from environment variables.
func LoadConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
