package registry

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"sessiond/pkg/bus"
)

// Config controls runtime behaviour for the registry handlers.
type Config struct {
	StalenessTTL   time.Duration
	AllowedOrigins []string
}

// API wires the session service and configuration for HTTP handlers.
type API struct {
	service *Service
	config  Config
	log     zerolog.Logger
}

// New initialises the API layer over a gorm handle and an optional bus.
func New(orm *gorm.DB, b *bus.Bus, log zerolog.Logger, cfg Config) (*API, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if cfg.StalenessTTL <= 0 {
		cfg.StalenessTTL = DefaultStalenessTTL
	}

	return &API{
		service: NewService(newGormStore(orm), b, log, cfg.StalenessTTL),
		config:  cfg,
		log:     log,
	}, nil
}

// Service exposes the underlying session service, mainly for wiring and
// tests.
func (a *API) Service() *Service { return a.service }
