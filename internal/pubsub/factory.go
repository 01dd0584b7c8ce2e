package pubsub

import (
	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/config"
)

// NewBus creates a bus based on the configured backend.
//
// Backend options:
//   - "redis": Redis pub/sub, required for multi-instance deployments
//   - "local": in-process only, for single-instance and tests
func NewBus(cfg config.BusConfig) (Bus, error) {
	switch cfg.Backend {
	case "redis", "":
		log.Info().Msg("Using Redis bus")
		return NewRedisBus(cfg.RedisURL)

	case "local":
		log.Info().Msg("Using local in-process bus (single instance mode)")
		return NewLocalBus(), nil

	default:
		return nil, apperrors.Config("unknown bus backend: " + cfg.Backend)
	}
}
