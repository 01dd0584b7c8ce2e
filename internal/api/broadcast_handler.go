package api

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/observability"
	"github.com/notifmoo/notif/internal/realtime"
	"github.com/notifmoo/notif/internal/store"
)

// BroadcastRequest is the JSON body of a broadcast trigger.
type BroadcastRequest struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// BroadcastHandler publishes events to channels over the bus.
type BroadcastHandler struct {
	hub     *realtime.Hub
	domains *store.DomainRepository
	// appKey is the legacy shared application key accepted alongside
	// per-domain keys.
	appKey  string
	metrics *observability.Metrics
}

// NewBroadcastHandler creates the broadcast handler.
func NewBroadcastHandler(hub *realtime.Hub, domains *store.DomainRepository, appKey string, metrics *observability.Metrics) *BroadcastHandler {
	return &BroadcastHandler{
		hub:     hub,
		domains: domains,
		appKey:  appKey,
		metrics: metrics,
	}
}

// Broadcast handles POST /api/broadcast. The x-app-key header must carry the
// application key or an active domain key.
func (h *BroadcastHandler) Broadcast(c *fiber.Ctx) error {
	key := c.Get("x-app-key")
	if err := h.authorize(c.Context(), key); err != nil {
		return err
	}

	var req BroadcastRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperrors.Serialization(err)
	}
	if req.Channel == "" {
		return apperrors.Validation("channel is required")
	}
	if req.Event == "" {
		return apperrors.Validation("event is required")
	}
	data := req.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	count, err := h.hub.Broadcast(c.Context(), req.Channel, req.Event, data)
	if err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.Broadcasts.Inc()
	}

	return c.JSON(fiber.Map{
		"ok":               true,
		"channel":          req.Channel,
		"event":            req.Event,
		"subscriber_count": count,
	})
}

func (h *BroadcastHandler) authorize(ctx context.Context, key string) error {
	if key == "" {
		return apperrors.Auth("missing x-app-key header")
	}
	if key == h.appKey {
		return nil
	}
	domain, err := h.domains.FindByKey(ctx, key)
	if err != nil {
		return err
	}
	if domain == nil {
		log.Debug().Msg("Broadcast rejected: unknown app key")
		return apperrors.Auth("invalid app key")
	}
	return nil
}
