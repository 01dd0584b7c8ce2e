package realtime

import (
	"context"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/observability"
)

// AuthorizedDomain is the resolved owner of a WebSocket API key.
type AuthorizedDomain struct {
	ID   uuid.UUID
	Name string
}

// DomainResolver looks up the active domain owning an API key. A nil result
// with nil error means the key is unknown or revoked.
type DomainResolver interface {
	ResolveKey(ctx context.Context, key string) (*AuthorizedDomain, error)
}

// Handler upgrades HTTP requests to WebSocket sessions.
type Handler struct {
	hub     *Hub
	roster  *Roster
	signer  *Signer
	audit   AuditLog
	domains DomainResolver
	metrics *observability.Metrics
}

// NewHandler creates a WebSocket handler.
func NewHandler(hub *Hub, roster *Roster, signer *Signer, audit AuditLog, domains DomainResolver) *Handler {
	return &Handler{
		hub:     hub,
		roster:  roster,
		signer:  signer,
		audit:   audit,
		domains: domains,
	}
}

// SetMetrics attaches metrics recording. Optional.
func (h *Handler) SetMetrics(m *observability.Metrics) {
	h.metrics = m
}

// Upgrade gates the WebSocket handshake. An api_key query parameter (or
// x-app-key header) binds the session to a domain; the request Origin must
// then match the domain name. Without a key the session is anonymous.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	key := c.Query("api_key")
	if key == "" {
		key = c.Get("x-app-key")
	}

	var domainID *uuid.UUID
	if key != "" {
		domain, err := h.domains.ResolveKey(c.Context(), key)
		if err != nil {
			return err
		}
		if domain == nil {
			return apperrors.Auth("invalid API key")
		}

		host, ok := parseOriginHost(c.Get(fiber.HeaderOrigin))
		if !ok || !domainMatches(domain.Name, host) {
			log.Debug().
				Str("domain", domain.Name).
				Str("origin", c.Get(fiber.HeaderOrigin)).
				Msg("WebSocket origin rejected")
			return apperrors.Auth("origin not allowed for this API key")
		}

		domainID = &domain.ID
		log.Debug().Str("domain", domain.Name).Msg("WebSocket domain authenticated")
	}

	c.Locals("domain_id", domainID)
	return websocket.New(h.serve)(c)
}

// serve runs one upgraded connection to completion.
func (h *Handler) serve(c *websocket.Conn) {
	var domainID *uuid.UUID
	if v := c.Locals("domain_id"); v != nil {
		domainID, _ = v.(*uuid.UUID)
	}

	session := NewSession(c, domainID, h.hub, h.roster, h.signer, h.audit)
	if h.metrics != nil {
		session.SetMetrics(h.metrics)
	}
	session.Run()
}

// parseOriginHost extracts the lowercase host from an Origin header value.
// Only http and https origins are accepted.
func parseOriginHost(origin string) (string, bool) {
	var rest string
	switch {
	case strings.HasPrefix(origin, "https://"):
		rest = origin[len("https://"):]
	case strings.HasPrefix(origin, "http://"):
		rest = origin[len("http://"):]
	default:
		return "", false
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", false
	}
	return strings.ToLower(rest), true
}

// domainMatches reports whether the origin host is allowed by the registered
// domain pattern. A wildcard pattern like *.example.com admits any host with
// that suffix; a plain pattern admits only the exact host.
func domainMatches(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return host == pattern
}
