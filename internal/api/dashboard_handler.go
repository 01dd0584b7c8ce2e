package api

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/apperrors"
	"github.com/notifmoo/notif/internal/store"
)

// DashboardHandler serves the authenticated management API: the current user,
// domain and key management, observed channels, and live connection status.
type DashboardHandler struct {
	users    *store.UserRepository
	domains  *store.DomainRepository
	channels *store.ChannelRepository
	conns    *store.ConnectionRepository
}

// NewDashboardHandler creates the dashboard handler.
func NewDashboardHandler(users *store.UserRepository, domains *store.DomainRepository, channels *store.ChannelRepository, conns *store.ConnectionRepository) *DashboardHandler {
	return &DashboardHandler{
		users:    users,
		domains:  domains,
		channels: channels,
		conns:    conns,
	}
}

// GetUser handles GET /dashboard/user.
func (h *DashboardHandler) GetUser(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	user, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.Auth("user not found")
	}

	return c.JSON(fiber.Map{"user": toUserResponse(user)})
}

type domainResponse struct {
	ID         string    `json:"id"`
	DomainName string    `json:"domain_name"`
	Key        string    `json:"key"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDomainResponse(d *store.Domain) domainResponse {
	return domainResponse{
		ID:         d.ID.String(),
		DomainName: d.DomainName,
		Key:        d.Key,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt,
	}
}

// ListDomains handles GET /dashboard/domains.
func (h *DashboardHandler) ListDomains(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	domains, err := h.domains.ListByUser(c.Context(), userID)
	if err != nil {
		return err
	}

	out := make([]domainResponse, 0, len(domains))
	for i := range domains {
		out = append(out, toDomainResponse(&domains[i]))
	}
	return c.JSON(fiber.Map{"domains": out})
}

type createDomainRequest struct {
	DomainName string `json:"domain_name"`
}

// CreateDomain handles POST /dashboard/domains. Each domain receives exactly
// one generated API key.
func (h *DashboardHandler) CreateDomain(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req createDomainRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperrors.Serialization(err)
	}
	if req.DomainName == "" {
		return apperrors.Validation("domain_name is required")
	}

	key, err := store.NewDomainKey()
	if err != nil {
		return err
	}

	domain, err := h.domains.Create(c.Context(), userID, req.DomainName, key)
	if err != nil {
		return err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("domain", domain.DomainName).
		Msg("Domain registered")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"domain": toDomainResponse(domain)})
}

type updateDomainRequest struct {
	IsActive bool `json:"is_active"`
}

// UpdateDomain handles PATCH /dashboard/domains/:id, toggling the key.
func (h *DashboardHandler) UpdateDomain(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	domainID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperrors.Validation("invalid domain id")
	}

	var req updateDomainRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return apperrors.Serialization(err)
	}

	if err := h.domains.SetActive(c.Context(), domainID, userID, req.IsActive); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "is_active": req.IsActive})
}

// DeleteDomain handles DELETE /dashboard/domains/:id.
func (h *DashboardHandler) DeleteDomain(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	domainID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperrors.Validation("invalid domain id")
	}

	if err := h.domains.Delete(c.Context(), domainID, userID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true})
}

// ListChannels handles GET /dashboard/channels.
func (h *DashboardHandler) ListChannels(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	channels, err := h.channels.ListByUser(c.Context(), userID)
	if err != nil {
		return err
	}

	type channelResponse struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		DomainID  string    `json:"domain_id"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]channelResponse, 0, len(channels))
	for _, ch := range channels {
		out = append(out, channelResponse{
			ID:        ch.ID.String(),
			Name:      ch.Name,
			DomainID:  ch.DomainID.String(),
			CreatedAt: ch.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"channels": out})
}

// WsStatus handles GET /dashboard/ws-status: live connections and per-channel
// counts across the user's domains.
func (h *DashboardHandler) WsStatus(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	active, err := h.conns.ActiveByUser(c.Context(), userID)
	if err != nil {
		return err
	}
	counts, err := h.conns.CountsByUser(c.Context(), userID)
	if err != nil {
		return err
	}

	type connectionResponse struct {
		SocketID      string    `json:"socket_id"`
		ChannelName   string    `json:"channel_name"`
		DomainID      string    `json:"domain_id"`
		ConnectedUser *string   `json:"connected_user,omitempty"`
		ConnectedAt   time.Time `json:"connected_at"`
	}
	conns := make([]connectionResponse, 0, len(active))
	for _, w := range active {
		conns = append(conns, connectionResponse{
			SocketID:      w.SocketID,
			ChannelName:   w.ChannelName,
			DomainID:      w.DomainID.String(),
			ConnectedUser: w.ConnectedUser,
			ConnectedAt:   w.ConnectedAt,
		})
	}

	channelCounts := make(map[string]int64, len(counts))
	for _, cc := range counts {
		channelCounts[cc.ChannelName] = cc.Count
	}

	return c.JSON(fiber.Map{
		"connections":    conns,
		"channel_counts": channelCounts,
		"total":          len(conns),
	})
}
