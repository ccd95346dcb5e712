package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/support_desk/internal/events"
	"github.com/Skotchmaster/support_desk/internal/logging"
	"github.com/Skotchmaster/support_desk/internal/middleware"
	"github.com/Skotchmaster/support_desk/internal/models"
	"github.com/Skotchmaster/support_desk/internal/repo"
	"github.com/Skotchmaster/support_desk/internal/service"
	"github.com/Skotchmaster/support_desk/internal/service/search"
	"github.com/Skotchmaster/support_desk/internal/util"
)

type TicketHandler struct {
	Svc      *service.TicketService
	Producer *events.Producer
	ES       *elasticsearch.Client
	Index    string
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *TicketHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, events.TopicTicketEvents, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

// index mirrors the ticket into Elasticsearch, best-effort.
func (h *TicketHandler) index(c echo.Context, t *models.Ticket) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexTicket(ctx, h.ES, h.Index, t); err != nil {
		logging.FromContext(c.Request().Context()).Error("ticket index failed", "ticket_id", t.ID, "error", err)
	}
}

type createTicketRequest struct {
	Title       string `json:"title"       validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category"    validate:"required"`
	Type        string `json:"type"        validate:"required"`
}

func (h *TicketHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "ticket_create")
	user := middleware.CurrentUser(c)

	var req createTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ticket, err := h.Svc.Create(ctx, user.ID, service.TicketInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Type:        req.Type,
	})
	if err != nil {
		l.Error("create_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, ticket.ID.String(), map[string]any{
		"type":           "ticket_created",
		"ticket_id":      ticket.ID,
		"user_id":        ticket.UserID,
		"assigned_to_id": ticket.AssignedToID,
	})
	h.index(c, ticket)

	return c.JSON(http.StatusOK, ticket)
}

func (h *TicketHandler) ListMine(c echo.Context) error {
	user := middleware.CurrentUser(c)

	skip, limit := util.Clamp(
		parseIntDefault(c.QueryParam("skip"), 0),
		parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
	)
	filter := repo.OwnerTicketFilter{
		Status:   c.QueryParam("status"),
		Category: c.QueryParam("category"),
		Skip:     skip,
		Limit:    limit,
	}

	tickets, err := h.Svc.ListOwn(c.Request().Context(), user.ID, filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, tickets)
}

func (h *TicketHandler) GetMine(c echo.Context) error {
	user := middleware.CurrentUser(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.Svc.Get(c.Request().Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Ticket not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, ticket)
}
