package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/support_desk/internal/repo"
	"github.com/Skotchmaster/support_desk/internal/service"
	"github.com/Skotchmaster/support_desk/internal/util"
)

func (h *TicketHandler) ListAll(c echo.Context) error {
	skip, limit := util.Clamp(
		parseIntDefault(c.QueryParam("skip"), 0),
		parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
	)
	filter := repo.CSRTicketFilter{
		Unassigned: c.QueryParam("unassigned") == "true",
		Status:     c.QueryParam("status"),
		Skip:       skip,
		Limit:      limit,
	}

	tickets, err := h.Svc.ListAll(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, tickets)
}

type assignTicketRequest struct {
	AssigneeID uuid.UUID `json:"assignee_id" validate:"required"`
	Priority   *string   `json:"priority"    validate:"omitempty,oneof=low medium high"`
}

func (h *TicketHandler) Assign(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}

	var req assignTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ticket, err := h.Svc.Assign(c.Request().Context(), id, req.AssigneeID, req.Priority)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Ticket not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, ticket.ID.String(), map[string]any{
		"type":           "ticket_assigned",
		"ticket_id":      ticket.ID,
		"assigned_to_id": ticket.AssignedToID,
	})
	h.index(c, ticket)

	return c.JSON(http.StatusOK, ticket)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

func (h *TicketHandler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ticket, err := h.Svc.SetStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Ticket not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, ticket.ID.String(), map[string]any{
		"type":      "ticket_status_updated",
		"ticket_id": ticket.ID,
		"status":    ticket.Status,
	})
	h.index(c, ticket)

	return c.JSON(http.StatusOK, ticket)
}
