package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/support_desk/internal/logging"
	"github.com/Skotchmaster/support_desk/internal/realtime"
	"github.com/Skotchmaster/support_desk/internal/service"
)

type ChatHandler struct {
	Auth     *service.AuthService
	Tickets  *service.TicketService
	Hub      *realtime.Hub
	Upgrader websocket.Upgrader
}

// inboundFrame is what participants send: {ticket_id, content}.
type inboundFrame struct {
	TicketID uuid.UUID `json:"ticket_id"`
	Content  string    `json:"content"`
}

// outboundFrame is echoed to every session member, the sender included, with
// the server-assigned timestamp.
type outboundFrame struct {
	TicketID  uuid.UUID `json:"ticket_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Serve authenticates and authorizes the caller BEFORE upgrading: the access
// token arrives as a query parameter and the user must be the ticket's owner
// or its assigned CSR. Authorization happens once here, not per message.
func (h *ChatHandler) Serve(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "chat")

	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}

	user, err := h.Auth.Authenticate(ctx, c.QueryParam("token"))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or revoked token")
	}

	ticket, err := h.Tickets.ByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, service.ErrTicketNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Ticket not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if !h.Tickets.Participant(ticket, user.ID) {
		return echo.NewHTTPError(http.StatusForbidden, "not a ticket participant")
	}

	conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.Hub.Connect(ticketID, conn)
	defer func() {
		h.Hub.Disconnect(ticketID, conn)
		conn.Close()
	}()

	l = l.With("ticket_id", ticketID, "user_id", user.ID)
	l.Info("chat session open")

	for {
		var in inboundFrame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Warn("chat session aborted", "error", err)
			}
			break
		}
		if in.Content == "" {
			continue
		}
		// frames addressed to another ticket are dropped, not re-routed
		if in.TicketID != uuid.Nil && in.TicketID != ticketID {
			l.Warn("frame for another ticket dropped", "frame_ticket_id", in.TicketID)
			continue
		}

		msg, err := h.Tickets.PostMessage(ctx, ticketID, user.ID, in.Content)
		if err != nil {
			l.Error("message persist failed", "error", err)
			break
		}

		h.Hub.Broadcast(ticketID, outboundFrame{
			TicketID:  msg.TicketID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
		})
	}

	l.Info("chat session closed")
	return nil
}
