package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/support_desk/internal/logging"
	"github.com/Skotchmaster/support_desk/internal/models"
	"github.com/Skotchmaster/support_desk/internal/repo"
)

var ErrTicketNotFound = errors.New("ticket not found")

type TicketService struct {
	Repo     *repo.GormRepo
	Strategy string
}

type TicketInput struct {
	Title       string
	Description string
	Category    string
	Type        string
}

// Create persists a new ticket for owner. Status is forced to open and
// priority to unset regardless of caller input; assignment is attempted
// immediately and the absence of any CSR leaves the ticket unassigned.
func (s *TicketService) Create(ctx context.Context, owner uuid.UUID, in TicketInput) (*models.Ticket, error) {
	l := logging.FromContext(ctx).With("svc", "tickets.create")

	ticket := models.Ticket{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Type:        in.Type,
		Status:      models.StatusOpen,
		Priority:    nil,
		UserID:      owner,
	}

	assignee, err := s.chooseAssignee(ctx)
	if err != nil {
		l.Error("assignment_failed", "error", err)
		return nil, err
	}
	ticket.AssignedToID = assignee

	if err := s.Repo.CreateTicket(ctx, &ticket); err != nil {
		l.Error("create_failed", "error", err)
		return nil, err
	}
	return &ticket, nil
}

func (s *TicketService) ListOwn(ctx context.Context, owner uuid.UUID, f repo.OwnerTicketFilter) ([]models.Ticket, error) {
	return s.Repo.TicketsByOwner(ctx, owner, f)
}

// Get hides existence: a ticket owned by someone else reads as not found.
func (s *TicketService) Get(ctx context.Context, owner, id uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.Repo.TicketByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if ticket.UserID != owner {
		return nil, ErrTicketNotFound
	}
	return ticket, nil
}

func (s *TicketService) ListAll(ctx context.Context, f repo.CSRTicketFilter) ([]models.Ticket, error) {
	return s.Repo.AllTickets(ctx, f)
}

func (s *TicketService) Assign(ctx context.Context, id, assignee uuid.UUID, priority *string) (*models.Ticket, error) {
	ticket, err := s.Repo.TicketByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	ticket.AssignedToID = &assignee
	if priority != nil {
		ticket.Priority = priority
	}
	if err := s.Repo.SaveTicket(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// SetStatus overwrites the status unconditionally; no transition table is
// enforced (see DESIGN.md).
func (s *TicketService) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Ticket, error) {
	ticket, err := s.Repo.TicketByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	ticket.Status = status
	if err := s.Repo.SaveTicket(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ByID loads a ticket without owner scoping; callers gate access themselves.
func (s *TicketService) ByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.Repo.TicketByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

// PostMessage persists a chat message on the ticket. Messages are immutable
// once created; ordering is creation-timestamp order.
func (s *TicketService) PostMessage(ctx context.Context, ticketID, senderID uuid.UUID, content string) (*models.Message, error) {
	msg := models.Message{
		TicketID: ticketID,
		SenderID: senderID,
		Content:  content,
	}
	if err := s.Repo.CreateMessage(ctx, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Participant reports whether the user may join the ticket's realtime
// channel: its owner or its assigned CSR.
func (s *TicketService) Participant(t *models.Ticket, userID uuid.UUID) bool {
	if t.UserID == userID {
		return true
	}
	return t.AssignedToID != nil && *t.AssignedToID == userID
}
