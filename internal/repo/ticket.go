package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/support_desk/internal/models"
)

type OwnerTicketFilter struct {
	Status   string
	Category string
	Skip     int
	Limit    int
}

type CSRTicketFilter struct {
	Unassigned bool
	Status     string
	Skip       int
	Limit      int
}

func (r *GormRepo) CreateTicket(ctx context.Context, t *models.Ticket) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) SaveTicket(ctx context.Context, t *models.Ticket) error {
	return r.DB.WithContext(ctx).Save(t).Error
}

func (r *GormRepo) TicketByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *GormRepo) TicketsByOwner(ctx context.Context, owner uuid.UUID, f OwnerTicketFilter) ([]models.Ticket, error) {
	q := r.DB.WithContext(ctx).Where("user_id = ?", owner)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}

	var tickets []models.Ticket
	if err := q.Order("created_at ASC, id ASC").Offset(f.Skip).Limit(f.Limit).Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *GormRepo) AllTickets(ctx context.Context, f CSRTicketFilter) ([]models.Ticket, error) {
	q := r.DB.WithContext(ctx).Model(&models.Ticket{})
	if f.Unassigned {
		q = q.Where("assigned_to_id IS NULL")
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var tickets []models.Ticket
	if err := q.Order("created_at ASC, id ASC").Offset(f.Skip).Limit(f.Limit).Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

// LastAssignedCSR returns the assignee of the most recently created ticket
// that has one, or nil when no ticket has ever been assigned.
func (r *GormRepo) LastAssignedCSR(ctx context.Context) (*uuid.UUID, error) {
	var ticket models.Ticket
	err := r.DB.WithContext(ctx).
		Where("assigned_to_id IS NOT NULL").
		Order("created_at DESC, id DESC").
		First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ticket.AssignedToID, nil
}

func (r *GormRepo) CreateMessage(ctx context.Context, m *models.Message) error {
	return r.DB.WithContext(ctx).Create(m).Error
}
