package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser = "user"
	RoleCSR  = "csr"
)

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"      json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"      json:"email"`
	FullName     string    `gorm:"not null"                  json:"full_name"`
	PasswordHash string    `gorm:"not null"                  json:"-"`
	Role         string    `gorm:"not null;default:user"     json:"role"`
	IsActive     bool      `gorm:"not null;default:true"     json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime"            json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsCSR is the single capability predicate gating CSR-only surfaces.
func (u *User) IsCSR() bool { return u.Role == RoleCSR }

type Ticket struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"       json:"id"`
	Title        string     `gorm:"not null"                   json:"title"`
	Description  string     `gorm:"not null"                   json:"description"`
	Category     string     `gorm:"not null"                   json:"category"`
	Type         string     `gorm:"not null"                   json:"type"`
	Priority     *string    `json:"priority"`
	Status       string     `gorm:"not null;default:open"      json:"status"`
	UserID       uuid.UUID  `gorm:"type:uuid;index;not null"   json:"user_id"`
	AssignedToID *uuid.UUID `gorm:"type:uuid;index"            json:"assigned_to_id"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"             json:"created_at"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"     json:"id"`
	TicketID  uuid.UUID `gorm:"type:uuid;index;not null" json:"ticket_id"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null"       json:"sender_id"`
	Content   string    `gorm:"not null"                 json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime"           json:"timestamp"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// RevokedToken is an append-only ledger row; the presence of a jti here is
// the sole authority for "this token is dead".
type RevokedToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	JTI       string    `gorm:"uniqueIndex;not null"  json:"jti"`
	TokenType string    `gorm:"not null"              json:"token_type"`
	RevokedAt time.Time `gorm:"autoCreateTime"        json:"revoked_at"`
}

func (r *RevokedToken) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
