package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/support_desk/internal/models"
)

var ErrEmailTaken = errors.New("user already registered")

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) CreateUserIfNotExists(ctx context.Context, u *models.User) error {
	tx := r.DB.WithContext(ctx).Where("email = ?", u.Email).FirstOrCreate(u)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrEmailTaken
	}
	return nil
}

func (r *GormRepo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListCSRs returns CSR accounts in a stable order so round-robin walks a
// deterministic cycle.
func (r *GormRepo) ListCSRs(ctx context.Context) ([]models.User, error) {
	var csrs []models.User
	err := r.DB.WithContext(ctx).
		Where("role = ?", models.RoleCSR).
		Order("created_at ASC, id ASC").
		Find(&csrs).Error
	if err != nil {
		return nil, err
	}
	return csrs, nil
}
