package repo

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/support_desk/internal/models"
)

// IsRevoked consults the ledger; presence of the jti is the sole authority.
func (r *GormRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("jti = ?", jti).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return count > 0, nil
}

// Revoke appends the jti to the ledger. Revoking an already-revoked jti is a
// no-op success; records are never deleted.
func (r *GormRepo) Revoke(ctx context.Context, jti, tokenType string) error {
	revoked, err := r.IsRevoked(ctx, jti)
	if err != nil {
		return err
	}
	if revoked {
		return nil
	}

	entry := models.RevokedToken{JTI: jti, TokenType: tokenType}
	if err := r.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	return nil
}
