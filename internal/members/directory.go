package members

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
	pkgerrors "github.com/calebmorton/shelfline-backend/pkg/errors"
)

// Directory answers membership existence checks for the circulation core.
// Member profiles themselves are owned by the surrounding system.
type Directory interface {
	Exists(ctx context.Context, memberID uuid.UUID) (bool, error)
}

type directoryImpl struct {
	db *gorm.DB
}

// NewDirectory returns a directory backed by the members table.
func NewDirectory(db *gorm.DB) (Directory, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database required")
	}
	return &directoryImpl{db: db}, nil
}

func (d *directoryImpl) Exists(ctx context.Context, memberID uuid.UUID) (bool, error) {
	var member models.Member
	err := d.db.WithContext(ctx).
		Select("id").
		First(&member, "id = ? AND is_active = ?", memberID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up member")
	}
	return true, nil
}
