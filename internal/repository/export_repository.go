package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gltf-export-service/internal/models"
)

// ExportRepository defines the metadata operations for stored exports.
type ExportRepository interface {
	Create(ctx context.Context, export *models.Export) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Export, error)
	List(ctx context.Context, limit, offset int) ([]models.Export, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExportRepositoryImpl stores Export rows with GORM.
type ExportRepositoryImpl struct {
	db *gorm.DB
}

// NewExportRepository creates a new ExportRepositoryImpl with the provided GORM database connection.
func NewExportRepository(db *gorm.DB) *ExportRepositoryImpl {
	return &ExportRepositoryImpl{db: db}
}

func (r *ExportRepositoryImpl) Create(ctx context.Context, export *models.Export) error {
	return r.db.WithContext(ctx).Create(export).Error
}

// GetByID returns gorm.ErrRecordNotFound when no export has the ID.
func (r *ExportRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	var export models.Export
	if err := r.db.WithContext(ctx).First(&export, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &export, nil
}

// List returns exports newest first. A non-positive limit returns all rows.
func (r *ExportRepositoryImpl) List(ctx context.Context, limit, offset int) ([]models.Export, error) {
	var exports []models.Export
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	err := q.Find(&exports).Error
	return exports, err
}

// Delete returns gorm.ErrRecordNotFound when nothing was deleted.
func (r *ExportRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Export{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
