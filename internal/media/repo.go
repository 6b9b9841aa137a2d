package media

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emotrace/emotrace-backend/pkg/db/models"
)

// Repository exposes media metadata persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a media repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a media row.
func (r *Repository) Create(ctx context.Context, media *models.Media) (*models.Media, error) {
	if err := r.db.WithContext(ctx).Create(media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

// FindByID retrieves a media row by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	var m models.Media
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByUser returns the user's uploads, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Media, error) {
	var rows []models.Media
	err := r.db.WithContext(ctx).
		Where("uploaded_by = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByCollection returns all media assigned to the collection.
func (r *Repository) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Media, error) {
	var rows []models.Media
	err := r.db.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes a media row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Media{}).Error
}

// UpdateCollection points the media at a new collection (nil clears it).
func (r *Repository) UpdateCollection(ctx context.Context, id uuid.UUID, collectionID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Media{}).
		Where("id = ?", id).
		UpdateColumn("collection_id", collectionID).Error
}

// ClearCollectionRefs nulls the collection pointer on every media row in
// the collection. Used when a collection is deleted.
func (r *Repository) ClearCollectionRefs(ctx context.Context, collectionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Media{}).
		Where("collection_id = ?", collectionID).
		UpdateColumn("collection_id", nil).Error
}

// SetAIResult stores the inference outcome on the media row.
func (r *Repository) SetAIResult(ctx context.Context, id uuid.UUID, processed bool, metadata map[string]any) error {
	updates := map[string]any{
		"ai_processed": processed,
		"updated_at":   time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Media{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error; err != nil {
		return err
	}
	if len(metadata) == 0 {
		return nil
	}
	return r.MergeMetadata(ctx, id, metadata)
}

// MergeMetadata overlays the given keys onto the media metadata blob.
func (r *Repository) MergeMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	var m models.Media
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return err
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	for k, v := range patch {
		m.Metadata[k] = v
	}
	return r.db.WithContext(ctx).
		Model(&models.Media{}).
		Where("id = ?", id).
		UpdateColumn("metadata", m.Metadata).Error
}
