package records

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/emotrace/emotrace-backend/pkg/db/models"
)

// Repository exposes annotation record persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a records repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists an annotation record.
func (r *Repository) Create(ctx context.Context, record *models.Record) (*models.Record, error) {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// FindByID retrieves a record by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	var rec models.Record
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByUser returns the user's records, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Record, error) {
	var rows []models.Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByCollection returns every record assigned to the collection.
func (r *Repository) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Record, error) {
	var rows []models.Record
	err := r.db.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes a record row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Record{}).Error
}

// UpdateCollection points the record at a new collection (nil clears it).
func (r *Repository) UpdateCollection(ctx context.Context, id uuid.UUID, collectionID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Record{}).
		Where("id = ?", id).
		UpdateColumn("collection_id", collectionID).Error
}

// UpdateAnnotation replaces the record's emotion and time arrays.
func (r *Repository) UpdateAnnotation(ctx context.Context, id uuid.UUID, emotions []string, times []float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Record{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"emotions": pq.StringArray(emotions),
			"times":    pq.Float64Array(times),
		}).Error
}

// ClearCollectionRefs nulls the collection pointer on every record in the
// collection. Used when a collection is deleted.
func (r *Repository) ClearCollectionRefs(ctx context.Context, collectionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Record{}).
		Where("collection_id = ?", collectionID).
		UpdateColumn("collection_id", nil).Error
}
