package collections

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emotrace/emotrace-backend/pkg/db/models"
)

// Repository exposes collection persistence operations.
//
// Membership mutations run as single guarded UPDATE statements so set
// semantics hold under concurrent requests: the guard predicate and the
// array rewrite are evaluated inside one statement, never read-modify-write
// in application code.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a collections repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a collection.
func (r *Repository) Create(ctx context.Context, collection *models.Collection) (*models.Collection, error) {
	if err := r.db.WithContext(ctx).Create(collection).Error; err != nil {
		return nil, err
	}
	return collection, nil
}

// FindByID retrieves a collection by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	var c models.Collection
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByName retrieves a collection by its lowercase unique name.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Collection, error) {
	var c models.Collection
	if err := r.db.WithContext(ctx).First(&c, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByUser returns the collections created by the user, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Collection, error) {
	var rows []models.Collection
	err := r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateName sets a new name on the collection.
func (r *Repository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	return r.db.WithContext(ctx).
		Model(&models.Collection{}).
		Where("id = ?", id).
		Update("name", name).Error
}

// Delete removes a collection row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Collection{}).Error
}

// AppendRecord adds the record id to the membership array unless it is
// already present. Returns true when a row was updated.
func (r *Repository) AppendRecord(ctx context.Context, collectionID, recordID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE collections
		 SET records = array_append(records, ?), updated_at = now()
		 WHERE id = ? AND NOT (? = ANY(records))`,
		recordID, collectionID, recordID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RemoveRecord drops the record id from the membership array when present.
// Returns true when a row was updated.
func (r *Repository) RemoveRecord(ctx context.Context, collectionID, recordID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE collections
		 SET records = array_remove(records, ?), updated_at = now()
		 WHERE id = ? AND ? = ANY(records)`,
		recordID, collectionID, recordID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
