package collections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emotrace/emotrace-backend/internal/media"
	"github.com/emotrace/emotrace-backend/internal/records"
	"github.com/emotrace/emotrace-backend/pkg/db"
	"github.com/emotrace/emotrace-backend/pkg/db/models"
	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"
)

type collectionsRepository interface {
	Create(ctx context.Context, collection *models.Collection) (*models.Collection, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Collection, error)
	FindByName(ctx context.Context, name string) (*models.Collection, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Collection, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	AppendRecord(ctx context.Context, collectionID, recordID uuid.UUID) (bool, error)
	RemoveRecord(ctx context.Context, collectionID, recordID uuid.UUID) (bool, error)
}

type recordsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error)
	UpdateCollection(ctx context.Context, id uuid.UUID, collectionID *uuid.UUID) error
}

// Service manages collections and their record membership.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, name string) (*models.Collection, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Collection, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Collection, error)
	Rename(ctx context.Context, userID, id uuid.UUID, name string) (*models.Collection, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	AddRecord(ctx context.Context, collectionID, recordID uuid.UUID) (*models.Collection, error)
	RemoveRecord(ctx context.Context, collectionID, recordID uuid.UUID) (*models.Collection, error)
	ReassignRecord(ctx context.Context, actorID, recordID, toCollectionID uuid.UUID) error
}

type service struct {
	repo    collectionsRepository
	records recordsRepository
	dbc     *db.Client
}

// ServiceParams bundles the dependencies for the collections service.
type ServiceParams struct {
	Repo    collectionsRepository
	Records recordsRepository
	DB      *db.Client
}

// NewService constructs the collections service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("collections repository is required")
	}
	if params.Records == nil {
		return nil, fmt.Errorf("records repository is required")
	}
	return &service{
		repo:    params.Repo,
		records: params.Records,
		dbc:     params.DB,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, name string) (*models.Collection, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collection name is required")
	}

	collection, err := s.repo.Create(ctx, &models.Collection{
		Name:      normalized,
		CreatedBy: userID,
		Records:   []uuid.UUID{},
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			conflict := pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("collection %q already exists", normalized))
			if existing, findErr := s.repo.FindByName(ctx, normalized); findErr == nil {
				conflict = conflict.WithDetails(map[string]any{"collection_id": existing.ID})
			}
			return nil, conflict
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create collection")
	}
	return collection, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	collection, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load collection")
	}
	return collection, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Collection, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list collections")
	}
	return rows, nil
}

// Rename gives the collection a new case-normalized name. Only the
// creator may do this; the unique-name rule still applies.
func (s *service) Rename(ctx context.Context, userID, id uuid.UUID, name string) (*models.Collection, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collection name is required")
	}

	collection, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if collection.CreatedBy != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the collection creator can rename it")
	}
	if collection.Name == normalized {
		return collection, nil
	}

	if err := s.repo.UpdateName(ctx, id, normalized); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("collection %q already exists", normalized))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "rename collection")
	}
	collection.Name = normalized
	return collection, nil
}

// Delete removes the collection and detaches every row that referenced
// it, in one transaction. Records and media survive with a nil pointer.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	collection, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if collection.CreatedBy != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the collection creator can delete it")
	}
	if s.dbc == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "database client required for delete")
	}

	return s.dbc.WithTx(ctx, func(tx *gorm.DB) error {
		if err := records.NewRepository(tx).ClearCollectionRefs(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "detach records")
		}
		if err := media.NewRepository(tx).ClearCollectionRefs(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "detach media")
		}
		if err := NewRepository(tx).Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete collection")
		}
		return nil
	})
}

// AddRecord inserts the record into the collection's membership set.
// Adding an existing member is a conflict; adding to or from something
// that does not exist is not found.
func (s *service) AddRecord(ctx context.Context, collectionID, recordID uuid.UUID) (*models.Collection, error) {
	record, err := s.findRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, collectionID); err != nil {
		return nil, err
	}

	added, err := s.repo.AppendRecord(ctx, collectionID, recordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "append record")
	}
	if !added {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "record is already in the collection")
	}

	if record.CollectionID == nil || *record.CollectionID != collectionID {
		if err := s.records.UpdateCollection(ctx, recordID, &collectionID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update record pointer")
		}
	}

	return s.Get(ctx, collectionID)
}

// RemoveRecord drops the record from the membership set. Removing a
// non-member is not found.
func (s *service) RemoveRecord(ctx context.Context, collectionID, recordID uuid.UUID) (*models.Collection, error) {
	if _, err := s.Get(ctx, collectionID); err != nil {
		return nil, err
	}

	removed, err := s.repo.RemoveRecord(ctx, collectionID, recordID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "remove record")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "record is not in the collection")
	}

	record, err := s.records.FindByID(ctx, recordID)
	if err == nil && record.CollectionID != nil && *record.CollectionID == collectionID {
		if err := s.records.UpdateCollection(ctx, recordID, nil); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "clear record pointer")
		}
	}

	return s.Get(ctx, collectionID)
}

// ReassignRecord moves the record into the target collection, detaching
// it from its previous one when set. Only the record owner may do this.
func (s *service) ReassignRecord(ctx context.Context, actorID, recordID, toCollectionID uuid.UUID) error {
	record, err := s.findRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if record.UserID != actorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the record owner can reassign it")
	}
	if _, err := s.Get(ctx, toCollectionID); err != nil {
		return err
	}

	if record.CollectionID != nil {
		if *record.CollectionID == toCollectionID {
			return pkgerrors.New(pkgerrors.CodeConflict, "record is already in the collection")
		}
		if _, err := s.repo.RemoveRecord(ctx, *record.CollectionID, recordID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "detach record from previous collection")
		}
	}

	added, err := s.repo.AppendRecord(ctx, toCollectionID, recordID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "append record")
	}
	if !added {
		return pkgerrors.New(pkgerrors.CodeConflict, "record is already in the collection")
	}

	if err := s.records.UpdateCollection(ctx, recordID, &toCollectionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update record pointer")
	}
	return nil
}

func (s *service) findRecord(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load record")
	}
	return record, nil
}
