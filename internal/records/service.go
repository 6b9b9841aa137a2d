package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emotrace/emotrace-backend/pkg/db/models"
	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"
)

type recordsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Record, error)
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// membership is the slice of the collections repo the records service
// needs to detach a record on delete.
type membership interface {
	RemoveRecord(ctx context.Context, collectionID, recordID uuid.UUID) (bool, error)
}

// Service exposes read and delete operations over annotation records.
// Assignment between collections lives in the collections service, which
// owns the membership arrays.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Record, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Record, error)
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Record, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type service struct {
	repo       recordsRepository
	membership membership
}

// ServiceParams bundles the dependencies for the records service.
type ServiceParams struct {
	Repo       recordsRepository
	Membership membership
}

// NewService constructs the records service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("records repository is required")
	}
	return &service{repo: params.Repo, membership: params.Membership}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load record")
	}
	return record, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Record, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list records")
	}
	return rows, nil
}

func (s *service) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Record, error) {
	rows, err := s.repo.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list records by collection")
	}
	return rows, nil
}

// Delete removes the record after detaching it from its collection, if
// any. Only the record owner may delete it.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the record owner can delete it")
	}

	if record.CollectionID != nil && s.membership != nil {
		if _, err := s.membership.RemoveRecord(ctx, *record.CollectionID, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "detach record from collection")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete record")
	}
	return nil
}
