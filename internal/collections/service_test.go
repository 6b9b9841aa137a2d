package collections

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emotrace/emotrace-backend/pkg/db/models"
	dbtypes "github.com/emotrace/emotrace-backend/pkg/db/types"
	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"
)

type fakeCollectionsRepo struct {
	collections map[uuid.UUID]*models.Collection
}

func newFakeCollectionsRepo() *fakeCollectionsRepo {
	return &fakeCollectionsRepo{collections: map[uuid.UUID]*models.Collection{}}
}

func (f *fakeCollectionsRepo) Create(_ context.Context, c *models.Collection) (*models.Collection, error) {
	for _, existing := range f.collections {
		if existing.Name == c.Name {
			return nil, gorm.ErrDuplicatedKey
		}
	}
	c.ID = uuid.New()
	f.collections[c.ID] = c
	return c, nil
}

func (f *fakeCollectionsRepo) FindByName(_ context.Context, name string) (*models.Collection, error) {
	for _, c := range f.collections {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCollectionsRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Collection, error) {
	c, ok := f.collections[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeCollectionsRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Collection, error) {
	var rows []models.Collection
	for _, c := range f.collections {
		if c.CreatedBy == userID {
			rows = append(rows, *c)
		}
	}
	return rows, nil
}

func (f *fakeCollectionsRepo) UpdateName(_ context.Context, id uuid.UUID, name string) error {
	for _, existing := range f.collections {
		if existing.ID != id && existing.Name == name {
			return gorm.ErrDuplicatedKey
		}
	}
	c, ok := f.collections[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.Name = name
	return nil
}

func (f *fakeCollectionsRepo) AppendRecord(_ context.Context, collectionID, recordID uuid.UUID) (bool, error) {
	c, ok := f.collections[collectionID]
	if !ok {
		return false, nil
	}
	if c.Records.Contains(recordID) {
		return false, nil
	}
	c.Records = append(c.Records, recordID)
	return true, nil
}

func (f *fakeCollectionsRepo) RemoveRecord(_ context.Context, collectionID, recordID uuid.UUID) (bool, error) {
	c, ok := f.collections[collectionID]
	if !ok {
		return false, nil
	}
	for i, id := range c.Records {
		if id == recordID {
			c.Records = append(c.Records[:i], c.Records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeRecordsRepo struct {
	records map[uuid.UUID]*models.Record
}

func newFakeRecordsRepo() *fakeRecordsRepo {
	return &fakeRecordsRepo{records: map[uuid.UUID]*models.Record{}}
}

func (f *fakeRecordsRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (f *fakeRecordsRepo) UpdateCollection(_ context.Context, id uuid.UUID, collectionID *uuid.UUID) error {
	rec, ok := f.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.CollectionID = collectionID
	return nil
}

func buildTestService(t *testing.T) (Service, *fakeCollectionsRepo, *fakeRecordsRepo) {
	t.Helper()
	repo := newFakeCollectionsRepo()
	recordsRepo := newFakeRecordsRepo()
	svc, err := NewService(ServiceParams{Repo: repo, Records: recordsRepo})
	require.NoError(t, err)
	return svc, repo, recordsRepo
}

func seedRecord(repo *fakeRecordsRepo, userID uuid.UUID) *models.Record {
	rec := &models.Record{
		ID:       uuid.New(),
		UserID:   userID,
		MediaURL: "https://res.example.com/abc.jpg",
		Emotions: []string{"happy"},
		Times:    []float64{0},
	}
	repo.records[rec.ID] = rec
	return rec
}

func seedCollection(repo *fakeCollectionsRepo, userID uuid.UUID, name string) *models.Collection {
	c := &models.Collection{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: userID,
		Records:   dbtypes.UUIDArray{},
	}
	repo.collections[c.ID] = c
	return c
}

func TestCreateNormalizesName(t *testing.T) {
	svc, _, _ := buildTestService(t)
	userID := uuid.New()

	c, err := svc.Create(context.Background(), userID, "  Vacation Clips  ")
	require.NoError(t, err)
	assert.Equal(t, "vacation clips", c.Name)
	assert.Equal(t, userID, c.CreatedBy)
	assert.Empty(t, c.Records)
}

func TestCreateRejectsEmptyName(t *testing.T) {
	svc, _, _ := buildTestService(t)
	_, err := svc.Create(context.Background(), uuid.New(), "   ")
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCreateDuplicateNameConflicts(t *testing.T) {
	svc, _, _ := buildTestService(t)
	userID := uuid.New()

	_, err := svc.Create(context.Background(), userID, "faces")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), userID, "FACES")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestRenameNormalizesAndUpdates(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	userID := uuid.New()
	collection := seedCollection(repo, userID, "faces")

	renamed, err := svc.Rename(context.Background(), userID, collection.ID, "  Holiday Faces ")
	require.NoError(t, err)
	assert.Equal(t, "holiday faces", renamed.Name)
	assert.Equal(t, "holiday faces", repo.collections[collection.ID].Name)
}

func TestRenameDuplicateNameConflicts(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	userID := uuid.New()
	seedCollection(repo, userID, "trips")
	collection := seedCollection(repo, userID, "faces")

	_, err := svc.Rename(context.Background(), userID, collection.ID, "TRIPS")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	assert.Equal(t, "faces", repo.collections[collection.ID].Name)
}

func TestRenameRequiresOwner(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	collection := seedCollection(repo, uuid.New(), "faces")

	_, err := svc.Rename(context.Background(), uuid.New(), collection.ID, "stolen")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestAddRecord(t *testing.T) {
	svc, repo, recordsRepo := buildTestService(t)
	userID := uuid.New()
	collection := seedCollection(repo, userID, "faces")
	record := seedRecord(recordsRepo, userID)

	updated, err := svc.AddRecord(context.Background(), collection.ID, record.ID)
	require.NoError(t, err)
	assert.True(t, updated.Records.Contains(record.ID))
	require.NotNil(t, recordsRepo.records[record.ID].CollectionID)
	assert.Equal(t, collection.ID, *recordsRepo.records[record.ID].CollectionID)
}

func TestAddRecordDuplicateConflicts(t *testing.T) {
	svc, repo, recordsRepo := buildTestService(t)
	userID := uuid.New()
	collection := seedCollection(repo, userID, "faces")
	record := seedRecord(recordsRepo, userID)

	_, err := svc.AddRecord(context.Background(), collection.ID, record.ID)
	require.NoError(t, err)

	_, err = svc.AddRecord(context.Background(), collection.ID, record.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
	assert.Len(t, repo.collections[collection.ID].Records, 1)
}

func TestAddRecordUnknownCollection(t *testing.T) {
	svc, _, recordsRepo := buildTestService(t)
	record := seedRecord(recordsRepo, uuid.New())

	_, err := svc.AddRecord(context.Background(), uuid.New(), record.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestAddRecordUnknownRecord(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	collection := seedCollection(repo, uuid.New(), "faces")

	_, err := svc.AddRecord(context.Background(), collection.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestRemoveRecord(t *testing.T) {
	svc, repo, recordsRepo := buildTestService(t)
	userID := uuid.New()
	collection := seedCollection(repo, userID, "faces")
	record := seedRecord(recordsRepo, userID)

	_, err := svc.AddRecord(context.Background(), collection.ID, record.ID)
	require.NoError(t, err)

	updated, err := svc.RemoveRecord(context.Background(), collection.ID, record.ID)
	require.NoError(t, err)
	assert.False(t, updated.Records.Contains(record.ID))
	assert.Nil(t, recordsRepo.records[record.ID].CollectionID)
}

func TestRemoveRecordNonMemberNotFound(t *testing.T) {
	svc, repo, recordsRepo := buildTestService(t)
	userID := uuid.New()
	collection := seedCollection(repo, userID, "faces")
	record := seedRecord(recordsRepo, userID)

	_, err := svc.RemoveRecord(context.Background(), collection.ID, record.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestRemoveThenAddAgain(t *testing.T) {
	svc, repo, recordsRepo := buildTestService(t)
	userID := uuid.New()
	collection := seedCollection(repo, userID, "faces")
	record := seedRecord(recordsRepo, userID)

	ctx := context.Background()
	_, err := svc.AddRecord(ctx, collection.ID, record.ID)
	require.NoError(t, err)
	_, err = svc.RemoveRecord(ctx, collection.ID, record.ID)
	require.NoError(t, err)
	updated, err := svc.AddRecord(ctx, collection.ID, record.ID)
	require.NoError(t, err)
	assert.Len(t, updated.Records, 1)
}

func TestReassignRecordMovesMembership(t *testing.T) {
	svc, repo, recordsRepo := buildTestService(t)
	userID := uuid.New()
	first := seedCollection(repo, userID, "faces")
	second := seedCollection(repo, userID, "trips")
	record := seedRecord(recordsRepo, userID)

	ctx := context.Background()
	_, err := svc.AddRecord(ctx, first.ID, record.ID)
	require.NoError(t, err)

	require.NoError(t, svc.ReassignRecord(ctx, userID, record.ID, second.ID))

	assert.False(t, repo.collections[first.ID].Records.Contains(record.ID))
	assert.True(t, repo.collections[second.ID].Records.Contains(record.ID))
	require.NotNil(t, recordsRepo.records[record.ID].CollectionID)
	assert.Equal(t, second.ID, *recordsRepo.records[record.ID].CollectionID)
}

func TestReassignToSameCollectionConflicts(t *testing.T) {
	svc, repo, recordsRepo := buildTestService(t)
	userID := uuid.New()
	collection := seedCollection(repo, userID, "faces")
	record := seedRecord(recordsRepo, userID)

	ctx := context.Background()
	_, err := svc.AddRecord(ctx, collection.ID, record.ID)
	require.NoError(t, err)

	err = svc.ReassignRecord(ctx, userID, record.ID, collection.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}

func TestReassignRecordRequiresOwner(t *testing.T) {
	svc, repo, recordsRepo := buildTestService(t)
	owner := uuid.New()
	collection := seedCollection(repo, owner, "faces")
	record := seedRecord(recordsRepo, owner)

	err := svc.ReassignRecord(context.Background(), uuid.New(), record.ID, collection.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
	assert.Empty(t, repo.collections[collection.ID].Records)
}

func TestDeleteRequiresOwner(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	owner := uuid.New()
	collection := seedCollection(repo, owner, "faces")

	err := svc.Delete(context.Background(), uuid.New(), collection.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}
