package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emotrace/emotrace-backend/internal/annotation"
	"github.com/emotrace/emotrace-backend/internal/extraction"
	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/db/models"
	"github.com/emotrace/emotrace-backend/pkg/enums"
	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"
	"github.com/emotrace/emotrace-backend/pkg/inference"
	"github.com/emotrace/emotrace-backend/pkg/storage/cloudinary"
)

type fakeStorage struct {
	mu        sync.Mutex
	uploads   int
	destroyed []string
	kind      enums.MediaKind
	failOn    map[string]error
}

func newFakeStorage(kind enums.MediaKind) *fakeStorage {
	return &fakeStorage{kind: kind, failOn: map[string]error{}}
}

func (f *fakeStorage) Upload(_ context.Context, filename string, _ []byte, folder string) (*cloudinary.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[filename]; err != nil {
		return nil, err
	}
	f.uploads++
	publicID := fmt.Sprintf("%s/%s-%d", folder, filename, f.uploads)
	return &cloudinary.UploadResult{
		PublicID:  publicID,
		SecureURL: "https://res.example.com/" + publicID,
		Kind:      f.kind,
		Format:    "jpg",
		SizeBytes: 42,
	}, nil
}

func (f *fakeStorage) Destroy(_ context.Context, publicID string, _ enums.MediaKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

func (f *fakeStorage) destroyedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.destroyed...)
}

type fakeInference struct {
	mu       sync.Mutex
	healthy  bool
	emotion  string
	timeline []inference.TimelineEntry
	err      error
	calls    int
}

func (f *fakeInference) Healthy(context.Context) bool { return f.healthy }

func (f *fakeInference) InferImage(context.Context, string, []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.emotion, f.err
}

func (f *fakeInference) InferVideo(context.Context, string, []byte) ([]inference.TimelineEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.timeline, f.err
}

func (f *fakeInference) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMediaRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Media
	createErr error
}

func newFakeMediaRepo() *fakeMediaRepo {
	return &fakeMediaRepo{rows: map[uuid.UUID]*models.Media{}}
}

func (f *fakeMediaRepo) Create(_ context.Context, m *models.Media) (*models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	m.ID = uuid.New()
	f.rows[m.ID] = m
	return m, nil
}

func (f *fakeMediaRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeMediaRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeUploadRecordsRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*models.Record
	createErr error
}

func newFakeUploadRecordsRepo() *fakeUploadRecordsRepo {
	return &fakeUploadRecordsRepo{rows: map[uuid.UUID]*models.Record{}}
}

func (f *fakeUploadRecordsRepo) Create(_ context.Context, r *models.Record) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	r.ID = uuid.New()
	f.rows[r.ID] = r
	return r, nil
}

func (f *fakeUploadRecordsRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeUploadRecordsRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeExtractor struct {
	file *extraction.RawFile
	err  error
}

func (f *fakeExtractor) Extract(context.Context, string) (*extraction.RawFile, error) {
	return f.file, f.err
}

type fakeMembership struct {
	mu          sync.Mutex
	collections map[uuid.UUID]*models.Collection
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{collections: map[uuid.UUID]*models.Collection{}}
}

func (f *fakeMembership) seed(userID uuid.UUID, name string) *models.Collection {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Collection{ID: uuid.New(), Name: name, CreatedBy: userID}
	f.collections[c.ID] = c
	return c
}

func (f *fakeMembership) FindByID(_ context.Context, id uuid.UUID) (*models.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (f *fakeMembership) AppendRecord(_ context.Context, collectionID, recordID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.collections[collectionID]
	if !ok || c.Records.Contains(recordID) {
		return false, nil
	}
	c.Records = append(c.Records, recordID)
	return true, nil
}

func (f *fakeMembership) RemoveRecord(_ context.Context, collectionID, recordID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *fakeMembership) members(collectionID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[collectionID].Records)
}

type fakeUsers struct {
	user *models.User
}

func (f *fakeUsers) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	if f.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.user, nil
}

type harness struct {
	svc         Service
	storage     *fakeStorage
	infer       *fakeInference
	media       *fakeMediaRepo
	records     *fakeUploadRecordsRepo
	collections *fakeMembership
}

func buildHarness(t *testing.T, kind enums.MediaKind, infer *fakeInference, mutate ...func(*ServiceParams)) *harness {
	t.Helper()
	h := &harness{
		storage:     newFakeStorage(kind),
		infer:       infer,
		media:       newFakeMediaRepo(),
		records:     newFakeUploadRecordsRepo(),
		collections: newFakeMembership(),
	}
	params := ServiceParams{
		Storage:     h.storage,
		Inference:   h.infer,
		MediaRepo:   h.media,
		RecordsRepo: h.records,
		Collections: h.collections,
		Users:       &fakeUsers{user: &models.User{FirstName: "Ada", LastName: "Lovelace"}},
		UploadConfig: config.UploadConfig{
			Folder:         "media_uploads",
			MaxUploadMB:    10,
			MaxBatchSize:   3,
			ExtractEnabled: true,
		},
		AIConfig: config.AIConfig{Enabled: true},
	}
	for _, fn := range mutate {
		fn(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestUploadOneImage(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "happy"})

	userID := uuid.New()
	result, err := h.svc.UploadOne(context.Background(), userID, Input{
		Filename: "face.jpg",
		Data:     []byte("jpegbytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"happy"}, []string(result.Record.Emotions))
	assert.Equal(t, []float64{0}, []float64(result.Record.Times))
	assert.Equal(t, userID, result.Record.UserID)
	assert.Equal(t, result.Media.FileURL, result.Record.MediaURL)

	assert.True(t, result.Media.AIProcessed)
	assert.Equal(t, "happy", result.Media.Metadata.GetString(models.MetaEmotion))
	assert.Equal(t, enums.AIStatusProcessed.String(), result.Media.Metadata.GetString(models.MetaAIStatus))
	recordID, ok := result.Media.RecordID()
	require.True(t, ok)
	assert.Equal(t, result.Record.ID, recordID)

	assert.Empty(t, h.storage.destroyedIDs())
	assert.Equal(t, 1, h.media.count())
	assert.Equal(t, 1, h.records.count())
}

func TestUploadOneVideoTimeline(t *testing.T) {
	h := buildHarness(t, enums.MediaKindVideo, &fakeInference{
		healthy: true,
		timeline: []inference.TimelineEntry{
			{Timestamp: 0.04, Emotion: "neutral"},
			{Timestamp: 2.46, Emotion: "happy"},
			{Timestamp: 5.12, Emotion: "happy"},
		},
	})

	result, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Filename: "clip.mp4",
		Data:     []byte("videobytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"neutral", "happy", "happy"}, []string(result.Record.Emotions))
	assert.Equal(t, []float64{0, 2.5, 5.1}, []float64(result.Record.Times))
	assert.Equal(t, "happy", result.Media.Metadata.GetString(models.MetaEmotion))
}

func TestUploadOneInferenceUnhealthyDegrades(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: false})

	result, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Filename: "face.jpg",
		Data:     []byte("jpegbytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{annotation.DefaultEmotion}, []string(result.Record.Emotions))
	assert.Equal(t, []float64{0}, []float64(result.Record.Times))
	assert.False(t, result.Media.AIProcessed)
	assert.Equal(t, enums.AIStatusSkipped.String(), result.Media.Metadata.GetString(models.MetaAIStatus))
}

func TestUploadOneInferenceErrorDegrades(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, err: errors.New("boom")})

	result, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Filename: "face.jpg",
		Data:     []byte("jpegbytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AIStatusError.String(), result.Media.Metadata.GetString(models.MetaAIStatus))
	assert.False(t, result.Media.AIProcessed)
}

func TestUploadOneAIDisabled(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "happy"},
		func(p *ServiceParams) { p.AIConfig.Enabled = false })

	result, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Filename: "face.jpg",
		Data:     []byte("jpegbytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AIStatusDisabled.String(), result.Media.Metadata.GetString(models.MetaAIStatus))
	assert.Equal(t, []string{annotation.DefaultEmotion}, []string(result.Record.Emotions))
}

func TestUploadOneRecordFailureUnwinds(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "happy"})
	h.records.createErr = errors.New("insert failed")

	_, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Filename: "face.jpg",
		Data:     []byte("jpegbytes"),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePersistence, pkgerrors.As(err).Code())

	assert.Equal(t, 0, h.media.count())
	assert.Len(t, h.storage.destroyedIDs(), 1)
}

func TestUploadOneMediaFailureUnwindsEverything(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "happy"})
	h.media.createErr = errors.New("insert failed")

	_, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Filename: "face.jpg",
		Data:     []byte("jpegbytes"),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePersistence, pkgerrors.As(err).Code())

	assert.Equal(t, 0, h.media.count())
	assert.Equal(t, 0, h.records.count())
	assert.Len(t, h.storage.destroyedIDs(), 1)
}

func TestUploadOneValidatesSource(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true})

	_, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Data:      []byte("x"),
		SourceURL: "https://example.com/a.jpg",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	assert.Equal(t, 0, h.storage.uploads)
}

func TestUploadOneRejectsOversizeFile(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true},
		func(p *ServiceParams) { p.UploadConfig.MaxUploadMB = 1 })

	_, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Filename: "big.jpg",
		Data:     make([]byte, 2*1024*1024),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Equal(t, 0, h.storage.uploads)
}

func TestUploadOneFromURL(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "sad"},
		func(p *ServiceParams) {
			p.Extractor = &fakeExtractor{file: &extraction.RawFile{
				Filename:    "remote.jpg",
				ContentType: "image/jpeg",
				Data:        []byte("remotebytes"),
			}}
		})

	result, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		SourceURL: "https://example.com/post/123",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sad"}, []string(result.Record.Emotions))
	assert.Equal(t, 1, h.storage.uploads)
}

func TestUploadOneExtractionFailureHasNoSideEffects(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true},
		func(p *ServiceParams) {
			p.Extractor = &fakeExtractor{err: pkgerrors.New(pkgerrors.CodeExtraction, "no media found at url")}
		})

	_, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		SourceURL: "https://example.com/post/123",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeExtraction, pkgerrors.As(err).Code())
	assert.Equal(t, 0, h.storage.uploads)
	assert.Equal(t, 0, h.media.count())
}

func TestUploadManyAllOrNothing(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "happy"})
	h.storage.failOn["bad.jpg"] = errors.New("storage rejected")

	_, err := h.svc.UploadMany(context.Background(), uuid.New(), []Input{
		{Filename: "good.jpg", Data: []byte("a")},
		{Filename: "bad.jpg", Data: []byte("b")},
	})
	require.Error(t, err)

	assert.Equal(t, 0, h.media.count())
	assert.Equal(t, 0, h.records.count())
	assert.Len(t, h.storage.destroyedIDs(), 1)
}

func TestUploadManySuccess(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "happy"})

	results, err := h.svc.UploadMany(context.Background(), uuid.New(), []Input{
		{Filename: "a.jpg", Data: []byte("a")},
		{Filename: "b.jpg", Data: []byte("b")},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, h.media.count())
	assert.Equal(t, 2, h.records.count())
	assert.Empty(t, h.storage.destroyedIDs())
}

func TestUploadOneIntoCollection(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "happy"})
	userID := uuid.New()
	collection := h.collections.seed(userID, "faces")

	result, err := h.svc.UploadOne(context.Background(), userID, Input{
		Filename:     "face.jpg",
		Data:         []byte("jpegbytes"),
		CollectionID: &collection.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, h.collections.members(collection.ID))
	assert.True(t, h.collections.collections[collection.ID].Records.Contains(result.Record.ID))
	assert.Equal(t, "faces", result.CollectionName)
	assert.Equal(t, "Ada Lovelace", result.Uploader)
}

func TestUploadOneUnknownCollection(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "happy"})
	unknown := uuid.New()

	_, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Filename:     "face.jpg",
		Data:         []byte("jpegbytes"),
		CollectionID: &unknown,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	assert.Equal(t, 0, h.storage.uploads)
	assert.Equal(t, 0, h.media.count())
}

func TestUploadOneRollbackDetachesMembership(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true, emotion: "happy"})
	h.media.createErr = errors.New("insert failed")
	userID := uuid.New()
	collection := h.collections.seed(userID, "faces")

	_, err := h.svc.UploadOne(context.Background(), userID, Input{
		Filename:     "face.jpg",
		Data:         []byte("jpegbytes"),
		CollectionID: &collection.ID,
	})
	require.Error(t, err)

	assert.Equal(t, 0, h.collections.members(collection.ID))
	assert.Equal(t, 0, h.records.count())
	assert.Equal(t, 0, h.media.count())
	assert.Len(t, h.storage.destroyedIDs(), 1)
}

func TestUploadOneSkipInference(t *testing.T) {
	infer := &fakeInference{healthy: true, emotion: "happy"}
	h := buildHarness(t, enums.MediaKindImage, infer)

	result, err := h.svc.UploadOne(context.Background(), uuid.New(), Input{
		Filename:      "face.jpg",
		Data:          []byte("jpegbytes"),
		SkipInference: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, infer.callCount())
	assert.False(t, result.Media.AIProcessed)
	assert.Equal(t, enums.AIStatusSkipped.String(), result.Media.Metadata.GetString(models.MetaAIStatus))
	assert.Equal(t, []string{annotation.DefaultEmotion}, []string(result.Record.Emotions))
}

func TestUploadManyEnforcesBatchLimit(t *testing.T) {
	h := buildHarness(t, enums.MediaKindImage, &fakeInference{healthy: true})

	inputs := make([]Input, 4)
	for i := range inputs {
		inputs[i] = Input{Filename: fmt.Sprintf("f%d.jpg", i), Data: []byte("x")}
	}
	_, err := h.svc.UploadMany(context.Background(), uuid.New(), inputs)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = h.svc.UploadMany(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
