package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emotrace/emotrace-backend/internal/annotation"
	"github.com/emotrace/emotrace-backend/internal/extraction"
	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/db/models"
	"github.com/emotrace/emotrace-backend/pkg/enums"
	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"
	"github.com/emotrace/emotrace-backend/pkg/inference"
	"github.com/emotrace/emotrace-backend/pkg/logger"
	"github.com/emotrace/emotrace-backend/pkg/metrics"
)

type mediaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Media, error)
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Media, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateCollection(ctx context.Context, id uuid.UUID, collectionID *uuid.UUID) error
	SetAIResult(ctx context.Context, id uuid.UUID, processed bool, metadata map[string]any) error
}

type collectionFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Collection, error)
}

type recordsUpdater interface {
	UpdateAnnotation(ctx context.Context, id uuid.UUID, emotions []string, times []float64) error
}

type recordAssigner interface {
	ReassignRecord(ctx context.Context, actorID, recordID, toCollectionID uuid.UUID) error
	RemoveRecord(ctx context.Context, collectionID, recordID uuid.UUID) (*models.Collection, error)
}

type deletionPublisher interface {
	PublishDeletion(ctx context.Context, event DeletionEvent) error
}

type storageClient interface {
	Destroy(ctx context.Context, publicID string, kind enums.MediaKind) error
}

type inferenceClient interface {
	Healthy(ctx context.Context) bool
	InferImage(ctx context.Context, filename string, data []byte) (string, error)
	InferVideo(ctx context.Context, filename string, data []byte) ([]inference.TimelineEntry, error)
}

type fetcher interface {
	Extract(ctx context.Context, rawURL string) (*extraction.RawFile, error)
}

// AIStatusInfo is the public inference status of a media item.
type AIStatusInfo struct {
	MediaID   uuid.UUID `json:"media_id"`
	Processed bool      `json:"processed"`
	Status    string    `json:"status"`
	Emotion   string    `json:"emotion,omitempty"`
}

// Service manages stored media metadata and its lifecycle after upload.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Media, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Media, error)
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Media, error)
	AssignCollection(ctx context.Context, userID, mediaID uuid.UUID, collectionID *uuid.UUID) (*models.Media, error)
	Delete(ctx context.Context, userID, mediaID uuid.UUID) error
	ReprocessAI(ctx context.Context, userID, mediaID uuid.UUID) (*models.Media, error)
	AIStatus(ctx context.Context, mediaID uuid.UUID) (*AIStatusInfo, error)
}

type service struct {
	repo        mediaRepository
	collections collectionFinder
	records     recordsUpdater
	assigner    recordAssigner
	publisher   deletionPublisher
	storage     storageClient
	infer       inferenceClient
	fetch       fetcher
	aiCfg       config.AIConfig
	metrics     *metrics.PipelineMetrics
	logg        *logger.Logger
}

// ServiceParams bundles the media service dependencies. Publisher is
// optional; without it, deletes destroy stored bytes synchronously.
type ServiceParams struct {
	Repo        mediaRepository
	Collections collectionFinder
	Records     recordsUpdater
	Assigner    recordAssigner
	Publisher   deletionPublisher
	Storage     storageClient
	Inference   inferenceClient
	Fetcher     fetcher
	AIConfig    config.AIConfig
	Metrics     *metrics.PipelineMetrics
	Logger      *logger.Logger
}

// NewService constructs the media service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("media repository is required")
	}
	return &service{
		repo:        params.Repo,
		collections: params.Collections,
		records:     params.Records,
		assigner:    params.Assigner,
		publisher:   params.Publisher,
		storage:     params.Storage,
		infer:       params.Inference,
		fetch:       params.Fetcher,
		aiCfg:       params.AIConfig,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "media not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load media")
	}
	return m, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Media, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list media")
	}
	return rows, nil
}

func (s *service) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]models.Media, error) {
	rows, err := s.repo.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list media by collection")
	}
	return rows, nil
}

// AssignCollection moves the media into the given collection, or clears
// the assignment when collectionID is nil. Only the uploader may do
// this. The linked annotation record follows the media best-effort: a
// failure there is logged, the media update stands.
func (s *service) AssignCollection(ctx context.Context, userID, mediaID uuid.UUID, collectionID *uuid.UUID) (*models.Media, error) {
	m, err := s.Get(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if m.UploadedBy != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the uploader can reassign media")
	}

	if collectionID != nil {
		if s.collections == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "collections repository not configured")
		}
		if _, err := s.collections.FindByID(ctx, *collectionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load collection")
		}
	}

	previous := m.CollectionID
	if err := s.repo.UpdateCollection(ctx, mediaID, collectionID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update media collection")
	}
	m.CollectionID = collectionID

	s.cascadeRecordAssignment(ctx, userID, m, previous, collectionID)
	return m, nil
}

func (s *service) cascadeRecordAssignment(ctx context.Context, userID uuid.UUID, m *models.Media, previous, target *uuid.UUID) {
	recordID, ok := m.RecordID()
	if !ok || s.assigner == nil {
		return
	}

	var err error
	switch {
	case target != nil:
		err = s.assigner.ReassignRecord(ctx, userID, recordID, *target)
	case previous != nil:
		_, err = s.assigner.RemoveRecord(ctx, *previous, recordID)
	}
	if err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithRecordID(ctx, recordID.String()), "cascade record assignment failed", err)
	}
}

// Delete removes the media row and schedules the stored bytes for
// destruction. Bytes cleanup is asynchronous through Pub/Sub when a
// publisher is configured, and a direct storage call otherwise. Either
// path is best-effort: the row deletion is what the caller observes.
func (s *service) Delete(ctx context.Context, userID, mediaID uuid.UUID) error {
	m, err := s.Get(ctx, mediaID)
	if err != nil {
		return err
	}
	if m.UploadedBy != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the uploader can delete media")
	}

	if err := s.repo.Delete(ctx, mediaID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete media")
	}

	s.cleanupBytes(ctx, m)
	return nil
}

func (s *service) cleanupBytes(ctx context.Context, m *models.Media) {
	ctx = context.WithoutCancel(ctx)

	if s.publisher != nil {
		event := DeletionEvent{
			MediaID:  m.ID.String(),
			PublicID: m.PublicID,
			Kind:     m.Kind,
		}
		if err := s.publisher.PublishDeletion(ctx, event); err == nil {
			return
		} else if s.logg != nil {
			s.logg.Error(ctx, "publish deletion event failed, destroying directly", err)
		}
	}

	if s.storage == nil {
		return
	}
	if err := s.storage.Destroy(ctx, m.PublicID, m.Kind); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithMediaID(ctx, m.ID.String()), "storage destroy failed", err)
	}
}

// ReprocessAI re-runs emotion inference for stored media by fetching the
// bytes back from the object store. When the bytes cannot be retrieved
// the media is marked ineligible for reprocessing.
func (s *service) ReprocessAI(ctx context.Context, userID, mediaID uuid.UUID) (*models.Media, error) {
	m, err := s.Get(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if m.UploadedBy != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the uploader can reprocess media")
	}
	if !s.aiCfg.Enabled || s.infer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "emotion inference is disabled")
	}
	if !s.infer.Healthy(ctx) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inference server unavailable")
	}
	if s.fetch == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "media fetcher not configured")
	}

	file, err := s.fetch.Extract(ctx, m.FileURL)
	if err != nil {
		s.markStatus(ctx, m, false, enums.AIStatusIneligible, "stored bytes unavailable")
		return nil, pkgerrors.Wrap(pkgerrors.CodeExtraction, err, "retrieve stored media bytes")
	}

	ann, err := s.runInference(ctx, m.Kind, file)
	if err != nil {
		s.metrics.IncInference("error")
		s.markStatus(ctx, m, false, enums.AIStatusError, err.Error())
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emotion inference failed")
	}
	s.metrics.IncInference("ok")

	metadata := map[string]any{
		models.MetaEmotion:     ann.Dominant(),
		models.MetaAIStatus:    enums.AIStatusProcessed.String(),
		models.MetaProcessedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.repo.SetAIResult(ctx, m.ID, true, metadata); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "store inference result")
	}

	if recordID, ok := m.RecordID(); ok && s.records != nil {
		if err := s.records.UpdateAnnotation(ctx, recordID, ann.Emotions, ann.Times); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithRecordID(ctx, recordID.String()), "update record annotation failed", err)
		}
	}

	m.AIProcessed = true
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	for k, v := range metadata {
		m.Metadata[k] = v
	}
	return m, nil
}

func (s *service) runInference(ctx context.Context, kind enums.MediaKind, file *extraction.RawFile) (annotation.Annotation, error) {
	switch kind {
	case enums.MediaKindImage:
		emotion, err := s.infer.InferImage(ctx, file.Filename, file.Data)
		if err != nil {
			return annotation.Annotation{}, err
		}
		return annotation.FromImage(emotion), nil
	case enums.MediaKindVideo:
		timeline, err := s.infer.InferVideo(ctx, file.Filename, file.Data)
		if err != nil {
			return annotation.Annotation{}, err
		}
		return annotation.FromTimeline(timeline), nil
	default:
		return annotation.Annotation{}, fmt.Errorf("unsupported media kind %q", kind)
	}
}

func (s *service) markStatus(ctx context.Context, m *models.Media, processed bool, status enums.AIStatus, reason string) {
	metadata := map[string]any{
		models.MetaAIStatus: status.String(),
		models.MetaAIReason: reason,
	}
	if err := s.repo.SetAIResult(context.WithoutCancel(ctx), m.ID, processed, metadata); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithMediaID(ctx, m.ID.String()), "store ai status failed", err)
	}
}

// AIStatus reports the inference status for a media item. This powers a
// public endpoint, so only status fields leave the service.
func (s *service) AIStatus(ctx context.Context, mediaID uuid.UUID) (*AIStatusInfo, error) {
	m, err := s.Get(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	status := m.Metadata.GetString(models.MetaAIStatus)
	if status == "" {
		status = enums.AIStatusSkipped.String()
	}
	return &AIStatusInfo{
		MediaID:   m.ID,
		Processed: m.AIProcessed,
		Status:    status,
		Emotion:   m.Metadata.GetString(models.MetaEmotion),
	}, nil
}
