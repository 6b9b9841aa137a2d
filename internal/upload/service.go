package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
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
	"github.com/emotrace/emotrace-backend/pkg/storage/cloudinary"
)

type storageClient interface {
	Upload(ctx context.Context, filename string, data []byte, folder string) (*cloudinary.UploadResult, error)
	Destroy(ctx context.Context, publicID string, kind enums.MediaKind) error
}

type inferenceClient interface {
	Healthy(ctx context.Context) bool
	InferImage(ctx context.Context, filename string, data []byte) (string, error)
	InferVideo(ctx context.Context, filename string, data []byte) ([]inference.TimelineEntry, error)
}

type urlExtractor interface {
	Extract(ctx context.Context, rawURL string) (*extraction.RawFile, error)
}

type mediaRepository interface {
	Create(ctx context.Context, media *models.Media) (*models.Media, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type recordsRepository interface {
	Create(ctx context.Context, record *models.Record) (*models.Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type collectionsRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Collection, error)
	AppendRecord(ctx context.Context, collectionID, recordID uuid.UUID) (bool, error)
	RemoveRecord(ctx context.Context, collectionID, recordID uuid.UUID) (bool, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service orchestrates the multi-stage upload pipeline: extract, store,
// infer, annotate, persist. Every committed side effect registers a
// compensating action; a failure after any commit point unwinds all of
// them so no half-uploaded state survives.
type Service interface {
	UploadOne(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
	UploadMany(ctx context.Context, userID uuid.UUID, inputs []Input) ([]Result, error)
}

type service struct {
	storage     storageClient
	infer       inferenceClient
	extractor   urlExtractor
	media       mediaRepository
	records     recordsRepository
	collections collectionsRepository
	users       userFinder
	uploadCfg   config.UploadConfig
	aiCfg       config.AIConfig
	metrics     *metrics.PipelineMetrics
	logg        *logger.Logger
}

// ServiceParams bundles the orchestrator dependencies. Collections and
// Users are optional: without them target-collection validation and the
// display projections are skipped.
type ServiceParams struct {
	Storage      storageClient
	Inference    inferenceClient
	Extractor    urlExtractor
	MediaRepo    mediaRepository
	RecordsRepo  recordsRepository
	Collections  collectionsRepository
	Users        userFinder
	UploadConfig config.UploadConfig
	AIConfig     config.AIConfig
	Metrics      *metrics.PipelineMetrics
	Logger       *logger.Logger
}

// NewService constructs the upload orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Storage == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if params.MediaRepo == nil {
		return nil, fmt.Errorf("media repository is required")
	}
	if params.RecordsRepo == nil {
		return nil, fmt.Errorf("records repository is required")
	}
	return &service{
		storage:     params.Storage,
		infer:       params.Inference,
		extractor:   params.Extractor,
		media:       params.MediaRepo,
		records:     params.RecordsRepo,
		collections: params.Collections,
		users:       params.Users,
		uploadCfg:   params.UploadConfig,
		aiCfg:       params.AIConfig,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// UploadOne runs the full pipeline for a single item. On failure after
// any commit point, all committed side effects are rolled back before
// the error returns.
func (s *service) UploadOne(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	started := time.Now()

	stack := &compensationStack{}
	result, err := s.uploadWithStack(ctx, userID, input, stack)
	if err != nil {
		s.rollback(ctx, stack)
		s.metrics.IncUpload("failed")
		return nil, err
	}

	s.metrics.IncUpload("success")
	s.metrics.ObserveUploadDuration(result.Media.Kind.String(), time.Since(started))
	return result, nil
}

// UploadMany is all-or-nothing: items run concurrently, and if any item
// fails every completed item is rolled back too.
func (s *service) UploadMany(ctx context.Context, userID uuid.UUID, inputs []Input) ([]Result, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required")
	}
	if max := s.uploadCfg.MaxBatchSize; max > 0 && len(inputs) > max {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("batch exceeds the maximum of %d files", max))
	}

	type itemOutcome struct {
		result *Result
		err    error
	}

	stacks := make([]*compensationStack, len(inputs))
	outcomes := make([]itemOutcome, len(inputs))

	var wg sync.WaitGroup
	for i := range inputs {
		stacks[i] = &compensationStack{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			result, err := s.uploadWithStack(ctx, userID, inputs[idx], stacks[idx])
			outcomes[idx] = itemOutcome{result: result, err: err}
		}(i)
	}
	wg.Wait()

	var failures []BatchItemError
	for i, outcome := range outcomes {
		if outcome.err != nil {
			failures = append(failures, BatchItemError{Index: i, Message: outcome.err.Error()})
		}
	}

	if len(failures) > 0 {
		var unwind sync.WaitGroup
		for i := range stacks {
			unwind.Add(1)
			go func(stack *compensationStack) {
				defer unwind.Done()
				s.rollback(ctx, stack)
			}(stacks[i])
		}
		unwind.Wait()
		for range inputs {
			s.metrics.IncUpload("failed")
		}
		code := pkgerrors.CodeInternal
		var cause error
		for _, outcome := range outcomes {
			if outcome.err != nil {
				cause = outcome.err
				if typed := pkgerrors.As(outcome.err); typed != nil {
					code = typed.Code()
				}
				break
			}
		}
		return nil, pkgerrors.Wrap(code, cause, "batch upload failed, all items rolled back").
			WithDetails(map[string]any{"items": failures})
	}

	results := make([]Result, len(outcomes))
	for i, outcome := range outcomes {
		results[i] = *outcome.result
		s.metrics.IncUpload("success")
	}
	return results, nil
}

func (s *service) uploadWithStack(ctx context.Context, userID uuid.UUID, input Input, stack *compensationStack) (*Result, error) {
	collection, err := s.resolveCollection(ctx, input.CollectionID)
	if err != nil {
		return nil, err
	}

	data, filename, err := s.resolveSource(ctx, input)
	if err != nil {
		return nil, err
	}

	if max := s.uploadCfg.MaxUploadBytes(); max > 0 && int64(len(data)) > max {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("file exceeds the %dMB upload limit", s.uploadCfg.MaxUploadMB))
	}

	stored, err := s.storage.Upload(ctx, filename, data, s.uploadCfg.Folder)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "store media bytes")
	}
	stack.push("storage upload", func(ctx context.Context) error {
		return s.storage.Destroy(ctx, stored.PublicID, stored.Kind)
	})

	ann, aiStatus := s.annotate(ctx, input.SkipInference, stored.Kind, filename, data)

	recordRow, err := s.records.Create(ctx, &models.Record{
		UserID:       userID,
		CollectionID: input.CollectionID,
		MediaURL:     stored.SecureURL,
		Emotions:     ann.Emotions,
		Times:        ann.Times,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "persist annotation record")
	}
	stack.push("annotation record", func(ctx context.Context) error {
		return s.records.Delete(ctx, recordRow.ID)
	})

	if collection != nil {
		added, err := s.collections.AppendRecord(ctx, collection.ID, recordRow.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "attach record to collection")
		}
		if !added {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
		}
		stack.push("collection membership", func(ctx context.Context) error {
			_, err := s.collections.RemoveRecord(ctx, collection.ID, recordRow.ID)
			return err
		})
	}

	processed := aiStatus == enums.AIStatusProcessed
	mediaRow, err := s.media.Create(ctx, &models.Media{
		Title:        input.Title,
		Description:  input.Description,
		FileURL:      stored.SecureURL,
		PublicID:     stored.PublicID,
		Kind:         stored.Kind,
		Format:       stored.Format,
		SizeBytes:    stored.SizeBytes,
		CollectionID: input.CollectionID,
		UploadedBy:   userID,
		AIProcessed:  processed,
		Metadata: map[string]any{
			models.MetaRecordID:    recordRow.ID.String(),
			models.MetaEmotion:     ann.Dominant(),
			models.MetaAIStatus:    aiStatus.String(),
			models.MetaProcessedAt: time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "persist media metadata")
	}
	stack.push("media row", func(ctx context.Context) error {
		return s.media.Delete(ctx, mediaRow.ID)
	})

	result := &Result{Media: mediaRow, Record: recordRow}
	if collection != nil {
		result.CollectionName = collection.Name
	}
	if s.users != nil {
		uploader, err := s.users.FindByID(ctx, userID)
		if err != nil {
			if s.logg != nil {
				s.logg.Warn(ctx, "could not resolve uploader display name")
			}
		} else {
			result.Uploader = uploader.DisplayName()
		}
	}
	return result, nil
}

// resolveCollection verifies the upload target exists before any side
// effect commits. A nil id or an unwired collections repo skips the check.
func (s *service) resolveCollection(ctx context.Context, id *uuid.UUID) (*models.Collection, error) {
	if id == nil || s.collections == nil {
		return nil, nil
	}
	collection, err := s.collections.FindByID(ctx, *id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load collection")
	}
	return collection, nil
}

// resolveSource yields the raw bytes: either directly from the request
// or extracted from a remote URL. Extraction failures abort before any
// side effect commits.
func (s *service) resolveSource(ctx context.Context, input Input) ([]byte, string, error) {
	hasData := len(input.Data) > 0
	hasURL := strings.TrimSpace(input.SourceURL) != ""

	switch {
	case hasData && hasURL:
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "provide either a file or a url, not both")
	case hasData:
		filename := input.Filename
		if filename == "" {
			filename = "upload"
		}
		return input.Data, filename, nil
	case hasURL:
		if s.extractor == nil || !s.uploadCfg.ExtractEnabled {
			return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "url uploads are not enabled")
		}
		file, err := s.extractor.Extract(ctx, input.SourceURL)
		if err != nil {
			return nil, "", err
		}
		return file.Data, file.Filename, nil
	default:
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "a file or url is required")
	}
}

// annotate runs best-effort inference. It never returns an error: any
// probe, transport, or prediction failure degrades to the default
// annotation with a status explaining why.
func (s *service) annotate(ctx context.Context, skip bool, kind enums.MediaKind, filename string, data []byte) (annotation.Annotation, enums.AIStatus) {
	if !s.aiCfg.Enabled || s.infer == nil {
		s.metrics.IncInference("disabled")
		return annotation.Default(), enums.AIStatusDisabled
	}

	if skip {
		s.metrics.IncInference("skipped")
		return annotation.Default(), enums.AIStatusSkipped
	}

	if !s.infer.Healthy(ctx) {
		s.metrics.IncInference("skipped")
		if s.logg != nil {
			s.logg.Warn(ctx, "inference server unavailable, recording default annotation")
		}
		return annotation.Default(), enums.AIStatusSkipped
	}

	switch kind {
	case enums.MediaKindImage:
		emotion, err := s.infer.InferImage(ctx, filename, data)
		if err != nil {
			s.metrics.IncInference("error")
			if s.logg != nil {
				s.logg.Error(ctx, "image inference failed", err)
			}
			return annotation.Default(), enums.AIStatusError
		}
		s.metrics.IncInference("ok")
		return annotation.FromImage(emotion), enums.AIStatusProcessed

	case enums.MediaKindVideo:
		timeline, err := s.infer.InferVideo(ctx, filename, data)
		if err != nil {
			s.metrics.IncInference("error")
			if s.logg != nil {
				s.logg.Error(ctx, "video inference failed", err)
			}
			return annotation.Default(), enums.AIStatusError
		}
		s.metrics.IncInference("ok")
		return annotation.FromTimeline(timeline), enums.AIStatusProcessed

	default:
		s.metrics.IncInference("ineligible")
		return annotation.Default(), enums.AIStatusIneligible
	}
}

func (s *service) rollback(ctx context.Context, stack *compensationStack) {
	if stack.depth() == 0 {
		return
	}
	s.metrics.IncRollback()
	if err := stack.unwind(ctx, s.logg); err != nil && s.logg != nil {
		s.logg.Error(context.WithoutCancel(ctx), "rollback finished with failures", err)
	}
}
