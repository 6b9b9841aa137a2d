package controllers

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/emotrace/emotrace-backend/api/middleware"
	"github.com/emotrace/emotrace-backend/api/responses"
	"github.com/emotrace/emotrace-backend/api/validators"
	"github.com/emotrace/emotrace-backend/internal/media"
	"github.com/emotrace/emotrace-backend/internal/upload"
	"github.com/emotrace/emotrace-backend/pkg/config"
	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"
	"github.com/emotrace/emotrace-backend/pkg/logger"
)

const multipartMemoryLimit = 32 << 20

type uploadFromURLRequest struct {
	URL          string  `json:"url" validate:"required,url"`
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	CollectionID *string `json:"collection_id,omitempty"`
	SkipAI       bool    `json:"skip_ai,omitempty"`
}

// AIHealthChecker is the probe surfaced on the public ai-status route.
type AIHealthChecker interface {
	Healthy(ctx context.Context) bool
}

type assignCollectionRequest struct {
	CollectionID *string `json:"collection_id"`
}

// MediaUpload accepts a single multipart file and runs the upload pipeline.
func MediaUpload(svc upload.Service, uploadCfg config.UploadConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := parseSingleUpload(r, uploadCfg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UploadOne(r.Context(), userID, *input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// MediaUploadMany accepts multiple files under the "files" field, plus
// optional "media_urls" values for URL-sourced items. The batch either
// fully succeeds or is fully rolled back.
func MediaUploadMany(svc upload.Service, uploadCfg config.UploadConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := parseMultipart(r, uploadCfg); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		headers := r.MultipartForm.File["files"]
		urls := r.MultipartForm.Value["media_urls"]
		if len(headers) == 0 && len(urls) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "at least one file or media url is required"))
			return
		}

		collectionID, err := optionalUUIDField(r.FormValue("collection_id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		skipAI := boolFormField(r.FormValue("skip_ai"))

		inputs := make([]upload.Input, 0, len(headers)+len(urls))
		for _, header := range headers {
			data, err := readMultipartFile(header)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			inputs = append(inputs, upload.Input{
				Filename:      header.Filename,
				Data:          data,
				CollectionID:  collectionID,
				SkipInference: skipAI,
			})
		}
		for _, rawURL := range urls {
			if strings.TrimSpace(rawURL) == "" {
				continue
			}
			inputs = append(inputs, upload.Input{
				SourceURL:     rawURL,
				CollectionID:  collectionID,
				SkipInference: skipAI,
			})
		}

		results, err := svc.UploadMany(r.Context(), userID, inputs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, results)
	}
}

// MediaUploadFromURL extracts media from a remote page or direct link
// and runs it through the upload pipeline.
func MediaUploadFromURL(svc upload.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body uploadFromURLRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var collectionID *uuid.UUID
		if body.CollectionID != nil {
			collectionID, err = optionalUUIDField(*body.CollectionID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.UploadOne(r.Context(), userID, upload.Input{
			Title:         body.Title,
			Description:   body.Description,
			SourceURL:     body.URL,
			CollectionID:  collectionID,
			SkipInference: body.SkipAI,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// MediaList returns the caller's uploads.
func MediaList(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// MediaGet returns one media row by id.
func MediaGet(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "mediaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// MediaDelete removes the media row and schedules storage cleanup.
func MediaDelete(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.UUIDParam(r, "mediaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// MediaAssignCollection moves media into a collection, or clears the
// assignment when collection_id is null.
func MediaAssignCollection(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.UUIDParam(r, "mediaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body assignCollectionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var collectionID *uuid.UUID
		if body.CollectionID != nil {
			collectionID, err = optionalUUIDField(*body.CollectionID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		row, err := svc.AssignCollection(r.Context(), userID, id, collectionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// MediaReprocessAI re-runs emotion inference for stored media.
func MediaReprocessAI(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.UUIDParam(r, "mediaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.ReprocessAI(r.Context(), userID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// MediaAIAvailability surfaces whether emotion inference is switched on
// and whether the server currently answers its health probe. Public so
// clients can grey out AI features before uploading.
func MediaAIAvailability(cfg config.AIConfig, probe AIHealthChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		available := false
		if cfg.Enabled && probe != nil {
			available = probe.Healthy(r.Context())
		}
		responses.WriteSuccess(w, map[string]bool{
			"ai_enabled":   cfg.Enabled,
			"ai_available": available,
		})
	}
}

// MediaAIStatus reports the inference status for a media item.
func MediaAIStatus(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "mediaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := svc.AIStatus(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, info)
	}
}

func requestUserID(r *http.Request) (uuid.UUID, error) {
	return validators.UserIDFromValue(middleware.UserIDFromContext(r.Context()))
}

func parseMultipart(r *http.Request, cfg config.UploadConfig) error {
	limit := cfg.MaxUploadBytes()
	if max := cfg.MaxBatchSize; max > 1 {
		limit *= int64(max)
	}
	r.Body = http.MaxBytesReader(nil, r.Body, limit+1)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	return nil
}

func parseSingleUpload(r *http.Request, cfg config.UploadConfig) (*upload.Input, error) {
	if err := parseMultipart(r, cfg); err != nil {
		return nil, err
	}

	collectionID, err := optionalUUIDField(r.FormValue("collection_id"))
	if err != nil {
		return nil, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if mediaURL := strings.TrimSpace(r.FormValue("media_url")); mediaURL != "" {
			return &upload.Input{
				Title:         optionalStringField(r.FormValue("title")),
				Description:   optionalStringField(r.FormValue("description")),
				SourceURL:     mediaURL,
				CollectionID:  collectionID,
				SkipInference: boolFormField(r.FormValue("skip_ai")),
			}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "a file or media_url is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read uploaded file")
	}

	return &upload.Input{
		Title:         optionalStringField(r.FormValue("title")),
		Description:   optionalStringField(r.FormValue("description")),
		Filename:      header.Filename,
		Data:          data,
		CollectionID:  collectionID,
		SkipInference: boolFormField(r.FormValue("skip_ai")),
	}, nil
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read uploaded file")
	}
	return data, nil
}

func boolFormField(raw string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && parsed
}

func optionalStringField(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalUUIDField(raw string) (*uuid.UUID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collection_id must be a uuid")
	}
	return &id, nil
}
