package upload

import (
	"github.com/google/uuid"

	"github.com/emotrace/emotrace-backend/pkg/db/models"
)

// Input describes one upload request. Exactly one of Data or SourceURL
// must be set: raw bytes from a multipart form, or a page/media URL the
// pipeline extracts bytes from.
type Input struct {
	Title         *string
	Description   *string
	Filename      string
	Data          []byte
	SourceURL     string
	CollectionID  *uuid.UUID
	SkipInference bool
}

// Result pairs the stored media row with the annotation record minted
// alongside it. Uploader and CollectionName are display projections
// resolved best-effort after the pipeline commits.
type Result struct {
	Media          *models.Media  `json:"media"`
	Record         *models.Record `json:"record"`
	Uploader       string         `json:"uploader,omitempty"`
	CollectionName string         `json:"collection_name,omitempty"`
}

// BatchItemError reports why one item of a batch failed.
type BatchItemError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}
