package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/emotrace/emotrace-backend/pkg/db/types"
	"github.com/emotrace/emotrace-backend/pkg/enums"
)

// Metadata keys written by the upload pipeline.
const (
	MetaRecordID    = "record_id"
	MetaEmotion     = "emotion"
	MetaAIStatus    = "ai_status"
	MetaAIReason    = "ai_reason"
	MetaProcessedAt = "processed_at"
)

// Media captures metadata for one uploaded object.
//
// UploadedBy is immutable after creation; CollectionID may be reassigned or
// cleared at any time. The row only exists while the underlying bytes are
// durably stored (created after the storage commit, deleted alongside a
// best-effort storage removal).
type Media struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title        *string         `gorm:"column:title" json:"title,omitempty"`
	Description  *string         `gorm:"column:description" json:"description,omitempty"`
	FileURL      string          `gorm:"column:file_url;not null" json:"file_url"`
	PublicID     string          `gorm:"column:public_id;not null;unique" json:"public_id"`
	Kind         enums.MediaKind `gorm:"column:kind;not null" json:"kind"`
	Format       string          `gorm:"column:format;not null" json:"format"`
	SizeBytes    int64           `gorm:"column:size_bytes;not null" json:"size_bytes"`
	CollectionID *uuid.UUID      `gorm:"column:collection_id;type:uuid" json:"collection_id"`
	UploadedBy   uuid.UUID       `gorm:"column:uploaded_by;type:uuid;not null" json:"uploaded_by"`
	Metadata     dbtypes.JSONMap `gorm:"column:metadata;type:jsonb;not null;default:'{}'" json:"metadata"`
	AIProcessed  bool            `gorm:"column:ai_processed;not null;default:false" json:"ai_processed"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Uploader *User `gorm:"foreignKey:UploadedBy;references:ID" json:"uploader,omitempty"`
}

// RecordID resolves the back-reference to the annotation record, if any.
func (m Media) RecordID() (uuid.UUID, bool) {
	raw := m.Metadata.GetString(MetaRecordID)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
