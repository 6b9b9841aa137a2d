package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/emotrace/emotrace-backend/pkg/db/types"
)

// Collection is a user-created, named grouping of annotation records.
//
// Name is unique and lowercased at write time. Records holds member record
// ids with set semantics (no duplicates); mutations go through targeted
// array updates, never read-modify-write.
type Collection struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string             `gorm:"column:name;not null;unique" json:"name"`
	CreatedBy uuid.UUID          `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	Records   dbtypes.UUIDArray  `gorm:"column:records;type:uuid[];not null;default:'{}'" json:"records"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Creator *User `gorm:"foreignKey:CreatedBy;references:ID" json:"creator,omitempty"`
}
