package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Record is the emotion-analysis outcome tied to one media upload event.
//
// Emotions and Times are parallel arrays with one pair per analyzed sample:
// length 1 for images (times[0] == 0), non-decreasing times for videos.
type Record struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	CollectionID *uuid.UUID      `gorm:"column:collection_id;type:uuid" json:"collection_id"`
	MediaURL     string          `gorm:"column:media_url;not null" json:"media_url"`
	Emotions     pq.StringArray  `gorm:"column:emotions;type:text[];not null" json:"emotions"`
	Times        pq.Float64Array `gorm:"column:times;type:double precision[];not null" json:"times"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	User       *User       `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Collection *Collection `gorm:"foreignKey:CollectionID;references:ID" json:"collection,omitempty"`
}
